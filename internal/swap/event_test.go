package swap

import (
	"encoding/base64"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
)

// buildEventRecord assembles a raw emitted record in the program's layout
// and wraps it as a "Program data: " log line.
func buildEventRecord(disc [8]byte, fields eventFields, withCreatorFee bool) string {
	raw := make([]byte, 0, creatorFeeOffset+8)
	raw = append(raw, disc[:]...)
	u64 := func(v uint64) { raw = binary.LittleEndian.AppendUint64(raw, v) }

	u64(uint64(fields.timestamp))
	u64(fields.baseAmount)
	u64(fields.quoteLimit)
	u64(fields.userBaseBalance)
	u64(fields.userQuoteBalance)
	u64(fields.poolBaseReserve)
	u64(fields.poolQuoteReserve)
	u64(fields.quoteAmount)
	u64(25) // LP fee basis points
	u64(fields.lpFee)
	u64(5) // Protocol fee basis points
	u64(fields.protocolFee)
	u64(fields.quoteAmount - fields.lpFee)
	u64(fields.userQuoteAmount)

	if withCreatorFee {
		raw = append(raw, make([]byte, 7*32)...) // account keys
		raw = binary.LittleEndian.AppendUint64(raw, 5)
		raw = binary.LittleEndian.AppendUint64(raw, fields.creatorFee)
	}
	return programDataPrefix + base64.StdEncoding.EncodeToString(raw)
}

type eventFields struct {
	timestamp        int64
	baseAmount       uint64
	quoteLimit       uint64
	userBaseBalance  uint64
	userQuoteBalance uint64
	poolBaseReserve  uint64
	poolQuoteReserve uint64
	quoteAmount      uint64
	lpFee            uint64
	protocolFee      uint64
	userQuoteAmount  uint64
	creatorFee       uint64
}

func TestDecodeTradeEvent(t *testing.T) {
	fields := eventFields{
		timestamp:        1724800000,
		baseAmount:       1_000_000_000,
		quoteLimit:       50_000_000,
		userBaseBalance:  2_000_000_000,
		userQuoteBalance: 300_000_000,
		poolBaseReserve:  900_000_000_000,
		poolQuoteReserve: 120_000_000_000,
		quoteAmount:      49_000_000,
		lpFee:            120_000,
		protocolFee:      24_000,
		userQuoteAmount:  48_856_000,
		creatorFee:       12_000,
	}

	t.Run("sell event with creator fee", func(t *testing.T) {
		logs := []string{
			"Program pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA invoke [1]",
			buildEventRecord(sellEventDiscriminator, fields, true),
			"Program pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA success",
		}
		ev, err := DecodeTradeEvent(logs)
		require.NoError(t, err)
		assert.Equal(t, domain.Sell, ev.Side)
		assert.True(t, ev.Exact)
		assert.Equal(t, time.Unix(fields.timestamp, 0).UTC(), ev.Timestamp)
		assert.Equal(t, fields.baseAmount, ev.BaseAmount)
		assert.Equal(t, fields.quoteLimit, ev.QuoteLimit)
		assert.Equal(t, fields.poolBaseReserve, ev.PoolBaseReserve)
		assert.Equal(t, fields.poolQuoteReserve, ev.PoolQuoteReserve)
		assert.Equal(t, fields.quoteAmount, ev.QuoteAmount)
		assert.Equal(t, fields.lpFee, ev.LPFee)
		assert.Equal(t, fields.protocolFee, ev.ProtocolFee)
		assert.Equal(t, fields.userQuoteAmount, ev.UserQuoteAmount)
		assert.Equal(t, fields.creatorFee, ev.CreatorFee)
	})

	t.Run("buy event without creator fee", func(t *testing.T) {
		ev, err := DecodeTradeEvent([]string{buildEventRecord(buyEventDiscriminator, fields, false)})
		require.NoError(t, err)
		assert.Equal(t, domain.Buy, ev.Side)
		assert.Equal(t, fields.baseAmount, ev.BaseAmount)
		assert.Zero(t, ev.CreatorFee, "older records carry no creator fee")
	})

	t.Run("no matching record", func(t *testing.T) {
		logs := []string{
			"Program log: Instruction: Sell",
			"Program data: " + base64.StdEncoding.EncodeToString([]byte("short")),
		}
		_, err := DecodeTradeEvent(logs)
		assert.ErrorIs(t, err, ports.ErrEventDecodeFailed)
	})

	t.Run("unknown discriminator skipped", func(t *testing.T) {
		unknown := buildEventRecord([8]byte{1, 2, 3, 4, 5, 6, 7, 8}, fields, false)
		_, err := DecodeTradeEvent([]string{unknown})
		assert.ErrorIs(t, err, ports.ErrEventDecodeFailed)
	})

	t.Run("zero base amount rejected", func(t *testing.T) {
		empty := fields
		empty.baseAmount = 0
		_, err := DecodeTradeEvent([]string{buildEventRecord(sellEventDiscriminator, empty, false)})
		assert.ErrorIs(t, err, ports.ErrEventDecodeFailed)
	})

	t.Run("invalid base64 skipped", func(t *testing.T) {
		logs := []string{
			programDataPrefix + "!!!not-base64!!!",
			buildEventRecord(sellEventDiscriminator, fields, false),
		}
		ev, err := DecodeTradeEvent(logs)
		require.NoError(t, err)
		assert.Equal(t, domain.Sell, ev.Side)
	})

	t.Run("empty logs", func(t *testing.T) {
		_, err := DecodeTradeEvent(nil)
		assert.ErrorIs(t, err, ports.ErrEventDecodeFailed)
	})
}
