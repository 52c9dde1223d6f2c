package swap

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
)

// Program log records carrying emitted event data start with this prefix;
// the payload is base64.
const programDataPrefix = "Program data: "

// Event discriminators: the first 8 bytes of an emitted record identify its
// type.
var (
	buyEventDiscriminator  = [8]byte{103, 244, 82, 31, 44, 245, 119, 119}
	sellEventDiscriminator = [8]byte{62, 47, 55, 10, 165, 3, 220, 42}
)

// tradeEventMinLen covers the discriminator, the i64 timestamp and the 13
// little-endian u64 fields the decoder reads.
const tradeEventMinLen = 8 + 8 + 13*8

// Offset of the optional coin-creator fee field in newer records: after the
// numeric block come seven 32-byte account keys, a u64 fee-basis-points and
// the u64 fee itself.
const creatorFeeOffset = tradeEventMinLen + 7*32 + 8

// DecodeTradeEvent scans a confirmed transaction's log records for the
// execution event emitted by the swap and decodes the exact executed
// amounts. Returns ErrEventDecodeFailed when no record matches: callers
// must fall back to estimates, never treat absence as zero.
func DecodeTradeEvent(logMessages []string) (*domain.TradeEvent, error) {
	for _, msg := range logMessages {
		if !strings.HasPrefix(msg, programDataPrefix) {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(msg, programDataPrefix))
		if err != nil || len(raw) < tradeEventMinLen {
			continue // Unrelated or truncated record
		}

		var side domain.TradeSide
		var disc [8]byte
		copy(disc[:], raw[:8])
		switch disc {
		case buyEventDiscriminator:
			side = domain.Buy
		case sellEventDiscriminator:
			side = domain.Sell
		default:
			continue
		}
		return decodeRecord(side, raw)
	}
	return nil, fmt.Errorf("scanned %d log records: %w", len(logMessages), ports.ErrEventDecodeFailed)
}

// decodeRecord reads the fixed little-endian field sequence shared by buy
// and sell records: timestamp, executed base amount, requested quote bound,
// user reserve snapshots, pool reserve snapshots, executed quote amount,
// fee components and the final user-settled quote amount.
func decodeRecord(side domain.TradeSide, raw []byte) (*domain.TradeEvent, error) {
	off := 8
	u64 := func() uint64 {
		v := binary.LittleEndian.Uint64(raw[off : off+8])
		off += 8
		return v
	}

	ev := &domain.TradeEvent{Side: side, Exact: true}
	ev.Timestamp = time.Unix(int64(u64()), 0).UTC()
	ev.BaseAmount = u64()
	ev.QuoteLimit = u64()
	ev.UserBaseBalance = u64()
	ev.UserQuoteBalance = u64()
	ev.PoolBaseReserve = u64()
	ev.PoolQuoteReserve = u64()
	ev.QuoteAmount = u64()
	_ = u64() // LP fee basis points
	ev.LPFee = u64()
	_ = u64() // Protocol fee basis points
	ev.ProtocolFee = u64()
	_ = u64() // Quote amount adjusted for LP fee
	ev.UserQuoteAmount = u64()

	if len(raw) >= creatorFeeOffset+8 {
		ev.CreatorFee = binary.LittleEndian.Uint64(raw[creatorFeeOffset : creatorFeeOffset+8])
	}

	if ev.BaseAmount == 0 {
		return nil, fmt.Errorf("event record has zero base amount: %w", ports.ErrEventDecodeFailed)
	}
	return ev, nil
}
