package solanaledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"solSniperBot/internal/ports"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Client implements the ports.LedgerClient interface using the solana-go
// JSON-RPC client.
type Client struct {
	rpcClient *rpc.Client
	logger    ports.Logger
	timeout   time.Duration
}

// Config holds configuration specific to the ledger client adapter.
type Config struct {
	Endpoint string
	Timeout  time.Duration // Per-call timeout applied on top of the caller's context
	Logger   ports.Logger
}

// New creates a new ledger client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for ledger client")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("RPC endpoint is required for ledger client")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cfg.Logger.Info(context.Background(), "Ledger client configured", map[string]interface{}{"endpoint": cfg.Endpoint})

	return &Client{
		rpcClient: rpc.New(cfg.Endpoint),
		logger:    cfg.Logger,
		timeout:   timeout,
	}, nil
}

// handleError translates RPC errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var mappedErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		mappedErr = ports.ErrTimeout
	case errors.Is(err, context.Canceled):
		mappedErr = ports.ErrContextCanceled
	case errors.Is(err, rpc.ErrNotFound):
		mappedErr = ports.ErrAccountNotFound
	case strings.Contains(err.Error(), "429"):
		mappedErr = ports.ErrRateLimited
	case strings.Contains(err.Error(), "insufficient lamports"),
		strings.Contains(err.Error(), "insufficient funds"):
		mappedErr = ports.ErrInsufficientFunds
	default:
		mappedErr = ports.ErrLedgerUnavailable
	}

	c.logger.Warn(ctx, "Ledger RPC error", fields)
	return fmt.Errorf("%s: %w: %v", operation, mappedErr, err)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// GetAccountInfo fetches an account by address.
func (c *Client) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*ports.AccountInfo, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.rpcClient.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, c.handleError(ctx, err, "GetAccountInfo")
	}
	if res == nil || res.Value == nil {
		return nil, fmt.Errorf("GetAccountInfo %s: %w", address, ports.ErrAccountNotFound)
	}

	return &ports.AccountInfo{
		Owner:    res.Value.Owner,
		Lamports: res.Value.Lamports,
		Data:     res.Value.Data.GetBinary(),
	}, nil
}

// GetTokenAccountBalance fetches the balance of an SPL token account.
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*ports.TokenBalance, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.rpcClient.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, c.handleError(ctx, err, "GetTokenAccountBalance")
	}
	if res == nil || res.Value == nil {
		return nil, fmt.Errorf("GetTokenAccountBalance %s: %w", account, ports.ErrAccountNotFound)
	}

	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("GetTokenAccountBalance %s: unparseable amount %q: %w", account, res.Value.Amount, err)
	}

	return &ports.TokenBalance{Amount: amount, Decimals: res.Value.Decimals}, nil
}

// GetBalance fetches the native lamport balance of an address.
func (c *Client) GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.rpcClient.GetBalance(ctx, address, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, c.handleError(ctx, err, "GetBalance")
	}
	return res.Value, nil
}

// GetLatestBlockhash fetches a recent blockhash for transaction assembly.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, c.handleError(ctx, err, "GetLatestBlockhash")
	}
	return res.Value.Blockhash, nil
}

// SendTransaction submits a signed transaction and returns its signature.
// Preflight is skipped: the engine relies on its own confirmation checks and
// retry budget, and preflight simulation adds a slot of latency.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	sig, err := c.rpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("SendTransaction: %w: %v", ports.ErrSubmissionFailed, err)
	}
	c.logger.Debug(ctx, "Transaction submitted", map[string]interface{}{"signature": sig.String()})
	return sig, nil
}

// GetSignatureStatus polls the confirmation state of a signature.
func (c *Client) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*ports.SignatureStatus, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, c.handleError(ctx, err, "GetSignatureStatus")
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return nil, fmt.Errorf("GetSignatureStatus %s: %w", sig, ports.ErrTxNotFound)
	}

	st := res.Value[0]
	out := &ports.SignatureStatus{
		Confirmed: st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			st.ConfirmationStatus == rpc.ConfirmationStatusFinalized,
		Finalized: st.ConfirmationStatus == rpc.ConfirmationStatusFinalized,
	}
	if st.Err != nil {
		out.Err = fmt.Sprintf("%v", st.Err)
	}
	return out, nil
}

// GetTransaction retrieves a confirmed transaction with its log records.
func (c *Client) GetTransaction(ctx context.Context, sig solana.Signature) (*ports.ConfirmedTransaction, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	maxVersion := uint64(0)
	res, err := c.rpcClient.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("GetTransaction %s: %w", sig, ports.ErrTxNotFound)
		}
		return nil, c.handleError(ctx, err, "GetTransaction")
	}
	if res == nil || res.Meta == nil {
		return nil, fmt.Errorf("GetTransaction %s: %w", sig, ports.ErrTxNotFound)
	}

	out := &ports.ConfirmedTransaction{
		Slot:        res.Slot,
		LogMessages: res.Meta.LogMessages,
		Failed:      res.Meta.Err != nil,
	}
	if res.BlockTime != nil {
		out.BlockTime = res.BlockTime.Time()
	}
	out.PreTokenBalances = convertTokenBalances(res.Meta.PreTokenBalances)
	out.PostTokenBalances = convertTokenBalances(res.Meta.PostTokenBalances)
	return out, nil
}

func convertTokenBalances(in []rpc.TokenBalance) []ports.TokenBalanceEntry {
	out := make([]ports.TokenBalanceEntry, 0, len(in))
	for _, tb := range in {
		entry := ports.TokenBalanceEntry{Mint: tb.Mint}
		if tb.Owner != nil {
			entry.Owner = *tb.Owner
		}
		if tb.UiTokenAmount != nil {
			if amount, err := strconv.ParseUint(tb.UiTokenAmount.Amount, 10, 64); err == nil {
				entry.Amount = amount
			}
			entry.Decimals = tb.UiTokenAmount.Decimals
		}
		out = append(out, entry)
	}
	return out
}
