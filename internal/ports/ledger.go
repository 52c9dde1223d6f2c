package ports

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
)

// AccountInfo holds the essentials of an on-chain account.
type AccountInfo struct {
	Owner    solana.PublicKey // Program owning the account
	Lamports uint64           // Native balance
	Data     []byte           // Raw account data
}

// TokenBalance is the balance of one SPL token account.
type TokenBalance struct {
	Amount   uint64 // Raw units
	Decimals uint8
}

// TokenBalanceEntry is a pre/post token balance from transaction metadata,
// used by the balance-delta settlement heuristic.
type TokenBalanceEntry struct {
	Owner    solana.PublicKey // Wallet owning the token account
	Mint     solana.PublicKey
	Amount   uint64
	Decimals uint8
}

// SignatureStatus is the confirmation state of a submitted transaction.
type SignatureStatus struct {
	Confirmed bool   // Reached at least "confirmed" commitment
	Finalized bool   // Reached "finalized" commitment
	Err       string // Non-empty when the transaction failed on-chain
}

// ConfirmedTransaction is a full transaction retrieved by signature,
// including the emitted log records needed for event decoding.
type ConfirmedTransaction struct {
	Slot              uint64
	BlockTime         time.Time
	LogMessages       []string
	PreTokenBalances  []TokenBalanceEntry
	PostTokenBalances []TokenBalanceEntry
	Failed            bool
}

// LedgerClient defines the interface for reading from and submitting to the
// blockchain ledger. This abstraction decouples the engine from the concrete
// RPC implementation.
type LedgerClient interface {
	// GetAccountInfo fetches an account by address.
	// Returns nil, ErrAccountNotFound when the account does not exist.
	GetAccountInfo(ctx context.Context, address solana.PublicKey) (*AccountInfo, error)

	// GetTokenAccountBalance fetches the balance of an SPL token account.
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*TokenBalance, error)

	// GetBalance fetches the native lamport balance of an address.
	GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error)

	// GetLatestBlockhash fetches a recent blockhash for transaction assembly.
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)

	// SendTransaction submits a signed transaction and returns its signature.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	// GetSignatureStatus polls the confirmation state of a signature.
	// Returns nil, ErrTxNotFound when the ledger has no record of it yet.
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)

	// GetTransaction retrieves a confirmed transaction with its log records.
	GetTransaction(ctx context.Context, sig solana.Signature) (*ConfirmedTransaction, error)
}

// Signer provides a signing capability bound to one key pair. The engine
// never handles private key material beyond this interface.
type Signer interface {
	// PublicKey returns the wallet address.
	PublicKey() solana.PublicKey
	// Sign signs a serialized transaction message.
	Sign(message []byte) (solana.Signature, error)
}
