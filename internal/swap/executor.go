package swap

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/pool"
	"solSniperBot/internal/ports"

	"github.com/gagliardetto/solana-go"
)

// Swap instruction method discriminators (8-byte Anchor method tags).
var (
	buyInstructionDiscriminator  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	sellInstructionDiscriminator = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// Submission is the immediate result of submitting a swap: the signature
// plus the pre-trade estimates used as a settlement fallback. The trade is
// always pending at this point; exact amounts arrive with confirmation.
type Submission struct {
	Signature   solana.Signature
	Side        domain.TradeSide
	BaseAmount  uint64 // Estimated tokens out (buy) or exact tokens in (sell)
	QuoteAmount uint64 // Budget spent (buy) or estimated proceeds (sell)
	MinBound    uint64 // Slippage guard passed to the program
	SubmittedAt time.Time
}

// Executor builds, signs and submits swap transactions against a resolved
// pool, and extracts executed amounts from confirmed transactions.
type Executor struct {
	ledger ports.LedgerClient
	signer ports.Signer
	logger ports.Logger

	slippagePct float64
	priorityFee uint64 // Micro-lamports per compute unit
	cuLimit     uint32
}

// Config holds configuration for the swap executor.
type Config struct {
	Ledger          ports.LedgerClient
	Signer          ports.Signer
	Logger          ports.Logger
	SlippagePercent float64
	PriorityFee     uint64
	ComputeLimit    uint32
}

// NewExecutor creates a new swap executor.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Ledger == nil || cfg.Signer == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for swap executor")
	}
	if cfg.SlippagePercent <= 0 || cfg.SlippagePercent >= 100 {
		return nil, fmt.Errorf("SlippagePercent must be between 0 and 100")
	}
	if cfg.ComputeLimit == 0 {
		cfg.ComputeLimit = 250000
	}
	return &Executor{
		ledger:      cfg.Ledger,
		signer:      cfg.Signer,
		logger:      cfg.Logger,
		slippagePct: cfg.SlippagePercent,
		priorityFee: cfg.PriorityFee,
		cuLimit:     cfg.ComputeLimit,
	}, nil
}

// EstimateBuyTokens estimates tokens received for a lamport budget at the
// pool's spot price, in raw base units.
func EstimateBuyTokens(p *domain.Pool, budgetLamports uint64) (uint64, error) {
	if p.BaseReserve == 0 || p.QuoteReserve == 0 {
		return 0, fmt.Errorf("pool %s has empty reserves: %w", p.Address, ports.ErrPriceUnavailable)
	}
	est := float64(budgetLamports) * float64(p.BaseReserve) / float64(p.QuoteReserve)
	return uint64(est), nil
}

// EstimateSellProceeds computes the expected lamports out for selling
// tokenAmount raw base units, using the constant-product formula:
// dQuote = quoteReserve - k/(baseReserve + dBase).
func EstimateSellProceeds(p *domain.Pool, tokenAmount uint64) (uint64, error) {
	if p.BaseReserve == 0 || p.QuoteReserve == 0 {
		return 0, fmt.Errorf("pool %s has empty reserves: %w", p.Address, ports.ErrPriceUnavailable)
	}
	k := float64(p.BaseReserve) * float64(p.QuoteReserve)
	newBase := float64(p.BaseReserve) + float64(tokenAmount)
	proceeds := float64(p.QuoteReserve) - k/newBase
	if proceeds <= 0 {
		return 0, fmt.Errorf("sell of %d units yields no proceeds: %w", tokenAmount, ports.ErrPriceUnavailable)
	}
	return uint64(proceeds), nil
}

// applySlippage lowers an expected amount by the configured tolerance.
func (e *Executor) applySlippage(amount uint64) uint64 {
	return uint64(float64(amount) * (1 - e.slippagePct/100))
}

// ExecuteBuy builds and submits a buy of the pool's base token for a fixed
// lamport budget. The transaction wraps the budget into the venue's wrapped
// native representation, swaps, and unwraps any remainder to reclaim rent.
func (e *Executor) ExecuteBuy(ctx context.Context, p *domain.Pool, budgetLamports uint64) (*Submission, error) {
	estTokens, err := EstimateBuyTokens(p, budgetLamports)
	if err != nil {
		return nil, err
	}
	minTokensOut := e.applySlippage(estTokens)

	data := make([]byte, 0, 24)
	data = append(data, buyInstructionDiscriminator...)
	data = binary.LittleEndian.AppendUint64(data, minTokensOut)
	data = binary.LittleEndian.AppendUint64(data, budgetLamports)

	sig, err := e.submitSwap(ctx, p, data, budgetLamports, true)
	if err != nil {
		return nil, err
	}

	e.logger.Info(ctx, "Buy submitted", map[string]interface{}{
		"pool": p.Address, "signature": sig.String(), "budgetLamports": budgetLamports, "minTokensOut": minTokensOut,
	})
	return &Submission{
		Signature:   sig,
		Side:        domain.Buy,
		BaseAmount:  estTokens,
		QuoteAmount: budgetLamports,
		MinBound:    minTokensOut,
		SubmittedAt: time.Now(),
	}, nil
}

// ExecuteSell builds and submits a sell of tokenAmount raw base units. The
// minimum acceptable proceeds come from the constant-product estimate with
// the slippage tolerance applied.
func (e *Executor) ExecuteSell(ctx context.Context, p *domain.Pool, tokenAmount uint64) (*Submission, error) {
	estProceeds, err := EstimateSellProceeds(p, tokenAmount)
	if err != nil {
		return nil, err
	}
	minProceeds := e.applySlippage(estProceeds)

	data := make([]byte, 0, 24)
	data = append(data, sellInstructionDiscriminator...)
	data = binary.LittleEndian.AppendUint64(data, tokenAmount)
	data = binary.LittleEndian.AppendUint64(data, minProceeds)

	sig, err := e.submitSwap(ctx, p, data, 0, false)
	if err != nil {
		return nil, err
	}

	e.logger.Info(ctx, "Sell submitted", map[string]interface{}{
		"pool": p.Address, "signature": sig.String(), "tokenAmount": tokenAmount, "minProceeds": minProceeds,
	})
	return &Submission{
		Signature:   sig,
		Side:        domain.Sell,
		BaseAmount:  tokenAmount,
		QuoteAmount: estProceeds,
		MinBound:    minProceeds,
		SubmittedAt: time.Now(),
	}, nil
}

// submitSwap assembles the full atomic transaction around one swap
// instruction: compute-budget hints, idempotent account creation, the
// native wrap (buys only), the swap, and the unwrap/close.
func (e *Executor) submitSwap(ctx context.Context, p *domain.Pool, swapData []byte, wrapLamports uint64, isBuy bool) (solana.Signature, error) {
	user := e.signer.PublicKey()

	poolAddr, err := solana.PublicKeyFromBase58(p.Address)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid pool address %q: %w", p.Address, ports.ErrInvalidRequest)
	}
	baseMint, err := solana.PublicKeyFromBase58(p.BaseMint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid base mint %q: %w", p.BaseMint, ports.ErrInvalidRequest)
	}
	baseVault, err := solana.PublicKeyFromBase58(p.BaseVault)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid base vault %q: %w", p.BaseVault, ports.ErrInvalidRequest)
	}
	quoteVault, err := solana.PublicKeyFromBase58(p.QuoteVault)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid quote vault %q: %w", p.QuoteVault, ports.ErrInvalidRequest)
	}
	creator, err := solana.PublicKeyFromBase58(p.Creator)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid pool creator %q: %w", p.Creator, ports.ErrInvalidRequest)
	}

	accounts, err := deriveSwapAccounts(user, poolAddr, baseMint, baseVault, quoteVault, creator)
	if err != nil {
		return solana.Signature{}, err
	}

	instructions := []solana.Instruction{
		computeUnitLimitInstruction(e.cuLimit),
		computeUnitPriceInstruction(e.priorityFee),
		createATAIdempotentInstruction(user, accounts.userQuoteATA, user, pool.WSOLMint),
		createATAIdempotentInstruction(user, accounts.userBaseATA, user, baseMint),
	}
	if isBuy && wrapLamports > 0 {
		instructions = append(instructions,
			systemTransferInstruction(user, accounts.userQuoteATA, wrapLamports),
			syncNativeInstruction(accounts.userQuoteATA),
		)
	}
	instructions = append(instructions,
		solana.NewInstruction(pool.AmmProgramID, accounts.metas(user), swapData),
		closeAccountInstruction(accounts.userQuoteATA, user, user),
	)

	blockhash, err := e.ledger.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ports.ErrSubmissionFailed, err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(user))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("transaction assembly failed: %w: %v", ports.ErrSubmissionFailed, err)
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("message serialization failed: %w: %v", ports.ErrSubmissionFailed, err)
	}
	sig, err := e.signer.Sign(message)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ports.ErrSubmissionFailed, err)
	}
	tx.Signatures = []solana.Signature{sig}

	return e.ledger.SendTransaction(ctx, tx)
}

// Settle extracts the executed amounts for a confirmed swap. Preference
// order: exact event decode from the logs, then the balance-delta heuristic
// from token balance metadata, then the pre-trade estimate. Only the first
// yields Exact: true; the flag is always surfaced to the caller.
func (e *Executor) Settle(tx *ports.ConfirmedTransaction, sub *Submission, wallet, mint solana.PublicKey) *domain.TradeEvent {
	ev, err := DecodeTradeEvent(tx.LogMessages)
	if err == nil && ev.Side == sub.Side {
		return ev
	}
	if err != nil && !errors.Is(err, ports.ErrEventDecodeFailed) {
		e.logger.Warn(context.Background(), "Unexpected event decode failure", map[string]interface{}{
			"signature": sub.Signature.String(), "error": err.Error(),
		})
	}

	if ev := settleFromBalances(tx, sub, wallet, mint); ev != nil {
		e.logger.Info(context.Background(), "Settled from balance deltas", map[string]interface{}{
			"signature": sub.Signature.String(), "baseAmount": ev.BaseAmount,
		})
		return ev
	}

	e.logger.Warn(context.Background(), "Falling back to pre-trade estimate", map[string]interface{}{
		"signature": sub.Signature.String(),
	})
	return &domain.TradeEvent{
		Side:            sub.Side,
		Timestamp:       tx.BlockTime,
		BaseAmount:      sub.BaseAmount,
		QuoteAmount:     sub.QuoteAmount,
		UserQuoteAmount: sub.QuoteAmount,
		Exact:           false,
	}
}

// LedgerStatus reports the confirmation status of a submitted transaction.
func (e *Executor) LedgerStatus(ctx context.Context, sig solana.Signature) (*ports.SignatureStatus, error) {
	return e.ledger.GetSignatureStatus(ctx, sig)
}

// LedgerTransaction fetches a confirmed transaction with its logs and
// token balance metadata for settlement.
func (e *Executor) LedgerTransaction(ctx context.Context, sig solana.Signature) (*ports.ConfirmedTransaction, error) {
	return e.ledger.GetTransaction(ctx, sig)
}

// settleFromBalances derives executed amounts from the pre/post token
// balances of the user's accounts. Returns nil when the metadata does not
// cover the wallet's accounts.
func settleFromBalances(tx *ports.ConfirmedTransaction, sub *Submission, wallet, mint solana.PublicKey) *domain.TradeEvent {
	balanceOf := func(entries []ports.TokenBalanceEntry, m solana.PublicKey) (uint64, bool) {
		for _, e := range entries {
			if e.Owner.Equals(wallet) && e.Mint.Equals(m) {
				return e.Amount, true
			}
		}
		return 0, false
	}

	preBase, preOK := balanceOf(tx.PreTokenBalances, mint)
	postBase, postOK := balanceOf(tx.PostTokenBalances, mint)
	if !preOK && !postOK {
		return nil
	}

	var baseDelta uint64
	switch sub.Side {
	case domain.Buy:
		if postBase <= preBase {
			return nil
		}
		baseDelta = postBase - preBase
	case domain.Sell:
		if preBase <= postBase {
			return nil
		}
		baseDelta = preBase - postBase
	}

	ev := &domain.TradeEvent{
		Side:            sub.Side,
		Timestamp:       tx.BlockTime,
		BaseAmount:      baseDelta,
		QuoteAmount:     sub.QuoteAmount,
		UserQuoteAmount: sub.QuoteAmount,
		Exact:           false,
	}
	// The wrapped quote account is closed in the same transaction, so a
	// post balance is usually absent; use it when present.
	preQuote, ok1 := balanceOf(tx.PreTokenBalances, pool.WSOLMint)
	postQuote, ok2 := balanceOf(tx.PostTokenBalances, pool.WSOLMint)
	if ok1 && ok2 {
		if sub.Side == domain.Sell && postQuote > preQuote {
			ev.QuoteAmount = postQuote - preQuote
			ev.UserQuoteAmount = ev.QuoteAmount
		} else if sub.Side == domain.Buy && preQuote > postQuote {
			ev.QuoteAmount = preQuote - postQuote
			ev.UserQuoteAmount = ev.QuoteAmount
		}
	}
	return ev
}

// --- Instruction builders ---

func computeUnitLimitInstruction(limit uint32) solana.Instruction {
	data := make([]byte, 0, 5)
	data = append(data, 2) // SetComputeUnitLimit
	data = binary.LittleEndian.AppendUint32(data, limit)
	return solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

func computeUnitPriceInstruction(microLamports uint64) solana.Instruction {
	data := make([]byte, 0, 9)
	data = append(data, 3) // SetComputeUnitPrice
	data = binary.LittleEndian.AppendUint64(data, microLamports)
	return solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

// createATAIdempotentInstruction creates an associated token account if it
// does not exist yet; a no-op otherwise.
func createATAIdempotentInstruction(payer, ata, owner, mint solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(ataProgramID, solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(ata).WRITE(),
		solana.Meta(owner),
		solana.Meta(mint),
		solana.Meta(systemProgramID),
		solana.Meta(tokenProgramID),
	}, []byte{1}) // CreateIdempotent
}

func systemTransferInstruction(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	data := make([]byte, 0, 12)
	data = binary.LittleEndian.AppendUint32(data, 2) // Transfer
	data = binary.LittleEndian.AppendUint64(data, lamports)
	return solana.NewInstruction(systemProgramID, solana.AccountMetaSlice{
		solana.Meta(from).WRITE().SIGNER(),
		solana.Meta(to).WRITE(),
	}, data)
}

// syncNativeInstruction updates a wrapped-native account's token balance to
// match its lamports after a transfer.
func syncNativeInstruction(account solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(tokenProgramID, solana.AccountMetaSlice{
		solana.Meta(account).WRITE(),
	}, []byte{17}) // SyncNative
}

// closeAccountInstruction closes a token account and reclaims its rent.
func closeAccountInstruction(account, dest, owner solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(tokenProgramID, solana.AccountMetaSlice{
		solana.Meta(account).WRITE(),
		solana.Meta(dest).WRITE(),
		solana.Meta(owner).SIGNER(),
	}, []byte{9}) // CloseAccount
}
