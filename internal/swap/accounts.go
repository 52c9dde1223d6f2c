package swap

import (
	"fmt"

	"solSniperBot/internal/pool"

	"github.com/gagliardetto/solana-go"
)

// Well-known program and venue accounts referenced by every swap.
var (
	systemProgramID        = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	tokenProgramID         = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	ataProgramID           = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

	// Venue global configuration account.
	globalConfig = solana.MustPublicKeyFromBase58("ADyA8hdefvWN2dbGGWFotbzWxrAvLW83WG6QCVXvJKqw")
	// Default protocol fee recipient.
	protocolFeeRecipient = solana.MustPublicKeyFromBase58("62qc2CNXwrYqQScmEdiZFFAnJR262PxWEuNQtxfafNgV")
)

// swapAccounts is the fully derived account set for one buy or sell.
type swapAccounts struct {
	poolAddress       solana.PublicKey
	baseMint          solana.PublicKey
	userBaseATA       solana.PublicKey
	userQuoteATA      solana.PublicKey
	poolBaseVault     solana.PublicKey
	poolQuoteVault    solana.PublicKey
	protocolFeeATA    solana.PublicKey
	creatorVaultATA   solana.PublicKey
	creatorVaultOwner solana.PublicKey
	eventAuthority    solana.PublicKey
}

// eventAuthorityAddress derives the fixed event-authority account the venue
// program signs emitted events with.
func eventAuthorityAddress() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("__event_authority")}, pool.AmmProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive event authority: %w", err)
	}
	return addr, nil
}

// creatorVaultAddress derives the revenue-share vault authority for the
// pool's recorded creator.
func creatorVaultAddress(coinCreator solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("creator_vault"), coinCreator.Bytes()},
		pool.AmmProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive creator vault for %s: %w", coinCreator, err)
	}
	return addr, nil
}

// deriveSwapAccounts resolves every account a swap instruction touches for
// the given pool and user wallet.
func deriveSwapAccounts(user, poolAddress, baseMint, baseVault, quoteVault, coinCreator solana.PublicKey) (*swapAccounts, error) {
	userBaseATA, _, err := solana.FindAssociatedTokenAddress(user, baseMint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive user token account: %w", err)
	}
	userQuoteATA, _, err := solana.FindAssociatedTokenAddress(user, pool.WSOLMint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive user quote account: %w", err)
	}
	protocolFeeATA, _, err := solana.FindAssociatedTokenAddress(protocolFeeRecipient, pool.WSOLMint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive protocol fee account: %w", err)
	}
	creatorVaultOwner, err := creatorVaultAddress(coinCreator)
	if err != nil {
		return nil, err
	}
	creatorVaultATA, _, err := solana.FindAssociatedTokenAddress(creatorVaultOwner, pool.WSOLMint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive creator vault token account: %w", err)
	}
	eventAuthority, err := eventAuthorityAddress()
	if err != nil {
		return nil, err
	}

	return &swapAccounts{
		poolAddress:       poolAddress,
		baseMint:          baseMint,
		userBaseATA:       userBaseATA,
		userQuoteATA:      userQuoteATA,
		poolBaseVault:     baseVault,
		poolQuoteVault:    quoteVault,
		protocolFeeATA:    protocolFeeATA,
		creatorVaultATA:   creatorVaultATA,
		creatorVaultOwner: creatorVaultOwner,
		eventAuthority:    eventAuthority,
	}, nil
}

// metas builds the swap instruction's account list in the order the venue
// program expects.
func (a *swapAccounts) metas(user solana.PublicKey) solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(a.poolAddress),
		solana.Meta(user).WRITE().SIGNER(),
		solana.Meta(globalConfig),
		solana.Meta(a.baseMint),
		solana.Meta(pool.WSOLMint),
		solana.Meta(a.userBaseATA).WRITE(),
		solana.Meta(a.userQuoteATA).WRITE(),
		solana.Meta(a.poolBaseVault).WRITE(),
		solana.Meta(a.poolQuoteVault).WRITE(),
		solana.Meta(protocolFeeRecipient),
		solana.Meta(a.protocolFeeATA).WRITE(),
		solana.Meta(tokenProgramID),
		solana.Meta(tokenProgramID),
		solana.Meta(systemProgramID),
		solana.Meta(ataProgramID),
		solana.Meta(a.eventAuthority),
		solana.Meta(pool.AmmProgramID),
		solana.Meta(a.creatorVaultATA).WRITE(),
		solana.Meta(a.creatorVaultOwner),
	}
}
