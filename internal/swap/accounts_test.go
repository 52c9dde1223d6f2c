package swap

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solSniperBot/internal/pool"
)

func TestDeriveSwapAccounts(t *testing.T) {
	poolAddr := solana.MustPublicKeyFromBase58("Ei7Bd3UAkVSqqzBo9eJbBWJ8xu8VYWWBPDXxqTSgMVVp")
	baseVault := solana.MustPublicKeyFromBase58("HN7cABqLq46Es1jh92dQQisAq662SmxELLLsHHe4YWrH")
	quoteVault := solana.MustPublicKeyFromBase58("J7nSEX8ADf3pVVicd6yKy2Skvg8iLePEmkLUisAAaioD")
	creator := solana.MustPublicKeyFromBase58("5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1")

	first, err := deriveSwapAccounts(testWallet, poolAddr, testMint, baseVault, quoteVault, creator)
	require.NoError(t, err)
	second, err := deriveSwapAccounts(testWallet, poolAddr, testMint, baseVault, quoteVault, creator)
	require.NoError(t, err)
	assert.Equal(t, first, second, "derivation must be deterministic")

	// The user's token accounts follow the standard associated-account rule.
	wantBaseATA, _, err := solana.FindAssociatedTokenAddress(testWallet, testMint)
	require.NoError(t, err)
	assert.Equal(t, wantBaseATA, first.userBaseATA)
	wantQuoteATA, _, err := solana.FindAssociatedTokenAddress(testWallet, pool.WSOLMint)
	require.NoError(t, err)
	assert.Equal(t, wantQuoteATA, first.userQuoteATA)

	// Different creators yield different revenue-share vaults.
	other, err := deriveSwapAccounts(testWallet, poolAddr, testMint, baseVault, quoteVault, testWallet)
	require.NoError(t, err)
	assert.NotEqual(t, first.creatorVaultOwner, other.creatorVaultOwner)
	assert.NotEqual(t, first.creatorVaultATA, other.creatorVaultATA)
}

func TestSwapAccountMetas(t *testing.T) {
	poolAddr := solana.MustPublicKeyFromBase58("Ei7Bd3UAkVSqqzBo9eJbBWJ8xu8VYWWBPDXxqTSgMVVp")
	baseVault := solana.MustPublicKeyFromBase58("HN7cABqLq46Es1jh92dQQisAq662SmxELLLsHHe4YWrH")
	quoteVault := solana.MustPublicKeyFromBase58("J7nSEX8ADf3pVVicd6yKy2Skvg8iLePEmkLUisAAaioD")
	creator := solana.MustPublicKeyFromBase58("5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1")

	accounts, err := deriveSwapAccounts(testWallet, poolAddr, testMint, baseVault, quoteVault, creator)
	require.NoError(t, err)
	metas := accounts.metas(testWallet)
	require.Len(t, metas, 19)

	assert.Equal(t, poolAddr, metas[0].PublicKey)
	assert.Equal(t, testWallet, metas[1].PublicKey)
	assert.True(t, metas[1].IsSigner, "only the user signs")
	assert.True(t, metas[1].IsWritable)

	// Reserve vaults and all fee destinations must be writable.
	for _, i := range []int{5, 6, 7, 8, 10, 17} {
		assert.True(t, metas[i].IsWritable, "meta %d must be writable", i)
	}
	// Nothing else signs.
	for i, meta := range metas {
		if i != 1 {
			assert.False(t, meta.IsSigner, "meta %d must not sign", i)
		}
	}
}
