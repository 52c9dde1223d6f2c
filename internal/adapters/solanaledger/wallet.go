package solanaledger

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Wallet implements ports.Signer around one base58-encoded key pair.
// The private key never leaves this type.
type Wallet struct {
	key solana.PrivateKey
}

// NewWallet parses a base58-encoded private key.
func NewWallet(base58Key string) (*Wallet, error) {
	if base58Key == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := solana.PrivateKeyFromBase58(base58Key)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Wallet{key: key}, nil
}

// PublicKey returns the wallet address.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

// Sign signs a serialized transaction message.
func (w *Wallet) Sign(message []byte) (solana.Signature, error) {
	sig, err := w.key.Sign(message)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("signing failed: %w", err)
	}
	return sig, nil
}
