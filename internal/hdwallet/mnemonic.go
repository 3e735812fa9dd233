// Package hdwallet implements the deterministic key derivation stack:
// BIP-39 mnemonics, SLIP-0010 for Ed25519, BIP-32 for secp256k1 and
// EIP-2333/2334 for BLS12-381. Coin types are fixed by the product
// (540 Accumulate, 60 Ethereum, 12381 BLS) and not configurable.
package hdwallet

import (
	"errors"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidStrength = errors.New("mnemonic strength must be 128 or 256 bits")
	ErrInvalidPath     = errors.New("invalid derivation path")
)

// Fixed coin types.
const (
	CoinTypeAccumulate = 540
	CoinTypeEthereum   = 60
	CoinTypeBLS        = 12381
)

// GenerateMnemonic produces a 12-word (128-bit) or 24-word (256-bit)
// BIP-39 phrase.
func GenerateMnemonic(strength int) (string, error) {
	if strength != 128 && strength != 256 {
		return "", ErrInvalidStrength
	}
	entropy, err := bip39.NewEntropy(strength)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// ValidateMnemonic checks wordlist membership and checksum.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(strings.TrimSpace(mnemonic))
}

// MnemonicToSeed stretches a validated phrase into the 64-byte BIP-39 seed.
// The 2048-round PBKDF2 here is fixed by the standard and unrelated to the
// vault's password KDF.
func MnemonicToSeed(mnemonic, passphrase string) ([]byte, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	return bip39.NewSeed(mnemonic, passphrase), nil
}
