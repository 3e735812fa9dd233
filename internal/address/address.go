// Package address formats public keys into the human-displayed address of
// each supported chain. These are encoding contracts, not cryptography: one
// canonical address per chain family, derived mechanically from the key.
package address

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"

	"github.com/certenIO/certen-key-vault/internal/curves"
)

// Chain names a supported address family.
type Chain string

const (
	ChainEthereum   Chain = "ethereum"
	ChainSolana     Chain = "solana"
	ChainCosmos     Chain = "cosmos"
	ChainAptos      Chain = "aptos"
	ChainSui        Chain = "sui"
	ChainTron       Chain = "tron"
	ChainTon        Chain = "ton"
	ChainNear       Chain = "near"
	ChainAccumulate Chain = "accumulate"
)

var ErrUnsupportedChain = errors.New("unsupported chain")

const cosmosHRP = "cosmos"

// ForChain formats pub for the given chain. The key type must match what
// the chain expects: Ed25519 for Solana/Aptos/Sui/NEAR/TON/Accumulate,
// secp256k1 for Ethereum/Cosmos/TRON.
func ForChain(chain Chain, pub []byte) (string, error) {
	switch chain {
	case ChainEthereum:
		return curves.EthereumAddress(pub)
	case ChainSolana:
		return Solana(pub)
	case ChainCosmos:
		return Cosmos(pub)
	case ChainAptos:
		return Aptos(pub)
	case ChainSui:
		return Sui(pub)
	case ChainTron:
		return Tron(pub)
	case ChainTon:
		return Ton(pub)
	case ChainNear:
		return Near(pub)
	case ChainAccumulate:
		return curves.LiteAccountURL(pub)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
}

// ForKeyType builds the canonical address map stored in key metadata:
// every chain family the key type can serve, at most one address each.
func ForKeyType(t curves.KeyType, pub []byte) (map[string]string, error) {
	chains, ok := chainsByKeyType[t]
	if !ok {
		return nil, fmt.Errorf("%w: no address chains for key type %s", ErrUnsupportedChain, t)
	}
	out := make(map[string]string, len(chains))
	for _, c := range chains {
		addr, err := ForChain(c, pub)
		if err != nil {
			return nil, fmt.Errorf("derive %s address: %w", c, err)
		}
		out[string(c)] = addr
	}
	return out, nil
}

var chainsByKeyType = map[curves.KeyType][]Chain{
	curves.KeyTypeEd25519: {
		ChainAccumulate, ChainSolana, ChainAptos, ChainSui, ChainNear, ChainTon,
	},
	curves.KeyTypeSecp256k1: {
		ChainEthereum, ChainCosmos, ChainTron,
	},
	// BLS keys have no chain address family of their own; they identify
	// validators by raw public key.
	curves.KeyTypeBLS12381: {},
}

func requireLen(pub []byte, n int, chain Chain) error {
	if len(pub) != n {
		return fmt.Errorf("%s expects a %d-byte public key, got %d", chain, n, len(pub))
	}
	return nil
}

// Solana addresses are the base58 of the Ed25519 public key.
func Solana(pub []byte) (string, error) {
	if err := requireLen(pub, 32, ChainSolana); err != nil {
		return "", err
	}
	return base58.Encode(pub), nil
}

// Cosmos addresses are bech32("cosmos", ripemd160(sha256(compressed pub))).
func Cosmos(pub []byte) (string, error) {
	if err := requireLen(pub, 33, ChainCosmos); err != nil {
		return "", err
	}
	sha := sha256.Sum256(pub)
	ripe := ripemd160.New()
	ripe.Write(sha[:])
	converted, err := bech32.ConvertBits(ripe.Sum(nil), 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("cosmos bech32 conversion: %w", err)
	}
	return bech32.Encode(cosmosHRP, converted)
}

// Aptos single-key accounts: sha3-256(pub ‖ 0x00).
func Aptos(pub []byte) (string, error) {
	if err := requireLen(pub, 32, ChainAptos); err != nil {
		return "", err
	}
	h := sha3.Sum256(append(append([]byte(nil), pub...), 0x00))
	return "0x" + hex.EncodeToString(h[:]), nil
}

// Sui single-key accounts: blake2b-256(0x00 ‖ pub), flag 0x00 = Ed25519.
func Sui(pub []byte) (string, error) {
	if err := requireLen(pub, 32, ChainSui); err != nil {
		return "", err
	}
	h := blake2b.Sum256(append([]byte{0x00}, pub...))
	return "0x" + hex.EncodeToString(h[:]), nil
}

// Tron addresses prefix the Keccak tail of the uncompressed key with 0x41
// and base58check-encode it.
func Tron(pub []byte) (string, error) {
	uncompressed, err := uncompressedSecp(pub)
	if err != nil {
		return "", err
	}
	body := append([]byte{0x41}, curves.Keccak256(uncompressed[1:])[12:]...)
	first := sha256.Sum256(body)
	second := sha256.Sum256(first[:])
	return base58.Encode(append(body, second[:4]...)), nil
}

// Ton addresses are emitted in raw form: workchain 0 and the SHA-256 of the
// public key as the account identifier. Friendly (base64) forms require
// contract-cell hashing and are out of scope for this layer.
func Ton(pub []byte) (string, error) {
	if err := requireLen(pub, 32, ChainTon); err != nil {
		return "", err
	}
	h := sha256.Sum256(pub)
	return "0:" + hex.EncodeToString(h[:]), nil
}

// Near implicit accounts are the hex of the Ed25519 public key.
func Near(pub []byte) (string, error) {
	if err := requireLen(pub, 32, ChainNear); err != nil {
		return "", err
	}
	return hex.EncodeToString(pub), nil
}
