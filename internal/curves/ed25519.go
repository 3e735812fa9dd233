package curves

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateEd25519 returns a fresh 32-byte Ed25519 seed.
func GenerateEd25519() ([]byte, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate ed25519 seed: %w", err)
	}
	return seed, nil
}

// ed25519Key accepts either a 32-byte seed or a full 64-byte private key.
func ed25519Key(priv []byte) (ed25519.PrivateKey, error) {
	switch len(priv) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(priv), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(priv), nil
	default:
		return nil, fmt.Errorf("%w: expected 32 or 64 bytes, got %d", ErrInvalidKeyLength, len(priv))
	}
}

// Ed25519PublicKey returns the 32-byte public key for priv.
func Ed25519PublicKey(priv []byte) ([]byte, error) {
	key, err := ed25519Key(priv)
	if err != nil {
		return nil, err
	}
	pub := key.Public().(ed25519.PublicKey)
	return append([]byte(nil), pub...), nil
}

// SignEd25519 produces the 64-byte RFC 8032 signature over message.
// Fully deterministic for a given (key, message).
func SignEd25519(priv, message []byte) ([]byte, error) {
	key, err := ed25519Key(priv)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(key, message), nil
}

// VerifyEd25519 reports whether sig is a valid signature over message.
// Malformed input returns false, never an error.
func VerifyEd25519(pub, message, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}

// LiteAccountURL derives the Accumulate lite identity URL for an Ed25519
// public key: the first 20 bytes of SHA-256(pub) in hex, suffixed with the
// last 4 bytes of the SHA-256 of that hex string as a checksum.
func LiteAccountURL(pub []byte) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: expected 32-byte ed25519 public key, got %d", ErrInvalidKeyLength, len(pub))
	}
	keyHash := sha256.Sum256(pub)
	keyStr := hex.EncodeToString(keyHash[:20])
	checksum := sha256.Sum256([]byte(keyStr))
	return "acc://" + keyStr + hex.EncodeToString(checksum[28:]), nil
}
