// Package curves implements the three signature schemes managed by the
// vault: Ed25519, secp256k1 and BLS12-381. Each scheme exposes generation,
// deterministic reconstruction from raw bytes, signing and verification;
// verification never panics on malformed input and reports false instead.
package curves

import "errors"

// KeyType identifies the signature scheme of a stored key.
type KeyType string

const (
	KeyTypeEd25519   KeyType = "ed25519"
	KeyTypeSecp256k1 KeyType = "secp256k1"
	KeyTypeBLS12381  KeyType = "bls12381"
)

var (
	ErrInvalidKeyLength   = errors.New("invalid private key length")
	ErrUnsupportedKeyType = errors.New("unsupported key type")
	ErrEmptyAggregation   = errors.New("cannot aggregate empty input")
	ErrLengthMismatch     = errors.New("messages and public keys differ in length")
)

// IsValid reports whether t names a supported scheme.
func (t KeyType) IsValid() bool {
	switch t {
	case KeyTypeEd25519, KeyTypeSecp256k1, KeyTypeBLS12381:
		return true
	default:
		return false
	}
}

// GeneratePrivateKey returns fresh random private key bytes for t in the
// scheme's canonical storage form (32-byte seed or scalar).
func GeneratePrivateKey(t KeyType) ([]byte, error) {
	switch t {
	case KeyTypeEd25519:
		return GenerateEd25519()
	case KeyTypeSecp256k1:
		return GenerateSecp256k1()
	case KeyTypeBLS12381:
		return GenerateBLS()
	default:
		return nil, ErrUnsupportedKeyType
	}
}

// PublicKeyFromPrivate derives the public key bytes for t.
func PublicKeyFromPrivate(t KeyType, priv []byte) ([]byte, error) {
	switch t {
	case KeyTypeEd25519:
		return Ed25519PublicKey(priv)
	case KeyTypeSecp256k1:
		return Secp256k1PublicKey(priv)
	case KeyTypeBLS12381:
		return BLSPublicKey(priv)
	default:
		return nil, ErrUnsupportedKeyType
	}
}

// Sign dispatches to the scheme's signing primitive. For secp256k1 the
// message must be a 32-byte hash; Ed25519 and BLS sign the message itself.
func Sign(t KeyType, priv, message []byte) ([]byte, error) {
	switch t {
	case KeyTypeEd25519:
		return SignEd25519(priv, message)
	case KeyTypeSecp256k1:
		return SignSecp256k1(priv, message)
	case KeyTypeBLS12381:
		return SignBLS(priv, message)
	default:
		return nil, ErrUnsupportedKeyType
	}
}

// Verify dispatches to the scheme's verification primitive.
func Verify(t KeyType, pub, message, sig []byte) bool {
	switch t {
	case KeyTypeEd25519:
		return VerifyEd25519(pub, message, sig)
	case KeyTypeSecp256k1:
		return VerifySecp256k1(pub, message, sig)
	case KeyTypeBLS12381:
		return VerifyBLS(pub, message, sig)
	default:
		return false
	}
}
