package curves

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

const secp256k1KeySize = 32

// GenerateSecp256k1 returns a fresh 32-byte secp256k1 private key.
func GenerateSecp256k1() ([]byte, error) {
	raw := make([]byte, secp256k1KeySize)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate secp256k1 key: %w", err)
	}
	// PrivKeyFromBytes reduces into the valid scalar range.
	priv := secp256k1.PrivKeyFromBytes(raw)
	out := priv.Serialize()
	for i := range raw {
		raw[i] = 0
	}
	return out, nil
}

func secp256k1Key(priv []byte) (*secp256k1.PrivateKey, error) {
	if len(priv) != secp256k1KeySize {
		return nil, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidKeyLength, len(priv))
	}
	return secp256k1.PrivKeyFromBytes(priv), nil
}

// Secp256k1PublicKey returns the 33-byte compressed public key for priv.
func Secp256k1PublicKey(priv []byte) ([]byte, error) {
	key, err := secp256k1Key(priv)
	if err != nil {
		return nil, err
	}
	return key.PubKey().SerializeCompressed(), nil
}

// Secp256k1UncompressedPublicKey returns the 65-byte 0x04-prefixed form.
func Secp256k1UncompressedPublicKey(priv []byte) ([]byte, error) {
	key, err := secp256k1Key(priv)
	if err != nil {
		return nil, err
	}
	return key.PubKey().SerializeUncompressed(), nil
}

// SignSecp256k1 signs a 32-byte hash and returns the 65-byte Ethereum-style
// signature r(32) ‖ s(32) ‖ v(1) with low-S enforced and v = recovery + 27.
// Deterministic per RFC 6979 via the underlying library.
func SignSecp256k1(priv, hash []byte) ([]byte, error) {
	key, err := secp256k1Key(priv)
	if err != nil {
		return nil, err
	}
	if len(hash) != 32 {
		return nil, fmt.Errorf("secp256k1 signs 32-byte hashes, got %d bytes", len(hash))
	}
	// SignCompact returns [recovery+27] ‖ R ‖ S.
	compact := ecdsa.SignCompact(key, hash, false)
	sig := make([]byte, 65)
	copy(sig[0:32], compact[1:33])
	copy(sig[32:64], compact[33:65])
	sig[64] = compact[0]
	return sig, nil
}

// VerifySecp256k1 accepts a 64-byte r‖s or 65-byte r‖s‖v signature and a
// compressed or uncompressed public key. Malformed input returns false.
func VerifySecp256k1(pub, hash, sig []byte) bool {
	if len(hash) != 32 {
		return false
	}
	if len(sig) != 64 && len(sig) != 65 {
		return false
	}
	pubKey, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return false
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(sig[0:32]); overflow {
		return false
	}
	if overflow := s.SetByteSlice(sig[32:64]); overflow {
		return false
	}
	return ecdsa.NewSignature(&r, &s).Verify(hash, pubKey)
}

// Keccak256 is the legacy Keccak (pre-NIST padding) used by Ethereum.
func Keccak256(chunks ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		h.Write(c)
	}
	return h.Sum(nil)
}

// EthereumAddress derives the EIP-55 checksummed address for a secp256k1
// public key (compressed or uncompressed input).
func EthereumAddress(pub []byte) (string, error) {
	pubKey, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return "", fmt.Errorf("parse secp256k1 public key: %w", err)
	}
	uncompressed := pubKey.SerializeUncompressed()
	addr := Keccak256(uncompressed[1:])[12:]
	return ChecksumAddress(addr), nil
}

// ChecksumAddress applies EIP-55 mixed-case encoding to a 20-byte address.
func ChecksumAddress(addr []byte) string {
	lower := fmt.Sprintf("%x", addr)
	hash := Keccak256([]byte(lower))
	var b strings.Builder
	b.WriteString("0x")
	for i, c := range []byte(lower) {
		if c >= 'a' && hash[i/2]>>(4*uint(1-i%2))&0x0f >= 8 {
			c -= 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

// PersonalMessageHash computes the EIP-191 digest:
// Keccak-256("\x19Ethereum Signed Message:\n" + len(message) + message).
func PersonalMessageHash(message []byte) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message))
	return Keccak256([]byte(prefix), message)
}

// SignPersonalMessage hashes message per EIP-191 and signs the digest.
func SignPersonalMessage(priv, message []byte) ([]byte, error) {
	return SignSecp256k1(priv, PersonalMessageHash(message))
}
