// Package codec holds the small byte-level helpers shared by the vault:
// hex and base64 conversion, random byte generation and opaque ID minting.
package codec

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidHex = errors.New("invalid hex input")

// HexEncode returns the lowercase hex representation of b without a prefix.
func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

// HexDecode accepts hex with or without a 0x prefix.
func HexDecode(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidHex
	}
	return b, nil
}

func Base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func Base64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// NewID mints an opaque unique identifier for keys and sign requests.
func NewID() string {
	return uuid.NewString()
}

// Wipe overwrites b with zeros. Callers use it on temporary buffers that
// held key material.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
