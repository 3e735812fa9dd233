// Package vaultcrypto implements the password-based encryption of the vault
// payload: PBKDF2-HMAC-SHA512 key derivation and AES-256-GCM authenticated
// encryption. A decryption failure is deliberately indistinguishable between
// wrong password, corruption and tampering.
package vaultcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

const (
	EnvelopeVersion = 1

	// DefaultIterations is the PBKDF2 floor for newly created vaults.
	// Existing vaults keep the iteration count recorded in their envelope.
	DefaultIterations = 600_000

	KDFAlgorithm = "PBKDF2-HMAC-SHA512"

	SaltSize = 32
	KeySize  = 32
	ivSize   = 12
)

var (
	ErrAuthFailed        = errors.New("vault authentication failed")
	ErrUnsupportedSchema = errors.New("unsupported vault schema version")
	ErrInvalidEnvelope   = errors.New("vault envelope is invalid")
)

// KDFParams records how the symmetric key was derived so unlock can repeat
// the derivation against the persisted salt.
type KDFParams struct {
	Algorithm  string `json:"algorithm"`
	Iterations int    `json:"iterations"`
}

// Envelope is the only form of the vault that touches durable storage.
// IV is regenerated on every Seal; Salt lives for the vault lifetime and is
// replaced only on password change.
type Envelope struct {
	Version          int       `json:"version"`
	Salt             []byte    `json:"salt"`
	IV               []byte    `json:"iv"`
	EncryptedPayload []byte    `json:"encryptedPayload"`
	KDFParams        KDFParams `json:"kdfParams"`
}

// DeriveKey stretches password into a 256-bit AES key. Deterministic in
// (password, salt, iterations).
func DeriveKey(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha512.New)
}

// NewSalt returns a fresh vault salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Encrypt seals plaintext under key with a fresh 96-bit IV. The returned
// ciphertext includes the GCM authentication tag.
func Encrypt(plaintext, key []byte) (iv, ciphertext []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	iv = make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, err
	}
	return iv, aead.Seal(nil, iv, plaintext, nil), nil
}

// Decrypt opens ciphertext. Any tag mismatch surfaces as ErrAuthFailed with
// no partial plaintext.
func Decrypt(ciphertext, iv, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != ivSize {
		return nil, ErrAuthFailed
	}
	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Seal derives a key from password and the envelope salt and encrypts
// plaintext into env, replacing its IV and ciphertext.
func Seal(env *Envelope, password string, plaintext []byte) error {
	if err := validate(env); err != nil {
		return err
	}
	key := DeriveKey(password, env.Salt, env.KDFParams.Iterations)
	defer wipe(key)
	iv, ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		return err
	}
	env.IV = iv
	env.EncryptedPayload = ciphertext
	return nil
}

// Open derives a key from password and the envelope salt and decrypts the
// payload. Wrong password and corrupted data both return ErrAuthFailed.
func Open(env *Envelope, password string) ([]byte, error) {
	if err := validate(env); err != nil {
		return nil, err
	}
	key := DeriveKey(password, env.Salt, env.KDFParams.Iterations)
	defer wipe(key)
	return Decrypt(env.EncryptedPayload, env.IV, key)
}

// NewEnvelope prepares an empty envelope with a fresh salt and the default
// KDF parameters. The payload is filled in by Seal.
func NewEnvelope() (*Envelope, error) {
	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Version: EnvelopeVersion,
		Salt:    salt,
		KDFParams: KDFParams{
			Algorithm:  KDFAlgorithm,
			Iterations: DefaultIterations,
		},
	}, nil
}

func validate(env *Envelope) error {
	if env == nil {
		return ErrInvalidEnvelope
	}
	if env.Version != EnvelopeVersion {
		return ErrUnsupportedSchema
	}
	if len(env.Salt) != SaltSize || env.KDFParams.Iterations <= 0 {
		return ErrInvalidEnvelope
	}
	return nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidEnvelope
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
