package curves

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestEd25519DeterministicFromSeed(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, 32)
	pub1, err := Ed25519PublicKey(seed)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	pub2, err := Ed25519PublicKey(seed)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	if !bytes.Equal(pub1, pub2) {
		t.Fatal("same seed produced different public keys")
	}
}

func TestEd25519RejectsWrongLength(t *testing.T) {
	if _, err := Ed25519PublicKey(make([]byte, 31)); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength, got %v", err)
	}
	if _, err := SignEd25519(make([]byte, 33), []byte("m")); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength, got %v", err)
	}
}

func TestEd25519SignVerify(t *testing.T) {
	priv, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	pub, err := Ed25519PublicKey(priv)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	msg := bytes.Repeat([]byte{0xab}, 32)
	sig, err := SignEd25519(priv, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != 64 {
		t.Fatalf("expected 64-byte signature, got %d", len(sig))
	}
	if !VerifyEd25519(pub, msg, sig) {
		t.Fatal("valid signature rejected")
	}

	flipped := append([]byte(nil), sig...)
	flipped[10] ^= 0x01
	if VerifyEd25519(pub, msg, flipped) {
		t.Fatal("tampered signature accepted")
	}
	badMsg := append([]byte(nil), msg...)
	badMsg[0] ^= 0x01
	if VerifyEd25519(pub, badMsg, sig) {
		t.Fatal("tampered message accepted")
	}
}

func TestEd25519VerifyMalformedInput(t *testing.T) {
	if VerifyEd25519(nil, []byte("m"), nil) {
		t.Fatal("nil input accepted")
	}
	if VerifyEd25519(make([]byte, 32), []byte("m"), make([]byte, 10)) {
		t.Fatal("short signature accepted")
	}
}

func TestLiteAccountURLFormatAndChecksum(t *testing.T) {
	pub := bytes.Repeat([]byte{0x11}, 32)
	url, err := LiteAccountURL(pub)
	if err != nil {
		t.Fatalf("lite url: %v", err)
	}
	if !strings.HasPrefix(url, "acc://") || len(url) != len("acc://")+48 {
		t.Fatalf("unexpected url shape: %q", url)
	}

	body := strings.TrimPrefix(url, "acc://")
	keyStr, checkStr := body[:40], body[40:]
	keyHash := sha256.Sum256(pub)
	if keyStr != hex.EncodeToString(keyHash[:20]) {
		t.Fatalf("key hash segment mismatch: %q", keyStr)
	}
	checksum := sha256.Sum256([]byte(keyStr))
	if checkStr != hex.EncodeToString(checksum[28:]) {
		t.Fatalf("checksum segment mismatch: %q", checkStr)
	}

	again, err := LiteAccountURL(pub)
	if err != nil || again != url {
		t.Fatalf("lite url not stable: %q vs %q (%v)", url, again, err)
	}
}

func TestLiteAccountURLRejectsWrongSize(t *testing.T) {
	if _, err := LiteAccountURL(make([]byte, 20)); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength, got %v", err)
	}
}
