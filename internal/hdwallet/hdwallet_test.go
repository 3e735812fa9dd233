package hdwallet

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestGenerateMnemonicWordCounts(t *testing.T) {
	m12, err := GenerateMnemonic(128)
	if err != nil {
		t.Fatalf("generate 128: %v", err)
	}
	if got := len(strings.Fields(m12)); got != 12 {
		t.Fatalf("expected 12 words, got %d", got)
	}
	m24, err := GenerateMnemonic(256)
	if err != nil {
		t.Fatalf("generate 256: %v", err)
	}
	if got := len(strings.Fields(m24)); got != 24 {
		t.Fatalf("expected 24 words, got %d", got)
	}
	if !ValidateMnemonic(m12) || !ValidateMnemonic(m24) {
		t.Fatal("generated mnemonics failed validation")
	}
}

func TestGenerateMnemonicRejectsOddStrength(t *testing.T) {
	if _, err := GenerateMnemonic(160); !errors.Is(err, ErrInvalidStrength) {
		t.Fatalf("expected ErrInvalidStrength, got %v", err)
	}
}

func TestValidateMnemonicChecksum(t *testing.T) {
	if !ValidateMnemonic(testMnemonic) {
		t.Fatal("known-good vector rejected")
	}
	// Swap the checksum word for another wordlist member.
	broken := strings.Replace(testMnemonic, "about", "abandon", 1)
	if ValidateMnemonic(broken) {
		t.Fatal("altered checksum accepted")
	}
	if ValidateMnemonic("definitely not twelve valid words at all here no way ok then") {
		t.Fatal("garbage accepted")
	}
}

func TestMnemonicToSeedKnownVector(t *testing.T) {
	seed, err := MnemonicToSeed(testMnemonic, "")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	want := "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"
	if hex.EncodeToString(seed) != want {
		t.Fatalf("seed mismatch: got %x", seed)
	}
}

func TestMnemonicToSeedRejectsInvalid(t *testing.T) {
	if _, err := MnemonicToSeed("not a mnemonic", ""); !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("expected ErrInvalidMnemonic, got %v", err)
	}
}

// Official SLIP-0010 Ed25519 test vector 1, seed 000102030405060708090a0b0c0d0e0f.
func TestSLIP10Vector1(t *testing.T) {
	seed, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")

	master, err := DeriveSLIP10(seed, nil)
	if err != nil {
		t.Fatalf("master: %v", err)
	}
	if hex.EncodeToString(master) != "2b4be7f19ee27bbf30c667b642d5f4aa69fd169872f8fc3059c08ebae2eb19e7" {
		t.Fatalf("master mismatch: %x", master)
	}

	deep, err := DeriveSLIP10(seed, []uint32{0, 1, 2, 2, 1000000000})
	if err != nil {
		t.Fatalf("deep chain: %v", err)
	}
	if hex.EncodeToString(deep) != "8f94d394a8e8fd6b1bc2f3f49f5c47e385281d5c17e65324b0f62483e37e8793" {
		t.Fatalf("m/0'/1'/2'/2'/1000000000' mismatch: %x", deep)
	}
}

func TestSLIP10RejectsPreHardenedSegments(t *testing.T) {
	seed := bytes.Repeat([]byte{1}, 16)
	if _, err := DeriveSLIP10(seed, []uint32{0x80000000}); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestDeriveEd25519StableAndDistinct(t *testing.T) {
	k0a, path, err := DeriveEd25519(testMnemonic, 0, 0)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if path != "m/44'/540'/0'/0'/0'" {
		t.Fatalf("unexpected path %q", path)
	}
	k0b, _, err := DeriveEd25519(testMnemonic, 0, 0)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !bytes.Equal(k0a, k0b) {
		t.Fatal("repeated derivation differs")
	}
	k1, _, err := DeriveEd25519(testMnemonic, 0, 1)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if bytes.Equal(k0a, k1) {
		t.Fatal("different indices produced identical keys")
	}
}

func TestDeriveSecp256k1StableAndDistinct(t *testing.T) {
	k0a, path, err := DeriveSecp256k1(testMnemonic, 0, 0)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if path != "m/44'/60'/0'/0/0" {
		t.Fatalf("unexpected path %q", path)
	}
	if len(k0a) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(k0a))
	}
	k0b, _, _ := DeriveSecp256k1(testMnemonic, 0, 0)
	if !bytes.Equal(k0a, k0b) {
		t.Fatal("repeated derivation differs")
	}
	k1, _, _ := DeriveSecp256k1(testMnemonic, 0, 1)
	if bytes.Equal(k0a, k1) {
		t.Fatal("different indices produced identical keys")
	}
}

func TestDeriveBLSStableAndDistinct(t *testing.T) {
	k0a, path, err := DeriveBLS(testMnemonic, 0, 0)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if path != "m/12381/60/0/0/0" {
		t.Fatalf("unexpected path %q", path)
	}
	if len(k0a) != 32 {
		t.Fatalf("expected 32-byte scalar, got %d", len(k0a))
	}
	k0b, _, _ := DeriveBLS(testMnemonic, 0, 0)
	if !bytes.Equal(k0a, k0b) {
		t.Fatal("repeated derivation differs")
	}
	k1, _, _ := DeriveBLS(testMnemonic, 0, 1)
	if bytes.Equal(k0a, k1) {
		t.Fatal("different indices produced identical keys")
	}
}

func TestDerivationRejectsInvalidMnemonic(t *testing.T) {
	if _, _, err := DeriveEd25519("bad phrase", 0, 0); !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("ed25519: expected ErrInvalidMnemonic, got %v", err)
	}
	if _, _, err := DeriveSecp256k1("bad phrase", 0, 0); !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("secp256k1: expected ErrInvalidMnemonic, got %v", err)
	}
	if _, _, err := DeriveBLS("bad phrase", 0, 0); !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("bls: expected ErrInvalidMnemonic, got %v", err)
	}
}

func TestNextIndex(t *testing.T) {
	prefix := "m/44'/540'/0'/0'"
	paths := []string{
		"m/44'/540'/0'/0'/0'",
		"m/44'/540'/0'/0'/3'",
		"m/44'/540'/0'/0'/1'",
		"m/44'/60'/0'/0/7", // different subtree, ignored
	}
	if got := NextIndex(paths, prefix); got != 4 {
		t.Fatalf("expected next index 4, got %d", got)
	}
	if got := NextIndex(nil, prefix); got != 0 {
		t.Fatalf("expected 0 for empty set, got %d", got)
	}
}

func TestAccountPrefix(t *testing.T) {
	if got := AccountPrefix("m/44'/540'/0'/0'/5'"); got != "m/44'/540'/0'/0'" {
		t.Fatalf("unexpected prefix %q", got)
	}
}
