package hdwallet

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

// blsKeygenSalt is the HKDF salt fixed by the BLS signature draft and
// EIP-2333.
var blsKeygenSalt = []byte("BLS-SIG-KEYGEN-SALT-")

// blsGroupOrder is the BLS12-381 scalar field order r.
var blsGroupOrder, _ = new(big.Int).SetString(
	"73eda753299d7d483339d80809a1d80553bda402fffe5bfeffffffff00000001", 16)

// hkdfModR expands ikm‖0x00 through HKDF-SHA256 and reduces the 48-byte
// output modulo the group order. A zero result re-salts and retries, per
// the standard's loop.
func hkdfModR(ikm, salt []byte) ([]byte, error) {
	ikm = append(append([]byte(nil), ikm...), 0x00)
	salt = append([]byte(nil), salt...)
	for {
		okm := make([]byte, 48)
		if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, nil), okm); err != nil {
			return nil, fmt.Errorf("hkdf expand: %w", err)
		}
		sk := new(big.Int).Mod(new(big.Int).SetBytes(okm), blsGroupOrder)
		if sk.Sign() != 0 {
			return sk.FillBytes(make([]byte, 32)), nil
		}
		next := sha256.Sum256(salt)
		salt = next[:]
	}
}

// DeriveBLSMaster derives the EIP-2333 master secret key from a BIP-39 seed.
func DeriveBLSMaster(seed []byte) ([]byte, error) {
	return hkdfModR(seed, blsKeygenSalt)
}

// deriveBLSChild derives a child secret key from its parent using HKDF with
// the 4-byte big-endian index as salt.
func deriveBLSChild(parent []byte, index uint32) ([]byte, error) {
	salt := binary.BigEndian.AppendUint32(nil, index)
	return hkdfModR(parent, salt)
}

// DeriveBLS derives the BLS12-381 key at m/12381/60/{account}/0/{index}
// (EIP-2334 layout) from a mnemonic. Returns the 32-byte secret scalar and
// the rendered path.
func DeriveBLS(mnemonic string, account, index uint32) (priv []byte, path string, err error) {
	seed, err := MnemonicToSeed(mnemonic, "")
	if err != nil {
		return nil, "", err
	}
	key, err := DeriveBLSMaster(seed)
	if err != nil {
		return nil, "", err
	}
	for _, s := range []uint32{CoinTypeBLS, CoinTypeEthereum, account, 0, index} {
		key, err = deriveBLSChild(key, s)
		if err != nil {
			return nil, "", err
		}
	}
	return key, BLSPath(account, index), nil
}

// BLSPath renders the EIP-2334 path for (account, index).
func BLSPath(account, index uint32) string {
	return fmt.Sprintf("m/%d/%d/%d/0/%d", CoinTypeBLS, CoinTypeEthereum, account, index)
}
