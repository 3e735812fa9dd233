package hdwallet

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
)

const hardenedOffset uint32 = 0x8000_0000

// slip10MasterKey is the curve constant from SLIP-0010 for Ed25519.
var slip10MasterKey = []byte("ed25519 seed")

// DeriveSLIP10 walks an all-hardened SLIP-0010 chain over a BIP-39 seed and
// returns the 32-byte Ed25519 seed at the end of the path. Segments are
// given without the hardened offset; SLIP-0010 for Ed25519 only defines
// hardened derivation, so the offset is applied to every segment.
func DeriveSLIP10(seed []byte, segments []uint32) ([]byte, error) {
	for _, s := range segments {
		if s >= hardenedOffset {
			return nil, fmt.Errorf("%w: segment %d already carries the hardened bit", ErrInvalidPath, s)
		}
	}
	key, chain := slip10Master(seed)
	for _, s := range segments {
		key, chain = slip10Child(key, chain, s|hardenedOffset)
	}
	return key, nil
}

func slip10Master(seed []byte) (key, chain []byte) {
	mac := hmac.New(sha512.New, slip10MasterKey)
	mac.Write(seed)
	i := mac.Sum(nil)
	return i[:32], i[32:]
}

func slip10Child(key, chain []byte, index uint32) (childKey, childChain []byte) {
	data := make([]byte, 0, 1+32+4)
	data = append(data, 0x00)
	data = append(data, key...)
	data = binary.BigEndian.AppendUint32(data, index)

	mac := hmac.New(sha512.New, chain)
	mac.Write(data)
	i := mac.Sum(nil)
	return i[:32], i[32:]
}

// DeriveEd25519 derives the Ed25519 key at m/44'/540'/{account}'/0'/{index}'
// from a mnemonic. Returns the 32-byte seed and the rendered path.
func DeriveEd25519(mnemonic string, account, index uint32) (priv []byte, path string, err error) {
	seed, err := MnemonicToSeed(mnemonic, "")
	if err != nil {
		return nil, "", err
	}
	priv, err = DeriveSLIP10(seed, []uint32{44, CoinTypeAccumulate, account, 0, index})
	if err != nil {
		return nil, "", err
	}
	return priv, Ed25519Path(account, index), nil
}

// Ed25519Path renders the all-hardened SLIP-0010 path for (account, index).
func Ed25519Path(account, index uint32) string {
	return fmt.Sprintf("m/44'/%d'/%d'/0'/%d'", CoinTypeAccumulate, account, index)
}
