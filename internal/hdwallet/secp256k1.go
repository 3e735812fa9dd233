package hdwallet

import (
	"fmt"

	"github.com/tyler-smith/go-bip32"
)

// DeriveSecp256k1 derives the secp256k1 key at m/44'/60'/{account}'/0/{index}
// (standard Ethereum convention, non-hardened tail) from a mnemonic.
// Returns the 32-byte private key and the rendered path.
func DeriveSecp256k1(mnemonic string, account, index uint32) (priv []byte, path string, err error) {
	seed, err := MnemonicToSeed(mnemonic, "")
	if err != nil {
		return nil, "", err
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, "", fmt.Errorf("bip32 master key: %w", err)
	}
	segments := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + CoinTypeEthereum,
		bip32.FirstHardenedChild + account,
		0,
		index,
	}
	key := master
	for _, s := range segments {
		key, err = key.NewChildKey(s)
		if err != nil {
			return nil, "", fmt.Errorf("bip32 child %d: %w", s, err)
		}
	}
	return append([]byte(nil), key.Key...), Secp256k1Path(account, index), nil
}

// Secp256k1Path renders the BIP-44 Ethereum path for (account, index).
func Secp256k1Path(account, index uint32) string {
	return fmt.Sprintf("m/44'/%d'/%d'/0/%d", CoinTypeEthereum, account, index)
}
