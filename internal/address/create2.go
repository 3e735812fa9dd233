package address

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/certenIO/certen-key-vault/internal/curves"
)

// PredictCreate2 computes the deterministic EVM contract address
// keccak256(0xff ‖ deployer ‖ salt ‖ initCodeHash)[12:] used for
// account-abstraction wallets. deployer is 20 bytes, salt and initCodeHash
// 32 bytes each; the result is EIP-55 checksummed.
func PredictCreate2(deployer, salt, initCodeHash []byte) (string, error) {
	if len(deployer) != 20 {
		return "", fmt.Errorf("create2 deployer must be 20 bytes, got %d", len(deployer))
	}
	if len(salt) != 32 {
		return "", fmt.Errorf("create2 salt must be 32 bytes, got %d", len(salt))
	}
	if len(initCodeHash) != 32 {
		return "", fmt.Errorf("create2 init code hash must be 32 bytes, got %d", len(initCodeHash))
	}
	digest := curves.Keccak256([]byte{0xff}, deployer, salt, initCodeHash)
	return curves.ChecksumAddress(digest[12:]), nil
}

// uncompressedSecp normalizes a secp256k1 public key (compressed or not)
// to its 65-byte uncompressed form.
func uncompressedSecp(pub []byte) ([]byte, error) {
	parsed, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return nil, fmt.Errorf("parse secp256k1 public key: %w", err)
	}
	return parsed.SerializeUncompressed(), nil
}
