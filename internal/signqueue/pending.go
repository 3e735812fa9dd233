package signqueue

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
)

var ErrInvalidTxHash = errors.New("transaction hash must be 32 bytes")

// PendingSignatureData computes the digest a co-signer signs for a pending
// multi-signature transaction:
//
//	dataForSignature = SHA256( txHash(32) || metadataHash(32) )
//	metadataHash     = SHA256( uvarint(len(signerURL)) || signerURL ||
//	                           signerVersion_u64_LE || timestamp_u64_LE )
//
// The varint is LEB128, which binary.PutUvarint emits. The layout must
// match the canonical protocol encoding byte for byte.
func PendingSignatureData(txHash []byte, signerURL string, signerVersion, timestamp uint64) ([]byte, error) {
	if len(txHash) != sha256.Size {
		return nil, ErrInvalidTxHash
	}

	meta := make([]byte, 0, binary.MaxVarintLen64+len(signerURL)+16)
	var varint [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(varint[:], uint64(len(signerURL)))
	meta = append(meta, varint[:n]...)
	meta = append(meta, signerURL...)
	meta = binary.LittleEndian.AppendUint64(meta, signerVersion)
	meta = binary.LittleEndian.AppendUint64(meta, timestamp)
	metaHash := sha256.Sum256(meta)

	joined := make([]byte, 0, 2*sha256.Size)
	joined = append(joined, txHash...)
	joined = append(joined, metaHash[:]...)
	data := sha256.Sum256(joined)
	return data[:], nil
}
