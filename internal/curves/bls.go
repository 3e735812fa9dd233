package curves

import (
	"crypto/rand"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"
)

// Min-pk variant: 48-byte G1 public keys, 96-byte G2 signatures.
const (
	blsKeySize       = 32
	BLSPublicKeySize = 48
	BLSSignatureSize = 96
)

// blsDST is the ciphersuite domain separation tag for hash-to-G2.
var blsDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

// GenerateBLS returns a fresh 32-byte BLS12-381 secret scalar.
func GenerateBLS() ([]byte, error) {
	ikm := make([]byte, 32)
	if _, err := rand.Read(ikm); err != nil {
		return nil, fmt.Errorf("generate bls key: %w", err)
	}
	sk := blst.KeyGen(ikm)
	for i := range ikm {
		ikm[i] = 0
	}
	if sk == nil {
		return nil, fmt.Errorf("bls keygen failed")
	}
	return sk.Serialize(), nil
}

func blsSecretKey(priv []byte) (*blst.SecretKey, error) {
	if len(priv) != blsKeySize {
		return nil, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidKeyLength, len(priv))
	}
	sk := new(blst.SecretKey).Deserialize(priv)
	if sk == nil {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidKeyLength)
	}
	return sk, nil
}

// BLSPublicKey returns the 48-byte compressed G1 public key for priv.
func BLSPublicKey(priv []byte) ([]byte, error) {
	sk, err := blsSecretKey(priv)
	if err != nil {
		return nil, err
	}
	return new(blst.P1Affine).From(sk).Compress(), nil
}

// SignBLS signs message (deterministic hash-to-curve then scalar multiply)
// and returns the 96-byte compressed G2 signature.
func SignBLS(priv, message []byte) ([]byte, error) {
	sk, err := blsSecretKey(priv)
	if err != nil {
		return nil, err
	}
	return new(blst.P2Affine).Sign(sk, message, blsDST).Compress(), nil
}

// VerifyBLS reports whether sig is a valid signature over message for pub.
// Malformed points return false.
func VerifyBLS(pub, message, sig []byte) bool {
	if len(pub) != BLSPublicKeySize || len(sig) != BLSSignatureSize {
		return false
	}
	pk := new(blst.P1Affine).Uncompress(pub)
	if pk == nil {
		return false
	}
	signature := new(blst.P2Affine).Uncompress(sig)
	if signature == nil {
		return false
	}
	return signature.Verify(true, pk, true, message, blsDST)
}

// AggregateBLSSignatures combines compressed G2 signatures into one.
func AggregateBLSSignatures(sigs [][]byte) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, ErrEmptyAggregation
	}
	points := make([]*blst.P2Affine, len(sigs))
	for i, raw := range sigs {
		p := new(blst.P2Affine).Uncompress(raw)
		if p == nil {
			return nil, fmt.Errorf("signature %d is not a valid G2 point", i)
		}
		points[i] = p
	}
	agg := new(blst.P2Aggregate)
	if !agg.Aggregate(points, true) {
		return nil, fmt.Errorf("bls signature aggregation failed")
	}
	return agg.ToAffine().Compress(), nil
}

// AggregateBLSPublicKeys combines compressed G1 public keys into one.
func AggregateBLSPublicKeys(pubs [][]byte) ([]byte, error) {
	if len(pubs) == 0 {
		return nil, ErrEmptyAggregation
	}
	points := make([]*blst.P1Affine, len(pubs))
	for i, raw := range pubs {
		p := new(blst.P1Affine).Uncompress(raw)
		if p == nil {
			return nil, fmt.Errorf("public key %d is not a valid G1 point", i)
		}
		points[i] = p
	}
	agg := new(blst.P1Aggregate)
	if !agg.Aggregate(points, true) {
		return nil, fmt.Errorf("bls public key aggregation failed")
	}
	return agg.ToAffine().Compress(), nil
}

// VerifyBLSAggregate checks an aggregated signature against parallel
// (message, public key) slices. The slices must have equal nonzero length.
func VerifyBLSAggregate(sig []byte, messages, pubs [][]byte) (bool, error) {
	if len(messages) != len(pubs) {
		return false, ErrLengthMismatch
	}
	if len(messages) == 0 {
		return false, ErrEmptyAggregation
	}
	signature := new(blst.P2Affine).Uncompress(sig)
	if signature == nil {
		return false, nil
	}
	pks := make([]*blst.P1Affine, len(pubs))
	for i, raw := range pubs {
		pk := new(blst.P1Affine).Uncompress(raw)
		if pk == nil {
			return false, nil
		}
		pks[i] = pk
	}
	msgs := make([]blst.Message, len(messages))
	for i, m := range messages {
		msgs[i] = m
	}
	return signature.AggregateVerify(true, pks, true, msgs, blsDST), nil
}
