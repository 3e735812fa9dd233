package signqueue

import (
	"errors"
	"time"
)

// Kind discriminates the signing flows a request can ask for.
type Kind string

const (
	KindAccountTx        Kind = "account_transaction"
	KindPendingTx        Kind = "pending_transaction"
	KindAccountHash      Kind = "account_hash"
	KindEthereumHash     Kind = "ethereum_hash"
	KindPersonalMessage  Kind = "personal_message"
	KindBLSHash          Kind = "bls_hash"
	KindCrossChainIntent Kind = "cross_chain_intent"
)

// Status tracks a request through its lifecycle. Exactly one terminal
// transition (completed, rejected or failed) is allowed per request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool { return s != StatusPending }

var (
	ErrRequestNotFound   = errors.New("sign request not found")
	ErrRequestNotPending = errors.New("sign request already resolved")
	ErrUserRejected      = errors.New("sign request rejected by user")
	ErrTimeout           = errors.New("sign request timed out")
	ErrInvalidPayload    = errors.New("invalid sign request payload")
)

// Payload is the closed set of request bodies. Each concrete type carries
// the fields its signing flow needs and nothing else.
type Payload interface {
	Kind() Kind
	validate() error
}

// AccountTx asks for a signature over an account transaction hash.
type AccountTx struct {
	TxHash []byte `json:"txHash"`
}

func (AccountTx) Kind() Kind { return KindAccountTx }

func (p AccountTx) validate() error {
	if len(p.TxHash) != 32 {
		return ErrInvalidPayload
	}
	return nil
}

// PendingTx asks for a co-signature on a pending (multi-signature)
// transaction. DataForSignature, when supplied by the caller, is signed
// as-is; otherwise the digest is recomputed locally.
type PendingTx struct {
	TxHash           []byte `json:"txHash"`
	SignerURL        string `json:"signerUrl"`
	SignerVersion    uint64 `json:"signerVersion"`
	Timestamp        uint64 `json:"timestamp"`
	DataForSignature []byte `json:"dataForSignature,omitempty"`
}

func (PendingTx) Kind() Kind { return KindPendingTx }

func (p PendingTx) validate() error {
	if len(p.TxHash) != 32 || p.SignerURL == "" {
		return ErrInvalidPayload
	}
	if len(p.DataForSignature) != 0 && len(p.DataForSignature) != 32 {
		return ErrInvalidPayload
	}
	return nil
}

// AccountHash asks for a raw Ed25519 signature over a 32-byte hash.
type AccountHash struct {
	Hash []byte `json:"hash"`
}

func (AccountHash) Kind() Kind { return KindAccountHash }

func (p AccountHash) validate() error {
	if len(p.Hash) != 32 {
		return ErrInvalidPayload
	}
	return nil
}

// EthereumHash asks for a recoverable secp256k1 signature over a 32-byte
// hash. The hash is signed as supplied, with no prefixing.
type EthereumHash struct {
	Hash []byte `json:"hash"`
}

func (EthereumHash) Kind() Kind { return KindEthereumHash }

func (p EthereumHash) validate() error {
	if len(p.Hash) != 32 {
		return ErrInvalidPayload
	}
	return nil
}

// PersonalMessage asks for an EIP-191 personal_sign signature. The message
// is arbitrary bytes; prefixing and hashing happen at signing time.
type PersonalMessage struct {
	Message []byte `json:"message"`
}

func (PersonalMessage) Kind() Kind { return KindPersonalMessage }

func (p PersonalMessage) validate() error {
	if len(p.Message) == 0 {
		return ErrInvalidPayload
	}
	return nil
}

// BLSHash asks for a BLS12-381 signature over a 32-byte hash.
type BLSHash struct {
	Hash []byte `json:"hash"`
}

func (BLSHash) Kind() Kind { return KindBLSHash }

func (p BLSHash) validate() error {
	if len(p.Hash) != 32 {
		return ErrInvalidPayload
	}
	return nil
}

// CrossChainIntent asks for a signature over a cross-chain intent digest,
// using whatever curve the approving key carries.
type CrossChainIntent struct {
	Chain      string `json:"chain"`
	IntentHash []byte `json:"intentHash"`
}

func (CrossChainIntent) Kind() Kind { return KindCrossChainIntent }

func (p CrossChainIntent) validate() error {
	if len(p.IntentHash) != 32 || p.Chain == "" {
		return ErrInvalidPayload
	}
	return nil
}

// Result is delivered to the submitter when a request completes.
type Result struct {
	Signature []byte    `json:"signature"`
	PublicKey []byte    `json:"publicKey"`
	KeyID     string    `json:"keyId"`
	Timestamp time.Time `json:"timestamp"`
}

// Request is a queued signing request. Values handed out by the queue are
// snapshots; mutating them does not affect queue state.
type Request struct {
	ID        string    `json:"id"`
	Origin    string    `json:"origin"`
	Payload   Payload   `json:"payload"`
	Status    Status    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
