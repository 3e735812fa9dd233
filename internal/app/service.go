// Package app wires the vault and the sign request queue into the verbs the
// RPC surface exposes. The queue is the rendezvous point: submission parks a
// request, and an out-of-band approval (or rejection) resolves it.
package app

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/certenIO/certen-key-vault/internal/curves"
	"github.com/certenIO/certen-key-vault/internal/signqueue"
	"github.com/certenIO/certen-key-vault/internal/vault"
)

// ErrWrongKeyType is returned when the approving key's curve cannot serve
// the request kind (signing an Ethereum hash with an Ed25519 key, say).
var ErrWrongKeyType = errors.New("key type cannot serve this request kind")

// Outcome is what a submitter eventually receives for a parked request.
type Outcome struct {
	Result signqueue.Result
	Err    error
}

// Service owns the vault and the queue.
type Service struct {
	Vault  *vault.Vault
	Queue  *signqueue.Queue
	logger *slog.Logger
	now    func() time.Time
}

type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

func NewService(v *vault.Vault, q *signqueue.Queue, opts Options) *Service {
	s := &Service{
		Vault:  v,
		Queue:  q,
		logger: opts.Logger,
		now:    opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Submit parks a signing request and returns a channel that delivers the
// outcome when the request is approved, rejected or swept. The channel is
// buffered; the resolver never blocks on a slow submitter.
func (s *Service) Submit(payload signqueue.Payload, origin string) (signqueue.Request, <-chan Outcome, error) {
	if !s.Vault.IsUnlocked() {
		return signqueue.Request{}, nil, vault.ErrVaultLocked
	}
	req, err := s.Queue.Add(payload, origin)
	if err != nil {
		return signqueue.Request{}, nil, err
	}
	done := make(chan Outcome, 1)
	if err := s.Queue.OnComplete(req.ID, func(result signqueue.Result, err error) {
		done <- Outcome{Result: result, Err: err}
	}); err != nil {
		return signqueue.Request{}, nil, err
	}
	return req, done, nil
}

// Pending lists requests awaiting approval, oldest first.
func (s *Service) Pending() []signqueue.Request {
	return s.Queue.Pending()
}

// Next returns the oldest pending request.
func (s *Service) Next() (signqueue.Request, bool) {
	return s.Queue.Next()
}

// Approve signs the pending request with the chosen key and completes it.
// The signature result is also returned to the approver.
func (s *Service) Approve(requestID, keyID string) (signqueue.Result, error) {
	req, err := s.Queue.Get(requestID)
	if err != nil {
		return signqueue.Result{}, err
	}
	if req.Status.Terminal() {
		return signqueue.Result{}, signqueue.ErrRequestNotPending
	}

	// GetKey refreshes the vault session and bumps lastUsedAt. A failure
	// here (missing key, vault relocked between submission and approval)
	// is terminal for the request: the submitter must hear about it now,
	// not when the cleanup sweep eventually times the request out.
	key, err := s.Vault.GetKey(keyID)
	if err != nil {
		return signqueue.Result{}, s.failRequest(requestID, err)
	}

	sig, err := s.sign(req.Payload, key)
	if err != nil {
		return signqueue.Result{}, s.failRequest(requestID, err)
	}

	result := signqueue.Result{
		Signature: sig,
		PublicKey: key.PublicKey,
		KeyID:     key.ID,
		Timestamp: s.now(),
	}
	if err := s.Queue.Complete(requestID, result); err != nil {
		return signqueue.Result{}, err
	}
	s.logger.Info("sign request approved",
		"request_id", requestID, "key_id", keyID, "kind", req.Payload.Kind())
	return result, nil
}

// failRequest transitions the request to failed so the submitter's channel
// receives the error, then returns that error to the approver.
func (s *Service) failRequest(requestID string, cause error) error {
	if failErr := s.Queue.Fail(requestID, cause.Error()); failErr != nil {
		return failErr
	}
	return cause
}

// Reject resolves a pending request with a user rejection.
func (s *Service) Reject(requestID, reason string) error {
	if reason == "" {
		reason = "rejected"
	}
	return s.Queue.Reject(requestID, reason)
}

// sign dispatches on the request kind. The switch is exhaustive over the
// payload union; an unknown kind is a programming error upstream.
func (s *Service) sign(payload signqueue.Payload, key vault.StoredKey) ([]byte, error) {
	switch p := payload.(type) {
	case signqueue.AccountTx:
		if key.Type != curves.KeyTypeEd25519 {
			return nil, ErrWrongKeyType
		}
		return curves.SignEd25519(key.PrivateKey, p.TxHash)

	case signqueue.PendingTx:
		data, err := s.pendingDigest(p)
		if err != nil {
			return nil, err
		}
		if key.Type != curves.KeyTypeEd25519 {
			return nil, ErrWrongKeyType
		}
		return curves.SignEd25519(key.PrivateKey, data)

	case signqueue.AccountHash:
		if key.Type != curves.KeyTypeEd25519 {
			return nil, ErrWrongKeyType
		}
		return curves.SignEd25519(key.PrivateKey, p.Hash)

	case signqueue.EthereumHash:
		if key.Type != curves.KeyTypeSecp256k1 {
			return nil, ErrWrongKeyType
		}
		return curves.SignSecp256k1(key.PrivateKey, p.Hash)

	case signqueue.PersonalMessage:
		if key.Type != curves.KeyTypeSecp256k1 {
			return nil, ErrWrongKeyType
		}
		return curves.SignPersonalMessage(key.PrivateKey, p.Message)

	case signqueue.BLSHash:
		if key.Type != curves.KeyTypeBLS12381 {
			return nil, ErrWrongKeyType
		}
		return curves.SignBLS(key.PrivateKey, p.Hash)

	case signqueue.CrossChainIntent:
		// Intent digests are curve-agnostic; the approving key decides.
		return curves.Sign(key.Type, key.PrivateKey, p.IntentHash)

	default:
		return nil, fmt.Errorf("unhandled request kind %q", payload.Kind())
	}
}

// pendingDigest prefers the caller-supplied dataForSignature. The local
// recomputation is best effort: a mismatch with a supplied value is logged,
// never silently substituted.
func (s *Service) pendingDigest(p signqueue.PendingTx) ([]byte, error) {
	recomputed, err := signqueue.PendingSignatureData(p.TxHash, p.SignerURL, p.SignerVersion, p.Timestamp)
	if len(p.DataForSignature) != 0 {
		if err == nil && !bytes.Equal(recomputed, p.DataForSignature) {
			s.logger.Warn("pending tx digest mismatch, trusting caller-supplied value",
				"signer_url", p.SignerURL)
		}
		return p.DataForSignature, nil
	}
	if err != nil {
		return nil, err
	}
	s.logger.Warn("recomputed pending tx digest locally, caller supplied none",
		"signer_url", p.SignerURL)
	return recomputed, nil
}
