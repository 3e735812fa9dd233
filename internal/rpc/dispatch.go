package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/certenIO/certen-key-vault/internal/address"
	"github.com/certenIO/certen-key-vault/internal/codec"
	"github.com/certenIO/certen-key-vault/internal/curves"
	"github.com/certenIO/certen-key-vault/internal/signqueue"
	"github.com/certenIO/certen-key-vault/internal/vault"
)

func (s *Server) dispatch(ctx context.Context, method string, rawParams json.RawMessage) (any, *rpcError) {
	switch method {
	case "health_check":
		return map[string]string{"status": "ok"}, nil

	case "VAULT_STATUS":
		return s.svc.Vault.Status(), nil
	case "VAULT_INITIALIZE":
		return s.vaultInitialize(rawParams)
	case "VAULT_UNLOCK":
		return s.vaultUnlock(rawParams)
	case "VAULT_LOCK":
		s.svc.Vault.Lock()
		return map[string]bool{"success": true}, nil
	case "VAULT_CHANGE_PASSWORD":
		return s.vaultChangePassword(rawParams)
	case "VAULT_RESET":
		if err := s.svc.Vault.Reset(); err != nil {
			return nil, rpcDomainError(err)
		}
		return map[string]bool{"success": true}, nil

	case "GET_KEYS":
		return s.getKeys(rawParams)
	case "GENERATE_KEY":
		return s.keyOp(rawParams, s.svc.Vault.GenerateKey)
	case "DERIVE_KEY":
		return s.keyOp(rawParams, s.svc.Vault.DeriveKey)
	case "IMPORT_KEY":
		return s.importKey(rawParams)
	case "IMPORT_MNEMONIC":
		return s.importMnemonic(rawParams)
	case "REMOVE_KEY":
		return s.removeKey(rawParams)
	case "UPDATE_KEY_METADATA":
		return s.updateKeyMetadata(rawParams)
	case "GET_MNEMONIC":
		mnemonic, err := s.svc.Vault.Mnemonic()
		if err != nil {
			return nil, rpcDomainError(err)
		}
		return map[string]string{"mnemonic": mnemonic}, nil
	case "GET_KEY_WITH_PRIVATE":
		return s.getKeyWithPrivate(rawParams)
	case "FIND_KEY":
		return s.findKey(rawParams)

	case "SIGN_ACCOUNT_TRANSACTION":
		return s.submitSign(ctx, rawParams, func(p signParams) (signqueue.Payload, error) {
			hash, err := codec.HexDecode(p.TxHash)
			if err != nil {
				return nil, err
			}
			return signqueue.AccountTx{TxHash: hash}, nil
		})
	case "SIGN_PENDING_TRANSACTION":
		return s.submitSign(ctx, rawParams, func(p signParams) (signqueue.Payload, error) {
			hash, err := codec.HexDecode(p.TxHash)
			if err != nil {
				return nil, err
			}
			var data []byte
			if p.DataForSignature != "" {
				if data, err = codec.HexDecode(p.DataForSignature); err != nil {
					return nil, err
				}
			}
			return signqueue.PendingTx{
				TxHash:           hash,
				SignerURL:        p.SignerURL,
				SignerVersion:    p.SignerVersion,
				Timestamp:        p.Timestamp,
				DataForSignature: data,
			}, nil
		})
	case "SIGN_ACCOUNT_HASH":
		return s.submitSign(ctx, rawParams, func(p signParams) (signqueue.Payload, error) {
			hash, err := codec.HexDecode(p.Hash)
			if err != nil {
				return nil, err
			}
			return signqueue.AccountHash{Hash: hash}, nil
		})
	case "SIGN_ETHEREUM_HASH":
		return s.submitSign(ctx, rawParams, func(p signParams) (signqueue.Payload, error) {
			hash, err := codec.HexDecode(p.Hash)
			if err != nil {
				return nil, err
			}
			return signqueue.EthereumHash{Hash: hash}, nil
		})
	case "SIGN_PERSONAL_MESSAGE":
		return s.submitSign(ctx, rawParams, func(p signParams) (signqueue.Payload, error) {
			msg, err := codec.HexDecode(p.Message)
			if err != nil {
				return nil, err
			}
			return signqueue.PersonalMessage{Message: msg}, nil
		})
	case "SIGN_BLS_HASH":
		return s.submitSign(ctx, rawParams, func(p signParams) (signqueue.Payload, error) {
			hash, err := codec.HexDecode(p.Hash)
			if err != nil {
				return nil, err
			}
			return signqueue.BLSHash{Hash: hash}, nil
		})
	case "SIGN_CROSS_CHAIN_INTENT":
		return s.submitSign(ctx, rawParams, func(p signParams) (signqueue.Payload, error) {
			hash, err := codec.HexDecode(p.IntentHash)
			if err != nil {
				return nil, err
			}
			return signqueue.CrossChainIntent{Chain: p.Chain, IntentHash: hash}, nil
		})

	case "GET_PENDING_SIGN_REQUEST":
		return s.pendingSignRequest()
	case "APPROVE_SIGN_REQUEST":
		return s.approveSignRequest(rawParams)
	case "REJECT_SIGN_REQUEST":
		return s.rejectSignRequest(rawParams)

	case "PREDICT_CREATE2":
		return s.predictCreate2(rawParams)

	default:
		return nil, &rpcError{Code: -32601, Message: "method not found"}
	}
}

// keyView is the wire shape of a key: byte fields go out hex-encoded.
type keyView struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Type           curves.KeyType    `json:"type"`
	PublicKey      string            `json:"publicKey"`
	PrivateKey     string            `json:"privateKey,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	LastUsedAt     time.Time         `json:"lastUsedAt"`
	DerivationPath string            `json:"derivationPath,omitempty"`
	Addresses      map[string]string `json:"addresses,omitempty"`
	FromMnemonic   bool              `json:"fromMnemonic"`
}

func viewKey(k vault.StoredKey) keyView {
	v := keyView{
		ID:             k.ID,
		Name:           k.Name,
		Type:           k.Type,
		PublicKey:      codec.HexEncode(k.PublicKey),
		CreatedAt:      k.CreatedAt,
		LastUsedAt:     k.LastUsedAt,
		DerivationPath: k.DerivationPath,
		Addresses:      k.Metadata.Addresses,
		FromMnemonic:   k.Metadata.FromMnemonic,
	}
	if len(k.PrivateKey) != 0 {
		v.PrivateKey = codec.HexEncode(k.PrivateKey)
	}
	return v
}

func viewKeys(keys []vault.StoredKey) []keyView {
	out := make([]keyView, 0, len(keys))
	for _, k := range keys {
		out = append(out, viewKey(k))
	}
	return out
}

type initializeParams struct {
	Password string `json:"password"`
	Mnemonic string `json:"mnemonic"`
}

func (s *Server) vaultInitialize(raw json.RawMessage) (any, *rpcError) {
	var p initializeParams
	if err := decodeParams(raw, &p); err != nil || p.Password == "" {
		return nil, rpcInvalidParams()
	}
	mnemonic, err := s.svc.Vault.InitializeWithMnemonic(p.Password, p.Mnemonic)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	return map[string]string{"mnemonic": mnemonic}, nil
}

func (s *Server) vaultUnlock(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		Password string `json:"password"`
	}
	if err := decodeParams(raw, &p); err != nil || p.Password == "" {
		return nil, rpcInvalidParams()
	}
	if err := s.svc.Vault.Unlock(p.Password); err != nil {
		return nil, rpcDomainError(err)
	}
	return map[string]bool{"success": true}, nil
}

func (s *Server) vaultChangePassword(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeParams(raw, &p); err != nil || p.CurrentPassword == "" || p.NewPassword == "" {
		return nil, rpcInvalidParams()
	}
	if err := s.svc.Vault.ChangePassword(p.CurrentPassword, p.NewPassword); err != nil {
		return nil, rpcDomainError(err)
	}
	return map[string]bool{"success": true}, nil
}

func (s *Server) getKeys(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		KeyType curves.KeyType `json:"keyType"`
	}
	if len(raw) != 0 {
		if err := decodeParams(raw, &p); err != nil {
			return nil, rpcInvalidParams()
		}
	}
	if p.KeyType != "" && !p.KeyType.IsValid() {
		return nil, rpcInvalidParams()
	}
	keys, err := s.svc.Vault.GetAllKeys(p.KeyType)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	return map[string]any{"keys": viewKeys(keys)}, nil
}

type keyOpParams struct {
	KeyType curves.KeyType `json:"keyType"`
	Name    string         `json:"name"`
}

func (s *Server) keyOp(raw json.RawMessage, op func(curves.KeyType, string) (vault.StoredKey, error)) (any, *rpcError) {
	var p keyOpParams
	if err := decodeParams(raw, &p); err != nil || !p.KeyType.IsValid() {
		return nil, rpcInvalidParams()
	}
	key, err := op(p.KeyType, p.Name)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	return viewKey(key), nil
}

func (s *Server) importKey(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		KeyType       curves.KeyType `json:"keyType"`
		PrivateKeyHex string         `json:"privateKeyHex"`
		Name          string         `json:"name"`
	}
	if err := decodeParams(raw, &p); err != nil || !p.KeyType.IsValid() {
		return nil, rpcInvalidParams()
	}
	priv, err := codec.HexDecode(p.PrivateKeyHex)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	defer codec.Wipe(priv)
	key, err := s.svc.Vault.ImportKey(p.KeyType, priv, p.Name)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	return viewKey(key), nil
}

func (s *Server) importMnemonic(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		Mnemonic string         `json:"mnemonic"`
		KeyType  curves.KeyType `json:"keyType"`
		Name     string         `json:"name"`
	}
	if err := decodeParams(raw, &p); err != nil || !p.KeyType.IsValid() || p.Mnemonic == "" {
		return nil, rpcInvalidParams()
	}
	key, err := s.svc.Vault.ImportMnemonic(p.Mnemonic, p.KeyType, p.Name)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	return viewKey(key), nil
}

func (s *Server) removeKey(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		KeyID string `json:"keyId"`
	}
	if err := decodeParams(raw, &p); err != nil || p.KeyID == "" {
		return nil, rpcInvalidParams()
	}
	if err := s.svc.Vault.RemoveKey(p.KeyID); err != nil {
		return nil, rpcDomainError(err)
	}
	return map[string]bool{"success": true}, nil
}

func (s *Server) updateKeyMetadata(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		KeyID     string            `json:"keyId"`
		PublicKey string            `json:"publicKey"`
		Name      string            `json:"name"`
		Addresses map[string]string `json:"addresses"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, rpcInvalidParams()
	}
	keyID := p.KeyID
	if keyID == "" {
		if p.PublicKey == "" {
			return nil, rpcInvalidParams()
		}
		pub, err := codec.HexDecode(p.PublicKey)
		if err != nil {
			return nil, rpcDomainError(err)
		}
		key, err := s.svc.Vault.FindByPublicKey(pub)
		if err != nil {
			return nil, rpcDomainError(err)
		}
		keyID = key.ID
	}
	key, err := s.svc.Vault.UpdateKey(keyID, p.Name, p.Addresses)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	return viewKey(key), nil
}

func (s *Server) getKeyWithPrivate(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		KeyID string `json:"keyId"`
	}
	if err := decodeParams(raw, &p); err != nil || p.KeyID == "" {
		return nil, rpcInvalidParams()
	}
	key, err := s.svc.Vault.GetKey(p.KeyID)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	return viewKey(key), nil
}

func (s *Server) findKey(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		Address string `json:"address"`
	}
	if err := decodeParams(raw, &p); err != nil || p.Address == "" {
		return nil, rpcInvalidParams()
	}
	key, err := s.svc.Vault.FindByAddress(p.Address)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	return viewKey(key), nil
}

// signParams is the union of all SIGN_* parameter shapes; each method
// reads only the fields it needs.
type signParams struct {
	Origin           string `json:"origin"`
	TxHash           string `json:"txHash"`
	Hash             string `json:"hash"`
	Message          string `json:"message"`
	SignerURL        string `json:"signerUrl"`
	SignerVersion    uint64 `json:"signerVersion"`
	Timestamp        uint64 `json:"timestamp"`
	DataForSignature string `json:"dataForSignature"`
	Chain            string `json:"chain"`
	IntentHash       string `json:"intentHash"`
}

type signResult struct {
	RequestID string    `json:"requestId"`
	Signature string    `json:"signature"`
	PublicKey string    `json:"publicKey"`
	KeyID     string    `json:"keyId"`
	Timestamp time.Time `json:"timestamp"`
}

// submitSign parks the request on the queue and blocks until approval,
// rejection, sweep, client disconnect or the wait cap.
func (s *Server) submitSign(ctx context.Context, raw json.RawMessage, build func(signParams) (signqueue.Payload, error)) (any, *rpcError) {
	var p signParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, rpcInvalidParams()
	}
	payload, err := build(p)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	req, done, err := s.svc.Submit(payload, p.Origin)
	if err != nil {
		return nil, rpcDomainError(err)
	}

	wait := time.NewTimer(s.submitWait)
	defer wait.Stop()
	select {
	case out := <-done:
		if out.Err != nil {
			return nil, rpcDomainError(out.Err)
		}
		return signResult{
			RequestID: req.ID,
			Signature: codec.HexEncode(out.Result.Signature),
			PublicKey: codec.HexEncode(out.Result.PublicKey),
			KeyID:     out.Result.KeyID,
			Timestamp: out.Result.Timestamp,
		}, nil
	case <-ctx.Done():
		return nil, rpcDomainError(signqueue.ErrTimeout)
	case <-wait.C:
		return nil, rpcDomainError(signqueue.ErrTimeout)
	}
}

// requestView flattens a queued request for the approval UI.
type requestView struct {
	ID        string            `json:"id"`
	Origin    string            `json:"origin"`
	Kind      signqueue.Kind    `json:"kind"`
	Status    signqueue.Status  `json:"status"`
	Payload   signqueue.Payload `json:"payload"`
	CreatedAt time.Time         `json:"createdAt"`
}

func viewRequest(r signqueue.Request) requestView {
	return requestView{
		ID:        r.ID,
		Origin:    r.Origin,
		Kind:      r.Payload.Kind(),
		Status:    r.Status,
		Payload:   r.Payload,
		CreatedAt: r.CreatedAt,
	}
}

func (s *Server) pendingSignRequest() (any, *rpcError) {
	req, ok := s.svc.Next()
	if !ok {
		return map[string]any{"request": nil, "pendingCount": 0}, nil
	}
	return map[string]any{
		"request":      viewRequest(req),
		"pendingCount": len(s.svc.Pending()),
	}, nil
}

func (s *Server) approveSignRequest(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		RequestID string `json:"requestId"`
		KeyID     string `json:"keyId"`
	}
	if err := decodeParams(raw, &p); err != nil || p.RequestID == "" || p.KeyID == "" {
		return nil, rpcInvalidParams()
	}
	result, err := s.svc.Approve(p.RequestID, p.KeyID)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	return signResult{
		RequestID: p.RequestID,
		Signature: codec.HexEncode(result.Signature),
		PublicKey: codec.HexEncode(result.PublicKey),
		KeyID:     result.KeyID,
		Timestamp: result.Timestamp,
	}, nil
}

func (s *Server) rejectSignRequest(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		RequestID string `json:"requestId"`
		Reason    string `json:"reason"`
	}
	if err := decodeParams(raw, &p); err != nil || p.RequestID == "" {
		return nil, rpcInvalidParams()
	}
	if err := s.svc.Reject(p.RequestID, p.Reason); err != nil {
		return nil, rpcDomainError(err)
	}
	return map[string]bool{"success": true}, nil
}

func (s *Server) predictCreate2(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		Deployer     string `json:"deployer"`
		Salt         string `json:"salt"`
		InitCodeHash string `json:"initCodeHash"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, rpcInvalidParams()
	}
	deployer, err := codec.HexDecode(p.Deployer)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	salt, err := codec.HexDecode(p.Salt)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	initCodeHash, err := codec.HexDecode(p.InitCodeHash)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	addr, err := address.PredictCreate2(deployer, salt, initCodeHash)
	if err != nil {
		return nil, rpcDomainError(err)
	}
	return map[string]string{"address": addr}, nil
}

func decodeParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
