package rpc

import (
	"errors"

	"github.com/certenIO/certen-key-vault/internal/address"
	"github.com/certenIO/certen-key-vault/internal/app"
	"github.com/certenIO/certen-key-vault/internal/codec"
	"github.com/certenIO/certen-key-vault/internal/curves"
	"github.com/certenIO/certen-key-vault/internal/hdwallet"
	"github.com/certenIO/certen-key-vault/internal/signqueue"
	"github.com/certenIO/certen-key-vault/internal/vault"
	"github.com/certenIO/certen-key-vault/internal/vaultcrypto"
)

func rpcInvalidParams() *rpcError {
	return &rpcError{Code: -32602, Message: "invalid params"}
}

// errorCode maps the domain error taxonomy onto stable JSON-RPC codes so
// callers can switch on code instead of matching message strings.
func errorCode(err error) int {
	switch {
	case errors.Is(err, vault.ErrInvalidPassword):
		return -32001
	case errors.Is(err, vault.ErrVaultLocked):
		return -32002
	case errors.Is(err, vault.ErrAlreadyInitialized):
		return -32003
	case errors.Is(err, vault.ErrNotInitialized):
		return -32004
	case errors.Is(err, vault.ErrKeyNotFound):
		return -32005
	case errors.Is(err, signqueue.ErrRequestNotFound):
		return -32006
	case errors.Is(err, hdwallet.ErrInvalidMnemonic):
		return -32007
	case errors.Is(err, curves.ErrInvalidKeyLength),
		errors.Is(err, curves.ErrUnsupportedKeyType):
		return -32008
	case errors.Is(err, curves.ErrLengthMismatch):
		return -32009
	case errors.Is(err, signqueue.ErrUserRejected):
		return -32010
	case errors.Is(err, signqueue.ErrTimeout):
		return -32011
	case errors.Is(err, vaultcrypto.ErrUnsupportedSchema):
		return -32012
	case errors.Is(err, app.ErrWrongKeyType):
		return -32013
	case errors.Is(err, signqueue.ErrRequestNotPending):
		return -32014
	case errors.Is(err, signqueue.ErrInvalidPayload),
		errors.Is(err, signqueue.ErrInvalidTxHash),
		errors.Is(err, codec.ErrInvalidHex),
		errors.Is(err, vault.ErrNameRequired),
		errors.Is(err, vault.ErrNoMnemonic),
		errors.Is(err, address.ErrUnsupportedChain):
		return -32015
	default:
		return -32000
	}
}

func rpcDomainError(err error) *rpcError {
	return &rpcError{Code: errorCode(err), Message: err.Error()}
}
