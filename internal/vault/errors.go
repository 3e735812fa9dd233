package vault

import "errors"

var (
	ErrInvalidPassword    = errors.New("invalid password")
	ErrVaultLocked        = errors.New("vault is locked")
	ErrAlreadyInitialized = errors.New("vault is already initialized")
	ErrNotInitialized     = errors.New("vault is not initialized")
	ErrKeyNotFound        = errors.New("key not found")
	ErrNoMnemonic         = errors.New("vault has no mnemonic")
	ErrNameRequired       = errors.New("key name is required")
)
