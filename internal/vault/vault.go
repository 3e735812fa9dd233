// Package vault orchestrates the encrypted key collection: lifecycle
// (Uninitialized → Locked ⇄ Unlocked), session timeout, key CRUD and
// persistence. All state lives behind one mutex because even reading the
// lock status can force an auto-lock transition.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/certenIO/certen-key-vault/internal/codec"
	"github.com/certenIO/certen-key-vault/internal/curves"
	"github.com/certenIO/certen-key-vault/internal/hdwallet"
	"github.com/certenIO/certen-key-vault/internal/vaultcrypto"
)

const (
	// DefaultAutoLockTimeout evicts the decrypted payload after idle time.
	DefaultAutoLockTimeout = 15 * time.Minute

	// defaultAccount is the fixed HD account used for all derivations.
	defaultAccount uint32 = 0

	// mnemonicStrength is the entropy for vault-generated recovery phrases.
	mnemonicStrength = 256
)

// Options configures a Vault. Zero values fall back to defaults.
type Options struct {
	AutoLockTimeout time.Duration
	Iterations      int
	Logger          *slog.Logger
	Now             func() time.Time
}

// Vault owns the (derived key, payload, envelope, session clock) tuple as
// one atomic unit. Every public method takes the mutex and runs the
// auto-lock check before touching state.
type Vault struct {
	mu      sync.Mutex
	store   Store
	logger  *slog.Logger
	timeout time.Duration
	iters   int
	now     func() time.Time

	// Unlocked-session state; nil/zero while locked.
	key        []byte
	env        *vaultcrypto.Envelope
	payload    *Payload
	unlockedAt time.Time
}

func New(store Store, opts Options) *Vault {
	if opts.AutoLockTimeout <= 0 {
		opts.AutoLockTimeout = DefaultAutoLockTimeout
	}
	if opts.Iterations <= 0 {
		opts.Iterations = vaultcrypto.DefaultIterations
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Vault{
		store:   store,
		logger:  opts.Logger,
		timeout: opts.AutoLockTimeout,
		iters:   opts.Iterations,
		now:     opts.Now,
	}
}

// Initialize creates an empty vault without a recovery phrase and leaves it
// unlocked. Fails with ErrAlreadyInitialized when a record exists.
func (v *Vault) Initialize(password string) error {
	_, err := v.initialize(password, "", false)
	return err
}

// InitializeWithMnemonic creates a vault seeded by a recovery phrase
// (generated when mnemonic is empty) and auto-derives one Ed25519 and one
// secp256k1 key. Returns the mnemonic for backup display; besides explicit
// export, this is the only time a mnemonic crosses the vault boundary.
func (v *Vault) InitializeWithMnemonic(password, mnemonic string) (string, error) {
	return v.initialize(password, mnemonic, true)
}

func (v *Vault) initialize(password, mnemonic string, withMnemonic bool) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.store.Exists() {
		return "", ErrAlreadyInitialized
	}
	if withMnemonic {
		if mnemonic == "" {
			generated, err := hdwallet.GenerateMnemonic(mnemonicStrength)
			if err != nil {
				return "", fmt.Errorf("generate mnemonic: %w", err)
			}
			mnemonic = generated
		} else if !hdwallet.ValidateMnemonic(mnemonic) {
			return "", hdwallet.ErrInvalidMnemonic
		}
	}

	env, err := vaultcrypto.NewEnvelope()
	if err != nil {
		return "", err
	}
	env.KDFParams.Iterations = v.iters

	now := v.now()
	payload := &Payload{
		Mnemonic: mnemonic,
		Metadata: PayloadMetadata{CreatedAt: now},
	}
	payload.touch(now)

	v.key = vaultcrypto.DeriveKey(password, env.Salt, env.KDFParams.Iterations)
	v.env = env
	v.payload = payload
	v.unlockedAt = now

	if withMnemonic {
		if _, err := v.deriveLocked(curves.KeyTypeEd25519, "Ed25519 Key 1"); err != nil {
			v.lockLocked()
			return "", err
		}
		if _, err := v.deriveLocked(curves.KeyTypeSecp256k1, "Ethereum Key 1"); err != nil {
			v.lockLocked()
			return "", err
		}
	}
	if err := v.persistLocked(); err != nil {
		v.lockLocked()
		return "", err
	}
	v.logger.Info("vault initialized", "has_mnemonic", withMnemonic, "key_count", len(v.payload.Keys))
	return mnemonic, nil
}

// Unlock decrypts the persisted payload. Wrong password, corruption and
// tampering all collapse into ErrInvalidPassword; the state stays Locked.
func (v *Vault) Unlock(password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	env, err := v.store.Load()
	if err != nil {
		return err
	}
	plaintext, err := vaultcrypto.Open(env, password)
	if errors.Is(err, vaultcrypto.ErrAuthFailed) {
		v.logger.Warn("vault unlock rejected")
		return ErrInvalidPassword
	}
	if err != nil {
		return err
	}
	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return fmt.Errorf("parse vault payload: %w", err)
	}
	codec.Wipe(plaintext)

	v.key = vaultcrypto.DeriveKey(password, env.Salt, env.KDFParams.Iterations)
	v.env = env
	v.payload = &payload
	v.unlockedAt = v.now()
	v.logger.Info("vault unlocked", "key_count", len(payload.Keys))
	return nil
}

// Lock evicts the derived key and decrypted payload from memory. Idempotent;
// the persisted record is untouched.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lockLocked()
}

func (v *Vault) lockLocked() {
	if v.payload != nil {
		v.payload.wipe()
	}
	codec.Wipe(v.key)
	v.key = nil
	v.env = nil
	v.payload = nil
	v.unlockedAt = time.Time{}
}

// checkAndMaybeLock enforces the session timeout. Every public entry point
// calls it, which means even status reads can transition the vault to
// Locked. Callers must tolerate the non-pure query.
func (v *Vault) checkAndMaybeLock() {
	if v.payload == nil {
		return
	}
	if v.now().Sub(v.unlockedAt) > v.timeout {
		v.logger.Info("vault auto-locked", "timeout", v.timeout.String())
		v.lockLocked()
	}
}

// IsUnlocked reports the session state after running the auto-lock check.
func (v *Vault) IsUnlocked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	return v.payload != nil
}

// RefreshSession extends the session clock if currently unlocked.
func (v *Vault) RefreshSession() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	if v.payload != nil {
		v.unlockedAt = v.now()
	}
}

// Status summarizes lifecycle state. Reading it does not refresh the
// session but can trigger auto-lock.
func (v *Vault) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	st := Status{IsInitialized: v.store.Exists()}
	if v.payload != nil {
		st.IsUnlocked = true
		st.HasMnemonic = v.payload.Mnemonic != ""
		st.KeyCount = len(v.payload.Keys)
	}
	return st
}

// Reset unconditionally wipes durable and in-memory state, returning the
// vault to Uninitialized. Destructive and non-recoverable; confirmation is
// the caller's concern.
func (v *Vault) Reset() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lockLocked()
	if err := v.store.Delete(); err != nil {
		return err
	}
	v.logger.Warn("vault reset")
	return nil
}

// ChangePassword re-authenticates with the current password, regenerates
// the salt and re-persists under the new derived key. Requires Unlocked.
func (v *Vault) ChangePassword(current, next string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	if v.payload == nil {
		return ErrVaultLocked
	}

	env, err := v.store.Load()
	if err != nil {
		return err
	}
	if _, err := vaultcrypto.Open(env, current); err != nil {
		return ErrInvalidPassword
	}

	salt, err := vaultcrypto.NewSalt()
	if err != nil {
		return err
	}
	newEnv := &vaultcrypto.Envelope{
		Version: vaultcrypto.EnvelopeVersion,
		Salt:    salt,
		KDFParams: vaultcrypto.KDFParams{
			Algorithm:  vaultcrypto.KDFAlgorithm,
			Iterations: v.iters,
		},
	}
	codec.Wipe(v.key)
	v.key = vaultcrypto.DeriveKey(next, salt, v.iters)
	v.env = newEnv
	v.unlockedAt = v.now()
	if err := v.persistLocked(); err != nil {
		return err
	}
	v.logger.Info("vault password changed")
	return nil
}

// Mnemonic exports the recovery phrase. Unlocked-only.
func (v *Vault) Mnemonic() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	if v.payload == nil {
		return "", ErrVaultLocked
	}
	if v.payload.Mnemonic == "" {
		return "", ErrNoMnemonic
	}
	return v.payload.Mnemonic, nil
}

// persistLocked re-encrypts the full payload under the held key with a
// fresh IV and writes it through the store. Persistence is whole-payload
// on every mutation; there is no delta path.
func (v *Vault) persistLocked() error {
	v.payload.touch(v.now())
	plaintext, err := json.Marshal(v.payload)
	if err != nil {
		return err
	}
	defer codec.Wipe(plaintext)
	iv, ciphertext, err := vaultcrypto.Encrypt(plaintext, v.key)
	if err != nil {
		return err
	}
	v.env.IV = iv
	v.env.EncryptedPayload = ciphertext
	return v.store.Save(v.env)
}
