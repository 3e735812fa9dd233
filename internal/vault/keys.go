package vault

import (
	"bytes"
	"strings"

	"github.com/certenIO/certen-key-vault/internal/address"
	"github.com/certenIO/certen-key-vault/internal/codec"
	"github.com/certenIO/certen-key-vault/internal/curves"
	"github.com/certenIO/certen-key-vault/internal/hdwallet"
)

// GenerateKey creates a random key of the given type. Returns a redacted
// copy.
func (v *Vault) GenerateKey(keyType curves.KeyType, name string) (StoredKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	if v.payload == nil {
		return StoredKey{}, ErrVaultLocked
	}
	priv, err := curves.GeneratePrivateKey(keyType)
	if err != nil {
		return StoredKey{}, err
	}
	key, err := v.addKeyLocked(keyType, name, priv, "", false)
	if err != nil {
		return StoredKey{}, err
	}
	v.unlockedAt = v.now()
	return key.Redacted(), nil
}

// DeriveKey derives the next key of the given type from the vault mnemonic
// at the next free index. Fails with ErrNoMnemonic on mnemonic-less vaults.
func (v *Vault) DeriveKey(keyType curves.KeyType, name string) (StoredKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	if v.payload == nil {
		return StoredKey{}, ErrVaultLocked
	}
	key, err := v.deriveLocked(keyType, name)
	if err != nil {
		return StoredKey{}, err
	}
	if err := v.persistLocked(); err != nil {
		return StoredKey{}, err
	}
	v.unlockedAt = v.now()
	return key.Redacted(), nil
}

// deriveLocked derives and appends a key without persisting; initialization
// batches several derivations into one persist.
func (v *Vault) deriveLocked(keyType curves.KeyType, name string) (StoredKey, error) {
	if v.payload.Mnemonic == "" {
		return StoredKey{}, ErrNoMnemonic
	}
	priv, path, err := deriveAtNextIndex(keyType, v.payload.Mnemonic, v.payload.paths())
	if err != nil {
		return StoredKey{}, err
	}
	return v.appendKeyLocked(keyType, name, priv, path, true)
}

func deriveAtNextIndex(keyType curves.KeyType, mnemonic string, existing []string) (priv []byte, path string, err error) {
	switch keyType {
	case curves.KeyTypeEd25519:
		index := hdwallet.NextIndex(existing, hdwallet.AccountPrefix(hdwallet.Ed25519Path(0, 0)))
		return hdwallet.DeriveEd25519(mnemonic, 0, index)
	case curves.KeyTypeSecp256k1:
		index := hdwallet.NextIndex(existing, hdwallet.AccountPrefix(hdwallet.Secp256k1Path(0, 0)))
		return hdwallet.DeriveSecp256k1(mnemonic, 0, index)
	case curves.KeyTypeBLS12381:
		index := hdwallet.NextIndex(existing, hdwallet.AccountPrefix(hdwallet.BLSPath(0, 0)))
		return hdwallet.DeriveBLS(mnemonic, 0, index)
	default:
		return nil, "", curves.ErrUnsupportedKeyType
	}
}

// ImportKey stores an externally supplied raw private key. No derivation
// path is recorded.
func (v *Vault) ImportKey(keyType curves.KeyType, priv []byte, name string) (StoredKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	if v.payload == nil {
		return StoredKey{}, ErrVaultLocked
	}
	key, err := v.addKeyLocked(keyType, name, append([]byte(nil), priv...), "", false)
	if err != nil {
		return StoredKey{}, err
	}
	v.unlockedAt = v.now()
	return key.Redacted(), nil
}

// ImportMnemonic derives the index-0 key of the given type from a foreign
// recovery phrase and stores it. The vault's own mnemonic is unchanged.
func (v *Vault) ImportMnemonic(mnemonic string, keyType curves.KeyType, name string) (StoredKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	if v.payload == nil {
		return StoredKey{}, ErrVaultLocked
	}
	var (
		priv []byte
		path string
		err  error
	)
	switch keyType {
	case curves.KeyTypeEd25519:
		priv, path, err = hdwallet.DeriveEd25519(mnemonic, 0, 0)
	case curves.KeyTypeSecp256k1:
		priv, path, err = hdwallet.DeriveSecp256k1(mnemonic, 0, 0)
	case curves.KeyTypeBLS12381:
		priv, path, err = hdwallet.DeriveBLS(mnemonic, 0, 0)
	default:
		err = curves.ErrUnsupportedKeyType
	}
	if err != nil {
		return StoredKey{}, err
	}
	key, err := v.addKeyLocked(keyType, name, priv, path, true)
	if err != nil {
		return StoredKey{}, err
	}
	v.unlockedAt = v.now()
	return key.Redacted(), nil
}

// addKeyLocked appends a key and persists the payload.
func (v *Vault) addKeyLocked(keyType curves.KeyType, name string, priv []byte, path string, fromMnemonic bool) (StoredKey, error) {
	key, err := v.appendKeyLocked(keyType, name, priv, path, fromMnemonic)
	if err != nil {
		return StoredKey{}, err
	}
	if err := v.persistLocked(); err != nil {
		return StoredKey{}, err
	}
	return key, nil
}

func (v *Vault) appendKeyLocked(keyType curves.KeyType, name string, priv []byte, path string, fromMnemonic bool) (StoredKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return StoredKey{}, ErrNameRequired
	}
	pub, err := curves.PublicKeyFromPrivate(keyType, priv)
	if err != nil {
		return StoredKey{}, err
	}
	addrs, err := address.ForKeyType(keyType, pub)
	if err != nil {
		return StoredKey{}, err
	}
	now := v.now()
	key := StoredKey{
		ID:             codec.NewID(),
		Name:           name,
		Type:           keyType,
		PublicKey:      pub,
		PrivateKey:     priv,
		CreatedAt:      now,
		LastUsedAt:     now,
		DerivationPath: path,
		Metadata: KeyMetadata{
			Addresses:    addrs,
			FromMnemonic: fromMnemonic,
		},
	}
	v.payload.Keys = append(v.payload.Keys, key)
	v.logger.Info("key added", "key_id", key.ID, "key_type", string(keyType), "derived", path != "")
	return key, nil
}

// GetAllKeys lists keys, optionally filtered by type, with private key
// material redacted. Listing does not refresh the session.
func (v *Vault) GetAllKeys(filter curves.KeyType) ([]StoredKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	if v.payload == nil {
		return nil, ErrVaultLocked
	}
	out := make([]StoredKey, 0, len(v.payload.Keys))
	for i := range v.payload.Keys {
		if filter != "" && v.payload.Keys[i].Type != filter {
			continue
		}
		out = append(out, v.payload.Keys[i].Redacted())
	}
	return out, nil
}

// GetKey returns the key with its real private key. Reserved for the
// signing path and explicit export; updates lastUsedAt, persists and
// refreshes the session.
func (v *Vault) GetKey(id string) (StoredKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	if v.payload == nil {
		return StoredKey{}, ErrVaultLocked
	}
	i := v.payload.keyIndex(id)
	if i < 0 {
		return StoredKey{}, ErrKeyNotFound
	}
	v.payload.Keys[i].LastUsedAt = v.now()
	if err := v.persistLocked(); err != nil {
		return StoredKey{}, err
	}
	v.unlockedAt = v.now()

	key := v.payload.Keys[i]
	key.PrivateKey = append([]byte(nil), key.PrivateKey...)
	key.PublicKey = append([]byte(nil), key.PublicKey...)
	key.Metadata.Addresses = cloneAddresses(key.Metadata.Addresses)
	return key, nil
}

// UpdateKey renames a key and/or replaces its custom address metadata.
// Type, keys and derivation path are immutable.
func (v *Vault) UpdateKey(id, name string, addrs map[string]string) (StoredKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	if v.payload == nil {
		return StoredKey{}, ErrVaultLocked
	}
	i := v.payload.keyIndex(id)
	if i < 0 {
		return StoredKey{}, ErrKeyNotFound
	}
	if name = strings.TrimSpace(name); name != "" {
		v.payload.Keys[i].Name = name
	}
	if addrs != nil {
		merged := cloneAddresses(v.payload.Keys[i].Metadata.Addresses)
		if merged == nil {
			merged = make(map[string]string, len(addrs))
		}
		for chain, addr := range addrs {
			merged[chain] = addr
		}
		v.payload.Keys[i].Metadata.Addresses = merged
	}
	if err := v.persistLocked(); err != nil {
		return StoredKey{}, err
	}
	v.unlockedAt = v.now()
	return v.payload.Keys[i].Redacted(), nil
}

// RemoveKey deletes a key from the collection and re-persists.
func (v *Vault) RemoveKey(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	if v.payload == nil {
		return ErrVaultLocked
	}
	i := v.payload.keyIndex(id)
	if i < 0 {
		return ErrKeyNotFound
	}
	codec.Wipe(v.payload.Keys[i].PrivateKey)
	v.payload.Keys = append(v.payload.Keys[:i], v.payload.Keys[i+1:]...)
	if err := v.persistLocked(); err != nil {
		return err
	}
	v.unlockedAt = v.now()
	v.logger.Info("key removed", "key_id", id)
	return nil
}

// FindByPublicKey returns the redacted key matching pub exactly.
func (v *Vault) FindByPublicKey(pub []byte) (StoredKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	if v.payload == nil {
		return StoredKey{}, ErrVaultLocked
	}
	for i := range v.payload.Keys {
		if bytes.Equal(v.payload.Keys[i].PublicKey, pub) {
			return v.payload.Keys[i].Redacted(), nil
		}
	}
	return StoredKey{}, ErrKeyNotFound
}

// FindByAddress returns the redacted key owning the given chain address.
// Matching is case-insensitive to cover checksummed Ethereum forms.
func (v *Vault) FindByAddress(addr string) (StoredKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAndMaybeLock()
	if v.payload == nil {
		return StoredKey{}, ErrVaultLocked
	}
	for i := range v.payload.Keys {
		for _, candidate := range v.payload.Keys[i].Metadata.Addresses {
			if strings.EqualFold(candidate, addr) {
				return v.payload.Keys[i].Redacted(), nil
			}
		}
	}
	return StoredKey{}, ErrKeyNotFound
}
