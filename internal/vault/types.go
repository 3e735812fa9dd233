package vault

import (
	"time"

	"github.com/certenIO/certen-key-vault/internal/curves"
)

// KeyMetadata carries the chain-specific derived addresses for a key (at
// most one canonical address per chain family) and marks mnemonic origin.
type KeyMetadata struct {
	Addresses    map[string]string `json:"addresses,omitempty"`
	FromMnemonic bool              `json:"fromMnemonic"`
}

// StoredKey is one managed keypair. PrivateKey exists only inside the
// decrypted in-memory payload; it never appears in any serialized form
// outside the encrypted vault blob.
type StoredKey struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           curves.KeyType `json:"type"`
	PublicKey      []byte         `json:"publicKey"`
	PrivateKey     []byte         `json:"privateKey,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastUsedAt     time.Time      `json:"lastUsedAt"`
	DerivationPath string         `json:"derivationPath,omitempty"`
	Metadata       KeyMetadata    `json:"metadata"`
}

// Redacted returns a copy safe for bulk listing: private key material is
// stripped, everything else is preserved.
func (k StoredKey) Redacted() StoredKey {
	k.PrivateKey = nil
	k.Metadata.Addresses = cloneAddresses(k.Metadata.Addresses)
	k.PublicKey = append([]byte(nil), k.PublicKey...)
	return k
}

func cloneAddresses(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// PayloadMetadata is bookkeeping for the whole collection. KeyCount is
// redundant with len(Keys) and is re-synced on every mutation.
type PayloadMetadata struct {
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
	KeyCount     int       `json:"keyCount"`
}

// Payload is the plaintext vault structure; it exists only while unlocked.
// Key order is insertion order and matters only for display.
type Payload struct {
	Keys     []StoredKey     `json:"keys"`
	Metadata PayloadMetadata `json:"metadata"`
	Mnemonic string          `json:"mnemonic,omitempty"`
}

func (p *Payload) touch(now time.Time) {
	p.Metadata.LastModified = now
	p.Metadata.KeyCount = len(p.Keys)
}

func (p *Payload) keyIndex(id string) int {
	for i := range p.Keys {
		if p.Keys[i].ID == id {
			return i
		}
	}
	return -1
}

func (p *Payload) paths() []string {
	out := make([]string, 0, len(p.Keys))
	for i := range p.Keys {
		if p.Keys[i].DerivationPath != "" {
			out = append(out, p.Keys[i].DerivationPath)
		}
	}
	return out
}

// wipe zeroizes every private key held in the payload. Called on lock.
func (p *Payload) wipe() {
	for i := range p.Keys {
		for j := range p.Keys[i].PrivateKey {
			p.Keys[i].PrivateKey[j] = 0
		}
		p.Keys[i].PrivateKey = nil
	}
	p.Mnemonic = ""
}

// Status is the externally visible vault state summary.
type Status struct {
	IsInitialized bool `json:"isInitialized"`
	IsUnlocked    bool `json:"isUnlocked"`
	HasMnemonic   bool `json:"hasMnemonic"`
	KeyCount      int  `json:"keyCount"`
}
