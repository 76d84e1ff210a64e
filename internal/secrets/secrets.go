// Package secrets stores per-connection credentials. The sync core fetches
// credentials fresh on every reconcile cycle so rotations take effect
// without a restart.
package secrets

import "errors"

var ErrNotFound = errors.New("secrets: credential not found")

// Credential is the secret material for one connection.
type Credential struct {
	Password   string `json:"password,omitempty"`
	PrivateKey []byte `json:"private_key,omitempty"`
	Passphrase []byte `json:"passphrase,omitempty"`
}

// Store is the credential storage capability. Keys are connection IDs.
type Store interface {
	Get(connectionID string) (*Credential, error)
	Set(connectionID string, cred *Credential) error
	Delete(connectionID string) error
}
