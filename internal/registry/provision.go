package registry

import (
	"crypto/ed25519"
	"fmt"
	"io"

	"trustreg/internal/shared"
)

// IdentityWriter is the part of a Registry that provisioning needs. The
// operator CLI also satisfies it remotely through the admin API.
type IdentityWriter interface {
	AddID(user string, key []byte) error
}

// Provisioner creates users on behalf of the operator. The generated private
// key is written to Out and never retained. It must only be wired to operator
// entry points, never to a request handler.
type Provisioner struct {
	Store IdentityWriter
	Out   io.Writer
}

func (p *Provisioner) AddUser(username string) (ed25519.PublicKey, error) {
	pub, priv, err := shared.GenKeypair()
	if err != nil {
		return nil, err
	}

	encoded, err := shared.EncodePrivKeyPKCS8(priv)
	if err != nil {
		return nil, err
	}

	if err := p.Store.AddID(username, pub); err != nil {
		return nil, fmt.Errorf("registering %s: %w", username, err)
	}

	if _, err := fmt.Fprintf(p.Out, "Private key for %s is: %s\n", username, encoded); err != nil {
		return nil, fmt.Errorf("writing private key: %w", err)
	}
	return pub, nil
}
