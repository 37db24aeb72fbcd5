package registry

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"time"
)

// UpdateMessage is a claim by User that the value is NewContents.
//
// Only User and NewContents are covered by Signature. UTC is informational and
// a stale signed payload restamped with a fresh time still verifies.
type UpdateMessage struct {
	User        string    `json:"user"`
	UTC         time.Time `json:"utc"`
	Signature   string    `json:"signature"`
	NewContents string    `json:"new_contents"`
}

// SignedPayload is the byte string that is signed and verified: user, one
// ASCII space, content. Nothing is escaped, so a user containing a space can
// produce the same payload as a different (user, content) pair.
func SignedPayload(user, content string) []byte {
	return []byte(user + " " + content)
}

func NewSignedMessage(key ed25519.PrivateKey, user, content string) UpdateMessage {
	sig := ed25519.Sign(key, SignedPayload(user, content))
	return UpdateMessage{
		User:        user,
		UTC:         time.Now().UTC(),
		Signature:   base64.StdEncoding.EncodeToString(sig),
		NewContents: content,
	}
}

// VerifySignature checks the message against a raw ed25519 public key.
func (m UpdateMessage) VerifySignature(pub []byte) error {
	sig, err := base64.StdEncoding.DecodeString(m.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	// ed25519.Verify panics on a short key.
	if len(pub) != ed25519.PublicKeySize {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), SignedPayload(m.User, m.NewContents), sig) {
		return ErrInvalidSignature
	}
	return nil
}

func (m UpdateMessage) Equal(o UpdateMessage) bool {
	return m.User == o.User &&
		m.UTC.Equal(o.UTC) &&
		m.Signature == o.Signature &&
		m.NewContents == o.NewContents
}
