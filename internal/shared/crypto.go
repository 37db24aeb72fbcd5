package shared

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

var ErrKeySize = errors.New("invalid key size")

func GenKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating key: %w", err)
	}
	return pub, priv, nil
}

func EncodeKey(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func DecodePubKey(b64 string) (ed25519.PublicKey, error) {
	b, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, ErrKeySize
	}
	return ed25519.PublicKey(b), nil
}

// EncodePrivKeyPKCS8 is the form handed to operators by provisioning.
func EncodePrivKeyPKCS8(priv ed25519.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("marshalling pkcs8: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// DecodePrivKey accepts either the raw 64 byte ed25519 key or a PKCS8 document,
// both base64 encoded.
func DecodePrivKey(b64 string) (ed25519.PrivateKey, error) {
	b, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(b) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(b), nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(b)
	if err != nil {
		return nil, ErrKeySize
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("pkcs8 key is not ed25519")
	}
	return priv, nil
}
