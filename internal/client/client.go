package client

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"trustreg/internal/registry"
	"trustreg/internal/shared"
)

var ErrNotFound = errors.New("not found")

// StatusError carries a non-2xx response back to the caller.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, strings.TrimSpace(e.Body))
}

type Client struct {
	Cfg    *shared.ClientConfig
	Priv   ed25519.PrivateKey // nil for read-only use
	Client *http.Client
}

func New(cfg *shared.ClientConfig) (*Client, error) {
	c := &Client{
		Cfg:    cfg,
		Client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
	if cfg.PrivateKeyPath != "" {
		priv, err := LoadKey(cfg.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
		c.Priv = priv
	}
	return c, nil
}

// LoadKey reads a base64 private key, raw or PKCS8, as printed by
// tr-server adduser or written by tr-client keygen.
func LoadKey(path string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}
	priv, err := shared.DecodePrivKey(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, fmt.Errorf("decoding key %s: %w", path, err)
	}
	return priv, nil
}

// WriteKey generates a key pair and stores the private half at path.
func WriteKey(path string) (ed25519.PublicKey, error) {
	pub, priv, err := shared.GenKeypair()
	if err != nil {
		return nil, err
	}
	encoded, err := shared.EncodePrivKeyPKCS8(priv)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("writing key: %w", err)
	}
	return pub, nil
}

func (c *Client) url(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return strings.TrimRight(c.Cfg.ServerURL, "/") + "/" + strings.Join(escaped, "/")
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(b)}
	}
	return b, nil
}

func (c *Client) GetIDKey(ctx context.Context, user string) (ed25519.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("id", user), nil)
	if err != nil {
		return nil, err
	}
	b, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return shared.DecodePubKey(strings.TrimSpace(string(b)))
}

func (c *Client) GetName(ctx context.Context, name string) (*registry.UpdateMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("name", name), nil)
	if err != nil {
		return nil, err
	}
	b, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var msg registry.UpdateMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	return &msg, nil
}

// SetName signs content as the configured user and submits it.
func (c *Client) SetName(ctx context.Context, name, content string) (registry.UpdateMessage, error) {
	if c.Priv == nil {
		return registry.UpdateMessage{}, errors.New("no private key configured")
	}
	if c.Cfg.User == "" {
		return registry.UpdateMessage{}, errors.New("no user configured")
	}
	msg := registry.NewSignedMessage(c.Priv, c.Cfg.User, content)
	return msg, c.Post(ctx, name, msg)
}

func (c *Client) Post(ctx context.Context, name string, msg registry.UpdateMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("name", name), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req)
	return err
}
