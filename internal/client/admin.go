package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"trustreg/internal/registry"
	"trustreg/internal/shared"
)

// Admin drives the service-key protected endpoints of a running server.
type Admin struct {
	*Client
	ServiceKey string
}

func NewAdmin(cfg *shared.ClientConfig, serviceKey string) (*Admin, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &Admin{Client: c, ServiceKey: serviceKey}, nil
}

func (a *Admin) send(ctx context.Context, method, url string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Key", a.ServiceKey)
	_, err = a.do(req)
	return err
}

// RegisterID binds key to user, replacing any existing binding.
func (a *Admin) RegisterID(ctx context.Context, user string, key []byte) error {
	return a.send(ctx, http.MethodPost, a.url("admin", "id", user),
		shared.RegisterIDRequest{PublicKey: shared.EncodeKey(key)})
}

// SeedName stores msg under name without any signature check.
func (a *Admin) SeedName(ctx context.Context, name string, msg registry.UpdateMessage) error {
	return a.send(ctx, http.MethodPut, a.url("admin", "name", name), msg)
}

// AddID lets an Admin back a registry.Provisioner.
func (a *Admin) AddID(user string, key []byte) error {
	return a.RegisterID(context.Background(), user, key)
}
