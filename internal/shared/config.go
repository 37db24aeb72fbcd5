package shared

import (
	"encoding/json"
	"errors"
	"os"
)

type ClientConfig struct {
	ServerURL      string `json:"server_url"`
	User           string `json:"user"`
	PrivateKeyPath string `json:"private_key_path"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func LoadClientConfig(path string) (*ClientConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c ClientConfig
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if c.ServerURL == "" {
		return nil, errors.New("missing server_url")
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 20
	}
	return &c, nil
}

func SaveClientConfig(path string, c *ClientConfig) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}
