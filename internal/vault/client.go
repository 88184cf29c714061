// Package vault fetches runtime secrets (JWT signing key, database
// password) from HashiCorp Vault, with a local fallback when disabled.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"
)

// Config holds Vault connection settings
type Config struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
}

// Client wraps the HashiCorp Vault client with a secret cache
type Client struct {
	client *api.Client
	config Config

	mu    sync.RWMutex
	cache map[string]string
}

// NewClient creates a new Vault client. When Vault is disabled the client
// serves only locally stored secrets.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		config: cfg,
		cache:  make(map[string]string),
	}

	if !cfg.Enabled {
		return c, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	c.client = client
	return c, nil
}

// GetSecret fetches a secret value by key from the configured KV mount,
// consulting the cache first.
func (c *Client) GetSecret(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	if value, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return value, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled || c.client == nil {
		return "", fmt.Errorf("secret %q not found and vault is disabled", key)
	}

	secret, err := c.client.KVv2(c.config.MountPath).Get(ctx, c.config.SecretPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret path %q: %w", c.config.SecretPath, err)
	}

	raw, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("secret %q not found at %q", key, c.config.SecretPath)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("secret %q is not a string", key)
	}

	c.mu.Lock()
	c.cache[key] = value
	c.mu.Unlock()

	return value, nil
}

// SetLocalSecret stores a secret in the local cache, used when Vault is
// disabled in development.
func (c *Client) SetLocalSecret(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = value
}
