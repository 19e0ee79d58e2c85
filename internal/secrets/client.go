package secrets

import (
	"context"
	"fmt"
	"sync"

	"stock-insight-backend/config"

	"github.com/hashicorp/vault/api"
)

// AppSecrets represents the application secret bundle stored in Vault
type AppSecrets struct {
	JWTSecret  string `json:"jwt_secret"`
	DBPassword string `json:"db_password"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client       *api.Client
	config       config.VaultConfig
	mu           sync.RWMutex
	cached       *AppSecrets
	cacheEnabled bool
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config:       cfg,
			cacheEnabled: true,
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client:       client,
		config:       cfg,
		cacheEnabled: true,
	}, nil
}

// Load retrieves the application secret bundle from Vault
func (c *Client) Load(ctx context.Context) (*AppSecrets, error) {
	// Check cache first
	if c.cacheEnabled {
		c.mu.RLock()
		if c.cached != nil {
			cached := c.cached
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()
	}

	if !c.config.Enabled {
		return nil, fmt.Errorf("secrets not cached and vault is disabled")
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secrets not found at %s", c.secretPath())
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	secrets := &AppSecrets{
		JWTSecret:  getString(data, "jwt_secret"),
		DBPassword: getString(data, "db_password"),
	}

	// Update cache
	if c.cacheEnabled {
		c.mu.Lock()
		c.cached = secrets
		c.mu.Unlock()
	}

	return secrets, nil
}

// Store writes the application secret bundle to Vault
func (c *Client) Store(ctx context.Context, secrets AppSecrets) error {
	if !c.config.Enabled {
		// Store in local cache only (for development/testing)
		c.mu.Lock()
		c.cached = &secrets
		c.mu.Unlock()
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"jwt_secret":  secrets.JWTSecret,
			"db_password": secrets.DBPassword,
		},
	}

	_, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(), secretData)
	if err != nil {
		return fmt.Errorf("failed to store secrets in vault: %w", err)
	}

	// Update cache
	if c.cacheEnabled {
		c.mu.Lock()
		c.cached = &secrets
		c.mu.Unlock()
	}

	return nil
}

// Hydrate overlays Vault-held secrets onto the runtime configuration.
// When Vault is disabled the config and environment values stand as-is.
func (c *Client) Hydrate(ctx context.Context, cfg *config.Config) error {
	if !c.config.Enabled {
		return nil
	}

	secrets, err := c.Load(ctx)
	if err != nil {
		return err
	}

	if secrets.JWTSecret != "" {
		cfg.AuthConfig.JWTSecret = secrets.JWTSecret
	}
	if secrets.DBPassword != "" {
		cfg.DatabaseConfig.Password = secrets.DBPassword
	}

	return nil
}

// ClearCache clears the in-memory cache
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// SetCacheEnabled enables or disables caching
func (c *Client) SetCacheEnabled(enabled bool) {
	c.mu.Lock()
	c.cacheEnabled = enabled
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the KV v2 data path for the app secret bundle
func (c *Client) secretPath() string {
	return fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// NewMockClient creates a disabled client for testing
func NewMockClient() *Client {
	return &Client{
		config: config.VaultConfig{
			Enabled: false,
		},
		cacheEnabled: true,
	}
}
