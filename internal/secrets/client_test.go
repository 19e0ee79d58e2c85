package secrets

import (
	"context"
	"testing"

	"stock-insight-backend/config"
)

func TestDisabledClientStoreLoadRoundTrip(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	if _, err := client.Load(ctx); err == nil {
		t.Fatal("expected error loading from empty disabled client")
	}

	err := client.Store(ctx, AppSecrets{JWTSecret: "s3cret", DBPassword: "pgpass"})
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}

	loaded, err := client.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.JWTSecret != "s3cret" || loaded.DBPassword != "pgpass" {
		t.Errorf("unexpected secrets: %+v", loaded)
	}

	client.ClearCache()
	if _, err := client.Load(ctx); err == nil {
		t.Fatal("expected error after cache clear")
	}
}

func TestDisabledClientHydrateKeepsConfigValues(t *testing.T) {
	client := NewMockClient()

	cfg := &config.Config{}
	cfg.AuthConfig.JWTSecret = "from-env"
	cfg.DatabaseConfig.Password = "env-pass"

	if err := client.Hydrate(context.Background(), cfg); err != nil {
		t.Fatalf("hydrate failed: %v", err)
	}

	if cfg.AuthConfig.JWTSecret != "from-env" {
		t.Errorf("jwt secret should be untouched, got %q", cfg.AuthConfig.JWTSecret)
	}
	if cfg.DatabaseConfig.Password != "env-pass" {
		t.Errorf("db password should be untouched, got %q", cfg.DatabaseConfig.Password)
	}
}

func TestDisabledClientHealth(t *testing.T) {
	client := NewMockClient()
	if err := client.Health(context.Background()); err != nil {
		t.Errorf("disabled client health should pass, got %v", err)
	}
	if client.IsEnabled() {
		t.Error("mock client should report disabled")
	}
}
