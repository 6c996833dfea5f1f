package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
)

func TestManager_LoadKeyFiles(t *testing.T) {
	dir := t.TempDir()
	keysDir := filepath.Join(dir, "keys")
	if err := os.MkdirAll(keysDir, 0755); err != nil {
		t.Fatal(err)
	}

	apiKeys := "[semrush_api_key]\nvalue = \"sk-test-12345\"\ndescription = \"SEMrush credential\"\n\n[empty_key]\nvalue = \"\"\n"
	if err := os.WriteFile(filepath.Join(keysDir, "api.toml"), []byte(apiKeys), 0644); err != nil {
		t.Fatal(err)
	}
	// A malformed file must not block the rest
	if err := os.WriteFile(filepath.Join(keysDir, "broken.toml"), []byte("[[["), 0644); err != nil {
		t.Fatal(err)
	}
	// Non-TOML files are ignored
	if err := os.WriteFile(filepath.Join(keysDir, "readme.txt"), []byte("notes"), 0644); err != nil {
		t.Fatal(err)
	}

	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: filepath.Join(dir, "data")})
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	ctx := context.Background()
	if err := manager.LoadKeyFiles(ctx, keysDir); err != nil {
		t.Fatalf("Failed to load key files: %v", err)
	}

	pair, err := manager.KVStorage().GetPair(ctx, "semrush_api_key")
	if err != nil {
		t.Fatal(err)
	}
	if pair.Value != "sk-test-12345" {
		t.Errorf("Expected loaded value, got %q", pair.Value)
	}
	if pair.Description != "SEMrush credential" {
		t.Errorf("Expected loaded description, got %q", pair.Description)
	}

	// Empty values are skipped
	if _, err := manager.KVStorage().GetPair(ctx, "empty_key"); err == nil {
		t.Error("Expected empty-valued key to be skipped")
	}

	// Reloading with a changed value refreshes the stored pair
	updated := "[semrush_api_key]\nvalue = \"sk-test-67890\"\n"
	if err := os.WriteFile(filepath.Join(keysDir, "api.toml"), []byte(updated), 0644); err != nil {
		t.Fatal(err)
	}
	if err := manager.LoadKeyFiles(ctx, keysDir); err != nil {
		t.Fatalf("Failed to reload key files: %v", err)
	}

	pair, err = manager.KVStorage().GetPair(ctx, "semrush_api_key")
	if err != nil {
		t.Fatal(err)
	}
	if pair.Value != "sk-test-67890" {
		t.Errorf("Expected refreshed value, got %q", pair.Value)
	}

	// A missing directory is not an error
	if err := manager.LoadKeyFiles(ctx, filepath.Join(dir, "absent")); err != nil {
		t.Errorf("Expected missing directory to be skipped, got %v", err)
	}
}
