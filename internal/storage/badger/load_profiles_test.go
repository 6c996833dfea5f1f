package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

func TestManager_LoadCrawlProfiles(t *testing.T) {
	dir := t.TempDir()
	profileDir := filepath.Join(dir, "profiles")
	if err := os.MkdirAll(profileDir, 0755); err != nil {
		t.Fatal(err)
	}

	aggressive := "page_limit: 5000\ncrawl_subdomains: false\ndisallow:\n  - /admin\n"
	if err := os.WriteFile(filepath.Join(profileDir, "Aggressive.yaml"), []byte(aggressive), 0644); err != nil {
		t.Fatal(err)
	}
	// A malformed file must not block the rest
	if err := os.WriteFile(filepath.Join(profileDir, "broken.yaml"), []byte(":::"), 0644); err != nil {
		t.Fatal(err)
	}

	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: filepath.Join(dir, "data")})
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	ctx := context.Background()
	if err := manager.LoadCrawlProfiles(ctx, profileDir); err != nil {
		t.Fatalf("Failed to load crawl profiles: %v", err)
	}

	// File-backed profile, name lowercased from the file name
	profile, err := manager.GetCrawlProfile(ctx, "aggressive")
	if err != nil {
		t.Fatal(err)
	}
	if profile.PageLimit != 5000 {
		t.Errorf("Expected page limit 5000, got %d", profile.PageLimit)
	}
	if profile.CrawlSubdomains {
		t.Error("Expected crawl_subdomains override to false")
	}
	if profile.UserAgentType != 2 {
		t.Errorf("Expected default user agent type 2, got %d", profile.UserAgentType)
	}
	if len(profile.Disallow) != 1 || profile.Disallow[0] != "/admin" {
		t.Errorf("Expected disallow list to load, got %v", profile.Disallow)
	}

	// Default profile is seeded alongside
	fallback, err := manager.GetCrawlProfile(ctx, models.DefaultCrawlProfileName)
	if err != nil {
		t.Fatal(err)
	}
	if fallback.PageLimit != models.DefaultPageLimit {
		t.Errorf("Expected default page limit, got %d", fallback.PageLimit)
	}

	// Unknown names fall back to the built-in default
	unknown, err := manager.GetCrawlProfile(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if unknown.Name != models.DefaultCrawlProfileName {
		t.Errorf("Expected default fallback for unknown profile, got %s", unknown.Name)
	}

	profiles, err := manager.ListCrawlProfiles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 2 {
		t.Errorf("Expected 2 stored profiles, got %d", len(profiles))
	}
}
