package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

// crawlProfileKeyPrefix namespaces crawl profiles inside the key/value store.
const crawlProfileKeyPrefix = "crawl_profile:"

// LoadCrawlProfiles loads crawl profile YAML files from a directory into the
// key/value store. Each file defines one profile named after the file. Parse
// failures are logged and skipped so one bad file cannot block startup. A
// default profile is seeded when none was loaded.
func (m *Manager) LoadCrawlProfiles(ctx context.Context, dirPath string) error {
	loadedCount := 0
	errorCount := 0

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		m.logger.Debug().Str("dir", dirPath).Msg("Crawl profile directory not found, using defaults")
	} else {
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
				continue
			}

			profile, err := m.loadProfileFromFile(filepath.Join(dirPath, name))
			if err != nil {
				m.logger.Warn().Err(err).Str("file", name).Msg("Failed to load crawl profile")
				errorCount++
				continue
			}

			if err := m.SaveCrawlProfile(ctx, profile); err != nil {
				m.logger.Error().Err(err).Str("profile", profile.Name).Msg("Failed to store crawl profile")
				errorCount++
				continue
			}
			loadedCount++
		}
	}

	if err := m.ensureDefaultCrawlProfile(ctx); err != nil {
		return err
	}

	m.logger.Debug().
		Int("loaded", loadedCount).
		Int("errors", errorCount).
		Msg("Finished loading crawl profiles")
	return nil
}

// loadProfileFromFile parses one YAML profile. The profile name comes from
// the file name, not the file body.
func (m *Manager) loadProfileFromFile(filePath string) (*models.CrawlProfile, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	profile := models.DefaultCrawlProfile(0)
	if err := yaml.Unmarshal(content, profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile file: %w", err)
	}

	base := filepath.Base(filePath)
	profile.Name = strings.ToLower(strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml"))
	if profile.PageLimit <= 0 {
		profile.PageLimit = models.DefaultPageLimit
	}
	return profile, nil
}

// SaveCrawlProfile stores a profile as JSON under its namespaced key.
func (m *Manager) SaveCrawlProfile(ctx context.Context, profile *models.CrawlProfile) error {
	if profile.Name == "" {
		return fmt.Errorf("crawl profile name is required")
	}

	value, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode crawl profile: %w", err)
	}

	key := crawlProfileKeyPrefix + strings.ToLower(profile.Name)
	if err := m.kv.Set(ctx, key, string(value), "Crawl profile "+profile.Name); err != nil {
		return fmt.Errorf("failed to store crawl profile: %w", err)
	}
	return nil
}

// GetCrawlProfile returns the named profile, or the built-in default when the
// name is unknown.
func (m *Manager) GetCrawlProfile(ctx context.Context, name string) (*models.CrawlProfile, error) {
	if name == "" {
		name = models.DefaultCrawlProfileName
	}

	value, err := m.kv.Get(ctx, crawlProfileKeyPrefix+strings.ToLower(name))
	if err == interfaces.ErrKeyNotFound {
		return models.DefaultCrawlProfile(0), nil
	}
	if err != nil {
		return nil, err
	}

	var profile models.CrawlProfile
	if err := json.Unmarshal([]byte(value), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode crawl profile %s: %w", name, err)
	}
	return &profile, nil
}

func (m *Manager) ListCrawlProfiles(ctx context.Context) ([]*models.CrawlProfile, error) {
	pairs, err := m.kv.ListByPrefix(ctx, crawlProfileKeyPrefix)
	if err != nil {
		return nil, err
	}

	profiles := make([]*models.CrawlProfile, 0, len(pairs))
	for _, pair := range pairs {
		var profile models.CrawlProfile
		if err := json.Unmarshal([]byte(pair.Value), &profile); err != nil {
			m.logger.Warn().Err(err).Str("key", pair.Key).Msg("Skipping malformed crawl profile")
			continue
		}
		profiles = append(profiles, &profile)
	}
	return profiles, nil
}

func (m *Manager) ensureDefaultCrawlProfile(ctx context.Context) error {
	_, err := m.kv.Get(ctx, crawlProfileKeyPrefix+models.DefaultCrawlProfileName)
	if err == nil {
		return nil
	}
	if err != interfaces.ErrKeyNotFound {
		return err
	}

	profile := models.DefaultCrawlProfile(0)
	if err := m.SaveCrawlProfile(ctx, profile); err != nil {
		return err
	}
	m.logger.Debug().Msg("Seeded default crawl profile")
	return nil
}
