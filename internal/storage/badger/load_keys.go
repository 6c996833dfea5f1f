package badger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// keyFileEntry is one [section] in a key file.
// Format:
// [semrush_api_key]
// value = "some-value"
// description = "optional description"
type keyFileEntry struct {
	Value       string `toml:"value"`
	Description string `toml:"description"`
}

// LoadKeyFiles loads key/value pairs from every TOML file in dirPath into
// the store. Entries are upserted, so editing a key file and restarting
// refreshes the stored value. A missing directory is not an error; key
// files are optional.
func (m *Manager) LoadKeyFiles(ctx context.Context, dirPath string) error {
	if dirPath == "" {
		return nil
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.Debug().Str("dir", dirPath).Msg("Keys directory not found, skipping")
			return nil
		}
		return fmt.Errorf("failed to read keys directory: %w", err)
	}

	loaded := 0
	skipped := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}

		l, s := m.loadKeyFile(ctx, filepath.Join(dirPath, entry.Name()))
		loaded += l
		skipped += s
	}

	m.logger.Debug().
		Str("dir", dirPath).
		Int("loaded", loaded).
		Int("skipped", skipped).
		Msg("Finished loading key files")

	return nil
}

// loadKeyFile parses one key file and upserts its entries.
func (m *Manager) loadKeyFile(ctx context.Context, filePath string) (loaded, skipped int) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to read key file")
		return 0, 1
	}

	var entries map[string]keyFileEntry
	if err := toml.Unmarshal(content, &entries); err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to parse key file")
		return 0, 1
	}

	fileName := filepath.Base(filePath)
	for key, entry := range entries {
		if entry.Value == "" {
			m.logger.Warn().Str("file", fileName).Str("key", key).Msg("Skipping key with empty value")
			skipped++
			continue
		}

		description := entry.Description
		if description == "" {
			description = "Loaded from " + fileName
		}

		if _, err := m.kv.Upsert(ctx, key, entry.Value, description); err != nil {
			m.logger.Error().Err(err).Str("key", key).Msg("Failed to store key")
			skipped++
			continue
		}
		loaded++
	}

	return loaded, skipped
}
