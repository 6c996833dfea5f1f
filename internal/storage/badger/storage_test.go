package badger

import (
	"testing"

	"github.com/timshannon/badgerhold/v4"
)

// newTestDB opens a throwaway badgerhold store shared by the storage tests.
func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	dir := t.TempDir()
	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})

	return &BadgerDB{store: store}
}
