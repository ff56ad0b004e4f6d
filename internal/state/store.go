// Package state provides the process-scoped key-value store holding
// installation identity: the device id and the migration-completed flag.
// Production code uses the file-backed JSONStore; tests inject MemoryStore.
package state

import "errors"

// Well-known keys.
const (
	DeviceIDKey           = "deviceId"
	MigrationCompletedKey = "migrationCompleted"
)

// Store is a small persistent key-value interface with a lifecycle scoped
// to the hosting process.
type Store interface {
	// Get retrieves a value; ok is false when the key is absent.
	Get(key string) (value string, ok bool)

	// Set persists a value.
	Set(key, value string) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(key string) error

	// Close releases resources.
	Close() error
}

// ErrStateCorrupt is returned when the backing file cannot be parsed.
var ErrStateCorrupt = errors.New("state file is corrupt")
