// Package tokenstore persists the four values a browser-style OIDC session
// needs between process runs: the access, refresh and ID tokens and the PKCE
// code verifier of an in-flight login.
//
// SECURITY: slot values are never logged. Only slot names appear in audit
// records. Tokens at rest are protected by file permissions only.
package tokenstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Slot names one of the stored values.
type Slot string

const (
	SlotAccessToken  Slot = "access_token"
	SlotRefreshToken Slot = "refresh_token"
	SlotIDToken      Slot = "id_token"
	SlotPKCEVerifier Slot = "pkce_verifier"
)

// Slots lists every slot in a stable order.
var Slots = []Slot{SlotAccessToken, SlotRefreshToken, SlotIDToken, SlotPKCEVerifier}

// Valid reports whether s is one of the known slots.
func (s Slot) Valid() bool {
	for _, known := range Slots {
		if s == known {
			return true
		}
	}
	return false
}

// Store is a durable key-value area with four named slots.
// Implementations are safe for concurrent use.
type Store interface {
	// Get returns the slot value and whether it is present.
	Get(slot Slot) (string, bool)

	// Set overwrites the slot value.
	Set(slot Slot, value string) error

	// Remove deletes a single slot. Removing an absent slot is not an error.
	Remove(slot Slot) error

	// Clear empties every slot.
	Clear() error

	// Close releases any underlying resources.
	Close() error
}

// Reloader is implemented by stores whose contents can be changed by another
// process. Reload re-reads the durable copy and reports whether it differed
// from the cached one.
type Reloader interface {
	Reload() (bool, error)
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// DefaultDirName is the state directory below the user's config directory.
const DefaultDirName = "userconsole"

// Options configures Open.
type Options struct {
	// Backend defaults to BackendFile.
	Backend Backend

	// Dir is the state directory. Defaults to ~/.config/userconsole.
	Dir string
}

// Open creates the Store selected by opts.
func Open(opts Options) (Store, error) {
	backend := Backend(strings.ToLower(string(opts.Backend)))
	if backend == "" {
		backend = BackendFile
	}

	if backend == BackendMemory {
		return NewMemoryStore(), nil
	}

	dir := opts.Dir
	if dir == "" {
		var err error
		dir, err = DefaultDir()
		if err != nil {
			return nil, err
		}
	}

	switch backend {
	case BackendFile:
		return NewFileStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, SQLiteFileName))
	default:
		return nil, fmt.Errorf("unknown token store backend %q (supported: file, sqlite, memory)", opts.Backend)
	}
}

// DefaultDir returns ~/.config/userconsole.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", DefaultDirName), nil
}

func checkSlot(slot Slot) error {
	if !slot.Valid() {
		return fmt.Errorf("unknown token slot %q", slot)
	}
	return nil
}
