// Package save persists complete game snapshots: every character's memory
// record plus the player's state. Two backends are provided, an in-memory
// store for tests and single-session play, and a PostgreSQL store for
// durable saves.
package save

import (
	"context"
	"errors"
	"time"

	"github.com/timeportal/engine/internal/memory"
	"github.com/timeportal/engine/internal/player"
)

// ErrNotFound is returned by Load when the slot does not exist.
var ErrNotFound = errors.New("save: slot not found")

// Snapshot is one complete game save.
type Snapshot struct {
	// SavedAt is when the snapshot was written.
	SavedAt time.Time `json:"saved_at"`

	// Player is the player's full state at save time.
	Player player.State `json:"player"`

	// Records holds every character's memory record keyed by character ID.
	Records map[string]*memory.Record `json:"records"`
}

// SlotInfo describes one stored save slot.
type SlotInfo struct {
	// Slot is the slot name.
	Slot string `json:"slot"`

	// SavedAt is when the slot was last written.
	SavedAt time.Time `json:"saved_at"`
}

// Store persists and retrieves game snapshots by slot name. Implementations
// must be safe for concurrent use.
type Store interface {
	// Save writes snap under slot, replacing any previous snapshot there.
	Save(ctx context.Context, slot string, snap *Snapshot) error

	// Load returns the snapshot stored under slot, or ErrNotFound.
	Load(ctx context.Context, slot string) (*Snapshot, error)

	// Delete removes slot. Deleting a missing slot is not an error.
	Delete(ctx context.Context, slot string) error

	// List returns all slots, most recently saved first.
	List(ctx context.Context) ([]SlotInfo, error)
}
