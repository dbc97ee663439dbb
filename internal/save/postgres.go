package save

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/timeportal/engine/internal/memory"
)

// Schema is the SQL DDL for the game_saves table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS game_saves (
    slot       TEXT PRIMARY KEY,
    player     JSONB NOT NULL DEFAULT '{}',
    records    JSONB NOT NULL DEFAULT '{}',
    saved_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_game_saves_saved_at ON game_saves(saved_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. Player state and
// memory records are serialised as JSONB, so the schema survives additions to
// either structure without migrations.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] that uses the given connection or
// pool. The caller is responsible for calling [PostgresStore.Migrate] before
// issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the game_saves table and index
// if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("save: migrate: %w", err)
	}
	return nil
}

// Save implements [Store] with an upsert, so re-saving a slot replaces it.
func (s *PostgresStore) Save(ctx context.Context, slot string, snap *Snapshot) error {
	if slot == "" {
		return fmt.Errorf("save: slot name must not be empty")
	}
	if snap == nil {
		return fmt.Errorf("save: snapshot must not be nil")
	}

	playerJSON, err := json.Marshal(snap.Player)
	if err != nil {
		return fmt.Errorf("save: marshal player: %w", err)
	}
	recordsJSON, err := json.Marshal(emptyRecords(snap))
	if err != nil {
		return fmt.Errorf("save: marshal records: %w", err)
	}

	const query = `
		INSERT INTO game_saves (slot, player, records)
		VALUES ($1, $2, $3)
		ON CONFLICT (slot) DO UPDATE SET
			player = EXCLUDED.player,
			records = EXCLUDED.records,
			saved_at = now()
		RETURNING saved_at`

	if err := s.db.QueryRow(ctx, query, slot, playerJSON, recordsJSON).Scan(&snap.SavedAt); err != nil {
		return fmt.Errorf("save: save %q: %w", slot, err)
	}
	return nil
}

// Load implements [Store].
func (s *PostgresStore) Load(ctx context.Context, slot string) (*Snapshot, error) {
	const query = `SELECT player, records, saved_at FROM game_saves WHERE slot = $1`

	var snap Snapshot
	var playerJSON, recordsJSON []byte

	err := s.db.QueryRow(ctx, query, slot).Scan(&playerJSON, &recordsJSON, &snap.SavedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("save: load %q: %w", slot, ErrNotFound)
		}
		return nil, fmt.Errorf("save: load %q: %w", slot, err)
	}

	if err := json.Unmarshal(playerJSON, &snap.Player); err != nil {
		return nil, fmt.Errorf("save: unmarshal player: %w", err)
	}
	if err := json.Unmarshal(recordsJSON, &snap.Records); err != nil {
		return nil, fmt.Errorf("save: unmarshal records: %w", err)
	}
	return &snap, nil
}

// Delete implements [Store]. Deleting a missing slot is not an error.
func (s *PostgresStore) Delete(ctx context.Context, slot string) error {
	const query = `DELETE FROM game_saves WHERE slot = $1`
	if _, err := s.db.Exec(ctx, query, slot); err != nil {
		return fmt.Errorf("save: delete %q: %w", slot, err)
	}
	return nil
}

// List implements [Store].
func (s *PostgresStore) List(ctx context.Context) ([]SlotInfo, error) {
	const query = `SELECT slot, saved_at FROM game_saves ORDER BY saved_at DESC, slot`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("save: list: %w", err)
	}
	defer rows.Close()

	var infos []SlotInfo
	for rows.Next() {
		var info SlotInfo
		if err := rows.Scan(&info.Slot, &info.SavedAt); err != nil {
			return nil, fmt.Errorf("save: list scan: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("save: list: %w", err)
	}
	return infos, nil
}

// emptyRecords returns the snapshot's record map, substituting an empty
// non-nil map so JSON marshalling produces "{}" instead of "null".
func emptyRecords(snap *Snapshot) map[string]*memory.Record {
	if snap.Records == nil {
		return map[string]*memory.Record{}
	}
	return snap.Records
}
