package turso

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
	"github.com/emiliopalmerini/shinyhunt/internal/util"
)

// CollectionRepository stores collection records and their caught
// sub-entries.
type CollectionRepository struct {
	db *sql.DB
}

func NewCollectionRepository(db *sql.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// GetEntry returns the record for key, or nil when there is none.
func (r *CollectionRepository) GetEntry(ctx context.Context, key string) (*domain.CollectionEntry, error) {
	return WithRetry(ctx, maxStreamRetries, func() (*domain.CollectionEntry, error) {
		return r.getEntry(ctx, key)
	})
}

func (r *CollectionRepository) getEntry(ctx context.Context, key string) (*domain.CollectionEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT pokemon_key, pokemon_data, created_at, updated_at
		FROM collection_entries WHERE pokemon_key = ?
	`, key)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection entry: %w", err)
	}

	subs, err := r.listSubEntries(ctx, key)
	if err != nil {
		return nil, err
	}
	entry.Entries = subs
	return entry, nil
}

// PutEntry writes the full record for key, replacing its sub-entries.
func (r *CollectionRepository) PutEntry(ctx context.Context, key string, entry *domain.CollectionEntry) error {
	_, err := WithRetry(ctx, maxStreamRetries, func() (struct{}, error) {
		return struct{}{}, r.putEntry(ctx, key, entry)
	})
	return err
}

func (r *CollectionRepository) putEntry(ctx context.Context, key string, entry *domain.CollectionEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO collection_entries (pokemon_key, pokemon_data, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(pokemon_key) DO UPDATE SET
			pokemon_data = excluded.pokemon_data,
			updated_at = excluded.updated_at
	`, key, util.NullString(string(entry.Pokemon.Data)),
		util.FormatTimestamp(entry.CreatedAt), util.FormatTimestamp(entry.UpdatedAt)); err != nil {
		return fmt.Errorf("failed to upsert collection entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM collection_sub_entries WHERE entry_key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear collection sub-entries: %w", err)
	}

	for i, e := range entry.Entries {
		modifiers, err := json.Marshal(e.Modifiers.Clone())
		if err != nil {
			return fmt.Errorf("failed to encode modifiers of %s: %w", e.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO collection_sub_entries (
				id, entry_key, position, hunt_id, caught_at, checks, elapsed_ms,
				game, method, phase, modifiers, ball, mark, notes
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, key, i, e.HuntID, util.FormatTimestamp(e.Date), e.Checks, e.ElapsedMs,
			e.Game, e.Method, e.Phase, string(modifiers), e.Ball, e.Mark, e.Notes); err != nil {
			return fmt.Errorf("failed to insert collection sub-entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collection entry: %w", err)
	}
	return nil
}

// List returns every record ordered by key, sub-entries included.
func (r *CollectionRepository) List(ctx context.Context) ([]*domain.CollectionEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pokemon_key, pokemon_data, created_at, updated_at
		FROM collection_entries ORDER BY pokemon_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection entries: %w", err)
	}

	var entries []*domain.CollectionEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan collection entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to iterate collection entries: %w", err)
	}
	_ = rows.Close()

	for _, e := range entries {
		subs, err := r.listSubEntries(ctx, e.Key)
		if err != nil {
			return nil, err
		}
		e.Entries = subs
	}
	return entries, nil
}

func (r *CollectionRepository) listSubEntries(ctx context.Context, key string) ([]domain.CaughtEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, hunt_id, caught_at, checks, elapsed_ms, game, method, phase,
		       modifiers, ball, mark, notes
		FROM collection_sub_entries
		WHERE entry_key = ?
		ORDER BY position
	`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection sub-entries: %w", err)
	}
	defer rows.Close()

	var subs []domain.CaughtEntry
	for rows.Next() {
		var (
			e                   domain.CaughtEntry
			caughtAt, modifiers string
		)
		if err := rows.Scan(&e.ID, &e.HuntID, &caughtAt, &e.Checks, &e.ElapsedMs, &e.Game, &e.Method, &e.Phase,
			&modifiers, &e.Ball, &e.Mark, &e.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan collection sub-entry: %w", err)
		}
		e.Date = util.ParseTimestamp(caughtAt)
		if err := json.Unmarshal([]byte(modifiers), &e.Modifiers); err != nil {
			return nil, fmt.Errorf("failed to decode modifiers of %s: %w", e.ID, err)
		}
		subs = append(subs, e)
	}
	return subs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*domain.CollectionEntry, error) {
	var (
		e                    domain.CollectionEntry
		pokemonData          sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&e.Key, &pokemonData, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.Pokemon.Key = e.Key
	if pokemonData.Valid {
		e.Pokemon.Data = json.RawMessage(pokemonData.String)
	}
	e.CreatedAt = util.ParseTimestamp(createdAt)
	e.UpdatedAt = util.ParseTimestamp(updatedAt)
	return &e, nil
}
