package turso

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
	"github.com/emiliopalmerini/shinyhunt/internal/util"
)

const maxStreamRetries = 2

// HuntStateRepository stores the hunt registry snapshot, one row per live
// session plus a single meta row carrying the revision.
type HuntStateRepository struct {
	db *sql.DB
}

func NewHuntStateRepository(db *sql.DB) *HuntStateRepository {
	return &HuntStateRepository{db: db}
}

// Load returns the stored snapshot, or nil when nothing was ever saved.
func (r *HuntStateRepository) Load(ctx context.Context) (*domain.Snapshot, error) {
	return WithRetry(ctx, maxStreamRetries, func() (*domain.Snapshot, error) {
		return r.load(ctx)
	})
}

func (r *HuntStateRepository) load(ctx context.Context) (*domain.Snapshot, error) {
	var revision int64
	err := r.db.QueryRowContext(ctx, `SELECT revision FROM hunt_state_meta WHERE id = 1`).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot revision: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, pokemon_key, pokemon_data, game, method, ball, mark, notes, phase,
		       modifiers, checks, increment, total_elapsed_ms, started_at, status, paused,
		       timer_anchor, last_check_anchor, accumulated_elapsed_ms
		FROM hunt_sessions
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hunt sessions: %w", err)
	}
	defer rows.Close()

	snap := domain.NewSnapshot()
	snap.Revision = revision
	for rows.Next() {
		var (
			h                        domain.Hunt
			pokemonData              sql.NullString
			modifiers, startedAt     string
			status                   string
			paused                   int64
			timerAnchor, checkAnchor sql.NullString
			accumulated              int64
		)
		if err := rows.Scan(&h.ID, &h.Pokemon.Key, &pokemonData, &h.Game, &h.Method, &h.Ball, &h.Mark, &h.Notes, &h.Phase,
			&modifiers, &h.Checks, &h.Increment, &h.TotalElapsedMs, &startedAt, &status, &paused,
			&timerAnchor, &checkAnchor, &accumulated); err != nil {
			return nil, fmt.Errorf("failed to scan hunt session: %w", err)
		}

		if pokemonData.Valid {
			h.Pokemon.Data = json.RawMessage(pokemonData.String)
		}
		if err := json.Unmarshal([]byte(modifiers), &h.Modifiers); err != nil {
			return nil, fmt.Errorf("failed to decode modifiers of %s: %w", h.ID, err)
		}
		h.StartedAt = util.ParseTimestamp(startedAt)
		h.Status = domain.Status(status)
		h.Paused = paused == 1

		if checkAnchor.Valid {
			h.LastCheckAnchor = util.ParseTimestamp(checkAnchor.String)
			snap.LastCheckAnchors[h.ID] = h.LastCheckAnchor
		}
		if timerAnchor.Valid {
			snap.TimerAnchors[h.ID] = util.ParseTimestamp(timerAnchor.String)
		}
		snap.AccumulatedElapsedMs[h.ID] = accumulated
		if h.Paused {
			snap.PausedIDs[h.ID] = true
		}
		snap.Increments[h.ID] = h.Increment
		snap.Sessions = append(snap.Sessions, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hunt sessions: %w", err)
	}
	return snap, nil
}

// Save replaces the stored snapshot in one transaction. A snapshot whose
// revision is not newer than the stored one is ignored.
func (r *HuntStateRepository) Save(ctx context.Context, snap *domain.Snapshot) error {
	_, err := WithRetry(ctx, maxStreamRetries, func() (struct{}, error) {
		return struct{}{}, r.save(ctx, snap)
	})
	return err
}

func (r *HuntStateRepository) save(ctx context.Context, snap *domain.Snapshot) error {
	snap.Normalize()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored int64
	err = tx.QueryRowContext(ctx, `SELECT revision FROM hunt_state_meta WHERE id = 1`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to get snapshot revision: %w", err)
	case snap.Revision <= stored:
		return nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM hunt_sessions`); err != nil {
		return fmt.Errorf("failed to clear hunt sessions: %w", err)
	}

	for i, h := range snap.Sessions {
		if err := insertSession(ctx, tx, snap, i, h); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO hunt_state_meta (id, revision, saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET revision = excluded.revision, saved_at = excluded.saved_at
	`, snap.Revision, util.FormatTimestamp(time.Now())); err != nil {
		return fmt.Errorf("failed to update snapshot revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func insertSession(ctx context.Context, tx *sql.Tx, snap *domain.Snapshot, position int, h domain.Hunt) error {
	modifiers, err := json.Marshal(h.Modifiers.Clone())
	if err != nil {
		return fmt.Errorf("failed to encode modifiers of %s: %w", h.ID, err)
	}

	increment := h.Increment
	if inc, ok := snap.Increments[h.ID]; ok {
		increment = inc
	}
	checkAnchor := h.LastCheckAnchor
	if a, ok := snap.LastCheckAnchors[h.ID]; ok {
		checkAnchor = a
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO hunt_sessions (
			id, position, pokemon_key, pokemon_data, game, method, ball, mark, notes, phase,
			modifiers, checks, increment, total_elapsed_ms, started_at, status, paused,
			timer_anchor, last_check_anchor, accumulated_elapsed_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		h.ID, position, h.Pokemon.Key, util.NullString(string(h.Pokemon.Data)),
		h.Game, h.Method, h.Ball, h.Mark, h.Notes, h.Phase,
		string(modifiers), h.Checks, max(1, increment), h.TotalElapsedMs,
		util.FormatTimestamp(h.StartedAt), string(h.Status), util.BoolToInt64(snap.PausedIDs[h.ID] || h.Paused),
		nullTime(snap.TimerAnchors, h.ID), util.NullString(util.FormatTimestamp(checkAnchor)),
		snap.AccumulatedElapsedMs[h.ID],
	)
	if err != nil {
		return fmt.Errorf("failed to insert hunt session %s: %w", h.ID, err)
	}
	return nil
}

func nullTime(m map[string]time.Time, id string) sql.NullString {
	t, ok := m[id]
	if !ok {
		return sql.NullString{}
	}
	return util.NullString(util.FormatTimestamp(t))
}
