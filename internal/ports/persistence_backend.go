package ports

import (
	"context"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
)

// PersistenceBackend stores the hunt registry snapshot.
type PersistenceBackend interface {
	// Load returns the stored snapshot, or nil when nothing has been saved
	// yet. A stored snapshot that cannot be decoded yields an error
	// wrapping domain.ErrCorruptSnapshot.
	Load(ctx context.Context) (*domain.Snapshot, error)
	// Save replaces the stored snapshot. Saving a snapshot whose revision
	// is not newer than the stored one is a successful no-op.
	Save(ctx context.Context, snapshot *domain.Snapshot) error
}
