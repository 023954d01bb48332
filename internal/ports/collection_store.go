package ports

import (
	"context"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
)

// CollectionStore holds one collection record per Pokémon key.
type CollectionStore interface {
	// GetEntry returns nil, nil when no record exists for key.
	GetEntry(ctx context.Context, key string) (*domain.CollectionEntry, error)
	PutEntry(ctx context.Context, key string, entry *domain.CollectionEntry) error
	List(ctx context.Context) ([]*domain.CollectionEntry, error)
}
