package turso

import (
	"database/sql"

	"github.com/emiliopalmerini/shinyhunt/internal/ports"
)

// Repositories holds all turso repository implementations as port interfaces.
type Repositories struct {
	HuntState  ports.PersistenceBackend
	Collection ports.CollectionStore
}

// NewRepositories creates all turso repository implementations from a database connection.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		HuntState:  NewHuntStateRepository(db),
		Collection: NewCollectionRepository(db),
	}
}
