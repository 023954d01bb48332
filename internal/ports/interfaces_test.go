package ports_test

import (
	"testing"

	"github.com/emiliopalmerini/shinyhunt/internal/adapters/otel"
	"github.com/emiliopalmerini/shinyhunt/internal/adapters/storage"
	"github.com/emiliopalmerini/shinyhunt/internal/adapters/turso"
	"github.com/emiliopalmerini/shinyhunt/internal/odds"
	"github.com/emiliopalmerini/shinyhunt/internal/ports"
)

// Compile-time interface conformance checks.
// These verify that concrete adapters properly implement their port interfaces.

func TestHuntStateRepositoryConformance(t *testing.T) {
	var _ ports.PersistenceBackend = (*turso.HuntStateRepository)(nil)
}

func TestSnapshotStorageConformance(t *testing.T) {
	var _ ports.PersistenceBackend = (*storage.SnapshotStorage)(nil)
}

func TestCollectionRepositoryConformance(t *testing.T) {
	var _ ports.CollectionStore = (*turso.CollectionRepository)(nil)
}

func TestOddsEngineConformance(t *testing.T) {
	var _ ports.OddsEngine = (*odds.Engine)(nil)
}

func TestMetricsExporterConformance(t *testing.T) {
	var _ ports.MetricsExporter = (*otel.Exporter)(nil)
	var _ ports.MetricsExporter = (*otel.NoOpExporter)(nil)
}
