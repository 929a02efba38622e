package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence/postgresql"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence/sqlite"
)

var supportedPersistenceProviders = []string{"postgres", "postgresql", "sqlite"}

// NewPersistence selects a storage backend from the database URL scheme.
// PostgreSQL URLs go to the PostgreSQL backend; everything else (sqlite://
// URLs, bare file paths, :memory:) is treated as SQLite.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)

	switch provider {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return sqlite.NewPersistence(ctx, logger, strings.TrimPrefix(databaseURL, "sqlite://"))
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "sqlite"
}
