// Package cmd provides common initialization for the command-line
// binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/finwatch/sentinel/pkg/persistence"
	"github.com/finwatch/sentinel/pkg/persistence/file"
	"github.com/finwatch/sentinel/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL
// scheme: postgres URLs get PostgreSQL, anything else is treated as a
// filesystem root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}
