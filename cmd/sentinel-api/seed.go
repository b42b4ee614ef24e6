package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/finwatch/sentinel/pkg/config"
	"github.com/finwatch/sentinel/pkg/persistence"
)

// seedModels upserts the configured fraud model catalogue so evaluations can
// run immediately after boot. Detection counters of existing models are
// preserved by the upsert.
func seedModels(ctx context.Context, logger *slog.Logger, persist persistence.Persistence, cfg *config.Config) {
	repo := persist.FraudModelRepository()

	for _, model := range cfg.Models(time.Now().UTC()) {
		if existing, err := repo.ModelByID(ctx, model.ID); err == nil {
			model.CreatedAt = existing.CreatedAt
			model.DetectionCount = existing.DetectionCount
		}

		if err := repo.SaveModel(ctx, model); err != nil {
			logger.ErrorContext(ctx, "Failed to seed fraud model", "model_id", model.ID, "error", err)
			continue
		}

		logger.DebugContext(ctx, "Seeded fraud model", "model_id", model.ID, "model_type", model.ModelType)
	}
}
