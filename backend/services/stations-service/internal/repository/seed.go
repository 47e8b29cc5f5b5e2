package repository

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"vego/backend/services/stations-service/internal/models"
)

//go:embed data/ute-stations.json
var seedFS embed.FS

// SeedStations loads the bundled reference dataset and returns it normalized.
func SeedStations() ([]models.Station, error) {
	data, err := seedFS.ReadFile("data/ute-stations.json")
	if err != nil {
		return nil, fmt.Errorf("repository: read seed data: %w", err)
	}
	var stations []models.Station
	if err := json.Unmarshal(data, &stations); err != nil {
		return nil, fmt.Errorf("repository: decode seed data: %w", err)
	}
	for i := range stations {
		stations[i].Normalize()
	}
	return stations, nil
}

// Reconcile syncs the stored collection with the reference dataset: stations
// no longer present in the dataset are deleted, every dataset station is
// upserted. Metadata is always refreshed; live occupancy state is preserved
// for stations that already exist.
func (r *StationRepository) Reconcile(ctx context.Context, reference []models.Station, logger *zap.Logger) error {
	existing, err := r.ReadAll(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(reference))
	for _, station := range reference {
		known[station.ID] = struct{}{}
	}

	for _, station := range existing {
		if _, ok := known[station.ID]; ok {
			continue
		}
		if err := r.Delete(ctx, station.ID); err != nil {
			return err
		}
		logger.Info("removed stale station", zap.String("station_id", station.ID))
	}

	for i := range reference {
		if err := r.Upsert(ctx, &reference[i]); err != nil {
			return err
		}
	}

	logger.Info("station reconciliation complete",
		zap.Int("reference", len(reference)),
		zap.Int("previously_stored", len(existing)),
	)
	return nil
}
