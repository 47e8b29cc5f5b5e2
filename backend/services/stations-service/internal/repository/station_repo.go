package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"vego/backend/services/stations-service/internal/models"
)

// StationRepository persists station documents. Connectors and the legacy
// station-level receipt are stored as JSONB so a status write replaces the
// whole document state in one statement, matching the document-store
// semantics the mobile clients observe.
type StationRepository struct {
	db *sql.DB
}

// NewStationRepository returns repository.
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db}
}

// EnsureSchema creates the stations table when missing.
func (r *StationRepository) EnsureSchema(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS stations (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			address      TEXT NOT NULL DEFAULT '',
			latitude     DOUBLE PRECISION NOT NULL,
			longitude    DOUBLE PRECISION NOT NULL,
			operator     TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'available',
			connectors   JSONB NOT NULL DEFAULT '[]',
			last_checkin JSONB,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("repository: ensure schema: %w", err)
	}
	return nil
}

// ReadAll returns every station, normalized to the current schema.
func (r *StationRepository) ReadAll(ctx context.Context) ([]models.Station, error) {
	const query = `
		SELECT id, name, address, latitude, longitude, operator, status, connectors, last_checkin
		FROM stations
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: read stations: %w", err)
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		station, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, *station)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: read stations: %w", err)
	}
	return stations, nil
}

// Get returns one station by id. sql.ErrNoRows when absent.
func (r *StationRepository) Get(ctx context.Context, id string) (*models.Station, error) {
	const query = `
		SELECT id, name, address, latitude, longitude, operator, status, connectors, last_checkin
		FROM stations
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanStation(row)
}

// UpdateStationState writes the connector array, derived aggregate status and
// legacy receipt slot as one atomic partial update. The three fields always
// travel together so a persisted document can never disagree with itself.
func (r *StationRepository) UpdateStationState(ctx context.Context, id string, status models.Status, connectors []models.Connector, lastCheckin *models.CheckIn) error {
	connectorsJSON, err := json.Marshal(connectors)
	if err != nil {
		return fmt.Errorf("repository: encode connectors: %w", err)
	}
	var checkinJSON []byte
	if lastCheckin != nil {
		checkinJSON, err = json.Marshal(lastCheckin)
		if err != nil {
			return fmt.Errorf("repository: encode checkin: %w", err)
		}
	}

	const query = `
		UPDATE stations
		SET status = $2,
		    connectors = $3::jsonb,
		    last_checkin = $4::jsonb,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, string(status), string(connectorsJSON), nullableJSON(checkinJSON))
	if err != nil {
		return fmt.Errorf("repository: update station %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Upsert inserts a station or refreshes its reference metadata. Live state
// (status, connectors, receipt) is left untouched on conflict so reseeding
// never clobbers crowd-sourced occupancy.
func (r *StationRepository) Upsert(ctx context.Context, station *models.Station) error {
	connectorsJSON, err := json.Marshal(station.Connectors)
	if err != nil {
		return fmt.Errorf("repository: encode connectors: %w", err)
	}

	const query = `
		INSERT INTO stations (id, name, address, latitude, longitude, operator, status, connectors, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			operator = EXCLUDED.operator,
			updated_at = NOW()
	`
	_, err = r.db.ExecContext(ctx, query,
		station.ID,
		station.Name,
		station.Address,
		station.Latitude,
		station.Longitude,
		station.Operator,
		string(station.Status),
		string(connectorsJSON),
	)
	if err != nil {
		return fmt.Errorf("repository: upsert station %s: %w", station.ID, err)
	}
	return nil
}

// Delete removes a station document.
func (r *StationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM stations WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("repository: delete station %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStation(row rowScanner) (*models.Station, error) {
	var (
		station        models.Station
		status         string
		connectorsJSON []byte
		checkinJSON    []byte
	)
	err := row.Scan(
		&station.ID,
		&station.Name,
		&station.Address,
		&station.Latitude,
		&station.Longitude,
		&station.Operator,
		&status,
		&connectorsJSON,
		&checkinJSON,
	)
	if err != nil {
		return nil, err
	}

	station.Status = models.Status(status)
	if len(connectorsJSON) > 0 {
		if err := json.Unmarshal(connectorsJSON, &station.Connectors); err != nil {
			return nil, fmt.Errorf("repository: decode connectors for %s: %w", station.ID, err)
		}
	}
	if len(checkinJSON) > 0 {
		station.LastCheckin = &models.CheckIn{}
		if err := json.Unmarshal(checkinJSON, station.LastCheckin); err != nil {
			return nil, fmt.Errorf("repository: decode checkin for %s: %w", station.ID, err)
		}
	}

	station.Normalize()
	return &station, nil
}

func nullableJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
