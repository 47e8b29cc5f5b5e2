package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"vego/backend/services/stations-service/internal/models"
)

const (
	// DefaultSweepInterval between expiry sweeps.
	DefaultSweepInterval = 60 * time.Second
	// DefaultGraceMinutes added to the stated duration before a check-in is
	// treated as expired.
	DefaultGraceMinutes = 3
)

// StationSource exposes the locally observed station collection.
type StationSource interface {
	Snapshot() []models.Station
	Subscribe(fn func([]models.Station)) func()
}

// Releaser reverts an expired occupied connector.
type Releaser interface {
	Release(ctx context.Context, station models.Station, connectorID string) (*models.Station, error)
}

// ExpiryMonitor sweeps the observed stations on a fixed cadence and releases
// connectors whose occupied check-in has outlived its estimate plus grace.
// Best effort: failures are logged and the connector is retried on the next
// tick, since the expired condition still holds.
type ExpiryMonitor struct {
	source   StationSource
	releaser Releaser
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu         sync.Mutex
	inProgress map[string]struct{}
	wg         sync.WaitGroup
}

// NewExpiryMonitor builds the monitor. Non-positive interval or grace fall
// back to defaults; now == nil uses the wall clock.
func NewExpiryMonitor(
	source StationSource,
	releaser Releaser,
	interval time.Duration,
	graceMinutes int,
	now func() time.Time,
	logger *zap.Logger,
) *ExpiryMonitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if graceMinutes < 0 {
		graceMinutes = DefaultGraceMinutes
	}
	if now == nil {
		now = time.Now
	}
	return &ExpiryMonitor{
		source:     source,
		releaser:   releaser,
		interval:   interval,
		grace:      time.Duration(graceMinutes) * time.Minute,
		now:        now,
		logger:     logger,
		inProgress: make(map[string]struct{}),
	}
}

// Run sweeps until the context is cancelled: once immediately, on every tick,
// and whenever the observed station list changes. No release is dispatched
// after Run returns.
func (m *ExpiryMonitor) Run(ctx context.Context) error {
	wake := make(chan struct{}, 1)
	unsubscribe := m.source.Subscribe(func([]models.Station) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()
	defer m.wg.Wait()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(ctx)
		case <-wake:
			m.Sweep(ctx)
		}
	}
}

// Sweep scans the current snapshot once and dispatches releases for expired
// check-ins. A station already being released by a prior, still in-flight
// sweep is skipped.
func (m *ExpiryMonitor) Sweep(ctx context.Context) {
	now := m.now()

	for _, station := range m.source.Snapshot() {
		connectorID, ok := m.expiredConnector(station, now)
		if !ok {
			continue
		}
		if !m.begin(station.ID) {
			continue
		}

		m.wg.Add(1)
		go func(station models.Station, connectorID string) {
			defer m.wg.Done()
			defer m.finish(station.ID)

			if _, err := m.releaser.Release(ctx, station, connectorID); err != nil {
				m.logger.Warn("automatic release failed, will retry next sweep",
					zap.String("station_id", station.ID),
					zap.String("connector_id", connectorID),
					zap.Error(err),
				)
				return
			}
			m.logger.Info("released expired check-in",
				zap.String("station_id", station.ID),
				zap.String("connector_id", connectorID),
			)
		}(station, connectorID)
	}
}

// expiredConnector returns the first occupied connector whose receipt has a
// duration and connector id and whose estimate plus grace has elapsed.
func (m *ExpiryMonitor) expiredConnector(station models.Station, now time.Time) (string, bool) {
	for _, c := range station.Connectors {
		if c.Status != models.StatusOccupied || c.LastCheckin == nil {
			continue
		}
		checkin := c.LastCheckin
		if checkin.EstimatedDuration <= 0 || checkin.ConnectorID == "" {
			continue
		}
		expiresAt := time.UnixMilli(checkin.Timestamp).
			Add(time.Duration(checkin.EstimatedDuration)*time.Minute + m.grace)
		if !now.Before(expiresAt) {
			return c.ID, true
		}
	}
	return "", false
}

func (m *ExpiryMonitor) begin(stationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inProgress[stationID]; busy {
		return false
	}
	m.inProgress[stationID] = struct{}{}
	return true
}

func (m *ExpiryMonitor) finish(stationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inProgress, stationID)
}
