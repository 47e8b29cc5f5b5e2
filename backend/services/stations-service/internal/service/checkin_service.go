package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vego/backend/services/stations-service/internal/models"
	"vego/backend/services/stations-service/internal/notify"
)

// DefaultProximityKm is the hard business rule for check-in eligibility:
// reports farther than 300 m from the station are rejected.
const DefaultProximityKm = 0.3

// StationStore persists the station state produced by check-in and release.
type StationStore interface {
	UpdateStationState(ctx context.Context, id string, status models.Status, connectors []models.Connector, lastCheckin *models.CheckIn) error
}

// Publisher fans an updated station document out to observing clients.
type Publisher interface {
	Publish(ctx context.Context, station models.Station) error
}

// ReminderScheduler arms and cancels advisory expiry reminders.
type ReminderScheduler interface {
	Schedule(fireAfter time.Duration, reminder notify.Reminder)
	Cancel(stationID, connectorID string)
}

// CheckInService applies user status reports to stations and reverts
// occupied connectors. All repository writes go through UpdateStationState so
// connectors, derived status and receipt land in one atomic update.
type CheckInService struct {
	store       StationStore
	publisher   Publisher
	reminders   ReminderScheduler
	proximityKm float64
	now         func() time.Time
	logger      *zap.Logger
}

// CheckInInput is a candidate status report. Station is the caller's current
// read of the target document; DistanceKm is the reporter's distance to it.
type CheckInInput struct {
	Station           models.Station
	UserID            string
	UserName          string
	Status            models.Status
	ConnectorID       string
	EstimatedDuration int
	DistanceKm        float64
}

// NewCheckInService builds the service. proximityKm <= 0 falls back to the
// default threshold; now == nil uses the wall clock.
func NewCheckInService(
	store StationStore,
	publisher Publisher,
	reminders ReminderScheduler,
	proximityKm float64,
	now func() time.Time,
	logger *zap.Logger,
) *CheckInService {
	if proximityKm <= 0 {
		proximityKm = DefaultProximityKm
	}
	if now == nil {
		now = time.Now
	}
	return &CheckInService{
		store:       store,
		publisher:   publisher,
		reminders:   reminders,
		proximityKm: proximityKm,
		now:         now,
		logger:      logger,
	}
}

// SubmitCheckIn validates and applies a status report. No side effects occur
// on validation failure. On success the returned station reflects the
// persisted state.
func (s *CheckInService) SubmitCheckIn(ctx context.Context, input CheckInInput) (*models.Station, error) {
	if input.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if !input.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if input.DistanceKm > s.proximityKm {
		return nil, ErrTooFar
	}

	station := input.Station
	station.Connectors = station.CloneConnectors()

	var (
		target   *models.Connector
		position int
	)
	if input.ConnectorID != "" {
		target, position = station.Connector(input.ConnectorID)
		if target == nil || !eligible(target.Status, input.Status) {
			return nil, ErrInvalidConnectorSelection
		}
	} else if anyEligible(station.Connectors, input.Status) {
		// Eligible connectors exist: the report must say which one it is about.
		return nil, ErrInvalidConnectorSelection
	}

	duration := 0
	if input.Status == models.StatusOccupied && input.EstimatedDuration > 0 {
		duration = input.EstimatedDuration
	}

	receipt := &models.CheckIn{
		UserID:            input.UserID,
		UserName:          input.UserName,
		Status:            input.Status,
		Timestamp:         s.now().UnixMilli(),
		EstimatedDuration: duration,
	}
	if target != nil {
		receipt.ConnectorID = target.ID
		receipt.ConnectorLabel = models.ConnectorLabel(position)
		target.Status = input.Status
		targetReceipt := *receipt
		target.LastCheckin = &targetReceipt
	}

	station.LastCheckin = receipt
	station.Recompute()

	if err := s.store.UpdateStationState(ctx, station.ID, station.Status, station.Connectors, station.LastCheckin); err != nil {
		return nil, storeErr(err)
	}

	s.publish(ctx, station)

	if s.reminders != nil && target != nil && input.Status == models.StatusOccupied && duration > 0 {
		s.reminders.Schedule(time.Duration(duration)*time.Minute, notify.Reminder{
			StationID:      station.ID,
			StationName:    station.Name,
			ConnectorID:    target.ID,
			ConnectorLabel: receipt.ConnectorLabel,
			UserID:         input.UserID,
			Duration:       duration,
		})
	}

	return &station, nil
}

// Release reverts a connector to available and clears its active receipt.
// Idempotent: releasing an already-available connector re-asserts its state.
func (s *CheckInService) Release(ctx context.Context, station models.Station, connectorID string) (*models.Station, error) {
	station.Connectors = station.CloneConnectors()

	target, _ := station.Connector(connectorID)
	if target == nil {
		return nil, ErrConnectorNotFound
	}

	target.Status = models.StatusAvailable
	target.LastCheckin = nil
	if station.LastCheckin != nil && station.LastCheckin.ConnectorID == connectorID {
		station.LastCheckin = nil
	}
	station.Recompute()

	if err := s.store.UpdateStationState(ctx, station.ID, station.Status, station.Connectors, station.LastCheckin); err != nil {
		return nil, storeErr(err)
	}

	s.publish(ctx, station)

	if s.reminders != nil {
		s.reminders.Cancel(station.ID, connectorID)
	}

	return &station, nil
}

// publish pushes the new state to the subscription channel. The store is
// authoritative; a failed publish only delays observers until the next write.
func (s *CheckInService) publish(ctx context.Context, station models.Station) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, station); err != nil {
		s.logger.Warn("failed to publish station update",
			zap.String("station_id", station.ID),
			zap.Error(err),
		)
	}
}

// eligible reports whether a connector in current state may be reported as
// target: occupied needs a currently available connector, broken needs one
// not already broken, available needs one not already available.
func eligible(current, target models.Status) bool {
	switch target {
	case models.StatusOccupied:
		return current == models.StatusAvailable
	case models.StatusBroken:
		return current != models.StatusBroken
	case models.StatusAvailable:
		return current != models.StatusAvailable
	}
	return false
}

func anyEligible(connectors []models.Connector, target models.Status) bool {
	for _, c := range connectors {
		if eligible(c.Status, target) {
			return true
		}
	}
	return false
}
