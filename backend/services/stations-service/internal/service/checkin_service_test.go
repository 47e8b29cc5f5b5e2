package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"vego/backend/services/stations-service/internal/models"
	"vego/backend/services/stations-service/internal/notify"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type storeUpdate struct {
	id          string
	status      models.Status
	connectors  []models.Connector
	lastCheckin *models.CheckIn
}

type fakeStore struct {
	mu      sync.Mutex
	updates []storeUpdate
	err     error
}

func (f *fakeStore) UpdateStationState(_ context.Context, id string, status models.Status, connectors []models.Connector, lastCheckin *models.CheckIn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, storeUpdate{id: id, status: status, connectors: connectors, lastCheckin: lastCheckin})
	return nil
}

func (f *fakeStore) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []models.Station
}

func (f *fakePublisher) Publish(_ context.Context, station models.Station) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, station)
	return nil
}

type scheduledReminder struct {
	fireAfter time.Duration
	reminder  notify.Reminder
}

type fakeReminders struct {
	mu        sync.Mutex
	scheduled []scheduledReminder
	cancelled []string
}

func (f *fakeReminders) Schedule(fireAfter time.Duration, reminder notify.Reminder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, scheduledReminder{fireAfter: fireAfter, reminder: reminder})
}

func (f *fakeReminders) Cancel(stationID, connectorID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, stationID+"/"+connectorID)
}

func newTestService(store *fakeStore, publisher *fakePublisher, reminders *fakeReminders) *CheckInService {
	return NewCheckInService(store, publisher, reminders, 0, func() time.Time { return testNow }, zap.NewNop())
}

func twoConnectorStation() models.Station {
	return models.Station{
		ID:        "ute-pocitos",
		Name:      "UTE Pocitos",
		Latitude:  -34.9076,
		Longitude: -56.1497,
		Status:    models.StatusAvailable,
		Operator:  "UTE",
		Connectors: []models.Connector{
			{ID: "ute-pocitos-c1", Type: "Type2", Power: 22, Status: models.StatusAvailable},
			{ID: "ute-pocitos-c2", Type: "CCS", Power: 50, Status: models.StatusAvailable},
		},
	}
}

func validInput(station models.Station) CheckInInput {
	return CheckInInput{
		Station:           station,
		UserID:            "u-42",
		UserName:          "Ana",
		Status:            models.StatusOccupied,
		ConnectorID:       "ute-pocitos-c2",
		EstimatedDuration: 30,
		DistanceKm:        0.1,
	}
}

func TestSubmitCheckInRequiresIdentity(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, &fakePublisher{}, &fakeReminders{})

	input := validInput(twoConnectorStation())
	input.UserID = ""

	if _, err := svc.SubmitCheckIn(context.Background(), input); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if store.updateCount() != 0 {
		t.Fatal("no write expected on validation failure")
	}
}

func TestSubmitCheckInProximityBoundary(t *testing.T) {
	cases := []struct {
		distance float64
		wantErr  bool
	}{
		{0.29, false},
		{0.3, false},
		{0.31, true},
	}
	for _, tc := range cases {
		store := &fakeStore{}
		svc := newTestService(store, &fakePublisher{}, &fakeReminders{})
		input := validInput(twoConnectorStation())
		input.DistanceKm = tc.distance

		_, err := svc.SubmitCheckIn(context.Background(), input)
		if tc.wantErr {
			if !errors.Is(err, ErrTooFar) {
				t.Fatalf("distance %v: err = %v, want ErrTooFar", tc.distance, err)
			}
			if store.updateCount() != 0 {
				t.Fatalf("distance %v: no write expected", tc.distance)
			}
		} else if err != nil {
			t.Fatalf("distance %v: unexpected error %v", tc.distance, err)
		}
	}
}

func TestSubmitCheckInRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakePublisher{}, &fakeReminders{})
	input := validInput(twoConnectorStation())
	input.Status = models.Status("charging")

	if _, err := svc.SubmitCheckIn(context.Background(), input); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestSubmitCheckInConnectorRules(t *testing.T) {
	cases := []struct {
		name    string
		current models.Status
		target  models.Status
		wantErr bool
	}{
		{"occupy available", models.StatusAvailable, models.StatusOccupied, false},
		{"occupy occupied", models.StatusOccupied, models.StatusOccupied, true},
		{"occupy broken", models.StatusBroken, models.StatusOccupied, true},
		{"break occupied", models.StatusOccupied, models.StatusBroken, false},
		{"break broken", models.StatusBroken, models.StatusBroken, true},
		{"fix broken", models.StatusBroken, models.StatusAvailable, false},
		{"free occupied", models.StatusOccupied, models.StatusAvailable, false},
		{"report available as available", models.StatusAvailable, models.StatusAvailable, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			station := twoConnectorStation()
			station.Connectors[1].Status = tc.current
			station.Recompute()

			input := validInput(station)
			input.Status = tc.target

			svc := newTestService(&fakeStore{}, &fakePublisher{}, &fakeReminders{})
			_, err := svc.SubmitCheckIn(context.Background(), input)
			if tc.wantErr && !errors.Is(err, ErrInvalidConnectorSelection) {
				t.Fatalf("err = %v, want ErrInvalidConnectorSelection", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSubmitCheckInRequiresSelectionWhenEligibleExists(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakePublisher{}, &fakeReminders{})
	input := validInput(twoConnectorStation())
	input.ConnectorID = ""

	if _, err := svc.SubmitCheckIn(context.Background(), input); !errors.Is(err, ErrInvalidConnectorSelection) {
		t.Fatalf("err = %v, want ErrInvalidConnectorSelection", err)
	}
}

func TestSubmitCheckInRejectsUnknownConnector(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakePublisher{}, &fakeReminders{})
	input := validInput(twoConnectorStation())
	input.ConnectorID = "nope"

	if _, err := svc.SubmitCheckIn(context.Background(), input); !errors.Is(err, ErrInvalidConnectorSelection) {
		t.Fatalf("err = %v, want ErrInvalidConnectorSelection", err)
	}
}

func TestSubmitCheckInOccupiedUpdatesOnlyTargetConnector(t *testing.T) {
	store := &fakeStore{}
	publisher := &fakePublisher{}
	reminders := &fakeReminders{}
	svc := newTestService(store, publisher, reminders)

	updated, err := svc.SubmitCheckIn(context.Background(), validInput(twoConnectorStation()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c1, _ := updated.Connector("ute-pocitos-c1")
	c2, _ := updated.Connector("ute-pocitos-c2")
	if c1.Status != models.StatusAvailable || c1.LastCheckin != nil {
		t.Fatal("untargeted connector must be untouched")
	}
	if c2.Status != models.StatusOccupied {
		t.Fatalf("target status = %q, want occupied", c2.Status)
	}
	if c2.LastCheckin == nil {
		t.Fatal("target connector must carry the receipt")
	}
	receipt := c2.LastCheckin
	if receipt.ConnectorID != "ute-pocitos-c2" || receipt.ConnectorLabel != "#2" {
		t.Fatalf("receipt attribution wrong: %+v", receipt)
	}
	if receipt.Timestamp != testNow.UnixMilli() {
		t.Fatalf("receipt timestamp = %d, want %d", receipt.Timestamp, testNow.UnixMilli())
	}
	if receipt.EstimatedDuration != 30 {
		t.Fatalf("receipt duration = %d, want 30", receipt.EstimatedDuration)
	}

	// One connector still available, so the aggregate stays available.
	if updated.Status != models.StatusAvailable {
		t.Fatalf("aggregate = %q, want available", updated.Status)
	}
	if !updated.StatusConsistent() {
		t.Fatal("aggregate must match derived status")
	}

	if store.updateCount() != 1 {
		t.Fatalf("expected one atomic write, got %d", store.updateCount())
	}
	stored := store.updates[0]
	if stored.status != updated.Status || stored.lastCheckin == nil {
		t.Fatal("store write must carry status and receipt together")
	}

	if len(publisher.published) != 1 {
		t.Fatalf("expected one published update, got %d", len(publisher.published))
	}
	if len(reminders.scheduled) != 1 {
		t.Fatalf("expected one reminder, got %d", len(reminders.scheduled))
	}
	if reminders.scheduled[0].fireAfter != 30*time.Minute {
		t.Fatalf("reminder delay = %v, want 30m", reminders.scheduled[0].fireAfter)
	}
}

func TestSubmitCheckInLastAvailableConnectorFlipsAggregate(t *testing.T) {
	station := twoConnectorStation()
	station.Connectors[0].Status = models.StatusOccupied
	station.Recompute()

	svc := newTestService(&fakeStore{}, &fakePublisher{}, &fakeReminders{})
	updated, err := svc.SubmitCheckIn(context.Background(), validInput(station))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != models.StatusOccupied {
		t.Fatalf("aggregate = %q, want occupied", updated.Status)
	}
}

func TestSubmitCheckInBrokenOutranksOccupied(t *testing.T) {
	station := twoConnectorStation()
	station.Connectors[0].Status = models.StatusOccupied
	station.Recompute()

	input := validInput(station)
	input.Status = models.StatusBroken
	input.EstimatedDuration = 0

	svc := newTestService(&fakeStore{}, &fakePublisher{}, &fakeReminders{})
	updated, err := svc.SubmitCheckIn(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != models.StatusBroken {
		t.Fatalf("aggregate = %q, want broken", updated.Status)
	}
}

func TestSubmitCheckInWithoutEligibleConnectorsIsStationLevel(t *testing.T) {
	station := twoConnectorStation()
	station.Connectors[0].Status = models.StatusOccupied
	station.Connectors[1].Status = models.StatusOccupied
	station.Recompute()

	input := validInput(station)
	input.ConnectorID = ""

	store := &fakeStore{}
	reminders := &fakeReminders{}
	svc := newTestService(store, &fakePublisher{}, reminders)
	updated, err := svc.SubmitCheckIn(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.LastCheckin == nil || updated.LastCheckin.ConnectorID != "" {
		t.Fatal("expected station-level receipt without connector attribution")
	}
	for _, c := range updated.Connectors {
		if c.Status != models.StatusOccupied {
			t.Fatal("connectors must be untouched by a station-level report")
		}
	}
	if len(reminders.scheduled) != 0 {
		t.Fatal("no reminder without a target connector")
	}
}

func TestSubmitCheckInStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	publisher := &fakePublisher{}
	reminders := &fakeReminders{}
	svc := newTestService(store, publisher, reminders)

	_, err := svc.SubmitCheckIn(context.Background(), validInput(twoConnectorStation()))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if len(publisher.published) != 0 || len(reminders.scheduled) != 0 {
		t.Fatal("no publish or reminder after a failed write")
	}
}

func releaseReadyStation() models.Station {
	station := twoConnectorStation()
	station.Connectors[1].Status = models.StatusOccupied
	receipt := &models.CheckIn{
		UserID:            "u-42",
		UserName:          "Ana",
		Status:            models.StatusOccupied,
		ConnectorID:       "ute-pocitos-c2",
		ConnectorLabel:    "#2",
		Timestamp:         testNow.UnixMilli(),
		EstimatedDuration: 30,
	}
	station.Connectors[1].LastCheckin = receipt
	station.LastCheckin = receipt
	station.Recompute()
	return station
}

func TestReleaseClearsConnector(t *testing.T) {
	store := &fakeStore{}
	reminders := &fakeReminders{}
	svc := newTestService(store, &fakePublisher{}, reminders)

	updated, err := svc.Release(context.Background(), releaseReadyStation(), "ute-pocitos-c2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c2, _ := updated.Connector("ute-pocitos-c2")
	if c2.Status != models.StatusAvailable || c2.LastCheckin != nil {
		t.Fatalf("connector not cleared: %+v", c2)
	}
	if updated.LastCheckin != nil {
		t.Fatal("station-level receipt for this connector must be cleared")
	}
	if updated.Status != models.StatusAvailable {
		t.Fatalf("aggregate = %q, want available", updated.Status)
	}
	if len(reminders.cancelled) != 1 || reminders.cancelled[0] != "ute-pocitos/ute-pocitos-c2" {
		t.Fatalf("expected reminder cancellation, got %v", reminders.cancelled)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakePublisher{}, &fakeReminders{})

	first, err := svc.Release(context.Background(), releaseReadyStation(), "ute-pocitos-c2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Release(context.Background(), *first, "ute-pocitos-c2")
	if err != nil {
		t.Fatalf("second release failed: %v", err)
	}

	c, _ := second.Connector("ute-pocitos-c2")
	if c.Status != models.StatusAvailable || c.LastCheckin != nil {
		t.Fatal("releasing twice must yield the same state")
	}
	if second.Status != first.Status {
		t.Fatal("aggregate must be stable across repeated releases")
	}
}

func TestReleaseBrokenConnectorResultsAvailable(t *testing.T) {
	station := twoConnectorStation()
	station.Connectors[1].Status = models.StatusBroken
	station.Recompute()

	svc := newTestService(&fakeStore{}, &fakePublisher{}, &fakeReminders{})
	updated, err := svc.Release(context.Background(), station, "ute-pocitos-c2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c, _ := updated.Connector("ute-pocitos-c2"); c.Status != models.StatusAvailable {
		t.Fatalf("release of broken connector produced %q", c.Status)
	}
}

func TestReleaseUnknownConnector(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, &fakePublisher{}, &fakeReminders{})

	_, err := svc.Release(context.Background(), twoConnectorStation(), "nope")
	if !errors.Is(err, ErrConnectorNotFound) {
		t.Fatalf("err = %v, want ErrConnectorNotFound", err)
	}
	if store.updateCount() != 0 {
		t.Fatal("no write expected for unknown connector")
	}
}

func TestReleaseStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("timeout")}
	svc := newTestService(store, &fakePublisher{}, &fakeReminders{})

	_, err := svc.Release(context.Background(), releaseReadyStation(), "ute-pocitos-c2")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestSubmitCheckInDoesNotMutateCallerStation(t *testing.T) {
	station := twoConnectorStation()
	svc := newTestService(&fakeStore{}, &fakePublisher{}, &fakeReminders{})

	if _, err := svc.SubmitCheckIn(context.Background(), validInput(station)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if station.Connectors[1].Status != models.StatusAvailable {
		t.Fatal("caller's station copy must not be mutated")
	}
}
