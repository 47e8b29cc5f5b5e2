package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const sendTimeout = 10 * time.Second

// Reminder is the payload of an advisory "your charge estimate is up" push.
type Reminder struct {
	StationID      string
	StationName    string
	ConnectorID    string
	ConnectorLabel string
	UserID         string
	Duration       int
}

// Scheduler holds in-process timers for advisory reminders, keyed by
// station+connector. Best effort only: delivery failures are logged, never
// propagated, and a service restart drops pending reminders — the expiry
// monitor remains the authority on actual release timing.
type Scheduler struct {
	sender Sender
	logger *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewScheduler builds a scheduler over a sender.
func NewScheduler(sender Sender, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		sender: sender,
		logger: logger,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms a reminder to fire after the given delay, replacing any
// pending reminder for the same station+connector.
func (s *Scheduler) Schedule(fireAfter time.Duration, reminder Reminder) {
	key := reminder.StationID + "/" + reminder.ConnectorID

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[key]; ok {
		timer.Stop()
	}
	s.timers[key] = time.AfterFunc(fireAfter, func() {
		s.fire(key, reminder)
	})
}

// Cancel stops the pending reminder for the station+connector, if any.
func (s *Scheduler) Cancel(stationID, connectorID string) {
	key := stationID + "/" + connectorID

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[key]; ok {
		timer.Stop()
		delete(s.timers, key)
	}
}

// Stop cancels every pending reminder.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}

func (s *Scheduler) fire(key string, reminder Reminder) {
	s.mu.Lock()
	delete(s.timers, key)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := s.sender.Send(ctx, reminder); err != nil {
		s.logger.Warn("failed to deliver reminder",
			zap.String("station_id", reminder.StationID),
			zap.String("connector_id", reminder.ConnectorID),
			zap.Error(err),
		)
	}
}
