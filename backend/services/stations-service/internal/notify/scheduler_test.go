package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type captureSender struct {
	mu        sync.Mutex
	reminders []Reminder
}

func (c *captureSender) Send(_ context.Context, reminder Reminder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reminders = append(c.reminders, reminder)
	return nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reminders)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSchedulerFires(t *testing.T) {
	sender := &captureSender{}
	scheduler := NewScheduler(sender, zap.NewNop())
	defer scheduler.Stop()

	scheduler.Schedule(10*time.Millisecond, Reminder{StationID: "st", ConnectorID: "c1", UserID: "u1"})

	waitFor(t, time.Second, func() bool { return sender.count() == 1 })
}

func TestScheduleReplacesPendingReminder(t *testing.T) {
	sender := &captureSender{}
	scheduler := NewScheduler(sender, zap.NewNop())
	defer scheduler.Stop()

	scheduler.Schedule(time.Hour, Reminder{StationID: "st", ConnectorID: "c1", Duration: 30})
	scheduler.Schedule(10*time.Millisecond, Reminder{StationID: "st", ConnectorID: "c1", Duration: 60})

	waitFor(t, time.Second, func() bool { return sender.count() == 1 })

	sender.mu.Lock()
	duration := sender.reminders[0].Duration
	sender.mu.Unlock()
	if duration != 60 {
		t.Fatalf("fired reminder duration = %d, want the replacement (60)", duration)
	}

	// The replaced timer must not fire as well.
	time.Sleep(50 * time.Millisecond)
	if sender.count() != 1 {
		t.Fatalf("expected exactly one delivery, got %d", sender.count())
	}
}

func TestCancelStopsReminder(t *testing.T) {
	sender := &captureSender{}
	scheduler := NewScheduler(sender, zap.NewNop())
	defer scheduler.Stop()

	scheduler.Schedule(20*time.Millisecond, Reminder{StationID: "st", ConnectorID: "c1"})
	scheduler.Cancel("st", "c1")

	time.Sleep(80 * time.Millisecond)
	if sender.count() != 0 {
		t.Fatalf("cancelled reminder fired %d times", sender.count())
	}
}
