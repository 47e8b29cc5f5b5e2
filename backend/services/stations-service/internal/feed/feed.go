package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"vego/backend/services/stations-service/internal/models"
)

// Source is the one-shot read used for the initial snapshot.
type Source interface {
	ReadAll(ctx context.Context) ([]models.Station, error)
}

// Feed maintains the locally observed station collection and fans changes out
// to listeners. Writers publish updated station documents on a redis channel;
// the feed is the sole mutator of the local snapshot, so write paths never
// touch it directly and every client converges on what the store delivered.
type Feed struct {
	client  *redis.Client
	channel string
	source  Source
	logger  *zap.Logger

	mu        sync.RWMutex
	stations  []models.Station
	listeners map[int]func([]models.Station)
	nextID    int
}

// New builds a feed over the given redis channel.
func New(client *redis.Client, channel string, source Source, logger *zap.Logger) *Feed {
	return &Feed{
		client:    client,
		channel:   channel,
		source:    source,
		logger:    logger,
		listeners: make(map[int]func([]models.Station)),
	}
}

// Run loads the initial snapshot, then consumes published station updates
// until the context is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	stations, err := f.source.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("feed: initial snapshot: %w", err)
	}
	f.ReplaceAll(stations)

	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var station models.Station
			if err := json.Unmarshal([]byte(msg.Payload), &station); err != nil {
				f.logger.Warn("feed: dropping malformed update", zap.Error(err))
				continue
			}
			station.Normalize()
			f.Apply(station)
		}
	}
}

// Publish sends an updated station document to all observing feeds,
// including this one.
func (f *Feed) Publish(ctx context.Context, station models.Station) error {
	payload, err := json.Marshal(station)
	if err != nil {
		return fmt.Errorf("feed: encode station: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("feed: publish station %s: %w", station.ID, err)
	}
	return nil
}

// Snapshot returns a copy of the observed station list.
func (f *Feed) Snapshot() []models.Station {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Station, len(f.stations))
	copy(out, f.stations)
	return out
}

// Subscribe registers a listener invoked with the full current list on every
// change. The returned function removes the listener.
func (f *Feed) Subscribe(fn func([]models.Station)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

// ReplaceAll swaps the whole snapshot and notifies listeners.
func (f *Feed) ReplaceAll(stations []models.Station) {
	f.mu.Lock()
	f.stations = make([]models.Station, len(stations))
	copy(f.stations, stations)
	snapshot, listeners := f.snapshotAndListenersLocked()
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// Apply merges one updated station into the snapshot and notifies listeners.
func (f *Feed) Apply(station models.Station) {
	f.mu.Lock()
	replaced := false
	for i := range f.stations {
		if f.stations[i].ID == station.ID {
			f.stations[i] = station
			replaced = true
			break
		}
	}
	if !replaced {
		f.stations = append(f.stations, station)
	}
	snapshot, listeners := f.snapshotAndListenersLocked()
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (f *Feed) snapshotAndListenersLocked() ([]models.Station, []func([]models.Station)) {
	snapshot := make([]models.Station, len(f.stations))
	copy(snapshot, f.stations)
	listeners := make([]func([]models.Station), 0, len(f.listeners))
	for _, fn := range f.listeners {
		listeners = append(listeners, fn)
	}
	return snapshot, listeners
}
