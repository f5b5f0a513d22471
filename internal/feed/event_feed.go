package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"orbit/internal/domain"
)

const (
	eventChannel = "event_changes"
	// listSnapshotSize caps the live list snapshot at the same size as the
	// largest REST page.
	listSnapshotSize = 100
)

// EventFeed delivers live event snapshots to subscribers. It LISTENs on the
// event_changes channel (the event repository NOTIFYs it in the same statement
// as every event write) and, on each notification, re-queries and fans out.
// List subscribers get the current event list; per-event subscribers get that
// event, or nil once it has been deleted.
type EventFeed struct {
	listener  *pq.Listener
	eventRepo domain.EventRepository
	logger    *slog.Logger

	mu        sync.Mutex
	eventSubs map[string]map[int]func(*domain.Event)
	listSubs  map[int]func([]*domain.Event)
	nextID    int

	done chan struct{}
	once sync.Once
}

// NewEventFeed connects a pq.Listener to the given database URL and starts the
// dispatch loop. Call Close to stop it.
func NewEventFeed(dbURL string, eventRepo domain.EventRepository, logger *slog.Logger) (*EventFeed, error) {
	f := &EventFeed{
		eventRepo: eventRepo,
		logger:    logger,
		eventSubs: make(map[string]map[int]func(*domain.Event)),
		listSubs:  make(map[int]func([]*domain.Event)),
		done:      make(chan struct{}),
	}

	f.listener = pq.NewListener(dbURL, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("event feed listener event", "type", int(ev), "err", err)
		}
	})
	if err := f.listener.Listen(eventChannel); err != nil {
		f.listener.Close()
		return nil, err
	}

	go f.run()
	return f, nil
}

// SubscribeList registers onChange for the event list and synchronously
// delivers the current snapshot. The returned unsubscribe func stops delivery;
// calling it more than once is a no-op.
func (f *EventFeed) SubscribeList(onChange func(events []*domain.Event)) (func(), error) {
	events, err := f.listSnapshot()
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.listSubs[id] = onChange
	f.mu.Unlock()

	onChange(events)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.listSubs, id)
		})
	}
	return unsubscribe, nil
}

// SubscribeEvent registers onChange for one event and synchronously delivers
// its current state. Returns domain.ErrNotFound when the event does not exist.
func (f *EventFeed) SubscribeEvent(eventID string, onChange func(event *domain.Event)) (func(), error) {
	event, err := f.eventSnapshot(eventID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	if f.eventSubs[eventID] == nil {
		f.eventSubs[eventID] = make(map[int]func(*domain.Event))
	}
	f.eventSubs[eventID][id] = onChange
	f.mu.Unlock()

	onChange(event)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if m, ok := f.eventSubs[eventID]; ok {
				delete(m, id)
				if len(m) == 0 {
					delete(f.eventSubs, eventID)
				}
			}
		})
	}
	return unsubscribe, nil
}

// Close stops the dispatch loop and the underlying listener.
func (f *EventFeed) Close() error {
	f.once.Do(func() { close(f.done) })
	return f.listener.Close()
}

func (f *EventFeed) run() {
	for {
		select {
		case n := <-f.listener.Notify:
			if n == nil {
				// Connection was re-established; notifications may have been
				// missed, so refresh every subscription.
				f.refreshAll()
				continue
			}
			f.dispatch(n.Extra)
		case <-time.After(pingInterval):
			if err := f.listener.Ping(); err != nil {
				f.logger.Warn("event feed ping failed", "err", err)
			}
		case <-f.done:
			return
		}
	}
}

func (f *EventFeed) dispatch(eventID string) {
	f.dispatchEvent(eventID)
	f.dispatchList()
}

func (f *EventFeed) dispatchEvent(eventID string) {
	f.mu.Lock()
	callbacks := make([]func(*domain.Event), 0, len(f.eventSubs[eventID]))
	for _, cb := range f.eventSubs[eventID] {
		callbacks = append(callbacks, cb)
	}
	f.mu.Unlock()
	if len(callbacks) == 0 {
		return
	}

	event, err := f.eventSnapshot(eventID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			f.logger.Warn("event snapshot failed", "event_id", eventID, "err", err)
			return
		}
		// Deleted: subscribers get nil and decide how to end their stream.
		event = nil
	}
	for _, cb := range callbacks {
		cb(event)
	}
}

func (f *EventFeed) dispatchList() {
	f.mu.Lock()
	callbacks := make([]func([]*domain.Event), 0, len(f.listSubs))
	for _, cb := range f.listSubs {
		callbacks = append(callbacks, cb)
	}
	f.mu.Unlock()
	if len(callbacks) == 0 {
		return
	}

	events, err := f.listSnapshot()
	if err != nil {
		f.logger.Warn("event list snapshot failed", "err", err)
		return
	}
	for _, cb := range callbacks {
		cb(events)
	}
}

func (f *EventFeed) refreshAll() {
	f.mu.Lock()
	eventIDs := make([]string, 0, len(f.eventSubs))
	for id := range f.eventSubs {
		eventIDs = append(eventIDs, id)
	}
	f.mu.Unlock()
	for _, id := range eventIDs {
		f.dispatchEvent(id)
	}
	f.dispatchList()
}

func (f *EventFeed) eventSnapshot(eventID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	return f.eventRepo.GetByID(ctx, eventID)
}

func (f *EventFeed) listSnapshot() ([]*domain.Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	events, _, err := f.eventRepo.List(ctx, domain.PaginationParams{Page: 1, PageSize: listSnapshotSize})
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*domain.Event{}
	}
	return events, nil
}
