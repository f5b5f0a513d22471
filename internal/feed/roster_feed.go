package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"orbit/internal/domain"
)

const (
	rosterChannel        = "roster_changes"
	minReconnectInterval = time.Second
	maxReconnectInterval = 30 * time.Second
	pingInterval         = 90 * time.Second
	snapshotTimeout      = 5 * time.Second
)

// RosterFeed delivers live roster snapshots to subscribers. It LISTENs on the
// roster_changes channel (the repositories NOTIFY it in the same statement as
// every roster write) and, on each notification, re-queries the roster and
// fans the full snapshot out to that event's subscribers. Subscribers also get
// a snapshot immediately on subscribe.
type RosterFeed struct {
	listener    *pq.Listener
	checkInRepo domain.CheckInRepository
	logger      *slog.Logger

	mu     sync.Mutex
	subs   map[string]map[int]func([]*domain.CheckInRecord)
	nextID int

	done chan struct{}
	once sync.Once
}

// NewRosterFeed connects a pq.Listener to the given database URL and starts
// the dispatch loop. Call Close to stop it.
func NewRosterFeed(dbURL string, checkInRepo domain.CheckInRepository, logger *slog.Logger) (*RosterFeed, error) {
	f := &RosterFeed{
		checkInRepo: checkInRepo,
		logger:      logger,
		subs:        make(map[string]map[int]func([]*domain.CheckInRecord)),
		done:        make(chan struct{}),
	}

	f.listener = pq.NewListener(dbURL, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("roster feed listener event", "type", int(ev), "err", err)
		}
	})
	if err := f.listener.Listen(rosterChannel); err != nil {
		f.listener.Close()
		return nil, err
	}

	go f.run()
	return f, nil
}

// Subscribe registers onChange for the event's roster and synchronously
// delivers the current snapshot. The returned unsubscribe func stops delivery;
// calling it more than once is a no-op.
func (f *RosterFeed) Subscribe(eventID string, onChange func(roster []*domain.CheckInRecord)) (func(), error) {
	roster, err := f.snapshot(eventID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	if f.subs[eventID] == nil {
		f.subs[eventID] = make(map[int]func([]*domain.CheckInRecord))
	}
	f.subs[eventID][id] = onChange
	f.mu.Unlock()

	onChange(roster)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if m, ok := f.subs[eventID]; ok {
				delete(m, id)
				if len(m) == 0 {
					delete(f.subs, eventID)
				}
			}
		})
	}
	return unsubscribe, nil
}

// Close stops the dispatch loop and the underlying listener.
func (f *RosterFeed) Close() error {
	f.once.Do(func() { close(f.done) })
	return f.listener.Close()
}

func (f *RosterFeed) run() {
	for {
		select {
		case n := <-f.listener.Notify:
			if n == nil {
				// Connection was re-established; notifications may have been
				// missed, so refresh every subscribed event.
				f.refreshAll()
				continue
			}
			f.dispatch(n.Extra)
		case <-time.After(pingInterval):
			if err := f.listener.Ping(); err != nil {
				f.logger.Warn("roster feed ping failed", "err", err)
			}
		case <-f.done:
			return
		}
	}
}

func (f *RosterFeed) dispatch(eventID string) {
	f.mu.Lock()
	callbacks := make([]func([]*domain.CheckInRecord), 0, len(f.subs[eventID]))
	for _, cb := range f.subs[eventID] {
		callbacks = append(callbacks, cb)
	}
	f.mu.Unlock()
	if len(callbacks) == 0 {
		return
	}

	roster, err := f.snapshot(eventID)
	if err != nil {
		f.logger.Warn("roster snapshot failed", "event_id", eventID, "err", err)
		return
	}
	for _, cb := range callbacks {
		cb(roster)
	}
}

func (f *RosterFeed) refreshAll() {
	f.mu.Lock()
	eventIDs := make([]string, 0, len(f.subs))
	for id := range f.subs {
		eventIDs = append(eventIDs, id)
	}
	f.mu.Unlock()
	for _, id := range eventIDs {
		f.dispatch(id)
	}
}

func (f *RosterFeed) snapshot(eventID string) ([]*domain.CheckInRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	roster, err := f.checkInRepo.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if roster == nil {
		roster = []*domain.CheckInRecord{}
	}
	return roster, nil
}
