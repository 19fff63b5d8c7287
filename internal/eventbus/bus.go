// Package eventbus is the bounded broadcast stream every component publishes
// its log events to.
package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/models"
)

// DefaultCapacity is the number of events retained for late subscribers
const DefaultCapacity = 100

const subscriberBuffer = 256

// Filter selects the events a subscriber receives. A nil Filter accepts all.
type Filter func(models.LogEvent) bool

// ProjectFilter accepts events of a single project
func ProjectFilter(projectID int64) Filter {
	return func(ev models.LogEvent) bool {
		return ev.ForProject(projectID)
	}
}

// Bus serializes publishers and fans events out to subscribers. Readers of
// the backlog never take the publish lock.
type Bus struct {
	logger   *logrus.Logger
	capacity int

	mu     sync.Mutex
	ring   []models.LogEvent
	start  int
	count  int
	subs   map[*Subscription]struct{}
	closed bool

	snapshot atomic.Pointer[[]models.LogEvent]
	dropped  atomic.Uint64
}

// Subscription is a live view of the bus
type Subscription struct {
	bus    *Bus
	filter Filter
	ch     chan models.LogEvent
	once   sync.Once
}

// New creates a bus retaining capacity events
func New(logger *logrus.Logger, capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Bus{
		logger:   logger,
		capacity: capacity,
		ring:     make([]models.LogEvent, capacity),
		subs:     make(map[*Subscription]struct{}),
	}
	empty := []models.LogEvent{}
	b.snapshot.Store(&empty)
	return b
}

// Publish appends ev to the backlog and delivers it to every matching
// subscriber. A subscriber whose buffer is full misses the event.
func (b *Bus) Publish(ev models.LogEvent) {
	b.log(ev)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	idx := (b.start + b.count) % b.capacity
	if b.count == b.capacity {
		b.ring[b.start] = ev
		b.start = (b.start + 1) % b.capacity
	} else {
		b.ring[idx] = ev
		b.count++
	}
	b.publishSnapshot()

	for sub := range b.subs {
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Emit builds and publishes an event
func (b *Bus) Emit(projectID int64, level models.LogLevel, code models.EventCode, message string, fields map[string]interface{}) models.LogEvent {
	ev := models.NewLogEvent(projectID, level, code, message, fields)
	b.Publish(ev)
	return ev
}

// Backlog returns the retained events, oldest first, that match filter
func (b *Bus) Backlog(filter Filter) []models.LogEvent {
	events := *b.snapshot.Load()
	out := make([]models.LogEvent, 0, len(events))
	for _, ev := range events {
		if filter == nil || filter(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Subscribe returns the current backlog and a subscription receiving every
// later event, with nothing lost or repeated in between.
func (b *Bus) Subscribe(filter Filter) ([]models.LogEvent, *Subscription) {
	sub := &Subscription{
		bus:    b,
		filter: filter,
		ch:     make(chan models.LogEvent, subscriberBuffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	backlog := b.Backlog(filter)
	if b.closed {
		close(sub.ch)
		return backlog, sub
	}
	b.subs[sub] = struct{}{}
	return backlog, sub
}

// Dropped returns how many deliveries were skipped because a subscriber was
// not keeping up.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Len returns the number of retained events
func (b *Bus) Len() int {
	return len(*b.snapshot.Load())
}

// Close ends every subscription
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		sub.once.Do(func() { close(sub.ch) })
	}
}

// publishSnapshot stores an immutable copy of the ring. Callers hold b.mu.
func (b *Bus) publishSnapshot() {
	events := make([]models.LogEvent, b.count)
	for i := 0; i < b.count; i++ {
		events[i] = b.ring[(b.start+i)%b.capacity]
	}
	b.snapshot.Store(&events)
}

func (b *Bus) log(ev models.LogEvent) {
	fields := logrus.Fields{
		"event_id": ev.ID,
		"code":     ev.Code,
	}
	if ev.ProjectID != nil {
		fields["project_id"] = *ev.ProjectID
	}
	for k, v := range ev.Fields {
		fields[k] = v
	}
	entry := b.logger.WithFields(fields)

	switch ev.Level {
	case models.LevelDebug:
		entry.Debug(ev.Message)
	case models.LevelWarning:
		entry.Warn(ev.Message)
	case models.LevelError:
		entry.Error(ev.Message)
	default:
		entry.Info(ev.Message)
	}
}

// Events delivers subscribed events. The channel is closed by Close.
func (s *Subscription) Events() <-chan models.LogEvent {
	return s.ch
}

// Close detaches the subscription from the bus
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	s.once.Do(func() { close(s.ch) })
}
