package events

import (
	"sync"
	"time"

	"github.com/AntonOks/ceph-scripts/pkg/types"
	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventDrainStarted  EventType = "drain.started"
	EventDrainFinished EventType = "drain.finished"
	EventRoundProgress EventType = "round.progress"
	EventRoundBackoff  EventType = "round.backoff"
	EventRoundComplete EventType = "round.complete"
	EventRoundFailed   EventType = "round.failed"
	EventPoolReady     EventType = "pool.ready"
	EventPoolReleased  EventType = "pool.released"
	EventPoolKept      EventType = "pool.kept"
)

// RoundEventType maps a round outcome to its event type
func RoundEventType(status types.RoundStatus) EventType {
	switch status {
	case types.RoundProgress:
		return EventRoundProgress
	case types.RoundBackoff:
		return EventRoundBackoff
	case types.RoundComplete:
		return EventRoundComplete
	default:
		return EventRoundFailed
	}
}

// Event represents something the drain did
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string

	RunID    string
	Round    int
	Duration time.Duration
	Result   *types.RoundResult
	Error    string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker fans events out to subscribers
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	doneCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop delivers events already queued, closes every subscriber channel and
// waits for the distribution loop to exit. It must follow Start.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	<-b.doneCh
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Publish queues an event. Events published after Stop are dropped.
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-b.stopCh:
		return
	default:
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	defer close(b.doneCh)
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			b.flush()
			return
		}
	}
}

func (b *Broker) flush() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		default:
			b.mu.Lock()
			for sub := range b.subscribers {
				delete(b.subscribers, sub)
				close(sub)
			}
			b.mu.Unlock()
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}
