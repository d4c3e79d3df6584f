package events

import (
	"sync"
	"time"
)

// EventType represents the type of event flowing through the broker.
type EventType string

const (
	// Copy pipeline events.
	EventTaskStateChanged EventType = "copy.task.state_changed"
	EventTaskProgress     EventType = "copy.task.progress_changed"
	EventTaskError        EventType = "copy.task.error_occurred"
	EventTaskFinished     EventType = "copy.task.finished"

	// Master/worker dispatcher events.
	EventSlaveRegistered   EventType = "dispatcher.slave.registered"
	EventSlaveUnhealthy    EventType = "dispatcher.slave.unhealthy"
	EventTaskAssigned      EventType = "dispatcher.task.assigned"
	EventTaskRedistributed EventType = "dispatcher.task.redistributed"
	EventTaskAbandoned     EventType = "dispatcher.task.abandoned"

	// Scheduled worker framework events.
	EventWorkerLaunched EventType = "swf.worker.launched"
	EventWorkerDied     EventType = "swf.worker.died"
	EventJobFinished    EventType = "swf.job.finished"
)

// Event is a single notification carried on the broker.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker is an in-memory, non-blocking pub/sub bus. CopyTask publishes its
// lifecycle signals here instead of calling subscribers directly, so a slow
// or absent listener can never block the task's event-pump goroutine.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
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
			// Subscriber buffer full, skip rather than block the broker.
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
