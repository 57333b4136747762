package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/practicalwork/library-server/internal/id"
)

// Subscriber receives events from a Broker.
type Subscriber struct {
	ConnectedAt time.Time
	C           chan Event
	Done        chan struct{}
	ID          string
	// Types limits delivery to these event types. Empty means all.
	Types []EventType
}

func (s *Subscriber) wants(t EventType) bool {
	return len(s.Types) == 0 || slices.Contains(s.Types, t)
}

// Broker queues published events and fans them out to subscribers.
type Broker struct {
	subscribers map[string]*Subscriber
	events      chan Event
	logger      *slog.Logger
	wg          sync.WaitGroup
	mu          sync.RWMutex
	bufferSize  int

	// Shutdown state - protected by shutdownMu
	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewBroker creates a broker whose queue holds bufferSize events.
func NewBroker(bufferSize int, logger *slog.Logger) *Broker {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Broker{
		subscribers: make(map[string]*Subscriber),
		events:      make(chan Event, bufferSize),
		logger:      logger,
		bufferSize:  bufferSize,
	}
}

// Start launches the dispatch loop, which runs until ctx is done or the
// broker shuts down. Call it once.
func (b *Broker) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.run(ctx)
}

func (b *Broker) run(ctx context.Context) {
	defer b.wg.Done()

	b.logger.Info("event broker starting", "buffer_size", b.bufferSize)

	for {
		select {
		case event, ok := <-b.events:
			if !ok {
				return
			}
			b.dispatch(event)

		case <-ctx.Done():
			b.logger.Info("event broker stopping")
			return
		}
	}
}

// Shutdown stops accepting events, delivers what is queued and closes
// every subscriber.
func (b *Broker) Shutdown(ctx context.Context) error {
	b.shutdownMu.Lock()
	if b.shutdown {
		b.shutdownMu.Unlock()
		return nil
	}
	b.shutdown = true
	close(b.events)
	b.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		for event := range b.events {
			b.dispatch(event)
		}
		close(done)
	}()

	var err error
	select {
	case <-done:
		b.logger.Info("event broker drained")
	case <-ctx.Done():
		b.logger.Warn("event broker drain timeout, some events may be lost")
		err = ctx.Err()
	}

	b.closeAllSubscribers()
	return err
}

// Publish queues an event without blocking. Events are dropped when the
// queue is full or the broker has shut down.
func (b *Broker) Publish(event Event) {
	// Hold read lock through the send so Shutdown cannot close the channel under us.
	b.shutdownMu.RLock()
	defer b.shutdownMu.RUnlock()

	if b.shutdown {
		b.logger.Warn("event broker shut down, dropping event",
			slog.String("event_type", string(event.Type)),
			slog.String("event_id", event.ID))
		return
	}

	select {
	case b.events <- event:
	default:
		b.logger.Error("event queue full, dropping event",
			slog.String("event_type", string(event.Type)),
			slog.String("event_id", event.ID))
	}
}

func (b *Broker) dispatch(event Event) {
	var delivered, dropped int

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if !sub.wants(event.Type) {
			continue
		}
		// Slow subscribers lose events rather than stall the broker.
		select {
		case sub.C <- event:
			delivered++
		default:
			dropped++
			b.logger.Warn("dropped event for slow subscriber",
				slog.String("subscriber_id", sub.ID),
				slog.String("event_type", string(event.Type)))
		}
	}

	b.logger.Debug("event dispatched",
		slog.String("event_type", string(event.Type)),
		slog.Group("stats",
			slog.Int("delivered", delivered),
			slog.Int("dropped", dropped)))
}

// Subscribe registers a subscriber for the given types, or all types when none are given.
func (b *Broker) Subscribe(types ...EventType) (*Subscriber, error) {
	subID, err := id.Generate("sub")
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{
		ID:          subID,
		Types:       types,
		C:           make(chan Event, 100),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	total := len(b.subscribers)
	b.mu.Unlock()

	b.logger.Info("event subscriber connected",
		slog.String("subscriber_id", sub.ID),
		slog.Int("total_subscribers", total))
	return sub, nil
}

// Unsubscribe removes a subscriber and closes its channels. Unknown ids are ignored.
func (b *Broker) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	sub, ok := b.subscribers[subscriberID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subscribers, subscriberID)
	total := len(b.subscribers)
	b.mu.Unlock()

	close(sub.Done)
	close(sub.C)

	b.logger.Info("event subscriber disconnected",
		slog.String("subscriber_id", subscriberID),
		slog.Duration("duration", time.Since(sub.ConnectedAt)),
		slog.Int("total_subscribers", total))
}

// SubscriberCount returns the number of connected subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Broker) closeAllSubscribers() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		close(sub.Done)
		close(sub.C)
	}
	b.subscribers = make(map[string]*Subscriber)
}
