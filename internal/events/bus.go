package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventScanStarted      EventType = "SCAN_STARTED"
	EventScanResult       EventType = "SCAN_RESULT"
	EventScanCompleted    EventType = "SCAN_COMPLETED"
	EventSignalUpdate     EventType = "SIGNAL_UPDATE"
	EventWatchlistAdded   EventType = "WATCHLIST_ADDED"
	EventWatchlistRemoved EventType = "WATCHLIST_REMOVED"
	EventError            EventType = "ERROR"
)

// Event represents a system event. UserID scopes delivery: events with a
// user ID are pushed only to that user's websocket connections.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"user_id,omitempty"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishScanStarted publishes a scan lifecycle start event
func (eb *EventBus) PublishScanStarted(scanID string, symbolCount int) {
	eb.Publish(Event{
		Type: EventScanStarted,
		Data: map[string]interface{}{
			"scan_id":      scanID,
			"symbol_count": symbolCount,
		},
	})
}

// PublishScanResult publishes one scanned symbol's outcome
func (eb *EventBus) PublishScanResult(scanID, symbol, timeframe, direction string, buyScore, sellScore float64) {
	eb.Publish(Event{
		Type: EventScanResult,
		Data: map[string]interface{}{
			"scan_id":    scanID,
			"symbol":     symbol,
			"timeframe":  timeframe,
			"direction":  direction,
			"buy_score":  buyScore,
			"sell_score": sellScore,
		},
	})
}

// PublishScanCompleted publishes a scan lifecycle completion event
func (eb *EventBus) PublishScanCompleted(scanID string, scanned, failed int, elapsed time.Duration) {
	eb.Publish(Event{
		Type: EventScanCompleted,
		Data: map[string]interface{}{
			"scan_id":    scanID,
			"scanned":    scanned,
			"failed":     failed,
			"elapsed_ms": elapsed.Milliseconds(),
		},
	})
}

// PublishSignalUpdate publishes a freshly computed signal for a symbol,
// scoped to one watching user
func (eb *EventBus) PublishSignalUpdate(userID, symbol, timeframe, direction string, buyScore, sellScore float64) {
	eb.Publish(Event{
		Type:   EventSignalUpdate,
		UserID: userID,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"timeframe":  timeframe,
			"direction":  direction,
			"buy_score":  buyScore,
			"sell_score": sellScore,
		},
	})
}

// PublishWatchlistAdded publishes a user-scoped watchlist addition
func (eb *EventBus) PublishWatchlistAdded(userID, symbol string) {
	eb.Publish(Event{
		Type:   EventWatchlistAdded,
		UserID: userID,
		Data: map[string]interface{}{
			"symbol": symbol,
		},
	})
}

// PublishWatchlistRemoved publishes a user-scoped watchlist removal
func (eb *EventBus) PublishWatchlistRemoved(userID, symbol string) {
	eb.Publish(Event{
		Type:   EventWatchlistRemoved,
		UserID: userID,
		Data: map[string]interface{}{
			"symbol": symbol,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source string, err error) {
	eb.Publish(Event{
		Type: EventError,
		Data: map[string]interface{}{
			"source":  source,
			"message": err.Error(),
		},
	})
}
