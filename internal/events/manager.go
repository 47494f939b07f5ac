// Package events provides system event emission and subscription.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	ProposalCreated  EventType = "PROPOSAL_CREATED"
	GuardrailBlocked EventType = "GUARDRAIL_BLOCKED"
	AutoApplied      EventType = "AUTO_APPLIED"
	TransferDrafted  EventType = "TRANSFER_DRAFTED"
	DriftAlert       EventType = "DRIFT_ALERT"
	AgentCycleDone   EventType = "AGENT_CYCLE_DONE"
	FeedConnected    EventType = "FEED_CONNECTED"
	FeedDisconnected EventType = "FEED_DISCONNECTED"
	ErrorOccurred    EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Manager handles event emission, logging and fan-out to subscribers.
// Subscribers receive on buffered channels; a slow subscriber drops events
// rather than blocking the emitter.
type Manager struct {
	log         zerolog.Logger
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
}

// NewManager creates a new event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log:         log.With().Str("service", "events").Logger(),
		subscribers: make(map[int]chan Event),
	}
}

// Emit emits an event
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full; drop rather than stall the pipeline
		}
	}
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	m.Emit(ErrorOccurred, module, data)
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Event, 64)
	m.subscribers[id] = ch

	unsubscribe := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}
