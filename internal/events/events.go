package events

import (
	"context"
	"sync"
	"time"

	"return-eligibility-api/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventEligibilityChecked is emitted for every eligibility evaluation,
	// whatever the outcome.
	EventEligibilityChecked EventType = "eligibility.checked"
	// EventRMACreated is emitted when an approved return produces an RMA.
	EventRMACreated EventType = "rma.created"
	// EventLabelGenerated is emitted when a shipping label is generated.
	EventLabelGenerated EventType = "label.generated"
	// EventEmailSent is emitted when a customer notification is dispatched.
	EventEmailSent EventType = "email.sent"
	// EventEscalated is emitted when a case is handed to a human agent.
	EventEscalated EventType = "escalation.created"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// EligibilityCheckedData contains data for eligibility checked events.
type EligibilityCheckedData struct {
	OrderID   string
	ItemIDs   []int64
	Decision  models.EligibilityDecision
	CheckedAt time.Time
}

// RMACreatedData contains data for RMA created events.
type RMACreatedData struct {
	RMANumber   string
	OrderID     string
	RefundCents int64
}

// LabelGeneratedData contains data for label generated events.
type LabelGeneratedData struct {
	RMANumber      string
	TrackingNumber string
	LabelURL       string
}

// EmailSentData contains data for email sent events.
type EmailSentData struct {
	CustomerEmail string
	TemplateName  string
	MessageID     string
}

// EscalatedData contains data for escalation events.
type EscalatedData struct {
	SessionID string
	TicketID  string
	Priority  models.EscalationPriority
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers. Handlers run
// asynchronously so publishing never blocks the request path.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				_ = err
			}
		}(handler)
	}
}

// PublishEligibilityChecked publishes an eligibility checked event.
func (m *Manager) PublishEligibilityChecked(ctx context.Context, orderID string, itemIDs []int64, decision models.EligibilityDecision) {
	m.Publish(ctx, EventEligibilityChecked, EligibilityCheckedData{
		OrderID:   orderID,
		ItemIDs:   itemIDs,
		Decision:  decision,
		CheckedAt: time.Now(),
	})
}

// PublishRMACreated publishes an RMA created event.
func (m *Manager) PublishRMACreated(ctx context.Context, rmaNumber, orderID string, refundCents int64) {
	m.Publish(ctx, EventRMACreated, RMACreatedData{
		RMANumber:   rmaNumber,
		OrderID:     orderID,
		RefundCents: refundCents,
	})
}

// PublishLabelGenerated publishes a label generated event.
func (m *Manager) PublishLabelGenerated(ctx context.Context, rmaNumber, trackingNumber, labelURL string) {
	m.Publish(ctx, EventLabelGenerated, LabelGeneratedData{
		RMANumber:      rmaNumber,
		TrackingNumber: trackingNumber,
		LabelURL:       labelURL,
	})
}

// PublishEmailSent publishes an email sent event.
func (m *Manager) PublishEmailSent(ctx context.Context, customerEmail, templateName, messageID string) {
	m.Publish(ctx, EventEmailSent, EmailSentData{
		CustomerEmail: customerEmail,
		TemplateName:  templateName,
		MessageID:     messageID,
	})
}

// PublishEscalated publishes an escalation event.
func (m *Manager) PublishEscalated(ctx context.Context, sessionID, ticketID string, priority models.EscalationPriority) {
	m.Publish(ctx, EventEscalated, EscalatedData{
		SessionID: sessionID,
		TicketID:  ticketID,
		Priority:  priority,
	})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
