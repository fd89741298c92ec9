package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
)

// Event represents a phase or version transition. Events are dispatched after
// the transaction that produced the transition commits; handlers must tolerate
// redelivery of the same correlation id.
type Event struct {
	ID            string           `json:"id"`
	Type          Type             `json:"type"`
	PhaseID       int64            `json:"phase_id"`
	PhaseName     entity.PhaseName `json:"phase_name"`
	VersionID     *int64           `json:"version_id,omitempty"`
	Actor         string           `json:"actor"`
	Payload       map[string]any   `json:"payload,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
	CorrelationID string           `json:"correlation_id"`
}

// NewEvent creates a new domain event with generated id and correlation id.
func NewEvent(eventType Type, phaseID int64, phaseName entity.PhaseName, actor string) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		PhaseID:       phaseID,
		PhaseName:     phaseName,
		Actor:         actor,
		Payload:       map[string]any{},
		Timestamp:     time.Now(),
		CorrelationID: uuid.NewString(),
	}
}

// WithVersion attaches the version the transition concerns.
func (e *Event) WithVersion(versionID int64) *Event {
	e.VersionID = &versionID
	return e
}

// WithPayload adds a payload key-value pair.
func (e *Event) WithPayload(key string, value any) *Event {
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	e.Payload[key] = value
	return e
}

// PayloadString retrieves a string value from the payload.
func (e *Event) PayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
