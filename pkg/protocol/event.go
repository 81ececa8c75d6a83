package protocol

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a floor event.
type EventType string

const (
	EventPartyEnqueued      EventType = "party.enqueued"
	EventPartyDispatched    EventType = "party.dispatched"
	EventDispatchAtCapacity EventType = "dispatch.at_capacity"
	EventAttendanceFinished EventType = "attendance.finished"
	EventShiftStarted       EventType = "shift.started"
	EventShiftEnded         EventType = "shift.ended"
)

// Event is a notification about something that happened on the floor.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Restaurant string    `json:"restaurant,omitempty"`
	WaiterID   int       `json:"waiter_id,omitempty"`
	PartyID    int       `json:"party_id,omitempty"`
	PartyName  string    `json:"party_name,omitempty"`
	OrderID    int       `json:"order_id,omitempty"`
	Total      float64   `json:"total,omitempty"`
	Shift      Shift     `json:"shift,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps a fresh id and time on an event of the given type.
func NewEvent(typ EventType, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: at,
	}
}
