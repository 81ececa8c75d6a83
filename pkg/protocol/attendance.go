package protocol

import "time"

// Status is the lifecycle state of an attendance.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusInService Status = "in_service"
	StatusFinished  Status = "finished"
)

// Rank is the ordinal used to order attendance queues.
func (s Status) Rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusInService:
		return 1
	case StatusFinished:
		return 2
	}
	return 3
}

// AttendanceRecord is the serialized form of an attendance. Times keep their
// full precision (RFC 3339 with nanoseconds) and durations are encoded as
// integer nanoseconds so both survive a round trip unchanged.
type AttendanceRecord struct {
	Status    Status        `json:"status"`
	Party     *Party        `json:"party"`
	Order     *Order        `json:"order"`
	StartedAt time.Time     `json:"started_at,omitzero"`
	EndedAt   time.Time     `json:"ended_at,omitzero"`
	Wait      time.Duration `json:"wait_ns"`
	Service   time.Duration `json:"service_ns"`
}

// WaiterRecord is the persisted and displayed form of a waiter.
type WaiterRecord struct {
	ID          int                `json:"id"`
	Name        string             `json:"name"`
	Shift       Shift              `json:"shift,omitempty"`
	Individuals []AttendanceRecord `json:"individuals"`
	Groups      []AttendanceRecord `json:"groups"`
}

// Load reports how many attendances the waiter currently holds per category.
func (w WaiterRecord) Load() (individuals, groups int) {
	return len(w.Individuals), len(w.Groups)
}

// MenuItem is a priced catalog entry.
type MenuItem struct {
	Name        string  `json:"name" yaml:"name"`
	Price       float64 `json:"price" yaml:"price"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}
