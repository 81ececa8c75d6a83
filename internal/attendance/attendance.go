// Package attendance implements the service session that binds one party to
// one order, and the per-waiter queue that holds those sessions.
package attendance

import (
	"fmt"
	"time"

	"github.com/maitre-io/maitre/pkg/protocol"
)

// Option configures an Attendance.
type Option func(*Attendance)

// WithClock overrides the time source used by Start and Finish.
func WithClock(now func() time.Time) Option {
	return func(a *Attendance) {
		if now != nil {
			a.now = now
		}
	}
}

// Attendance is a WAITING -> IN_SERVICE -> FINISHED state machine wrapping a
// single order. It is not safe for concurrent use; the restaurant serializes
// access.
type Attendance struct {
	party   *protocol.Party
	order   *protocol.Order
	status  protocol.Status
	started time.Time
	ended   time.Time
	wait    time.Duration
	service time.Duration
	now     func() time.Time
}

// New creates a waiting attendance for party with order.
func New(party *protocol.Party, order *protocol.Order, opts ...Option) (*Attendance, error) {
	if order == nil {
		return nil, fmt.Errorf("attendance: order is required: %w", protocol.ErrInvalidArgument)
	}
	if party == nil {
		return nil, fmt.Errorf("attendance: party is required: %w", protocol.ErrInvalidArgument)
	}
	if party.Kind != protocol.KindIndividual && party.Kind != protocol.KindGroup {
		return nil, fmt.Errorf("attendance: party kind %q: %w", party.Kind, protocol.ErrInvalidArgument)
	}
	a := &Attendance{
		party:  party,
		order:  order,
		status: protocol.StatusWaiting,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Start moves the attendance into service. The wait is measured from arrival,
// which is not checked against the clock and may be in the future.
func (a *Attendance) Start(arrival time.Time) error {
	if arrival.IsZero() {
		return fmt.Errorf("attendance: start order %d: arrival time: %w", a.order.ID, protocol.ErrNullReference)
	}
	if a.status != protocol.StatusWaiting {
		return fmt.Errorf("attendance: start order %d: already %s: %w", a.order.ID, a.status, protocol.ErrInvalidState)
	}
	a.started = a.now()
	a.wait = a.started.Sub(arrival)
	a.status = protocol.StatusInService
	return nil
}

// Finish closes the attendance and returns it.
func (a *Attendance) Finish() (*Attendance, error) {
	switch a.status {
	case protocol.StatusWaiting:
		return nil, fmt.Errorf("attendance: finish order %d: never started: %w", a.order.ID, protocol.ErrNullReference)
	case protocol.StatusFinished:
		return nil, fmt.Errorf("attendance: finish order %d: already finished: %w", a.order.ID, protocol.ErrInvalidState)
	}
	a.ended = a.now()
	a.service = a.ended.Sub(a.started)
	a.status = protocol.StatusFinished
	return a, nil
}

// TotalElapsed is the time between start and end.
func (a *Attendance) TotalElapsed() (time.Duration, error) {
	if a.started.IsZero() || a.ended.IsZero() {
		return 0, fmt.Errorf("attendance: elapsed order %d: start or end not set: %w", a.order.ID, protocol.ErrNullReference)
	}
	return a.ended.Sub(a.started), nil
}

// AddItem appends a line to the order. Finished attendances are closed for edits.
func (a *Attendance) AddItem(li protocol.LineItem) error {
	if a.status == protocol.StatusFinished {
		return fmt.Errorf("attendance: order %d is closed: %w", a.order.ID, protocol.ErrInvalidState)
	}
	return a.order.AddItem(li)
}

// RemoveItem deletes line i from the order.
func (a *Attendance) RemoveItem(i int) (protocol.LineItem, error) {
	if a.status == protocol.StatusFinished {
		return protocol.LineItem{}, fmt.Errorf("attendance: order %d is closed: %w", a.order.ID, protocol.ErrInvalidState)
	}
	return a.order.RemoveItem(i)
}

func (a *Attendance) Party() *protocol.Party   { return a.party }
func (a *Attendance) Kind() protocol.PartyKind { return a.party.Kind }
func (a *Attendance) Order() *protocol.Order   { return a.order }
func (a *Attendance) Status() protocol.Status  { return a.status }
func (a *Attendance) StartedAt() time.Time     { return a.started }
func (a *Attendance) EndedAt() time.Time       { return a.ended }
func (a *Attendance) Wait() time.Duration      { return a.wait }
func (a *Attendance) Service() time.Duration   { return a.service }

// Record returns a detached copy suitable for serialization.
func (a *Attendance) Record() protocol.AttendanceRecord {
	return protocol.AttendanceRecord{
		Status:    a.status,
		Party:     a.party.Snapshot(),
		Order:     a.order.Clone(),
		StartedAt: a.started,
		EndedAt:   a.ended,
		Wait:      a.wait,
		Service:   a.service,
	}
}

// FromRecord rebuilds an attendance from its serialized form.
func FromRecord(rec protocol.AttendanceRecord, opts ...Option) (*Attendance, error) {
	if rec.Party != nil {
		if err := rec.Party.Validate(); err != nil {
			return nil, fmt.Errorf("attendance: restore: %w", err)
		}
	}
	a, err := New(rec.Party, rec.Order, opts...)
	if err != nil {
		return nil, err
	}
	switch rec.Status {
	case protocol.StatusWaiting:
	case protocol.StatusInService:
		if rec.StartedAt.IsZero() {
			return nil, fmt.Errorf("attendance: restore order %d: in service without start: %w", rec.Order.ID, protocol.ErrInvalidArgument)
		}
	case protocol.StatusFinished:
		if rec.StartedAt.IsZero() || rec.EndedAt.IsZero() {
			return nil, fmt.Errorf("attendance: restore order %d: finished without start and end: %w", rec.Order.ID, protocol.ErrInvalidArgument)
		}
	default:
		return nil, fmt.Errorf("attendance: restore order %d: status %q: %w", rec.Order.ID, rec.Status, protocol.ErrInvalidArgument)
	}
	a.status = rec.Status
	a.started = rec.StartedAt
	a.ended = rec.EndedAt
	a.wait = rec.Wait
	a.service = rec.Service
	return a, nil
}
