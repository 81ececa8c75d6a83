// Package waiter models a service agent with bounded concurrent capacity for
// individual and group attendances.
package waiter

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/maitre-io/maitre/internal/attendance"
	"github.com/maitre-io/maitre/pkg/protocol"
)

const (
	IndividualCapacity = 5
	GroupCapacity      = 3
)

// Admission is the outcome of a serve call.
type Admission int

const (
	Admitted Admission = iota
	AtCapacity
)

func (a Admission) String() string {
	if a == AtCapacity {
		return "at_capacity"
	}
	return "admitted"
}

// OrderIDs hands out order numbers. The restaurant shares one source across
// all waiters so order ids are unique per run.
type OrderIDs interface {
	Next() int
}

type localIDs struct{ n atomic.Int64 }

func (l *localIDs) Next() int { return int(l.n.Add(1)) }

// Option configures a Waiter.
type Option func(*Waiter)

// WithOrderIDs sets the order number source.
func WithOrderIDs(ids OrderIDs) Option {
	return func(w *Waiter) {
		if ids != nil {
			w.orders = ids
		}
	}
}

// WithClock sets the time source passed to new attendances.
func WithClock(now func() time.Time) Option {
	return func(w *Waiter) {
		if now != nil {
			w.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Waiter) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Waiter owns one individual and one group attendance queue. It is not safe
// for concurrent use.
type Waiter struct {
	id          int
	name        string
	shift       protocol.Shift
	individuals *attendance.Queue
	groups      *attendance.Queue
	orders      OrderIDs
	now         func() time.Time
	logger      *slog.Logger
}

// New creates an off-shift waiter with empty queues.
func New(id int, name string, opts ...Option) (*Waiter, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("waiter: name is blank: %w", protocol.ErrInvalidArgument)
	}
	w := &Waiter{
		id:          id,
		name:        name,
		individuals: attendance.NewQueue(protocol.KindIndividual, IndividualCapacity),
		groups:      attendance.NewQueue(protocol.KindGroup, GroupCapacity),
		orders:      &localIDs{},
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Waiter) ID() int                        { return w.id }
func (w *Waiter) Name() string                   { return w.name }
func (w *Waiter) Shift() protocol.Shift          { return w.shift }
func (w *Waiter) SetShift(s protocol.Shift)      { w.shift = s }
func (w *Waiter) Individuals() *attendance.Queue { return w.individuals }
func (w *Waiter) Groups() *attendance.Queue      { return w.groups }

// Bind attaches a shared order source, clock and logger after construction.
func (w *Waiter) Bind(ids OrderIDs, now func() time.Time, logger *slog.Logger) {
	WithOrderIDs(ids)(w)
	WithClock(now)(w)
	WithLogger(logger)(w)
}

func (w *Waiter) CanAcceptMoreIndividuals() bool { return !w.individuals.Full() }
func (w *Waiter) CanAcceptMoreGroups() bool      { return !w.groups.Full() }

// CanAccept reports capacity for the category of party.
func (w *Waiter) CanAccept(party *protocol.Party) bool {
	if party.IsGroup() {
		return w.CanAcceptMoreGroups()
	}
	return w.CanAcceptMoreIndividuals()
}

// ServeIndividual opens an attendance for an individual party, started from
// its arrival time. A full queue is reported as AtCapacity without error.
func (w *Waiter) ServeIndividual(party *protocol.Party) (Admission, *attendance.Attendance, error) {
	if party == nil {
		return AtCapacity, nil, fmt.Errorf("waiter: serve individual: %w", protocol.ErrNullReference)
	}
	if party.Kind != protocol.KindIndividual {
		return AtCapacity, nil, fmt.Errorf("waiter: serve individual: %q is a %s: %w", party.Name, party.Kind, protocol.ErrInvalidArgument)
	}
	return w.serve(w.individuals, party)
}

// ServeGroup is ServeIndividual for the group category.
func (w *Waiter) ServeGroup(party *protocol.Party) (Admission, *attendance.Attendance, error) {
	if party == nil {
		return AtCapacity, nil, fmt.Errorf("waiter: serve group: %w", protocol.ErrNullReference)
	}
	if party.Kind != protocol.KindGroup {
		return AtCapacity, nil, fmt.Errorf("waiter: serve group: %q is a %s: %w", party.Name, party.Kind, protocol.ErrInvalidArgument)
	}
	return w.serve(w.groups, party)
}

// Serve dispatches to ServeIndividual or ServeGroup by party kind.
func (w *Waiter) Serve(party *protocol.Party) (Admission, *attendance.Attendance, error) {
	if party == nil {
		return AtCapacity, nil, fmt.Errorf("waiter: serve: %w", protocol.ErrNullReference)
	}
	switch party.Kind {
	case protocol.KindIndividual:
		return w.ServeIndividual(party)
	case protocol.KindGroup:
		return w.ServeGroup(party)
	}
	return AtCapacity, nil, fmt.Errorf("waiter: serve: party kind %q: %w", party.Kind, protocol.ErrInvalidArgument)
}

func (w *Waiter) serve(q *attendance.Queue, party *protocol.Party) (Admission, *attendance.Attendance, error) {
	if q.Full() {
		w.logger.Info("waiter at capacity",
			"waiter", w.id,
			"party", party.ID,
			"category", q.Kind(),
			"capacity", q.Capacity(),
			"outcome", AtCapacity.String(),
		)
		return AtCapacity, nil, nil
	}
	// Draw the order id only once the attendance can start.
	if !party.Arrived() {
		return AtCapacity, nil, fmt.Errorf("waiter: serve %q: arrival time: %w", party.Name, protocol.ErrNullReference)
	}
	a, err := attendance.New(party, protocol.NewOrder(w.orders.Next()), attendance.WithClock(w.now))
	if err != nil {
		return AtCapacity, nil, fmt.Errorf("waiter: serve %q: %w", party.Name, err)
	}
	if err := a.Start(party.ArrivedAt); err != nil {
		return AtCapacity, nil, fmt.Errorf("waiter: serve %q: %w", party.Name, err)
	}
	if err := q.Add(a); err != nil {
		return AtCapacity, nil, fmt.Errorf("waiter: serve %q: %w", party.Name, err)
	}
	w.logger.Info("attendance started",
		"waiter", w.id,
		"party", party.ID,
		"order", a.Order().ID,
		"wait", a.Wait().String(),
	)
	return Admitted, a, nil
}

// RemoveFinishedAttendance drops a from the queue matching its party kind.
func (w *Waiter) RemoveFinishedAttendance(a *attendance.Attendance) (bool, error) {
	if a == nil {
		return false, fmt.Errorf("waiter: remove attendance: %w", protocol.ErrNullReference)
	}
	if a.Kind() == protocol.KindGroup {
		return w.groups.Remove(a)
	}
	return w.individuals.Remove(a)
}

// Holds reports whether a is in one of the waiter's queues.
func (w *Waiter) Holds(a *attendance.Attendance) bool {
	return w.individuals.Contains(a) || w.groups.Contains(a)
}

// Serving reports whether party is held in one of the waiter's queues.
func (w *Waiter) Serving(party *protocol.Party) bool {
	for _, q := range []*attendance.Queue{w.individuals, w.groups} {
		for _, a := range q.All() {
			if a.Party() == party {
				return true
			}
		}
	}
	return false
}

// FindOrder returns the active attendance holding the order.
func (w *Waiter) FindOrder(orderID int) (*attendance.Attendance, bool) {
	if a, ok := w.individuals.FindOrder(orderID); ok {
		return a, true
	}
	return w.groups.FindOrder(orderID)
}

// ClearQueues empties both queues.
func (w *Waiter) ClearQueues() {
	w.individuals.Clear()
	w.groups.Clear()
}

// Record returns a detached snapshot of the waiter and its queues.
func (w *Waiter) Record() protocol.WaiterRecord {
	return protocol.WaiterRecord{
		ID:          w.id,
		Name:        w.name,
		Shift:       w.shift,
		Individuals: w.individuals.Records(),
		Groups:      w.groups.Records(),
	}
}

// FromRecord rebuilds a waiter and its active attendances.
func FromRecord(rec protocol.WaiterRecord, opts ...Option) (*Waiter, error) {
	w, err := New(rec.ID, rec.Name, opts...)
	if err != nil {
		return nil, err
	}
	w.shift = rec.Shift
	restore := func(q *attendance.Queue, recs []protocol.AttendanceRecord) error {
		for _, ar := range recs {
			a, err := attendance.FromRecord(ar, attendance.WithClock(w.now))
			if err != nil {
				return fmt.Errorf("waiter %d: %w", rec.ID, err)
			}
			if err := q.Add(a); err != nil {
				return fmt.Errorf("waiter %d: %w", rec.ID, err)
			}
		}
		return nil
	}
	if err := restore(w.individuals, rec.Individuals); err != nil {
		return nil, err
	}
	if err := restore(w.groups, rec.Groups); err != nil {
		return nil, err
	}
	return w, nil
}
