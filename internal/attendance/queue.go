package attendance

import (
	"fmt"
	"slices"

	"github.com/maitre-io/maitre/pkg/protocol"
)

// Queue holds the attendances of one category (individual or group) for one
// waiter. Entries are kept ordered by status rank, insertion order within a
// rank, and are removed by identity.
type Queue struct {
	kind     protocol.PartyKind
	capacity int
	items    []*Attendance
}

// NewQueue returns an empty queue for kind that admits up to capacity entries.
func NewQueue(kind protocol.PartyKind, capacity int) *Queue {
	return &Queue{kind: kind, capacity: capacity}
}

func (q *Queue) Kind() protocol.PartyKind { return q.kind }
func (q *Queue) Capacity() int            { return q.capacity }
func (q *Queue) Len() int                 { return len(q.items) }

// Full reports whether the queue has reached its capacity.
func (q *Queue) Full() bool { return len(q.items) >= q.capacity }

// Add inserts a after every entry of equal or lower status rank.
func (q *Queue) Add(a *Attendance) error {
	if a == nil {
		return fmt.Errorf("attendance queue: add: %w", protocol.ErrNullReference)
	}
	if a.Kind() != q.kind {
		return fmt.Errorf("attendance queue: %s attendance in %s queue: %w", a.Kind(), q.kind, protocol.ErrInvalidArgument)
	}
	i := len(q.items)
	for i > 0 && q.items[i-1].Status().Rank() > a.Status().Rank() {
		i--
	}
	q.items = slices.Insert(q.items, i, a)
	return nil
}

// RemoveNext pops the head entry.
func (q *Queue) RemoveNext() (*Attendance, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	a := q.items[0]
	q.items = slices.Delete(q.items, 0, 1)
	return a, true
}

// Remove deletes a by identity and reports whether it was present.
func (q *Queue) Remove(a *Attendance) (bool, error) {
	if a == nil {
		return false, fmt.Errorf("attendance queue: remove: %w", protocol.ErrNullReference)
	}
	i := slices.Index(q.items, a)
	if i < 0 {
		return false, nil
	}
	q.items = slices.Delete(q.items, i, i+1)
	q.Reorder()
	return true, nil
}

// Contains reports whether a is held by the queue.
func (q *Queue) Contains(a *Attendance) bool {
	return slices.Contains(q.items, a)
}

// CountActive counts entries that are not finished.
func (q *Queue) CountActive() int {
	n := 0
	for _, a := range q.items {
		if a.Status() != protocol.StatusFinished {
			n++
		}
	}
	return n
}

// FindOrder returns the entry whose order has the given id.
func (q *Queue) FindOrder(orderID int) (*Attendance, bool) {
	for _, a := range q.items {
		if a.Order().ID == orderID {
			return a, true
		}
	}
	return nil, false
}

// Reorder re-sorts by status rank after entries changed state in place.
func (q *Queue) Reorder() {
	slices.SortStableFunc(q.items, func(a, b *Attendance) int {
		return a.Status().Rank() - b.Status().Rank()
	})
}

func (q *Queue) Clear() { q.items = nil }

// All returns the entries in queue order.
func (q *Queue) All() []*Attendance {
	return slices.Clone(q.items)
}

// Records returns detached copies of every entry in queue order.
func (q *Queue) Records() []protocol.AttendanceRecord {
	out := make([]protocol.AttendanceRecord, len(q.items))
	for i, a := range q.items {
		out[i] = a.Record()
	}
	return out
}
