// Package lobby holds parties that have arrived but are not yet assigned to a
// waiter.
package lobby

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/maitre-io/maitre/pkg/protocol"
)

// Queue is the general waiting queue: FIFO by default, reorderable to
// priority-first then name order. Not safe for concurrent use.
type Queue struct {
	parties []*protocol.Party
}

// New returns an empty queue.
func New() *Queue { return &Queue{} }

// Add appends p at the tail.
func (q *Queue) Add(p *protocol.Party) error {
	if p == nil {
		return fmt.Errorf("lobby: add: %w", protocol.ErrNullReference)
	}
	q.parties = append(q.parties, p)
	return nil
}

// AddFirst puts p back at the head, e.g. after a refused admission.
func (q *Queue) AddFirst(p *protocol.Party) error {
	if p == nil {
		return fmt.Errorf("lobby: add first: %w", protocol.ErrNullReference)
	}
	q.parties = slices.Insert(q.parties, 0, p)
	return nil
}

// RemoveFirst pops the head.
func (q *Queue) RemoveFirst() (*protocol.Party, bool) {
	if len(q.parties) == 0 {
		return nil, false
	}
	p := q.parties[0]
	q.parties = slices.Delete(q.parties, 0, 1)
	return p, true
}

// Contains reports whether p itself is waiting.
func (q *Queue) Contains(p *protocol.Party) bool {
	return slices.Contains(q.parties, p)
}

// Remove deletes p by identity.
func (q *Queue) Remove(p *protocol.Party) bool {
	i := slices.Index(q.parties, p)
	if i < 0 {
		return false
	}
	q.parties = slices.Delete(q.parties, i, i+1)
	return true
}

// Find returns the waiting party with the given kind and id.
func (q *Queue) Find(kind protocol.PartyKind, id int) (*protocol.Party, bool) {
	for _, p := range q.parties {
		if p.Kind == kind && p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Reorder stable-sorts priority parties first, then by name.
func (q *Queue) Reorder() {
	slices.SortStableFunc(q.parties, func(a, b *protocol.Party) int {
		if c := cmp.Compare(a.Class().Rank(), b.Class().Rank()); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

func (q *Queue) Len() int { return len(q.parties) }

func (q *Queue) Clear() { q.parties = nil }

// Snapshot returns detached copies in queue order.
func (q *Queue) Snapshot() []*protocol.Party {
	out := make([]*protocol.Party, len(q.parties))
	for i, p := range q.parties {
		out[i] = p.Snapshot()
	}
	return out
}
