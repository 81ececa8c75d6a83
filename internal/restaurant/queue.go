package restaurant

import (
	"fmt"

	"github.com/maitre-io/maitre/pkg/protocol"
)

// Guest describes a client being registered at the door.
type Guest struct {
	Name        string            `json:"name"`
	Priority    protocol.Priority `json:"priority,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	Preferences []string          `json:"preferences,omitempty"`
}

// Arrival is a door registration: an individual, or a group when Members is
// not empty.
type Arrival struct {
	Guest
	Members []Guest `json:"members,omitempty"`
}

func (r *Restaurant) newIndividual(g Guest) (*protocol.Party, error) {
	prio, err := protocol.ParsePriority(string(g.Priority))
	if err != nil {
		return nil, err
	}
	p, err := protocol.NewIndividual(r.NextPartyID(), g.Name, prio)
	if err != nil {
		return nil, err
	}
	p.Notes = g.Notes
	for _, pref := range g.Preferences {
		if err := p.AddPreference(pref); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// RegisterIndividual creates an individual party and enqueues it.
func (r *Restaurant) RegisterIndividual(g Guest) (*protocol.Party, error) {
	p, err := r.newIndividual(g)
	if err != nil {
		return nil, fmt.Errorf("restaurant: register individual: %w", err)
	}
	if err := r.Enqueue(p); err != nil {
		return nil, err
	}
	return p.Snapshot(), nil
}

// RegisterGroup creates a group of members and enqueues it. A group needs at
// least one member.
func (r *Restaurant) RegisterGroup(name, notes string, members []Guest) (*protocol.Party, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("restaurant: register group %q: no members: %w", name, protocol.ErrInvalidArgument)
	}
	g, err := protocol.NewGroup(r.NextGroupID(), name)
	if err != nil {
		return nil, fmt.Errorf("restaurant: register group: %w", err)
	}
	g.Notes = notes
	for _, m := range members {
		p, err := r.newIndividual(m)
		if err != nil {
			return nil, fmt.Errorf("restaurant: register group %q: %w", name, err)
		}
		if err := g.AddMember(p); err != nil {
			return nil, fmt.Errorf("restaurant: register group %q: %w", name, err)
		}
	}
	if err := r.Enqueue(g); err != nil {
		return nil, err
	}
	return g.Snapshot(), nil
}

// Register enqueues an arrival as a group or an individual.
func (r *Restaurant) Register(a Arrival) (*protocol.Party, error) {
	if len(a.Members) > 0 {
		return r.RegisterGroup(a.Name, a.Notes, a.Members)
	}
	return r.RegisterIndividual(a.Guest)
}

// Enqueue appends p to the general waiting queue, stamping its arrival if it
// has none yet.
func (r *Restaurant) Enqueue(p *protocol.Party) error {
	if p == nil {
		return fmt.Errorf("restaurant: enqueue: %w", protocol.ErrNullReference)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("restaurant: enqueue: %w", err)
	}
	if p.IsGroup() && len(p.Members) == 0 {
		return fmt.Errorf("restaurant: enqueue group %q: no members: %w", p.Name, protocol.ErrInvalidArgument)
	}

	r.mu.Lock()
	if r.lobby.Contains(p) {
		r.mu.Unlock()
		return fmt.Errorf("restaurant: enqueue %s %d: already waiting: %w", p.Kind, p.ID, protocol.ErrInvalidArgument)
	}
	for _, w := range r.waiters {
		if w.Serving(p) {
			r.mu.Unlock()
			return fmt.Errorf("restaurant: enqueue %s %d: already served by waiter %d: %w", p.Kind, p.ID, w.ID(), protocol.ErrInvalidArgument)
		}
	}
	if !p.Arrived() {
		p.MarkArrival(r.now())
	}
	if p.IsGroup() {
		r.groupIDs.Observe(p.ID)
	} else {
		r.partyIDs.Observe(p.ID)
	}
	err := r.lobby.Add(p)
	waiting := r.lobby.Len()
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("restaurant: enqueue: %w", err)
	}

	r.logger.Info("party enqueued", "party", p.ID, "kind", p.Kind, "priority", p.Class(), "waiting", waiting)
	ev := r.event(protocol.EventPartyEnqueued)
	ev.PartyID, ev.PartyName = p.ID, p.Name
	r.publish(ev)
	return nil
}

// Waiting returns copies of the queued parties in order.
func (r *Restaurant) Waiting() []*protocol.Party {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lobby.Snapshot()
}

// ReorderQueue sorts the waiting queue priority first, then by name.
func (r *Restaurant) ReorderQueue() {
	r.mu.Lock()
	r.lobby.Reorder()
	n := r.lobby.Len()
	r.mu.Unlock()
	r.logger.Debug("waiting queue reordered", "waiting", n)
}
