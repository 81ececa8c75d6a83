package restaurant

import (
	"errors"
	"fmt"

	"github.com/maitre-io/maitre/internal/attendance"
	"github.com/maitre-io/maitre/internal/waiter"
	"github.com/maitre-io/maitre/pkg/protocol"
)

// Outcome classifies a dispatch attempt.
type Outcome string

const (
	OutcomeDispatched Outcome = "dispatched"
	OutcomeAtCapacity Outcome = "at_capacity"
	OutcomeQueueEmpty Outcome = "queue_empty"
	OutcomeRejected   Outcome = "rejected"
)

// DispatchResult reports what happened to the party at the head of the queue.
// Capacity and an empty queue are outcomes, not errors.
type DispatchResult struct {
	Outcome  Outcome         `json:"outcome"`
	WaiterID int             `json:"waiter_id,omitempty"`
	Party    *protocol.Party `json:"party,omitempty"`
	OrderID  int             `json:"order_id,omitempty"`
}

// Dispatched reports whether a party was admitted.
func (d DispatchResult) Dispatched() bool { return d.Outcome == OutcomeDispatched }

// Distribute admits p with the first waiter, in registration order, that has
// room in p's category. When nobody has room p is left undispatched.
func (r *Restaurant) Distribute(p *protocol.Party) (DispatchResult, error) {
	if p == nil {
		return DispatchResult{Outcome: OutcomeRejected}, fmt.Errorf("restaurant: distribute: %w", protocol.ErrNullReference)
	}
	r.mu.Lock()
	res, err := r.distributeLocked(p)
	r.mu.Unlock()
	r.reportDispatch(res, err)
	return res, err
}

// DistributeNext pops the head of the waiting queue and distributes it. A
// party nobody can take goes back to the head.
func (r *Restaurant) DistributeNext() (DispatchResult, error) {
	r.mu.Lock()
	p, ok := r.lobby.RemoveFirst()
	if !ok {
		r.mu.Unlock()
		return DispatchResult{Outcome: OutcomeQueueEmpty}, nil
	}
	res, err := r.distributeLocked(p)
	if !res.Dispatched() {
		r.lobby.AddFirst(p)
	}
	r.mu.Unlock()
	r.reportDispatch(res, err)
	return res, err
}

func (r *Restaurant) distributeLocked(p *protocol.Party) (DispatchResult, error) {
	if p.Kind != protocol.KindIndividual && p.Kind != protocol.KindGroup {
		return DispatchResult{Outcome: OutcomeRejected, Party: p.Snapshot()},
			fmt.Errorf("restaurant: distribute %q: party kind %q: %w", p.Name, p.Kind, protocol.ErrInvalidArgument)
	}
	if !p.Arrived() {
		p.MarkArrival(r.now())
	}
	for _, w := range r.waiters {
		if !w.CanAccept(p) {
			continue
		}
		return r.serveLocked(w, p)
	}
	return DispatchResult{Outcome: OutcomeAtCapacity, Party: p.Snapshot()}, nil
}

// DispatchNext is the waiter-driven flow: the head party is handed to the
// given waiter with its arrival reset to now. On a full queue or a failed
// admission the party is restored to the head.
func (r *Restaurant) DispatchNext(waiterID int) (DispatchResult, error) {
	r.mu.Lock()
	w, ok := r.waiterLocked(waiterID)
	if !ok {
		r.mu.Unlock()
		return DispatchResult{Outcome: OutcomeRejected}, fmt.Errorf("restaurant: dispatch: waiter %d: %w", waiterID, protocol.ErrNotFound)
	}
	p, ok := r.lobby.RemoveFirst()
	if !ok {
		r.mu.Unlock()
		return DispatchResult{Outcome: OutcomeQueueEmpty, WaiterID: waiterID}, nil
	}

	var res DispatchResult
	var err error
	if !w.CanAccept(p) {
		res = DispatchResult{Outcome: OutcomeAtCapacity, WaiterID: waiterID, Party: p.Snapshot()}
	} else {
		p.MarkArrival(r.now())
		res, err = r.serveLocked(w, p)
	}
	if !res.Dispatched() {
		r.lobby.AddFirst(p)
	}
	r.mu.Unlock()

	r.reportDispatch(res, err)
	return res, err
}

func (r *Restaurant) serveLocked(w *waiter.Waiter, p *protocol.Party) (DispatchResult, error) {
	adm, a, err := w.Serve(p)
	if err != nil {
		return DispatchResult{Outcome: OutcomeRejected, WaiterID: w.ID(), Party: p.Snapshot()}, fmt.Errorf("restaurant: dispatch: %w", err)
	}
	if adm == waiter.AtCapacity {
		return DispatchResult{Outcome: OutcomeAtCapacity, WaiterID: w.ID(), Party: p.Snapshot()}, nil
	}
	return dispatched(w, p, a), nil
}

func dispatched(w *waiter.Waiter, p *protocol.Party, a *attendance.Attendance) DispatchResult {
	return DispatchResult{
		Outcome:  OutcomeDispatched,
		WaiterID: w.ID(),
		Party:    p.Snapshot(),
		OrderID:  a.Order().ID,
	}
}

func (r *Restaurant) reportDispatch(res DispatchResult, err error) {
	var partyID int
	var partyName string
	if res.Party != nil {
		partyID, partyName = res.Party.ID, res.Party.Name
	}
	switch {
	case errors.Is(err, protocol.ErrNotFound):
		r.logger.Debug("dispatch rejected", "waiter", res.WaiterID, "error", err)
	case err != nil:
		r.logger.Warn("dispatch rejected", "waiter", res.WaiterID, "party", partyID, "error", err)
	case res.Outcome == OutcomeDispatched:
		r.logger.Info("party dispatched", "waiter", res.WaiterID, "party", partyID, "order", res.OrderID)
		ev := r.event(protocol.EventPartyDispatched)
		ev.WaiterID, ev.PartyID, ev.PartyName, ev.OrderID = res.WaiterID, partyID, partyName, res.OrderID
		r.publish(ev)
	case res.Outcome == OutcomeAtCapacity:
		r.logger.Info("no capacity for party", "waiter", res.WaiterID, "party", partyID, "outcome", string(res.Outcome))
		ev := r.event(protocol.EventDispatchAtCapacity)
		ev.WaiterID, ev.PartyID, ev.PartyName = res.WaiterID, partyID, partyName
		r.publish(ev)
	}
}
