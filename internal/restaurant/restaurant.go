// Package restaurant is the coordinator that owns the waiter roster, the
// general waiting queue and the finished-attendance history.
package restaurant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/maitre-io/maitre/internal/attendance"
	"github.com/maitre-io/maitre/internal/lobby"
	"github.com/maitre-io/maitre/internal/menu"
	"github.com/maitre-io/maitre/internal/roster"
	"github.com/maitre-io/maitre/internal/waiter"
	"github.com/maitre-io/maitre/pkg/protocol"
)

// EventSink receives floor events. Publish must not block.
type EventSink interface {
	Publish(ev protocol.Event)
}

// Options holds the optional collaborators of a Restaurant.
type Options struct {
	Store  roster.Store // nil disables persistence
	Menu   *menu.Menu
	Events EventSink
	Logger *slog.Logger
	Now    func() time.Time
}

// Restaurant coordinates dispatch, shifts and lookups. A single mutex
// serializes every operation on its state.
type Restaurant struct {
	mu      sync.Mutex
	name    string
	shift   protocol.Shift
	waiters []*waiter.Waiter
	lobby   *lobby.Queue
	history []*attendance.Attendance
	menu    *menu.Menu

	waiterIDs sequence
	partyIDs  sequence
	groupIDs  sequence
	orderIDs  sequence

	store  roster.Store
	events EventSink
	logger *slog.Logger
	now    func() time.Time
}

// New creates a restaurant with no waiters and an empty queue.
func New(name string, opts Options) (*Restaurant, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("restaurant: name is blank: %w", protocol.ErrInvalidArgument)
	}
	r := &Restaurant{
		name:   name,
		lobby:  lobby.New(),
		menu:   opts.Menu,
		store:  opts.Store,
		events: opts.Events,
		logger: opts.Logger,
		now:    opts.Now,
	}
	if r.menu == nil {
		r.menu, _ = menu.New()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

func (r *Restaurant) Name() string     { return r.name }
func (r *Restaurant) Menu() *menu.Menu { return r.menu }

// MenuItems returns the catalog in insertion order.
func (r *Restaurant) MenuItems() []protocol.MenuItem { return r.menu.Items() }

// AddMenuItem lists a new item. Orders already placed keep their prices.
func (r *Restaurant) AddMenuItem(it protocol.MenuItem) (protocol.MenuItem, error) {
	if err := r.menu.Add(it); err != nil {
		return protocol.MenuItem{}, fmt.Errorf("restaurant: %w", err)
	}
	added, _ := r.menu.Find(it.Name)
	r.logger.Info("menu item added", "item", added.Name, "price", added.Price)
	return added, nil
}

// RemoveMenuItem delists an item by name, ignoring case.
func (r *Restaurant) RemoveMenuItem(name string) error {
	if !r.menu.Remove(name) {
		return fmt.Errorf("restaurant: menu item %q: %w", name, protocol.ErrNotFound)
	}
	r.logger.Info("menu item removed", "item", name)
	return nil
}

// NextWaiterID, NextPartyID and NextGroupID are independent counters that
// start at 1 and never repeat within a run.
func (r *Restaurant) NextWaiterID() int { return r.waiterIDs.Next() }
func (r *Restaurant) NextPartyID() int  { return r.partyIDs.Next() }
func (r *Restaurant) NextGroupID() int  { return r.groupIDs.Next() }

// Shift returns the restaurant-wide shift.
func (r *Restaurant) Shift() protocol.Shift {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shift
}

// StartShift sets the current shift on the restaurant and every waiter.
func (r *Restaurant) StartShift(s protocol.Shift) error {
	if !s.Valid() {
		return fmt.Errorf("restaurant: start shift %q: %w", s, protocol.ErrInvalidArgument)
	}
	r.mu.Lock()
	r.shift = s
	for _, w := range r.waiters {
		w.SetShift(s)
	}
	n := len(r.waiters)
	r.mu.Unlock()

	r.logger.Info("shift started", "shift", s.String(), "waiters", n)
	ev := r.event(protocol.EventShiftStarted)
	ev.Shift = s
	r.publish(ev)
	return nil
}

// EndShift clears every shift and then saves the roster. A failed save is
// logged and does not undo the transition.
func (r *Restaurant) EndShift(ctx context.Context) {
	r.mu.Lock()
	ended := r.shift
	r.shift = protocol.ShiftNone
	for _, w := range r.waiters {
		w.SetShift(protocol.ShiftNone)
	}
	snapshot := r.recordsLocked()
	r.mu.Unlock()

	r.logger.Info("shift ended", "shift", ended.String())
	ev := r.event(protocol.EventShiftEnded)
	ev.Shift = ended
	r.publish(ev)

	r.persist(ctx, snapshot)
}

// AddWaiter registers w and binds it to the shared order counter and clock.
func (r *Restaurant) AddWaiter(w *waiter.Waiter) error {
	if w == nil {
		return fmt.Errorf("restaurant: add waiter: %w", protocol.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.waiterLocked(w.ID()); ok {
		return fmt.Errorf("restaurant: waiter %d already registered: %w", w.ID(), protocol.ErrInvalidArgument)
	}
	w.Bind(&r.orderIDs, r.now, r.logger)
	r.waiterIDs.Observe(w.ID())
	r.waiters = append(r.waiters, w)
	r.logger.Info("waiter registered", "waiter", w.ID(), "name", w.Name())
	return nil
}

// HireWaiter creates a waiter with the next waiter id and registers it.
func (r *Restaurant) HireWaiter(name string) (protocol.WaiterRecord, error) {
	w, err := waiter.New(r.NextWaiterID(), name, waiter.WithClock(r.now))
	if err != nil {
		return protocol.WaiterRecord{}, fmt.Errorf("restaurant: hire: %w", err)
	}
	if err := r.AddWaiter(w); err != nil {
		return protocol.WaiterRecord{}, err
	}
	return r.snapshotWaiter(w), nil
}

// FindWaiter looks a waiter up by id.
func (r *Restaurant) FindWaiter(id int) (protocol.WaiterRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.waiterLocked(id)
	if !ok {
		return protocol.WaiterRecord{}, false
	}
	return w.Record(), true
}

// Waiters returns every waiter in registration order.
func (r *Restaurant) Waiters() []protocol.WaiterRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recordsLocked()
}

// ValidateWaiterLogin returns the waiter whose id matches and whose name
// matches ignoring case.
func (r *Restaurant) ValidateWaiterLogin(id int, name string) (protocol.WaiterRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.waiterLocked(id)
	if !ok || !strings.EqualFold(w.Name(), strings.TrimSpace(name)) {
		return protocol.WaiterRecord{}, false
	}
	return w.Record(), true
}

// Status summarizes the floor.
func (r *Restaurant) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{
		Name:     r.name,
		Shift:    r.shift,
		Waiting:  r.lobby.Len(),
		Finished: len(r.history),
		Waiters:  make([]WaiterLoad, 0, len(r.waiters)),
	}
	for _, w := range r.waiters {
		st.Waiters = append(st.Waiters, WaiterLoad{
			ID:          w.ID(),
			Name:        w.Name(),
			Shift:       w.Shift(),
			Individuals: w.Individuals().Len(),
			Groups:      w.Groups().Len(),
		})
	}
	return st
}

// Status is a point-in-time summary of the restaurant.
type Status struct {
	Name     string         `json:"name"`
	Shift    protocol.Shift `json:"shift"`
	Waiting  int            `json:"waiting"`
	Finished int            `json:"finished"`
	Waiters  []WaiterLoad   `json:"waiters"`
}

// WaiterLoad is a waiter's current load per category.
type WaiterLoad struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Shift       protocol.Shift `json:"shift"`
	Individuals int            `json:"individuals"`
	Groups      int            `json:"groups"`
}

func (r *Restaurant) waiterLocked(id int) (*waiter.Waiter, bool) {
	for _, w := range r.waiters {
		if w.ID() == id {
			return w, true
		}
	}
	return nil, false
}

func (r *Restaurant) recordsLocked() []protocol.WaiterRecord {
	out := make([]protocol.WaiterRecord, len(r.waiters))
	for i, w := range r.waiters {
		out[i] = w.Record()
	}
	return out
}

func (r *Restaurant) snapshotWaiter(w *waiter.Waiter) protocol.WaiterRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return w.Record()
}
