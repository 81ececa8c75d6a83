package restaurant

import (
	"fmt"
	"slices"

	"github.com/maitre-io/maitre/internal/attendance"
	"github.com/maitre-io/maitre/pkg/protocol"
)

// RegisterFinishedAttendance moves a into the history and removes it from
// the waiter still holding it. It reports whether a waiter held it. A nil
// attendance is ignored and history never holds the same attendance twice.
func (r *Restaurant) RegisterFinishedAttendance(a *attendance.Attendance) bool {
	if a == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(a)
}

func (r *Restaurant) registerLocked(a *attendance.Attendance) bool {
	if !slices.Contains(r.history, a) {
		r.history = append(r.history, a)
	}
	for _, w := range r.waiters {
		if !w.Holds(a) {
			continue
		}
		if _, err := w.RemoveFinishedAttendance(a); err != nil {
			r.logger.Error("remove finished attendance", "waiter", w.ID(), "order", a.Order().ID, "error", err)
			return false
		}
		return true
	}
	return false
}

// FinishOrder finishes the active attendance holding orderID and registers it.
func (r *Restaurant) FinishOrder(orderID int) (protocol.AttendanceRecord, error) {
	r.mu.Lock()
	a, waiterID, ok := r.activeLocked(orderID)
	if !ok {
		_, finished := r.historyLocked(orderID)
		r.mu.Unlock()
		if finished {
			return protocol.AttendanceRecord{}, fmt.Errorf("restaurant: finish order %d: already finished: %w", orderID, protocol.ErrInvalidState)
		}
		return protocol.AttendanceRecord{}, fmt.Errorf("restaurant: finish order %d: %w", orderID, protocol.ErrNotFound)
	}
	if _, err := a.Finish(); err != nil {
		r.mu.Unlock()
		return protocol.AttendanceRecord{}, fmt.Errorf("restaurant: %w", err)
	}
	r.registerLocked(a)
	rec := a.Record()
	r.mu.Unlock()

	r.logger.Info("attendance finished",
		"waiter", waiterID,
		"party", rec.Party.ID,
		"order", orderID,
		"service", rec.Service.String(),
		"total", rec.Order.Total(),
	)
	ev := r.event(protocol.EventAttendanceFinished)
	ev.WaiterID, ev.PartyID, ev.PartyName = waiterID, rec.Party.ID, rec.Party.Name
	ev.OrderID, ev.Total = orderID, rec.Order.Total()
	r.publish(ev)
	return rec, nil
}

// FindOrder searches the history first, then every waiter's active queues.
func (r *Restaurant) FindOrder(orderID int) (*protocol.Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.historyLocked(orderID); ok {
		return a.Order().Clone(), true
	}
	if a, _, ok := r.activeLocked(orderID); ok {
		return a.Order().Clone(), true
	}
	return nil, false
}

// FindAttendance is FindOrder returning the whole attendance record.
func (r *Restaurant) FindAttendance(orderID int) (protocol.AttendanceRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.historyLocked(orderID); ok {
		return a.Record(), true
	}
	if a, _, ok := r.activeLocked(orderID); ok {
		return a.Record(), true
	}
	return protocol.AttendanceRecord{}, false
}

// AddOrderItem prices quantity units of a menu item onto an open order.
func (r *Restaurant) AddOrderItem(orderID int, item string, quantity int, notes ...string) (*protocol.Order, error) {
	li, err := r.menu.LineItem(item, quantity)
	if err != nil {
		return nil, fmt.Errorf("restaurant: order %d: %w", orderID, err)
	}
	for _, n := range notes {
		if err := li.AddNote(n); err != nil {
			return nil, fmt.Errorf("restaurant: order %d: %w", orderID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.attendanceLocked(orderID)
	if err != nil {
		return nil, err
	}
	if err := a.AddItem(li); err != nil {
		return nil, fmt.Errorf("restaurant: %w", err)
	}
	r.logger.Debug("order item added", "order", orderID, "item", li.Name, "quantity", li.Quantity)
	return a.Order().Clone(), nil
}

// RemoveOrderItem deletes line index from an open order.
func (r *Restaurant) RemoveOrderItem(orderID, index int) (*protocol.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.attendanceLocked(orderID)
	if err != nil {
		return nil, err
	}
	li, err := a.RemoveItem(index)
	if err != nil {
		return nil, fmt.Errorf("restaurant: %w", err)
	}
	r.logger.Debug("order item removed", "order", orderID, "item", li.Name, "quantity", li.Quantity)
	return a.Order().Clone(), nil
}

// History returns the finished attendances, oldest first.
func (r *Restaurant) History() []protocol.AttendanceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.AttendanceRecord, len(r.history))
	for i, a := range r.history {
		out[i] = a.Record()
	}
	return out
}

func (r *Restaurant) attendanceLocked(orderID int) (*attendance.Attendance, error) {
	if a, _, ok := r.activeLocked(orderID); ok {
		return a, nil
	}
	if a, ok := r.historyLocked(orderID); ok {
		return a, nil
	}
	return nil, fmt.Errorf("restaurant: order %d: %w", orderID, protocol.ErrNotFound)
}

func (r *Restaurant) activeLocked(orderID int) (*attendance.Attendance, int, bool) {
	for _, w := range r.waiters {
		if a, ok := w.FindOrder(orderID); ok {
			return a, w.ID(), true
		}
	}
	return nil, 0, false
}

func (r *Restaurant) historyLocked(orderID int) (*attendance.Attendance, bool) {
	for _, a := range r.history {
		if a.Order().ID == orderID {
			return a, true
		}
	}
	return nil, false
}
