package restaurant

import (
	"context"
	"fmt"

	"github.com/maitre-io/maitre/internal/waiter"
	"github.com/maitre-io/maitre/pkg/protocol"
)

// Save writes the current roster to the store.
func (r *Restaurant) Save(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	r.mu.Lock()
	snapshot := r.recordsLocked()
	r.mu.Unlock()
	if err := r.store.SaveRoster(ctx, snapshot); err != nil {
		return fmt.Errorf("restaurant: save roster: %w", err)
	}
	return nil
}

func (r *Restaurant) persist(ctx context.Context, snapshot []protocol.WaiterRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveRoster(ctx, snapshot); err != nil {
		r.logger.Error("save roster", "waiters", len(snapshot), "error", err)
		return
	}
	r.logger.Info("roster saved", "waiters", len(snapshot))
}

// Restore loads the saved roster and registers every waiter in it. Id
// counters are advanced past everything loaded. When every restored waiter
// is on the same shift the restaurant resumes that shift. It returns the
// number of waiters restored.
func (r *Restaurant) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	records, err := r.store.LoadRoster(ctx)
	if err != nil {
		return 0, fmt.Errorf("restaurant: load roster: %w", err)
	}
	for _, rec := range records {
		w, err := waiter.FromRecord(rec, waiter.WithClock(r.now), waiter.WithLogger(r.logger))
		if err != nil {
			return 0, fmt.Errorf("restaurant: restore: %w", err)
		}
		if err := r.AddWaiter(w); err != nil {
			return 0, fmt.Errorf("restaurant: restore: %w", err)
		}
		r.observe(rec)
	}

	shift, ok := sharedShift(records)
	if ok {
		r.mu.Lock()
		r.shift = shift
		r.mu.Unlock()
	} else if len(records) > 0 {
		r.logger.Warn("restored waiters disagree on shift, restaurant left off shift")
	}
	r.logger.Info("roster restored", "waiters", len(records), "shift", r.Shift().String())
	return len(records), nil
}

// sharedShift returns the shift common to every record. Off shift counts as
// agreement on none.
func sharedShift(records []protocol.WaiterRecord) (protocol.Shift, bool) {
	if len(records) == 0 {
		return protocol.ShiftNone, false
	}
	s := records[0].Shift
	for _, rec := range records[1:] {
		if rec.Shift != s {
			return protocol.ShiftNone, false
		}
	}
	if s != protocol.ShiftNone && !s.Valid() {
		return protocol.ShiftNone, false
	}
	return s, true
}

func (r *Restaurant) observe(rec protocol.WaiterRecord) {
	for _, list := range [][]protocol.AttendanceRecord{rec.Individuals, rec.Groups} {
		for _, ar := range list {
			if ar.Order != nil {
				r.orderIDs.Observe(ar.Order.ID)
			}
			if ar.Party == nil {
				continue
			}
			if ar.Party.IsGroup() {
				r.groupIDs.Observe(ar.Party.ID)
				for _, m := range ar.Party.Members {
					r.partyIDs.Observe(m.ID)
				}
			} else {
				r.partyIDs.Observe(ar.Party.ID)
			}
		}
	}
}
