// Package connector delivers floor events to external channels and accepts
// arrivals from external systems.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/maitre-io/maitre/pkg/protocol"
)

// Notifier delivers a floor event to one external platform.
type Notifier interface {
	// Name returns the notifier type (e.g., "slack", "rabbitmq").
	Name() string
	// Notify sends one event. Implementations may block on I/O.
	Notify(ctx context.Context, ev protocol.Event) error
}

// DefaultBuffer is the number of events Fanout holds before dropping.
const DefaultBuffer = 256

// Fanout queues published events and delivers each one to every registered
// notifier from a single goroutine. Publish never blocks; when the buffer is
// full the event is dropped and logged.
type Fanout struct {
	mu        sync.RWMutex
	notifiers []Notifier
	events    chan protocol.Event
	logger    *slog.Logger
}

// NewFanout creates a fanout with room for size pending events.
func NewFanout(size int, logger *slog.Logger) *Fanout {
	if size <= 0 {
		size = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{
		events: make(chan protocol.Event, size),
		logger: logger,
	}
}

// Register adds n to the delivery list.
func (f *Fanout) Register(n Notifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifiers = append(f.notifiers, n)
	f.logger.Info("notifier registered", "notifier", n.Name())
}

// Notifiers returns the registered notifier names.
func (f *Fanout) Notifiers() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, len(f.notifiers))
	for i, n := range f.notifiers {
		names[i] = n.Name()
	}
	return names
}

// Publish queues ev for delivery.
func (f *Fanout) Publish(ev protocol.Event) {
	select {
	case f.events <- ev:
	default:
		f.logger.Warn("event dropped, fanout buffer full", "event", string(ev.Type), "id", ev.ID)
	}
}

// Run delivers events until ctx is cancelled, then drains what is already
// queued.
func (f *Fanout) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-f.events:
			f.deliver(ctx, ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-f.events:
					f.deliver(context.WithoutCancel(ctx), ev)
				default:
					return ctx.Err()
				}
			}
		}
	}
}

func (f *Fanout) deliver(ctx context.Context, ev protocol.Event) {
	f.mu.RLock()
	notifiers := f.notifiers
	f.mu.RUnlock()

	for _, n := range notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			f.logger.Error("notify failed",
				"notifier", n.Name(),
				"event", string(ev.Type),
				"error", err,
			)
		}
	}
}

// Format renders ev as one line of Markdown for chat platforms.
func Format(ev protocol.Event) string {
	var b strings.Builder
	if ev.Restaurant != "" {
		fmt.Fprintf(&b, "**%s** ", ev.Restaurant)
	}
	party := ev.PartyName
	if party == "" {
		party = fmt.Sprintf("party %d", ev.PartyID)
	}
	switch ev.Type {
	case protocol.EventPartyEnqueued:
		fmt.Fprintf(&b, "%s joined the waiting queue", party)
	case protocol.EventPartyDispatched:
		fmt.Fprintf(&b, "%s seated with waiter %d, order #%d", party, ev.WaiterID, ev.OrderID)
	case protocol.EventDispatchAtCapacity:
		if ev.WaiterID != 0 {
			fmt.Fprintf(&b, "waiter %d is full, %s keeps waiting", ev.WaiterID, party)
		} else {
			fmt.Fprintf(&b, "no waiter has room, %s keeps waiting", party)
		}
	case protocol.EventAttendanceFinished:
		fmt.Fprintf(&b, "order #%d closed for %s, total %.2f", ev.OrderID, party, ev.Total)
	case protocol.EventShiftStarted:
		fmt.Fprintf(&b, "*%s* shift started", ev.Shift)
	case protocol.EventShiftEnded:
		fmt.Fprintf(&b, "*%s* shift ended", ev.Shift)
	default:
		b.WriteString(string(ev.Type))
	}
	return b.String()
}
