package restaurant

import "github.com/maitre-io/maitre/pkg/protocol"

func (r *Restaurant) event(typ protocol.EventType) protocol.Event {
	ev := protocol.NewEvent(typ, r.now())
	ev.Restaurant = r.name
	return ev
}

func (r *Restaurant) publish(ev protocol.Event) {
	if r.events == nil {
		return
	}
	r.events.Publish(ev)
}
