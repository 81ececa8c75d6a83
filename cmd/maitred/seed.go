package main

import (
	"fmt"
	"time"

	"github.com/maitre-io/maitre/internal/config"
	"github.com/maitre-io/maitre/internal/restaurant"
	"github.com/maitre-io/maitre/pkg/protocol"
)

// seed hires the configured waiters and queues the configured parties. It
// only runs against an empty roster.
func seed(r *restaurant.Restaurant, rc config.RestaurantConfig, now time.Time) error {
	for _, name := range rc.Waiters {
		if _, err := r.HireWaiter(name); err != nil {
			return fmt.Errorf("seed waiter %q: %w", name, err)
		}
	}
	for _, sp := range rc.Queue {
		p, err := seedParty(r, sp)
		if err != nil {
			return fmt.Errorf("seed party %q: %w", sp.Name, err)
		}
		if sp.ArrivedMinutesAgo > 0 {
			p.MarkArrival(now.Add(-time.Duration(sp.ArrivedMinutesAgo) * time.Minute))
		}
		if err := r.Enqueue(p); err != nil {
			return fmt.Errorf("seed party %q: %w", sp.Name, err)
		}
	}
	return nil
}

func seedParty(r *restaurant.Restaurant, sp config.SeedParty) (*protocol.Party, error) {
	if len(sp.Members) == 0 {
		return seedIndividual(r, sp.Name, sp.Priority, sp.Notes, sp.Preferences)
	}
	g, err := protocol.NewGroup(r.NextGroupID(), sp.Name)
	if err != nil {
		return nil, err
	}
	g.Notes = sp.Notes
	for _, m := range sp.Members {
		ind, err := seedIndividual(r, m.Name, m.Priority, "", m.Preferences)
		if err != nil {
			return nil, err
		}
		if err := g.AddMember(ind); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func seedIndividual(r *restaurant.Restaurant, name, priority, notes string, prefs []string) (*protocol.Party, error) {
	prio, err := protocol.ParsePriority(priority)
	if err != nil {
		return nil, err
	}
	p, err := protocol.NewIndividual(r.NextPartyID(), name, prio)
	if err != nil {
		return nil, err
	}
	p.Notes = notes
	for _, pref := range prefs {
		if err := p.AddPreference(pref); err != nil {
			return nil, err
		}
	}
	return p, nil
}
