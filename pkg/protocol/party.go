package protocol

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// PartyKind tags the variant of a Party.
type PartyKind string

const (
	KindIndividual PartyKind = "individual"
	KindGroup      PartyKind = "group"
)

// Priority is the service class of a party.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "priority"
)

// ParsePriority accepts "normal" or "priority" in any case. Empty means normal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return PriorityNormal, nil
	case "priority", "high":
		return PriorityHigh, nil
	}
	return "", fmt.Errorf("priority %q: %w", s, ErrInvalidArgument)
}

// Rank orders priority classes: priority parties sort first.
func (p Priority) Rank() int {
	if p == PriorityHigh {
		return 0
	}
	return 1
}

// Party is either an individual client or a group of individuals.
// Kind selects the variant; Members is only populated for groups and
// Priority is only meaningful for individuals (see Class).
type Party struct {
	Kind        PartyKind `json:"kind"`
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Priority    Priority  `json:"priority,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Preferences []string  `json:"preferences,omitempty"`
	ArrivedAt   time.Time `json:"arrived_at,omitzero"`
	Members     []*Party  `json:"members,omitempty"`
}

// NewIndividual builds an individual party with no preferences and no arrival time.
func NewIndividual(id int, name string, priority Priority) (*Party, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("individual name is blank: %w", ErrInvalidArgument)
	}
	if priority == "" {
		priority = PriorityNormal
	}
	if priority != PriorityNormal && priority != PriorityHigh {
		return nil, fmt.Errorf("priority %q: %w", priority, ErrInvalidArgument)
	}
	return &Party{Kind: KindIndividual, ID: id, Name: name, Priority: priority}, nil
}

// NewGroup builds an empty group party.
func NewGroup(id int, name string) (*Party, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("group name is blank: %w", ErrInvalidArgument)
	}
	return &Party{Kind: KindGroup, ID: id, Name: name}, nil
}

// IsGroup reports whether p is the group variant.
func (p *Party) IsGroup() bool { return p.Kind == KindGroup }

// Class returns the effective priority class. A group is priority when any
// member is.
func (p *Party) Class() Priority {
	if p.Kind != KindGroup {
		if p.Priority == PriorityHigh {
			return PriorityHigh
		}
		return PriorityNormal
	}
	for _, m := range p.Members {
		if m.Class() == PriorityHigh {
			return PriorityHigh
		}
	}
	return PriorityNormal
}

// AllPreferences returns the party's preferences. For a group this is the
// union of its own and its members' preferences, first occurrence wins.
func (p *Party) AllPreferences() []string {
	out := slices.Clone(p.Preferences)
	if p.Kind != KindGroup {
		return out
	}
	for _, m := range p.Members {
		for _, pref := range m.AllPreferences() {
			if !slices.Contains(out, pref) {
				out = append(out, pref)
			}
		}
	}
	return out
}

// AddPreference appends a non-blank preference.
func (p *Party) AddPreference(pref string) error {
	pref = strings.TrimSpace(pref)
	if pref == "" {
		return fmt.Errorf("preference is blank: %w", ErrInvalidArgument)
	}
	p.Preferences = append(p.Preferences, pref)
	return nil
}

// RemovePreference drops the first matching preference.
func (p *Party) RemovePreference(pref string) bool {
	i := slices.Index(p.Preferences, pref)
	if i < 0 {
		return false
	}
	p.Preferences = slices.Delete(p.Preferences, i, i+1)
	return true
}

// AddMember appends an individual to a group.
func (p *Party) AddMember(m *Party) error {
	if m == nil {
		return fmt.Errorf("group member: %w", ErrNullReference)
	}
	if p.Kind != KindGroup {
		return fmt.Errorf("%q is not a group: %w", p.Name, ErrInvalidArgument)
	}
	if m.Kind != KindIndividual {
		return fmt.Errorf("group member %q is not an individual: %w", m.Name, ErrInvalidArgument)
	}
	p.Members = append(p.Members, m)
	return nil
}

// MarkArrival stamps the arrival time.
func (p *Party) MarkArrival(t time.Time) { p.ArrivedAt = t }

// Arrived reports whether an arrival time has been stamped.
func (p *Party) Arrived() bool { return !p.ArrivedAt.IsZero() }

// Validate checks the structural invariants of a party decoded from outside.
func (p *Party) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("party %d: name is blank: %w", p.ID, ErrInvalidArgument)
	}
	switch p.Kind {
	case KindIndividual:
		if len(p.Members) > 0 {
			return fmt.Errorf("individual %q has members: %w", p.Name, ErrInvalidArgument)
		}
	case KindGroup:
		for _, m := range p.Members {
			if m == nil || m.Kind != KindIndividual {
				return fmt.Errorf("group %q has a non-individual member: %w", p.Name, ErrInvalidArgument)
			}
			if err := m.Validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("party kind %q: %w", p.Kind, ErrInvalidArgument)
	}
	return nil
}

// Clone returns a deep copy.
func (p *Party) Clone() *Party {
	if p == nil {
		return nil
	}
	c := *p
	c.Preferences = slices.Clone(p.Preferences)
	if p.Members != nil {
		c.Members = make([]*Party, len(p.Members))
		for i, m := range p.Members {
			c.Members[i] = m.Clone()
		}
	}
	return &c
}

// Snapshot returns a deep copy whose Priority reports the effective class,
// for display and event payloads.
func (p *Party) Snapshot() *Party {
	c := p.Clone()
	if c != nil {
		c.Priority = p.Class()
	}
	return c
}

func (p *Party) String() string {
	if p.Kind == KindGroup {
		return fmt.Sprintf("%s (group of %d, %s)", p.Name, len(p.Members), p.Class())
	}
	return fmt.Sprintf("%s (%s)", p.Name, p.Class())
}
