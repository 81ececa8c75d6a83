package protocol

import (
	"fmt"
	"strings"
)

// Shift is a named operating period. The zero value means unassigned.
type Shift string

const (
	ShiftNone      Shift = ""
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
	ShiftNight     Shift = "night"
)

// Shifts lists the assignable shifts in day order.
var Shifts = []Shift{ShiftMorning, ShiftAfternoon, ShiftNight}

// ParseShift maps a case-insensitive name to a Shift. "none" and "" map to ShiftNone.
func ParseShift(s string) (Shift, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ShiftNone, nil
	case "morning":
		return ShiftMorning, nil
	case "afternoon":
		return ShiftAfternoon, nil
	case "night":
		return ShiftNight, nil
	}
	return ShiftNone, fmt.Errorf("shift %q: %w", s, ErrInvalidArgument)
}

// Valid reports whether s is one of the assignable shifts.
func (s Shift) Valid() bool {
	return s == ShiftMorning || s == ShiftAfternoon || s == ShiftNight
}

func (s Shift) String() string {
	if s == ShiftNone {
		return "none"
	}
	return string(s)
}
