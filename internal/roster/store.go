// Package roster persists the waiter roster, including each waiter's active
// attendances, between runs.
package roster

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maitre-io/maitre/pkg/protocol"
)

// Store is the persistence interface for the waiter roster.
type Store interface {
	// SaveRoster upserts every waiter and replaces its stored attendances.
	SaveRoster(ctx context.Context, waiters []protocol.WaiterRecord) error
	// LoadRoster returns all stored waiters ordered by id.
	LoadRoster(ctx context.Context) ([]protocol.WaiterRecord, error)
	// Close releases the underlying connection.
	Close() error
}

const (
	categoryIndividual = "individual"
	categoryGroup      = "group"
)

// row is one stored attendance, flattened for either backend.
type row struct {
	category string
	position int
	orderID  int
	status   string
	payload  []byte
}

func flatten(w protocol.WaiterRecord) ([]row, error) {
	var rows []row
	add := func(category string, recs []protocol.AttendanceRecord) error {
		for i, rec := range recs {
			payload, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode waiter %d attendance: %w", w.ID, err)
			}
			orderID := 0
			if rec.Order != nil {
				orderID = rec.Order.ID
			}
			rows = append(rows, row{
				category: category,
				position: i,
				orderID:  orderID,
				status:   string(rec.Status),
				payload:  payload,
			})
		}
		return nil
	}
	if err := add(categoryIndividual, w.Individuals); err != nil {
		return nil, err
	}
	if err := add(categoryGroup, w.Groups); err != nil {
		return nil, err
	}
	return rows, nil
}

func attach(w *protocol.WaiterRecord, category string, payload []byte) error {
	var rec protocol.AttendanceRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return fmt.Errorf("decode waiter %d attendance: %w", w.ID, err)
	}
	switch category {
	case categoryIndividual:
		w.Individuals = append(w.Individuals, rec)
	case categoryGroup:
		w.Groups = append(w.Groups, rec)
	default:
		return fmt.Errorf("waiter %d: unknown category %q", w.ID, category)
	}
	return nil
}

func emptyRecord(id int, name string, shift protocol.Shift) protocol.WaiterRecord {
	return protocol.WaiterRecord{
		ID:          id,
		Name:        name,
		Shift:       shift,
		Individuals: []protocol.AttendanceRecord{},
		Groups:      []protocol.AttendanceRecord{},
	}
}
