package protocol

import (
	"fmt"
	"slices"
	"strings"
)

// LineItem is one priced line of an order.
type LineItem struct {
	Name     string   `json:"name"`
	Quantity int      `json:"quantity"`
	Price    float64  `json:"price"`
	Notes    []string `json:"notes,omitempty"`
}

// NewLineItem validates and builds a line item.
func NewLineItem(name string, quantity int, price float64) (LineItem, error) {
	li := LineItem{Name: name, Quantity: quantity, Price: price}
	if err := li.Validate(); err != nil {
		return LineItem{}, err
	}
	return li, nil
}

// Validate requires a name, a positive quantity and a non-negative price.
func (li LineItem) Validate() error {
	if strings.TrimSpace(li.Name) == "" {
		return fmt.Errorf("line item name is blank: %w", ErrInvalidArgument)
	}
	if li.Quantity < 1 {
		return fmt.Errorf("line item %q quantity %d: %w", li.Name, li.Quantity, ErrInvalidArgument)
	}
	if li.Price < 0 {
		return fmt.Errorf("line item %q price %.2f: %w", li.Name, li.Price, ErrInvalidArgument)
	}
	return nil
}

// AddNote attaches a free-text note, e.g. "no onions".
func (li *LineItem) AddNote(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("note is blank: %w", ErrInvalidArgument)
	}
	li.Notes = append(li.Notes, text)
	return nil
}

// Subtotal is quantity times unit price.
func (li LineItem) Subtotal() float64 {
	return float64(li.Quantity) * li.Price
}

// Order is the bill attached to one attendance.
type Order struct {
	ID    int        `json:"id"`
	Items []LineItem `json:"items"`
}

// NewOrder returns an empty order with the given id.
func NewOrder(id int) *Order {
	return &Order{ID: id, Items: []LineItem{}}
}

// AddItem appends a validated line item.
func (o *Order) AddItem(li LineItem) error {
	if err := li.Validate(); err != nil {
		return err
	}
	o.Items = append(o.Items, li)
	return nil
}

// RemoveItem deletes the line at index i and returns it.
func (o *Order) RemoveItem(i int) (LineItem, error) {
	if i < 0 || i >= len(o.Items) {
		return LineItem{}, fmt.Errorf("order %d: item index %d out of range: %w", o.ID, i, ErrInvalidArgument)
	}
	li := o.Items[i]
	o.Items = slices.Delete(o.Items, i, i+1)
	return li, nil
}

// Total sums every line subtotal.
func (o *Order) Total() float64 {
	var total float64
	for _, li := range o.Items {
		total += li.Subtotal()
	}
	return total
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := &Order{ID: o.ID, Items: make([]LineItem, len(o.Items))}
	for i, li := range o.Items {
		li.Notes = slices.Clone(li.Notes)
		c.Items[i] = li
	}
	return c
}
