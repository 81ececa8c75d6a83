// Package menu is the restaurant's catalog of priced items.
package menu

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/maitre-io/maitre/pkg/protocol"
)

// Menu is a flat list of items looked up by case-insensitive name.
type Menu struct {
	mu    sync.RWMutex
	items []protocol.MenuItem
}

// New builds a menu from items, rejecting invalid or duplicate entries.
func New(items ...protocol.MenuItem) (*Menu, error) {
	m := &Menu{}
	for _, it := range items {
		if err := m.Add(it); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add appends an item. Names are unique ignoring case.
func (m *Menu) Add(it protocol.MenuItem) error {
	it.Name = strings.TrimSpace(it.Name)
	if it.Name == "" {
		return fmt.Errorf("menu: item name is blank: %w", protocol.ErrInvalidArgument)
	}
	if it.Price < 0 {
		return fmt.Errorf("menu: item %q price %.2f: %w", it.Name, it.Price, protocol.ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index(it.Name) >= 0 {
		return fmt.Errorf("menu: item %q already listed: %w", it.Name, protocol.ErrInvalidArgument)
	}
	m.items = append(m.items, it)
	return nil
}

// Find looks an item up by name, ignoring case.
func (m *Menu) Find(name string) (protocol.MenuItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.index(name)
	if i < 0 {
		return protocol.MenuItem{}, false
	}
	return m.items[i], true
}

// Remove deletes an item by name, ignoring case.
func (m *Menu) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(name)
	if i < 0 {
		return false
	}
	m.items = slices.Delete(m.items, i, i+1)
	return true
}

// Items returns the catalog in insertion order.
func (m *Menu) Items() []protocol.MenuItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.items)
}

// LineItem prices quantity units of the named item.
func (m *Menu) LineItem(name string, quantity int) (protocol.LineItem, error) {
	it, ok := m.Find(name)
	if !ok {
		return protocol.LineItem{}, fmt.Errorf("menu: item %q: %w", name, protocol.ErrNotFound)
	}
	return protocol.NewLineItem(it.Name, quantity, it.Price)
}

func (m *Menu) index(name string) int {
	name = strings.TrimSpace(name)
	return slices.IndexFunc(m.items, func(it protocol.MenuItem) bool {
		return strings.EqualFold(it.Name, name)
	})
}
