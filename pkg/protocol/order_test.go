package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderTotal(t *testing.T) {
	o := NewOrder(1)
	a, err := NewLineItem("Pizza", 2, 30.0)
	require.NoError(t, err)
	b, err := NewLineItem("Soda", 1, 8.0)
	require.NoError(t, err)
	require.NoError(t, o.AddItem(a))
	require.NoError(t, o.AddItem(b))

	assert.InDelta(t, 68.0, o.Total(), 1e-9)
	assert.InDelta(t, 60.0, a.Subtotal(), 1e-9)
}

func TestLineItemValidation(t *testing.T) {
	tests := []struct {
		name  string
		item  string
		qty   int
		price float64
	}{
		{"blank name", " ", 1, 1},
		{"zero quantity", "Pizza", 0, 1},
		{"negative price", "Pizza", 1, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLineItem(tt.item, tt.qty, tt.price)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	free, err := NewLineItem("Water", 1, 0)
	require.NoError(t, err)
	assert.Zero(t, free.Subtotal())
}

func TestOrderRemoveItem(t *testing.T) {
	o := NewOrder(7)
	a, _ := NewLineItem("Pizza", 1, 45)
	b, _ := NewLineItem("Soda", 2, 7.5)
	o.AddItem(a)
	o.AddItem(b)

	removed, err := o.RemoveItem(0)
	require.NoError(t, err)
	assert.Equal(t, "Pizza", removed.Name)
	assert.Len(t, o.Items, 1)
	assert.InDelta(t, 15.0, o.Total(), 1e-9)

	_, err = o.RemoveItem(5)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLineItemNotes(t *testing.T) {
	li, _ := NewLineItem("Pizza", 1, 45)
	assert.ErrorIs(t, li.AddNote(""), ErrInvalidArgument)
	require.NoError(t, li.AddNote("no onions"))

	o := NewOrder(1)
	o.AddItem(li)
	c := o.Clone()
	c.Items[0].Notes[0] = "changed"
	assert.Equal(t, "no onions", o.Items[0].Notes[0])
}

func TestParseShift(t *testing.T) {
	s, err := ParseShift("Night")
	require.NoError(t, err)
	assert.Equal(t, ShiftNight, s)
	assert.True(t, s.Valid())

	s, err = ParseShift("none")
	require.NoError(t, err)
	assert.False(t, s.Valid())
	assert.Equal(t, "none", s.String())

	_, err = ParseShift("brunch")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStatusRank(t *testing.T) {
	assert.Less(t, StatusWaiting.Rank(), StatusInService.Rank())
	assert.Less(t, StatusInService.Rank(), StatusFinished.Rank())
}
