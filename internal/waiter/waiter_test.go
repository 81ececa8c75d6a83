package waiter

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maitre-io/maitre/pkg/protocol"
)

var base = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return base }

func newWaiter(t *testing.T) *Waiter {
	t.Helper()
	w, err := New(1, "Maria", WithClock(fixedClock))
	require.NoError(t, err)
	return w
}

func arrived(t *testing.T, id int, name string, ago time.Duration) *protocol.Party {
	t.Helper()
	p, err := protocol.NewIndividual(id, name, protocol.PriorityNormal)
	require.NoError(t, err)
	p.MarkArrival(base.Add(-ago))
	return p
}

func arrivedGroup(t *testing.T, id int, name string) *protocol.Party {
	t.Helper()
	g, err := protocol.NewGroup(id, name)
	require.NoError(t, err)
	require.NoError(t, g.AddMember(arrived(t, id*100, name+" member", 0)))
	g.MarkArrival(base.Add(-time.Minute))
	return g
}

func TestNew_BlankName(t *testing.T) {
	_, err := New(1, "  ")
	assert.ErrorIs(t, err, protocol.ErrInvalidArgument)
}

func TestServeIndividual_StartsAttendance(t *testing.T) {
	w := newWaiter(t)

	adm, a, err := w.ServeIndividual(arrived(t, 1, "Ana", 10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Admitted, adm)
	require.NotNil(t, a)
	assert.Equal(t, protocol.StatusInService, a.Status())
	assert.Equal(t, 10*time.Minute, a.Wait())
	assert.Empty(t, a.Order().Items)
	assert.Equal(t, 1, w.Individuals().Len())

	_, b, err := w.ServeIndividual(arrived(t, 2, "Bob", time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, a.Order().ID, b.Order().ID)
}

func TestServeIndividual_Capacity(t *testing.T) {
	w := newWaiter(t)
	for i := 1; i <= IndividualCapacity; i++ {
		assert.True(t, w.CanAcceptMoreIndividuals())
		adm, _, err := w.ServeIndividual(arrived(t, i, fmt.Sprintf("Client %d", i), time.Minute))
		require.NoError(t, err)
		require.Equal(t, Admitted, adm)
	}
	assert.False(t, w.CanAcceptMoreIndividuals())

	adm, a, err := w.ServeIndividual(arrived(t, 6, "Late", time.Minute))
	require.NoError(t, err)
	assert.Equal(t, AtCapacity, adm)
	assert.Nil(t, a)
	assert.Equal(t, IndividualCapacity, w.Individuals().Len())
	assert.True(t, w.CanAcceptMoreGroups())
}

func TestServeGroup_Capacity(t *testing.T) {
	w := newWaiter(t)
	for i := 1; i <= GroupCapacity; i++ {
		adm, _, err := w.ServeGroup(arrivedGroup(t, i, fmt.Sprintf("Group %d", i)))
		require.NoError(t, err)
		require.Equal(t, Admitted, adm)
	}
	adm, _, err := w.ServeGroup(arrivedGroup(t, 4, "Group 4"))
	require.NoError(t, err)
	assert.Equal(t, AtCapacity, adm)
	assert.Equal(t, GroupCapacity, w.Groups().Len())
	assert.Zero(t, w.Individuals().Len())
}

func TestServe_Rejects(t *testing.T) {
	w := newWaiter(t)

	_, _, err := w.ServeIndividual(nil)
	assert.ErrorIs(t, err, protocol.ErrNullReference)
	_, _, err = w.ServeGroup(nil)
	assert.ErrorIs(t, err, protocol.ErrNullReference)

	_, _, err = w.ServeIndividual(arrivedGroup(t, 1, "Garcia"))
	assert.ErrorIs(t, err, protocol.ErrInvalidArgument)
	_, _, err = w.ServeGroup(arrived(t, 1, "Ana", 0))
	assert.ErrorIs(t, err, protocol.ErrInvalidArgument)

	_, _, err = w.Serve(&protocol.Party{Kind: "pet", Name: "Rex"})
	assert.ErrorIs(t, err, protocol.ErrInvalidArgument)

	notArrived, _ := protocol.NewIndividual(9, "Zoe", protocol.PriorityNormal)
	_, _, err = w.ServeIndividual(notArrived)
	assert.ErrorIs(t, err, protocol.ErrNullReference)
	assert.Zero(t, w.Individuals().Len())
}

func TestSharedOrderIDs(t *testing.T) {
	ids := &localIDs{}
	w1, _ := New(1, "Maria", WithOrderIDs(ids), WithClock(fixedClock))
	w2, _ := New(2, "Joao", WithOrderIDs(ids), WithClock(fixedClock))

	_, a, err := w1.ServeIndividual(arrived(t, 1, "Ana", 0))
	require.NoError(t, err)
	_, b, err := w2.ServeIndividual(arrived(t, 2, "Bob", 0))
	require.NoError(t, err)
	assert.Equal(t, 1, a.Order().ID)
	assert.Equal(t, 2, b.Order().ID)
}

func TestRemoveFinishedAttendance(t *testing.T) {
	w := newWaiter(t)
	_, a, err := w.Serve(arrived(t, 1, "Ana", 0))
	require.NoError(t, err)
	_, g, err := w.Serve(arrivedGroup(t, 2, "Garcia"))
	require.NoError(t, err)

	_, err = w.RemoveFinishedAttendance(nil)
	assert.ErrorIs(t, err, protocol.ErrNullReference)

	ok, err := w.RemoveFinishedAttendance(g)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, w.Groups().Len())
	assert.True(t, w.Holds(a))
	assert.False(t, w.Holds(g))

	found, ok := w.FindOrder(a.Order().ID)
	require.True(t, ok)
	assert.Same(t, a, found)
}

func TestShiftAndClear(t *testing.T) {
	w := newWaiter(t)
	assert.Equal(t, protocol.ShiftNone, w.Shift())
	w.SetShift(protocol.ShiftNight)
	assert.Equal(t, protocol.ShiftNight, w.Shift())
	w.SetShift(protocol.ShiftNone)
	assert.Equal(t, protocol.ShiftNone, w.Shift())

	w.Serve(arrived(t, 1, "Ana", 0))
	w.Serve(arrivedGroup(t, 2, "Garcia"))
	w.ClearQueues()
	assert.Zero(t, w.Individuals().Len())
	assert.Zero(t, w.Groups().Len())
}

func TestRecordRoundTrip(t *testing.T) {
	w := newWaiter(t)
	w.SetShift(protocol.ShiftMorning)
	_, a, err := w.Serve(arrived(t, 1, "Ana", 3*time.Minute))
	require.NoError(t, err)
	pizza, _ := protocol.NewLineItem("Pizza", 1, 45)
	require.NoError(t, a.AddItem(pizza))

	back, err := FromRecord(w.Record())
	require.NoError(t, err)
	assert.Equal(t, w.ID(), back.ID())
	assert.Equal(t, protocol.ShiftMorning, back.Shift())
	require.Equal(t, 1, back.Individuals().Len())

	restored, ok := back.FindOrder(a.Order().ID)
	require.True(t, ok)
	assert.Equal(t, 3*time.Minute, restored.Wait())
	assert.InDelta(t, 45.0, restored.Order().Total(), 1e-9)
}

func TestBind(t *testing.T) {
	w, err := New(1, "Maria")
	require.NoError(t, err)
	w.Bind(&localIDs{}, fixedClock, nil)

	_, a, err := w.ServeIndividual(arrived(t, 1, "Ana", 3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, base, a.StartedAt())
	assert.Equal(t, 3*time.Minute, a.Wait())
}

func TestServing(t *testing.T) {
	w := newWaiter(t)
	ana := arrived(t, 1, "Ana", 0)
	group := arrivedGroup(t, 2, "Garcia")
	assert.False(t, w.Serving(ana))

	_, a, err := w.ServeIndividual(ana)
	require.NoError(t, err)
	_, _, err = w.ServeGroup(group)
	require.NoError(t, err)
	assert.True(t, w.Serving(ana))
	assert.True(t, w.Serving(group))
	assert.False(t, w.Serving(arrived(t, 1, "Ana", 0)))

	_, err = a.Finish()
	require.NoError(t, err)
	_, err = w.RemoveFinishedAttendance(a)
	require.NoError(t, err)
	assert.False(t, w.Serving(ana))
}
