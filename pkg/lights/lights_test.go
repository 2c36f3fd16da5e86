package lights

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(DefaultSeed()...)
	require.NoError(t, err)
	return s
}

func TestNewStore_SortsByID(t *testing.T) {
	s, err := NewStore(
		Light{ID: 9, Name: "Garage"},
		Light{ID: 2, Name: "Hall", IsOn: State(true)},
	)
	require.NoError(t, err)

	got := s.List()
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].ID)
	assert.Equal(t, 9, got[1].ID)
	assert.Nil(t, got[1].IsOn, "unknown state stays unknown")
}

func TestNewStore_DuplicateID(t *testing.T) {
	_, err := NewStore(Light{ID: 1, Name: "a"}, Light{ID: 1, Name: "b"})
	assert.EqualError(t, err, "lights: duplicate light id 1")
}

func TestSetState_Known(t *testing.T) {
	s := newDefaultStore(t)
	before := s.List()

	got, ok := s.SetState(1, true)

	require.True(t, ok)
	assert.Equal(t, 1, got.ID)
	assert.Equal(t, "Table Lamp", got.Name)
	require.NotNil(t, got.IsOn)
	assert.True(t, *got.IsOn)

	after := s.List()
	assert.Equal(t, before[1:], after[1:], "other lights are untouched")
}

func TestSetState_UnknownIDChangesNothing(t *testing.T) {
	s := newDefaultStore(t)
	before := s.List()

	got, ok := s.SetState(42, true)

	assert.False(t, ok)
	assert.Equal(t, Light{}, got)
	assert.Equal(t, before, s.List())
}

func TestList_ReturnsCopies(t *testing.T) {
	s := newDefaultStore(t)

	got := s.List()
	*got[0].IsOn = true
	got[0].Name = "Renamed"

	fresh := s.List()
	assert.False(t, *fresh[0].IsOn)
	assert.Equal(t, "Table Lamp", fresh[0].Name)
}

func TestList_ReflectsAllMutationsInIDOrder(t *testing.T) {
	s := newDefaultStore(t)

	s.SetState(3, false)
	s.SetState(1, true)
	s.SetState(2, true)
	s.SetState(1, false)

	got := s.List()
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].ID, got[1].ID, got[2].ID})
	assert.False(t, *got[0].IsOn)
	assert.True(t, *got[1].IsOn)
	assert.False(t, *got[2].IsOn)
}

func TestSetState_ConcurrentWriters(t *testing.T) {
	s := newDefaultStore(t)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Go(func() {
			s.SetState(i%3+1, i%2 == 0)
		})
	}
	wg.Wait()

	for _, l := range s.List() {
		assert.NotNil(t, l.IsOn)
	}
}

func TestStore_ExtremeIDsKeepOrder(t *testing.T) {
	s, err := NewStore(
		Light{ID: math.MaxInt, Name: "Max"},
		Light{ID: math.MinInt, Name: "Min"},
		Light{ID: 1, Name: "One"},
	)
	require.NoError(t, err)

	var ids []int
	for _, l := range s.List() {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []int{math.MinInt, 1, math.MaxInt}, ids)

	for _, id := range []int{math.MinInt, 1, math.MaxInt} {
		got, ok := s.SetState(id, true)
		require.True(t, ok, "id %d", id)
		assert.Equal(t, id, got.ID)
	}

	_, ok := s.SetState(0, true)
	assert.False(t, ok)
}
