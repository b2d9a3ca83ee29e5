package centermap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertRespectsCaps(t *testing.T) {
	m := New[string, int](2, 2)
	require.True(t, m.Insert("a", -5, 1))
	require.True(t, m.Insert("b", -3, 2))
	require.True(t, m.Insert("c", -1, 3))
	require.Equal(t, 2, m.Len())

	_, ok := m.Get("a")
	require.False(t, ok, "weakest (furthest from center) less-side entry should have been evicted")
}

func TestInsertRejectsWeakerThanFullSide(t *testing.T) {
	m := New[string, int](1, 1)
	require.True(t, m.Insert("a", -10, 1))
	ok := m.Insert("b", -20, 2)
	require.False(t, ok, "a weaker entry than the full side's strongest should be rejected")

	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestUpdateCenterMigratesEntries(t *testing.T) {
	m := New[string, int](5, 5)
	m.Insert("a", 1, 1)
	m.Insert("b", 5, 2)
	m.Insert("c", 10, 3)

	m.UpdateCenter(6)
	entries := m.Entries()
	var greaterKeys []string
	for _, e := range entries {
		if e.Priority >= 6 {
			greaterKeys = append(greaterKeys, e.Key)
		}
	}
	require.Contains(t, greaterKeys, "c")
}

func TestRemoveAndClear(t *testing.T) {
	m := New[string, int](5, 5)
	m.Insert("a", 1, 1)
	m.Insert("b", 2, 2)
	m.Remove("a")
	_, ok := m.Get("a")
	require.False(t, ok)
	require.Equal(t, 1, m.Len())

	m.Clear()
	require.Equal(t, 0, m.Len())
}

func TestEachIterationDeterministicOrder(t *testing.T) {
	m := New[string, int](5, 5)
	m.Insert("b", 1, 2)
	m.Insert("a", 1, 1)

	var order []string
	m.Each(func(e Entry[string, int]) { order = append(order, e.Key) })
	require.Equal(t, []string{"a", "b"}, order, "equal priority entries should tie-break by key")
}
