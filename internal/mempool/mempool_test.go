package mempool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMempoolCapAndEviction(t *testing.T) {
	p := New[string, int](2)
	require.True(t, p.Insert("a", 10, 1))
	require.True(t, p.Insert("b", 20, 2))
	require.True(t, p.Insert("c", 30, 3))
	require.Equal(t, 2, p.Len())
}

func TestMempoolDedupFirstSeenWins(t *testing.T) {
	p := New[string, int](10)
	require.True(t, p.Insert("a", 10, 1))
	require.False(t, p.Insert("a", 999, 2))
}

func TestMempoolDrainEmpties(t *testing.T) {
	p := New[string, int](10)
	p.Insert("a", 1, 1)
	p.Insert("b", 2, 2)
	items := p.Drain()
	require.Len(t, items, 2)
	require.Equal(t, 0, p.Len())
}
