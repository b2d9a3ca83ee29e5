package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/wire"
)

func h(b byte) cryptoprim.Hash {
	var hh cryptoprim.Hash
	hh[0] = b
	return hh
}

func TestForkDAGInsertExtendsLongestTip(t *testing.T) {
	root := h(0)
	d := NewForkDAG(root, 0)

	changed, err := d.Insert(h(1), wire.Block{Slot: 1}, root)
	require.NoError(t, err)
	require.True(t, changed)

	tip, height := d.LongestChain()
	require.Equal(t, h(1), tip)
	require.Equal(t, uint64(1), height)
}

func TestForkDAGInsertRejectsUnknownPrev(t *testing.T) {
	d := NewForkDAG(h(0), 0)
	_, err := d.Insert(h(1), wire.Block{}, h(99))
	require.ErrorIs(t, err, ErrUnknownPrev)
}

func TestForkDAGInsertRejectsDuplicateHash(t *testing.T) {
	d := NewForkDAG(h(0), 0)
	_, err := d.Insert(h(1), wire.Block{}, h(0))
	require.NoError(t, err)
	_, err = d.Insert(h(1), wire.Block{}, h(0))
	require.ErrorIs(t, err, ErrBlockKnown)
}

func TestForkDAGSideBranchDoesNotChangeTip(t *testing.T) {
	root := h(0)
	d := NewForkDAG(root, 0)
	_, _ = d.Insert(h(1), wire.Block{}, root)
	_, _ = d.Insert(h(2), wire.Block{}, h(1))

	changed, err := d.Insert(h(3), wire.Block{}, root) // a sibling of h(1), shorter
	require.NoError(t, err)
	require.False(t, changed)

	tip, height := d.LongestChain()
	require.Equal(t, h(2), tip)
	require.Equal(t, uint64(2), height)
}

func TestForkDAGCommonAncestor(t *testing.T) {
	root := h(0)
	d := NewForkDAG(root, 0)
	_, _ = d.Insert(h(1), wire.Block{}, root)
	_, _ = d.Insert(h(2), wire.Block{}, h(1))
	_, _ = d.Insert(h(3), wire.Block{}, h(1))
	_, _ = d.Insert(h(4), wire.Block{}, h(2))

	anc, err := d.CommonAncestor(h(4), h(3))
	require.NoError(t, err)
	require.Equal(t, h(1), anc)
}

func TestForkDAGPathViaCommonAncestor(t *testing.T) {
	root := h(0)
	d := NewForkDAG(root, 0)
	_, _ = d.Insert(h(1), wire.Block{}, root)
	_, _ = d.Insert(h(2), wire.Block{}, h(1))
	_, _ = d.Insert(h(3), wire.Block{}, h(1))

	path, err := d.Path(h(2), h(3))
	require.NoError(t, err)
	require.Equal(t, []cryptoprim.Hash{h(2), h(1), h(3)}, path)
}

func TestForkDAGSetRootPrunesNonDescendants(t *testing.T) {
	root := h(0)
	d := NewForkDAG(root, 0)
	_, _ = d.Insert(h(1), wire.Block{}, root)
	_, _ = d.Insert(h(2), wire.Block{}, h(1))
	_, _ = d.Insert(h(3), wire.Block{}, root) // sibling branch, pruned by SetRoot(h(1))

	require.NoError(t, d.SetRoot(h(1)))
	require.Equal(t, h(1), d.Root())

	_, ok := d.Block(h(3))
	require.False(t, ok)
	_, ok = d.Block(h(2))
	require.True(t, ok)

	tip, height := d.LongestChain()
	require.Equal(t, h(2), tip)
	require.Equal(t, uint64(2), height)
}

func TestForkDAGRemoveSubtreeDropsDescendants(t *testing.T) {
	root := h(0)
	d := NewForkDAG(root, 0)
	_, _ = d.Insert(h(1), wire.Block{}, root)
	_, _ = d.Insert(h(2), wire.Block{}, h(1))
	_, _ = d.Insert(h(3), wire.Block{}, root)

	require.NoError(t, d.RemoveSubtree(h(1)))
	_, ok := d.Block(h(1))
	require.False(t, ok)
	_, ok = d.Block(h(2))
	require.False(t, ok)
	_, ok = d.Block(h(3))
	require.True(t, ok)
}
