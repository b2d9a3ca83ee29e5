// Package chain implements the node's fork DAG and the State actor that
// owns the Bank plus the in-flight leader-slot block production
// pipeline, grounded on the teacher's core/ledger.go block-acceptance and
// reorg machinery, generalized from a single linear chain to spec.md
// §4.6's tree of in-flight forks rooted at the last finalized block.
package chain

import (
	"bytes"
	"container/heap"
	"errors"
	"fmt"
	"sync"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/wire"
)

// Errors returned by ForkDAG operations.
var (
	ErrBlockKnown    = errors.New("chain: block hash already known")
	ErrUnknownPrev   = errors.New("chain: previous hash not in dag")
	ErrUnknownHash   = errors.New("chain: hash not in dag")
	ErrRootIsNotRoot = errors.New("chain: cannot remove the root")
	ErrNoPath        = errors.New("chain: no path between hashes")
)

type dagNode struct {
	block  wire.Block
	height uint64
	prev   cryptoprim.Hash
}

// ForkDAG tracks every in-flight block since the last finalized root,
// keyed by self-hash, each carrying its height and predecessor, per
// spec.md §4.6. The root itself is never stored as a node: it is
// represented only by its hash, exactly like the reference's "current
// root" pointer.
type ForkDAG struct {
	mu         sync.RWMutex
	nodes      map[cryptoprim.Hash]*dagNode
	root       cryptoprim.Hash
	rootHeight uint64
	longestTip cryptoprim.Hash
}

// NewForkDAG creates a DAG rooted at rootHash (the last finalized block,
// or the all-zero hash for a fresh chain), with height rootHeight.
func NewForkDAG(rootHash cryptoprim.Hash, rootHeight uint64) *ForkDAG {
	return &ForkDAG{
		nodes:      make(map[cryptoprim.Hash]*dagNode),
		root:       rootHash,
		rootHeight: rootHeight,
		longestTip: rootHash,
	}
}

// Root returns the DAG's current root hash.
func (d *ForkDAG) Root() cryptoprim.Hash {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root
}

// Height returns the height of hash, or rootHeight for the root itself.
func (d *ForkDAG) Height(hash cryptoprim.Hash) (uint64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.heightLocked(hash)
}

func (d *ForkDAG) heightLocked(hash cryptoprim.Hash) (uint64, bool) {
	if hash == d.root {
		return d.rootHeight, true
	}
	n, ok := d.nodes[hash]
	if !ok {
		return 0, false
	}
	return n.height, true
}

// Block returns the stored block for hash (not the root, which has none).
func (d *ForkDAG) Block(hash cryptoprim.Hash) (wire.Block, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[hash]
	if !ok {
		return wire.Block{}, false
	}
	return n.block, true
}

// Insert adds a new block into the DAG, keyed by hash, chained to prev.
// It reports changedTip=true when this insertion produced a new
// strictly-longer (or tie-broken-higher) tip, matching spec.md §4.6's
// distinction between "extends the tip directly" and "does not change
// the longest tip".
func (d *ForkDAG) Insert(hash cryptoprim.Hash, block wire.Block, prev cryptoprim.Hash) (changedTip bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if hash == d.root {
		return false, fmt.Errorf("%w: %x", ErrBlockKnown, hash)
	}
	if _, exists := d.nodes[hash]; exists {
		return false, fmt.Errorf("%w: %x", ErrBlockKnown, hash)
	}
	prevHeight, ok := d.heightLocked(prev)
	if !ok {
		return false, fmt.Errorf("%w: %x", ErrUnknownPrev, prev)
	}

	height := prevHeight + 1
	d.nodes[hash] = &dagNode{block: block, height: height, prev: prev}

	prevTipHeight, _ := d.heightLocked(d.longestTip)
	if height > prevTipHeight || (height == prevTipHeight && tieBreakGreater(hash, d.longestTip)) {
		d.longestTip = hash
		return true, nil
	}
	return false, nil
}

// tieBreakGreater reports whether a should win a same-height tie against
// b, per spec.md §4.6's "tie-broken by hash": the lexicographically
// greater hash wins (an Open Question, decided here for determinism).
func tieBreakGreater(a, b cryptoprim.Hash) bool {
	return bytes.Compare(a[:], b[:]) > 0
}

// Remove deletes a non-root node and recomputes the longest tip from
// what remains.
func (d *ForkDAG) Remove(hash cryptoprim.Hash) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if hash == d.root {
		return ErrRootIsNotRoot
	}
	if _, ok := d.nodes[hash]; !ok {
		return fmt.Errorf("%w: %x", ErrUnknownHash, hash)
	}
	delete(d.nodes, hash)
	d.recomputeLongestTipLocked()
	return nil
}

// RemoveSubtree deletes hash and every descendant of it, used when a
// reorg candidate block fails validation (spec.md §4.6 case 4).
func (d *ForkDAG) RemoveSubtree(hash cryptoprim.Hash) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if hash == d.root {
		return ErrRootIsNotRoot
	}
	if _, ok := d.nodes[hash]; !ok {
		return fmt.Errorf("%w: %x", ErrUnknownHash, hash)
	}
	for _, victim := range d.descendantsLocked(hash, true) {
		delete(d.nodes, victim)
	}
	d.recomputeLongestTipLocked()
	return nil
}

func (d *ForkDAG) recomputeLongestTipLocked() {
	best := d.root
	bestHeight := d.rootHeight
	for hash, n := range d.nodes {
		if n.height > bestHeight || (n.height == bestHeight && tieBreakGreater(hash, best)) {
			best = hash
			bestHeight = n.height
		}
	}
	d.longestTip = best
}

// LongestChain returns the current longest-chain tip and its height.
func (d *ForkDAG) LongestChain() (cryptoprim.Hash, uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, _ := d.heightLocked(d.longestTip)
	return d.longestTip, h
}

// CommonAncestor walks both a and b toward the root, returning the first
// hash at which the two chains coincide.
func (d *ForkDAG) CommonAncestor(a, b cryptoprim.Hash) (cryptoprim.Hash, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ha, ok := d.heightLocked(a)
	if !ok {
		return cryptoprim.Hash{}, fmt.Errorf("%w: %x", ErrUnknownHash, a)
	}
	hb, ok := d.heightLocked(b)
	if !ok {
		return cryptoprim.Hash{}, fmt.Errorf("%w: %x", ErrUnknownHash, b)
	}

	for ha > hb {
		a = d.prevOfLocked(a)
		ha--
	}
	for hb > ha {
		b = d.prevOfLocked(b)
		hb--
	}
	for a != b {
		a = d.prevOfLocked(a)
		b = d.prevOfLocked(b)
	}
	return a, nil
}

func (d *ForkDAG) prevOfLocked(hash cryptoprim.Hash) cryptoprim.Hash {
	if hash == d.root {
		return d.root
	}
	n, ok := d.nodes[hash]
	if !ok {
		return d.root
	}
	return n.prev
}

// descendantsLocked returns every node below hash (its children,
// grandchildren, ...), optionally including hash itself.
func (d *ForkDAG) descendantsLocked(hash cryptoprim.Hash, includeSelf bool) []cryptoprim.Hash {
	childrenOf := make(map[cryptoprim.Hash][]cryptoprim.Hash, len(d.nodes))
	for h, n := range d.nodes {
		childrenOf[n.prev] = append(childrenOf[n.prev], h)
	}

	var out []cryptoprim.Hash
	if includeSelf {
		out = append(out, hash)
	}
	queue := append([]cryptoprim.Hash(nil), childrenOf[hash]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		out = append(out, next)
		queue = append(queue, childrenOf[next]...)
	}
	return out
}

// SetRoot prunes every node that is not h itself or a descendant of h,
// then makes h the new root, per spec.md §4.6 "set_root(h) prunes all
// non-descendants".
func (d *ForkDAG) SetRoot(h cryptoprim.Hash) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if h == d.root {
		return nil
	}
	target, ok := d.nodes[h]
	if !ok {
		return fmt.Errorf("%w: %x", ErrUnknownHash, h)
	}

	keep := make(map[cryptoprim.Hash]struct{})
	for _, desc := range d.descendantsLocked(h, false) {
		keep[desc] = struct{}{}
	}
	for hash := range d.nodes {
		if hash == h {
			continue
		}
		if _, ok := keep[hash]; !ok {
			delete(d.nodes, hash)
		}
	}
	delete(d.nodes, h)

	d.root = h
	d.rootHeight = target.height
	d.recomputeLongestTipLocked()
	return nil
}

// pathItem is one entry of the A* frontier used by Path.
type pathItem struct {
	hash cryptoprim.Hash
	cost uint64
	prio uint64
	from cryptoprim.Hash
	has  bool
}

type pathFrontier []pathItem

func (f pathFrontier) Len() int            { return len(f) }
func (f pathFrontier) Less(i, j int) bool  { return f[i].prio < f[j].prio }
func (f pathFrontier) Swap(i, j int)       { f[i], f[j] = f[j], f[i] }
func (f *pathFrontier) Push(x interface{}) { *f = append(*f, x.(pathItem)) }
func (f *pathFrontier) Pop() interface{} {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// Path finds the sequence of hashes from `from` to `to`, inclusive of
// both ends, via an A* search over the DAG's parent/child edges (each
// costing 1), heuristically guided by the height difference to the
// goal, per spec.md §4.6 "path(from,to) via A*". Since the DAG is a
// tree, the result is the unique walk through the two blocks' common
// ancestor.
func (d *ForkDAG) Path(from, to cryptoprim.Hash) ([]cryptoprim.Hash, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.heightLocked(from); !ok {
		return nil, fmt.Errorf("%w: %x", ErrUnknownHash, from)
	}
	goalHeight, ok := d.heightLocked(to)
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrUnknownHash, to)
	}

	heuristic := func(h cryptoprim.Hash) uint64 {
		height, _ := d.heightLocked(h)
		if height > goalHeight {
			return height - goalHeight
		}
		return goalHeight - height
	}

	cameFrom := map[cryptoprim.Hash]cryptoprim.Hash{}
	costSoFar := map[cryptoprim.Hash]uint64{from: 0}

	frontier := &pathFrontier{{hash: from, cost: 0, prio: heuristic(from)}}
	heap.Init(frontier)

	for frontier.Len() > 0 {
		cur := heap.Pop(frontier).(pathItem)
		if cur.hash == to {
			return reconstructPath(cameFrom, from, to), nil
		}
		for _, next := range d.neighborsLocked(cur.hash) {
			newCost := costSoFar[cur.hash] + 1
			if old, visited := costSoFar[next]; visited && old <= newCost {
				continue
			}
			costSoFar[next] = newCost
			cameFrom[next] = cur.hash
			heap.Push(frontier, pathItem{hash: next, cost: newCost, prio: newCost + heuristic(next)})
		}
	}
	return nil, ErrNoPath
}

// neighborsLocked returns hash's parent (if any) and children.
func (d *ForkDAG) neighborsLocked(hash cryptoprim.Hash) []cryptoprim.Hash {
	var out []cryptoprim.Hash
	if hash != d.root {
		out = append(out, d.prevOfLocked(hash))
	}
	for h, n := range d.nodes {
		if n.prev == hash {
			out = append(out, h)
		}
	}
	return out
}

func reconstructPath(cameFrom map[cryptoprim.Hash]cryptoprim.Hash, from, to cryptoprim.Hash) []cryptoprim.Hash {
	path := []cryptoprim.Hash{to}
	cur := to
	for cur != from {
		prev, ok := cameFrom[cur]
		if !ok {
			break
		}
		path = append(path, prev)
		cur = prev
	}
	// reverse into from->to order
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
