// Package centermap implements a bounded, two-sided priority map: elements
// are split into a "less" side (priority < center) and a "greater" side
// (priority >= center), each independently capped, with deterministic
// (priority, key) tie-breaking. It backs both the gossip peer table
// (keyed by peer identity, priority = weight) and mempool top-K eviction.
package centermap

import (
	"fmt"
	"sort"
)

// Entry is one keyed, prioritized value held by a Map.
type Entry[K comparable, V any] struct {
	Key      K
	Priority float64
	Value    V
}

// Map is a bounded map from K to V, partitioned around a movable center
// priority. Both sides are capped; insertion past a cap evicts that
// side's weakest member iff the newcomer strictly outranks it.
type Map[K comparable, V any] struct {
	center     float64
	maxLess    int
	maxGreater int
	less       []Entry[K, V]
	greater    []Entry[K, V]
	index      map[K]bool // true = in greater, false = in less
}

// New creates an empty Map with the given side caps, centered at 0.
func New[K comparable, V any](maxLess, maxGreater int) *Map[K, V] {
	return &Map[K, V]{
		maxLess:    maxLess,
		maxGreater: maxGreater,
		index:      make(map[K]bool),
	}
}

func isGreaterSide(priority, center float64) bool {
	return priority >= center
}

// entryLess orders two entries by (priority, key) so iteration and
// eviction choices are deterministic regardless of insertion order. Keys
// are compared by their %v rendering, which is sufficient for the
// comparable key types this map is actually used with (peer public keys,
// account indices) without requiring callers to supply an ordering.
func entryLess[K comparable, V any](a, b Entry[K, V]) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return fmt.Sprintf("%v", a.Key) < fmt.Sprintf("%v", b.Key)
}

// Insert adds or updates k with the given priority and value. Returns
// whether the insertion took effect. An existing key's old entry is
// removed first, and the new entry is then placed like a new key: it is
// rejected only if its side is full and its priority does not strictly
// exceed that side's current minimum member. A rejected update leaves k
// absent from the map.
func (m *Map[K, V]) Insert(k K, priority float64, v V) bool {
	if greater, exists := m.index[k]; exists {
		m.removeFromSide(k, greater)
	}

	e := Entry[K, V]{Key: k, Priority: priority, Value: v}
	if isGreaterSide(priority, m.center) {
		return m.insertGreater(e)
	}
	return m.insertLess(e)
}

func (m *Map[K, V]) insertGreater(e Entry[K, V]) bool {
	if len(m.greater) >= m.maxGreater {
		if len(m.greater) == 0 {
			return false
		}
		minIdx := m.minIndex(m.greater)
		if !entryLess[K, V](m.greater[minIdx], e) {
			return false
		}
		evicted := m.greater[minIdx]
		m.greater = append(m.greater[:minIdx], m.greater[minIdx+1:]...)
		delete(m.index, evicted.Key)
	}
	m.greater = append(m.greater, e)
	m.sortSide(m.greater)
	m.index[e.Key] = true
	return true
}

func (m *Map[K, V]) insertLess(e Entry[K, V]) bool {
	if len(m.less) >= m.maxLess {
		if len(m.less) == 0 {
			return false
		}
		minIdx := m.minIndex(m.less)
		if !entryLess[K, V](m.less[minIdx], e) {
			return false
		}
		evicted := m.less[minIdx]
		m.less = append(m.less[:minIdx], m.less[minIdx+1:]...)
		delete(m.index, evicted.Key)
	}
	m.less = append(m.less, e)
	m.sortSide(m.less)
	m.index[e.Key] = false
	return true
}

func (m *Map[K, V]) minIndex(s []Entry[K, V]) int {
	best := 0
	for i := 1; i < len(s); i++ {
		if entryLess[K, V](s[i], s[best]) {
			best = i
		}
	}
	return best
}

func (m *Map[K, V]) maxIndex(s []Entry[K, V]) int {
	best := 0
	for i := 1; i < len(s); i++ {
		if entryLess[K, V](s[best], s[i]) {
			best = i
		}
	}
	return best
}

func (m *Map[K, V]) sortSide(s []Entry[K, V]) {
	sort.Slice(s, func(i, j int) bool { return entryLess[K, V](s[i], s[j]) })
}

// UpdateCenter moves the pivot, migrating any entries that cross it, then
// trims each side back down to its cap by evicting extremes.
func (m *Map[K, V]) UpdateCenter(newCenter float64) {
	m.center = newCenter

	var stillLess, crossToGreater []Entry[K, V]
	for _, e := range m.less {
		if isGreaterSide(e.Priority, m.center) {
			crossToGreater = append(crossToGreater, e)
		} else {
			stillLess = append(stillLess, e)
		}
	}
	var stillGreater, crossToLess []Entry[K, V]
	for _, e := range m.greater {
		if isGreaterSide(e.Priority, m.center) {
			stillGreater = append(stillGreater, e)
		} else {
			crossToLess = append(crossToLess, e)
		}
	}

	m.less = append(stillLess, crossToLess...)
	m.greater = append(stillGreater, crossToGreater...)
	m.sortSide(m.less)
	m.sortSide(m.greater)

	for _, e := range m.less {
		m.index[e.Key] = false
	}
	for _, e := range m.greater {
		m.index[e.Key] = true
	}

	m.trimSide(&m.less, m.maxLess, true)
	m.trimSide(&m.greater, m.maxGreater, false)
}

// trimSide evicts weakest members until s is within cap. On both sides
// the weakest are the lowest-priority members: for less that is the one
// furthest from center, for greater the one nearest it.
func (m *Map[K, V]) trimSide(s *[]Entry[K, V], cap int, isLess bool) {
	for len(*s) > cap {
		idx := m.minIndex(*s)
		delete(m.index, (*s)[idx].Key)
		*s = append((*s)[:idx], (*s)[idx+1:]...)
	}
}

func (m *Map[K, V]) removeFromSide(k K, greater bool) {
	s := &m.less
	if greater {
		s = &m.greater
	}
	for i, e := range *s {
		if e.Key == k {
			*s = append((*s)[:i], (*s)[i+1:]...)
			break
		}
	}
	delete(m.index, k)
}

// Remove deletes k if present.
func (m *Map[K, V]) Remove(k K) {
	greater, ok := m.index[k]
	if !ok {
		return
	}
	m.removeFromSide(k, greater)
}

// Get returns k's value and whether it was present.
func (m *Map[K, V]) Get(k K) (V, bool) {
	greater, ok := m.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	s := m.less
	if greater {
		s = m.greater
	}
	for _, e := range s {
		if e.Key == k {
			return e.Value, true
		}
	}
	var zero V
	return zero, false
}

// Len returns the total number of entries across both sides.
func (m *Map[K, V]) Len() int { return len(m.less) + len(m.greater) }

// Clear empties the map, keeping its caps and center.
func (m *Map[K, V]) Clear() {
	m.less = nil
	m.greater = nil
	m.index = make(map[K]bool)
}

// Each calls f for every entry, less side first, in sorted order.
func (m *Map[K, V]) Each(f func(Entry[K, V])) {
	for _, e := range m.less {
		f(e)
	}
	for _, e := range m.greater {
		f(e)
	}
}

// Entries returns a snapshot slice of all entries, less side first.
func (m *Map[K, V]) Entries() []Entry[K, V] {
	out := make([]Entry[K, V], 0, m.Len())
	m.Each(func(e Entry[K, V]) { out = append(out, e) })
	return out
}
