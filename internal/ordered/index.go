package ordered

// Index groups keys under a group key, each group keeping insertion order.
// Empty groups are dropped.
type Index[G comparable, K comparable] struct {
	groups map[G]*Map[K, struct{}]
}

// NewIndex returns an empty Index.
func NewIndex[G comparable, K comparable]() *Index[G, K] {
	return &Index[G, K]{groups: make(map[G]*Map[K, struct{}])}
}

// Add appends k to group g.
func (ix *Index[G, K]) Add(g G, k K) {
	ix.group(g).Set(k, struct{}{})
}

// Remove drops k from group g and returns the removed entry.
func (ix *Index[G, K]) Remove(g G, k K) (Entry[K, struct{}], bool) {
	m, ok := ix.groups[g]
	if !ok {
		return Entry[K, struct{}]{}, false
	}
	e, ok := m.Delete(k)
	if m.Len() == 0 {
		delete(ix.groups, g)
	}
	return e, ok
}

// Restore puts a removed entry back into group g at its original position.
// When the group was dropped in the meantime, order relative to later
// insertions is still by sequence within the recreated group.
func (ix *Index[G, K]) Restore(g G, e Entry[K, struct{}]) {
	ix.group(g).Restore(e)
}

// Keys returns group g in insertion order.
func (ix *Index[G, K]) Keys(g G) []K {
	m, ok := ix.groups[g]
	if !ok {
		return []K{}
	}
	return m.Keys()
}

// Len returns the size of group g.
func (ix *Index[G, K]) Len(g G) int {
	if m, ok := ix.groups[g]; ok {
		return m.Len()
	}
	return 0
}

// Has reports whether k is in group g.
func (ix *Index[G, K]) Has(g G, k K) bool {
	m, ok := ix.groups[g]
	return ok && m.Has(k)
}

func (ix *Index[G, K]) group(g G) *Map[K, struct{}] {
	m, ok := ix.groups[g]
	if !ok {
		m = NewMap[K, struct{}]()
		ix.groups[g] = m
	}
	return m
}
