// Package ordered provides insertion-ordered maps and grouped indices.
//
// Every key carries the sequence number it was inserted with. Deleting a key
// never disturbs the order of the others, and Restore puts a deleted entry
// back at its original position, which lets callers undo a removal without
// re-sorting.
package ordered

import "container/list"

// Entry is a key/value pair with its insertion sequence.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
	Seq   uint64
}

// Map is an insertion-ordered map. It is not safe for concurrent use.
type Map[K comparable, V any] struct {
	seq   uint64
	index map[K]*list.Element
	order *list.List
}

// NewMap returns an empty Map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{index: make(map[K]*list.Element), order: list.New()}
}

// Set inserts k at the end, or replaces its value in place when present.
func (m *Map[K, V]) Set(k K, v V) {
	if el, ok := m.index[k]; ok {
		el.Value.(*Entry[K, V]).Value = v
		return
	}
	m.seq++
	m.index[k] = m.order.PushBack(&Entry[K, V]{Key: k, Value: v, Seq: m.seq})
}

// Get returns the value stored under k.
func (m *Map[K, V]) Get(k K) (V, bool) {
	if el, ok := m.index[k]; ok {
		return el.Value.(*Entry[K, V]).Value, true
	}
	var zero V
	return zero, false
}

// Has reports whether k is present.
func (m *Map[K, V]) Has(k K) bool {
	_, ok := m.index[k]
	return ok
}

// Delete removes k and returns the removed entry.
func (m *Map[K, V]) Delete(k K) (Entry[K, V], bool) {
	el, ok := m.index[k]
	if !ok {
		return Entry[K, V]{}, false
	}
	delete(m.index, k)
	e := m.order.Remove(el).(*Entry[K, V])
	return *e, true
}

// Restore reinserts a previously deleted entry at the position its sequence
// number dictates. It is a no-op when the key is already present.
func (m *Map[K, V]) Restore(e Entry[K, V]) {
	if _, ok := m.index[e.Key]; ok {
		return
	}
	if e.Seq > m.seq {
		m.seq = e.Seq
	}
	entry := &Entry[K, V]{Key: e.Key, Value: e.Value, Seq: e.Seq}
	for el := m.order.Back(); el != nil; el = el.Prev() {
		if el.Value.(*Entry[K, V]).Seq < e.Seq {
			m.index[e.Key] = m.order.InsertAfter(entry, el)
			return
		}
	}
	m.index[e.Key] = m.order.PushFront(entry)
}

// Len returns the number of keys.
func (m *Map[K, V]) Len() int { return len(m.index) }

// Keys returns the keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	out := make([]K, 0, len(m.index))
	for el := m.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*Entry[K, V]).Key)
	}
	return out
}

// Values returns the values in insertion order.
func (m *Map[K, V]) Values() []V {
	out := make([]V, 0, len(m.index))
	for el := m.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*Entry[K, V]).Value)
	}
	return out
}

// Range calls fn for each entry in order until fn returns false.
func (m *Map[K, V]) Range(fn func(k K, v V) bool) {
	for el := m.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*Entry[K, V])
		if !fn(e.Key, e.Value) {
			return
		}
	}
}
