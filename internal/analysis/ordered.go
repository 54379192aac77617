package analysis

// OrderedMap is a map that iterates in insertion order. Every map the
// analysis hands to the next stage is one of these, so a rerun over the
// same unit visits entries in the same order.
type OrderedMap[K comparable, V any] struct {
	keys []K
	vals map[K]V
}

// NewOrderedMap returns an empty map.
func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{vals: make(map[K]V)}
}

// Get returns the value stored under k.
func (m *OrderedMap[K, V]) Get(k K) (V, bool) {
	v, ok := m.vals[k]
	return v, ok
}

// Set stores v under k. A new key goes to the end; an existing key keeps
// its position.
func (m *OrderedMap[K, V]) Set(k K, v V) {
	if _, ok := m.vals[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.vals[k] = v
}

// Entry returns the value under k, inserting init() first when absent.
func (m *OrderedMap[K, V]) Entry(k K, init func() V) V {
	if v, ok := m.vals[k]; ok {
		return v
	}
	v := init()
	m.Set(k, v)
	return v
}

// Keys returns the keys in insertion order. The slice must not be modified.
func (m *OrderedMap[K, V]) Keys() []K { return m.keys }

// Len returns the number of entries.
func (m *OrderedMap[K, V]) Len() int { return len(m.keys) }

// Each calls fn for every entry in insertion order.
func (m *OrderedMap[K, V]) Each(fn func(K, V)) {
	for _, k := range m.keys {
		fn(k, m.vals[k])
	}
}

// orderedSet keeps the first occurrence of every element.
type orderedSet[T comparable] struct {
	items []T
	seen  map[T]struct{}
}

func (s *orderedSet[T]) add(v T) bool {
	if s.seen == nil {
		s.seen = make(map[T]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}
