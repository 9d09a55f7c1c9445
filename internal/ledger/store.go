package ledger

// KeyValueStore is persistent component state. Every write is journaled on
// the transaction so an aborted transaction leaves the store untouched.
type KeyValueStore[K comparable, V any] struct {
	entries map[K]V
}

func NewKeyValueStore[K comparable, V any]() *KeyValueStore[K, V] {
	return &KeyValueStore[K, V]{entries: make(map[K]V)}
}

func (s *KeyValueStore[K, V]) Get(key K) (V, bool) {
	value, ok := s.entries[key]
	return value, ok
}

func (s *KeyValueStore[K, V]) Has(key K) bool {
	_, ok := s.entries[key]
	return ok
}

func (s *KeyValueStore[K, V]) Insert(tx *Tx, key K, value V) {
	tx.mutate()

	prev, existed := s.entries[key]
	s.entries[key] = value

	tx.record(func() {
		if existed {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}
	})
}

func (s *KeyValueStore[K, V]) Remove(tx *Tx, key K) {
	tx.mutate()

	prev, existed := s.entries[key]
	if !existed {
		return
	}
	delete(s.entries, key)

	tx.record(func() {
		s.entries[key] = prev
	})
}

func (s *KeyValueStore[K, V]) Len() int {
	return len(s.entries)
}

// Range stops when fn returns false. Iteration order is not defined.
func (s *KeyValueStore[K, V]) Range(fn func(key K, value V) bool) {
	for k, v := range s.entries {
		if !fn(k, v) {
			return
		}
	}
}

// Cell is a single journaled value.
type Cell[T any] struct {
	value T
}

func NewCell[T any](value T) *Cell[T] {
	return &Cell[T]{value: value}
}

func (c *Cell[T]) Get() T {
	return c.value
}

func (c *Cell[T]) Set(tx *Tx, value T) {
	tx.mutate()

	prev := c.value
	c.value = value

	tx.record(func() {
		c.value = prev
	})
}
