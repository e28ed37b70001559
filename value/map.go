package value

import "fmt"

// Pair is a single MAP entry. Value may be nil, modeling spec §3's
// `Option<Value>` payload (a key present with no associated value).
type Pair struct {
	Key   string
	Value *Value
}

// Map is an ordered sequence of Pair with unique keys (spec §3/§4.A).
// Storage preserves insertion order in a slice; lookup goes through an
// index map from key to slice position, matching the teacher's
// Type.fieldMap/methodMap pattern (inspector/graph/types.go).
type Map struct {
	pairs []Pair
	index map[string]int
}

// NewMap builds a Map from pairs, in order. A repeated key overwrites the
// earlier value and keeps the earlier position; NewMapChecked rejects
// repeats instead.
func NewMap(pairs ...Pair) *Map {
	m := &Map{index: make(map[string]int, len(pairs))}
	for _, p := range pairs {
		m.set(p.Key, p.Value)
	}
	return m
}

// NewMapChecked is like NewMap but rejects duplicate keys instead of
// silently overwriting the earlier entry.
func NewMapChecked(pairs ...Pair) (*Map, error) {
	m := &Map{index: make(map[string]int, len(pairs))}
	for _, p := range pairs {
		if _, ok := m.index[p.Key]; ok {
			return nil, fmt.Errorf("%w: duplicate map key %q", errInvalid, p.Key)
		}
		m.set(p.Key, p.Value)
	}
	return m, nil
}

func (m *Map) set(key string, v *Value) {
	if idx, ok := m.index[key]; ok {
		m.pairs[idx].Value = v
		return
	}
	m.index[key] = len(m.pairs)
	m.pairs = append(m.pairs, Pair{Key: key, Value: v})
}

// Set inserts or overwrites the value for key, preserving key's original
// position if it already existed.
func (m *Map) Set(key string, v *Value) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	m.set(key, v)
}

// Get returns the value for key and whether key is present. A present key
// with a nil Value returns (nil, true).
func (m *Map) Get(key string) (*Value, bool) {
	if m == nil {
		return nil, false
	}
	idx, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.pairs[idx].Value, true
}

// Delete removes key if present, preserving the order of the remaining
// pairs.
func (m *Map) Delete(key string) bool {
	if m == nil {
		return false
	}
	idx, ok := m.index[key]
	if !ok {
		return false
	}
	m.pairs = append(m.pairs[:idx], m.pairs[idx+1:]...)
	delete(m.index, key)
	for i := idx; i < len(m.pairs); i++ {
		m.index[m.pairs[i].Key] = i
	}
	return true
}

// Len reports the number of pairs in m.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.pairs)
}

// Pairs returns m's pairs in storage (insertion) order. The returned slice
// aliases m's internal storage and must not be mutated.
func (m *Map) Pairs() []Pair {
	if m == nil {
		return nil
	}
	return m.pairs
}

// Clone deep-clones m into a fresh, fully independent Map.
func (m *Map) Clone() *Map {
	if m == nil {
		return nil
	}
	clone := &Map{pairs: make([]Pair, len(m.pairs)), index: make(map[string]int, len(m.index))}
	for i, p := range m.pairs {
		clone.pairs[i] = Pair{Key: p.Key, Value: p.Value.Clone()}
		clone.index[p.Key] = i
	}
	return clone
}

// Validate enforces Map's invariants: no empty key, no duplicate key
// (duplicates cannot occur via Set, but a Map built by hand through struct
// literals could violate this), and every value individually valid.
func (m *Map) Validate() error {
	if m == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(m.pairs))
	for _, p := range m.pairs {
		if p.Key == "" {
			return fmt.Errorf("%w: map has empty key", errInvalid)
		}
		if _, ok := seen[p.Key]; ok {
			return fmt.Errorf("%w: duplicate map key %q", errInvalid, p.Key)
		}
		seen[p.Key] = struct{}{}
		if p.Value != nil {
			if err := p.Value.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Equal reports whether m and other hold the same keys, in the same order,
// with structurally equal values.
func (m *Map) Equal(other *Map) bool {
	if m == nil || other == nil {
		return m == nil && other == nil || (m.Len() == 0 && other.Len() == 0)
	}
	if len(m.pairs) != len(other.pairs) {
		return false
	}
	for i, p := range m.pairs {
		o := other.pairs[i]
		if p.Key != o.Key {
			return false
		}
		if !p.Value.Equal(o.Value) {
			return false
		}
	}
	return true
}
