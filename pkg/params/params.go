package params

import (
	"fmt"
	"sort"
)

// Map holds model parameters as named flat vectors, keyed by layer name.
type Map map[string][]float64

// Schema maps each layer name to its vector length.
type Schema map[string]int

func (m Map) Schema() Schema {
	s := make(Schema, len(m))
	for k, v := range m {
		s[k] = len(v)
	}

	return s
}

func (m Map) Clone() Map {
	if m == nil {
		return nil
	}

	c := make(Map, len(m))
	for k, v := range m {
		vc := make([]float64, len(v))
		copy(vc, v)
		c[k] = vc
	}

	return c
}

// Keys returns the layer names in lexicographic order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Flatten concatenates all vectors in lexicographic key order into a
// single vector. Two maps with the same schema flatten to positionally
// comparable vectors.
func (m Map) Flatten() []float64 {
	var n int
	for _, v := range m {
		n += len(v)
	}

	flat := make([]float64, 0, n)
	for _, k := range m.Keys() {
		flat = append(flat, m[k]...)
	}

	return flat
}

func (m Map) NumParams() int {
	var n int
	for _, v := range m {
		n += len(v)
	}

	return n
}

// Zeros returns a map with the given schema and all entries zero.
func Zeros(s Schema) Map {
	m := make(Map, len(s))
	for k, n := range s {
		m[k] = make([]float64, n)
	}

	return m
}

func (s Schema) Matches(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for k, n := range s {
		if other[k] != n {
			return false
		}
	}

	return true
}

// Validate checks that every update carries the same schema as the
// reference map. A nil reference accepts any consistent schema.
func Validate(reference Map, updates ...Map) error {
	ref := reference.Schema()
	if reference == nil && len(updates) > 0 {
		ref = updates[0].Schema()
	}

	for i, u := range updates {
		if !u.Schema().Matches(ref) {
			return fmt.Errorf("update %d: schema mismatch", i)
		}
	}

	return nil
}
