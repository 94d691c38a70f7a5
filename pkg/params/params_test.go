package params_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-fl/vigil/pkg/params"
)

func TestSchema(t *testing.T) {
	m := params.Map{
		"layer1.weight": {1, 2, 3},
		"layer1.bias":   {4},
	}

	s := m.Schema()
	assert.Equal(t, params.Schema{"layer1.weight": 3, "layer1.bias": 1}, s)
}

func TestSchemaMatches(t *testing.T) {
	cases := []struct {
		desc    string
		a       params.Schema
		b       params.Schema
		matches bool
	}{
		{
			desc:    "identical schemas",
			a:       params.Schema{"w": 3, "b": 1},
			b:       params.Schema{"w": 3, "b": 1},
			matches: true,
		},
		{
			desc:    "different vector length",
			a:       params.Schema{"w": 3},
			b:       params.Schema{"w": 4},
			matches: false,
		},
		{
			desc:    "missing key",
			a:       params.Schema{"w": 3, "b": 1},
			b:       params.Schema{"w": 3},
			matches: false,
		},
		{
			desc:    "extra key",
			a:       params.Schema{"w": 3},
			b:       params.Schema{"w": 3, "b": 1},
			matches: false,
		},
		{
			desc:    "both empty",
			a:       params.Schema{},
			b:       params.Schema{},
			matches: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.matches, tc.a.Matches(tc.b))
		})
	}
}

func TestClone(t *testing.T) {
	m := params.Map{"w": {1, 2, 3}}
	c := m.Clone()

	require.Equal(t, m, c)

	c["w"][0] = 99
	assert.Equal(t, 1.0, m["w"][0], "clone must not share backing arrays")
}

func TestCloneNil(t *testing.T) {
	var m params.Map
	assert.Nil(t, m.Clone())
}

func TestFlatten(t *testing.T) {
	m := params.Map{
		"b": {7},
		"a": {1, 2},
		"c": {3, 4, 5},
	}

	flat := m.Flatten()
	assert.Equal(t, []float64{1, 2, 7, 3, 4, 5}, flat, "keys must be flattened in lexicographic order")
}

func TestZeros(t *testing.T) {
	s := params.Schema{"w": 3, "b": 1}
	m := params.Zeros(s)

	require.Len(t, m, 2)
	assert.Equal(t, []float64{0, 0, 0}, m["w"])
	assert.Equal(t, []float64{0}, m["b"])
	assert.True(t, m.Schema().Matches(s))
}

func TestNumParams(t *testing.T) {
	m := params.Map{"w": {1, 2, 3}, "b": {4}}
	assert.Equal(t, 4, m.NumParams())
}

func TestValidate(t *testing.T) {
	global := params.Map{"w": {0, 0}, "b": {0}}

	cases := []struct {
		desc    string
		updates []params.Map
		wantErr bool
	}{
		{
			desc: "matching updates",
			updates: []params.Map{
				{"w": {1, 2}, "b": {3}},
				{"w": {4, 5}, "b": {6}},
			},
			wantErr: false,
		},
		{
			desc: "mismatched length",
			updates: []params.Map{
				{"w": {1, 2, 3}, "b": {3}},
			},
			wantErr: true,
		},
		{
			desc: "missing key",
			updates: []params.Map{
				{"w": {1, 2}},
			},
			wantErr: true,
		},
		{
			desc:    "no updates",
			updates: nil,
			wantErr: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			err := params.Validate(global, tc.updates...)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
