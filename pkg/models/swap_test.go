package models_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vigilerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/pkg/models"
)

type capturingStore struct {
	records []models.SwapRecord
}

func (s *capturingStore) Create(_ context.Context, record models.SwapRecord) error {
	s.records = append(s.records, record)

	return nil
}

func newSwapState(t *testing.T, store models.SwapStore) *models.SwapState {
	t.Helper()

	return models.NewSwapState(newRegistry(t), store, nil, nil)
}

func TestSwapRecordsTransition(t *testing.T) {
	s := newSwapState(t, nil)

	record, err := s.Swap(context.Background(), "e1", "athletic", 0.8)
	require.NoError(t, err)

	assert.Equal(t, "federated", record.Previous)
	assert.Equal(t, "athletic", record.New)
	assert.Equal(t, "athletic", record.DriftType)
	assert.Equal(t, 0.8, record.Confidence)
	assert.True(t, record.Swapped)
	assert.False(t, record.At.IsZero())

	assert.Equal(t, "athletic", s.Active("e1"))
	assert.Len(t, s.History("e1"), 1)
}

func TestSwapSameTargetNoOp(t *testing.T) {
	s := newSwapState(t, nil)

	_, err := s.Swap(context.Background(), "e1", "athletic", 0.8)
	require.NoError(t, err)

	record, err := s.Swap(context.Background(), "e1", "athletic", 0.9)
	require.NoError(t, err)

	assert.False(t, record.Swapped)
	assert.Equal(t, "athletic", record.Previous)
	assert.Equal(t, "athletic", record.New)
	assert.Len(t, s.History("e1"), 1)
}

func TestSwapUnknownDriftType(t *testing.T) {
	s := newSwapState(t, nil)

	record, err := s.Swap(context.Background(), "e1", "martian", 0.5)
	require.NoError(t, err)

	assert.Equal(t, models.FallbackModel, record.New)
	assert.Equal(t, models.FallbackModel, s.Active("e1"))
}

func TestSwapRoutingOverride(t *testing.T) {
	routing := map[string]string{"hypertensive": "athletic"}
	s := models.NewSwapState(newRegistry(t), nil, routing, nil)

	assert.Equal(t, "athletic", s.Target("hypertensive"))
	assert.Equal(t, "diver", s.Target("diver"))
}

func TestSwapTargetNotInCatalogue(t *testing.T) {
	cfg := models.Config{
		Catalogue: []models.Descriptor{
			{Type: models.DefaultModel},
			{Type: models.FallbackModel},
		},
	}
	r, err := models.NewRegistry(cfg, nil)
	require.NoError(t, err)
	s := models.NewSwapState(r, nil, nil, nil)

	// The athletic model is routed to but missing from the catalogue.
	record, err := s.Swap(context.Background(), "e1", "athletic", 0.8)
	require.NoError(t, err)
	assert.Equal(t, models.FallbackModel, record.New)
}

func TestSwapUnavailableTargetKeepsAssignment(t *testing.T) {
	cfg := models.Config{
		Catalogue: []models.Descriptor{
			{Type: models.DefaultModel},
			{Type: models.FallbackModel, Path: filepath.Join(t.TempDir(), "missing.wasm")},
		},
	}
	r, err := models.NewRegistry(cfg, nil)
	require.NoError(t, err)
	s := models.NewSwapState(r, nil, nil, nil)

	_, err = s.Swap(context.Background(), "e1", "hypertensive", 0.8)
	assert.ErrorIs(t, err, vigilerrors.ErrModelUnavailable)

	assert.Equal(t, models.DefaultModel, s.Active("e1"))
	assert.Empty(t, s.History("e1"))
}

func TestSwapPersistsRecords(t *testing.T) {
	store := &capturingStore{}
	s := newSwapState(t, store)

	_, err := s.Swap(context.Background(), "e1", "athletic", 0.8)
	require.NoError(t, err)
	require.Len(t, store.records, 1)
	assert.True(t, store.records[0].Swapped)

	// Same-target swaps are not persisted.
	_, err = s.Swap(context.Background(), "e1", "athletic", 0.8)
	require.NoError(t, err)
	assert.Len(t, store.records, 1)
}

func TestSwapHistoryCap(t *testing.T) {
	s := newSwapState(t, nil)

	driftTypes := []string{"athletic", "revert_to_normal"}
	for i := 0; i < 120; i++ {
		_, err := s.Swap(context.Background(), "e1", driftTypes[i%2], 0.8)
		require.NoError(t, err)
	}

	assert.Len(t, s.History("e1"), 100)
}

func TestAllActive(t *testing.T) {
	s := newSwapState(t, nil)

	_, err := s.Swap(context.Background(), "e1", "athletic", 0.8)
	require.NoError(t, err)
	_, err = s.Swap(context.Background(), "e2", "diver", 0.9)
	require.NoError(t, err)

	active := s.AllActive()
	assert.Equal(t, map[string]string{"e1": "athletic", "e2": "diver"}, active)
}

func TestSuggest(t *testing.T) {
	s := newSwapState(t, nil)

	cases := []struct {
		desc      string
		features  []float64
		driftType string
		ok        bool
	}{
		{
			desc:      "elevated heart rate variance",
			features:  []float64{1, 2, 3, 4, 5, 0, 0, 120, 0.5},
			driftType: "athletic",
			ok:        true,
		},
		{
			desc:      "high activity level",
			features:  []float64{1, 2, 3, 4, 5, 0, 0, 72, 0.9},
			driftType: "athletic",
			ok:        true,
		},
		{
			desc:      "very stable vitals",
			features:  []float64{1, 1, 1, 1, 1, 0, 0, 72, 0.5},
			driftType: "typical",
			ok:        true,
		},
		{
			desc:     "no thresholds exceeded",
			features: []float64{1, 2, 3, 4, 5, 0, 0, 72, 0.5},
		},
		{
			desc:     "too few features",
			features: []float64{1, 2, 3},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			driftType, ok := s.Suggest(tc.features)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.driftType, driftType)
		})
	}
}
