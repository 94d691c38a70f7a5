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

func newRegistry(t *testing.T) *models.Registry {
	t.Helper()

	r, err := models.NewRegistry(models.Config{ArtifactDir: t.TempDir()}, nil)
	require.NoError(t, err)

	return r
}

func TestDefaultCatalogue(t *testing.T) {
	catalogue := models.DefaultCatalogue()
	require.NotEmpty(t, catalogue)
	assert.Equal(t, models.DefaultModel, catalogue[0].Type)

	types := make([]string, 0, len(catalogue))
	for _, desc := range catalogue {
		types = append(types, desc.Type)
	}
	for _, want := range []string{"typical", "athletic", "diver", "elderly", "diabetic"} {
		assert.Contains(t, types, want)
	}
}

func TestRegistryLookup(t *testing.T) {
	r := newRegistry(t)

	desc, err := r.Lookup("athletic")
	require.NoError(t, err)
	assert.Equal(t, "athletic", desc.Type)

	_, err = r.Lookup("centralized")
	assert.ErrorIs(t, err, vigilerrors.ErrModelUnavailable)
}

func TestRegistryLoadMetadataOnly(t *testing.T) {
	r := newRegistry(t)

	h, err := r.Load(context.Background(), "athletic")
	require.NoError(t, err)
	assert.Equal(t, "athletic", h.Descriptor.Type)
	assert.Nil(t, h.Scorer)

	again, err := r.Load(context.Background(), "athletic")
	require.NoError(t, err)
	assert.Same(t, h, again)
}

func TestRegistryLoadMissingArtifact(t *testing.T) {
	cfg := models.Config{
		Catalogue: []models.Descriptor{
			{Type: "typical", Path: filepath.Join(t.TempDir(), "missing.wasm")},
		},
	}
	r, err := models.NewRegistry(cfg, nil)
	require.NoError(t, err)

	_, err = r.Load(context.Background(), "typical")
	assert.ErrorIs(t, err, vigilerrors.ErrModelUnavailable)
}

func TestRegistryTypes(t *testing.T) {
	r := newRegistry(t)

	types := r.Types()
	assert.Len(t, types, len(models.DefaultCatalogue()))
	assert.IsIncreasing(t, types)
	assert.Contains(t, types, models.DefaultModel)
}

func TestRegistryRejectsInvalidOCIConfig(t *testing.T) {
	cfg := models.Config{
		OCI: models.OCIConfig{URL: "registry.local:5000", Authenticate: true},
	}

	_, err := models.NewRegistry(cfg, nil)
	assert.Error(t, err)
}
