// Package models resolves model types to servable artifacts and owns
// the per-patient model assignment that drift detection drives.
package models

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	vigilerrors "github.com/vigil-fl/vigil/pkg/errors"
)

// DefaultModel serves patients that never had a swap.
const DefaultModel = "federated"

// Descriptor is one catalogue entry. Path points at a local artifact,
// Reference at an OCI repository; both empty means the entry is
// metadata only.
type Descriptor struct {
	Type      string `json:"type" toml:"type"`
	Path      string `json:"path,omitempty" toml:"path"`
	Reference string `json:"reference,omitempty" toml:"reference"`
	Version   string `json:"version,omitempty" toml:"version"`
}

// Handle is a loaded catalogue entry. Scorer is nil when no artifact
// could be resolved.
type Handle struct {
	Descriptor Descriptor
	Scorer     *Scorer
}

// DefaultCatalogue lists the built-in model types: the federated
// baseline plus one specialized model per behavioral category.
func DefaultCatalogue() []Descriptor {
	return []Descriptor{
		{Type: DefaultModel, Version: "1.0.0"},
		{Type: "typical", Version: "1.0.0"},
		{Type: "athletic", Version: "1.0.0"},
		{Type: "diver", Version: "1.0.0"},
		{Type: "elderly", Version: "1.0.0"},
		{Type: "diabetic", Version: "1.0.0"},
	}
}

type Config struct {
	ArtifactDir string `env:"MODEL_ARTIFACT_DIR" envDefault:"./models"`
	OCI         OCIConfig
	Catalogue   []Descriptor
}

// Registry resolves model types to handles. Artifacts are looked up
// in the artifact directory first, then fetched from the OCI registry
// when the descriptor carries a reference; entries without either
// load as metadata-only handles.
type Registry struct {
	cfg    Config
	logger *slog.Logger
	byType map[string]Descriptor

	loads singleflight.Group

	mu      sync.RWMutex
	handles map[string]*Handle
}

func NewRegistry(cfg Config, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Catalogue) == 0 {
		cfg.Catalogue = DefaultCatalogue()
	}
	if cfg.OCI.URL != "" {
		if err := cfg.OCI.Validate(); err != nil {
			return nil, err
		}
	}

	byType := make(map[string]Descriptor, len(cfg.Catalogue))
	for _, desc := range cfg.Catalogue {
		byType[desc.Type] = desc
	}

	return &Registry{
		cfg:     cfg,
		logger:  logger,
		byType:  byType,
		handles: make(map[string]*Handle),
	}, nil
}

// Lookup returns the catalogue descriptor for the model type.
func (r *Registry) Lookup(modelType string) (Descriptor, error) {
	desc, ok := r.byType[modelType]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", vigilerrors.ErrModelUnavailable, modelType)
	}

	return desc, nil
}

// Types returns the catalogue model types, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	sort.Strings(types)

	return types
}

// Load resolves and caches a handle for the model type. Concurrent
// loads of the same type share a single artifact fetch.
func (r *Registry) Load(ctx context.Context, modelType string) (*Handle, error) {
	desc, err := r.Lookup(modelType)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	h, ok := r.handles[modelType]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	v, err, _ := r.loads.Do(modelType, func() (any, error) {
		r.mu.RLock()
		h, ok := r.handles[modelType]
		r.mu.RUnlock()
		if ok {
			return h, nil
		}

		h, err := r.load(ctx, desc)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.handles[modelType] = h
		r.mu.Unlock()

		return h, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Handle), nil
}

func (r *Registry) load(ctx context.Context, desc Descriptor) (*Handle, error) {
	binary, source, err := r.artifact(ctx, desc)
	if err != nil {
		return nil, err
	}

	h := &Handle{Descriptor: desc}
	if binary == nil {
		r.logger.Info("loaded metadata-only model", slog.String("type", desc.Type))

		return h, nil
	}

	scorer, err := newScorer(ctx, binary)
	if err != nil {
		return nil, errors.Join(vigilerrors.ErrModelUnavailable, err)
	}
	h.Scorer = scorer

	r.logger.Info("loaded model artifact",
		slog.String("type", desc.Type),
		slog.String("source", source),
		slog.Int("size", len(binary)),
	)

	return h, nil
}

// artifact resolves the model binary. A nil binary with a nil error
// means no artifact is configured for the descriptor.
func (r *Registry) artifact(ctx context.Context, desc Descriptor) ([]byte, string, error) {
	if desc.Path != "" {
		binary, err := os.ReadFile(desc.Path)
		if err != nil {
			return nil, "", errors.Join(vigilerrors.ErrModelUnavailable, err)
		}

		return binary, desc.Path, nil
	}

	if r.cfg.ArtifactDir != "" {
		path := filepath.Join(r.cfg.ArtifactDir, desc.Type+".wasm")
		binary, err := os.ReadFile(path)
		switch {
		case err == nil:
			return binary, path, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, "", errors.Join(vigilerrors.ErrModelUnavailable, err)
		}
	}

	if desc.Reference != "" && r.cfg.OCI.URL != "" {
		binary, err := r.cfg.OCI.fetch(ctx, desc.Reference)
		if err != nil {
			return nil, "", errors.Join(vigilerrors.ErrModelUnavailable, err)
		}

		return binary, desc.Reference, nil
	}

	return nil, "", nil
}

// Close releases every compiled scorer.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for t, h := range r.handles {
		if h.Scorer == nil {
			continue
		}
		if err := h.Scorer.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", t, err))
		}
	}
	clear(r.handles)

	return errors.Join(errs...)
}
