package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const defaultTag = "latest"

// OCIConfig points the registry at an OCI distribution server that
// stores model artifacts as image layers.
type OCIConfig struct {
	URL          string `env:"MODEL_REGISTRY_URL" envDefault:""`
	Authenticate bool   `env:"MODEL_REGISTRY_AUTH" envDefault:"false"`
	Token        string `env:"MODEL_REGISTRY_PAT" envDefault:""`
	Username     string `env:"MODEL_REGISTRY_USERNAME" envDefault:""`
	Password     string `env:"MODEL_REGISTRY_PASSWORD" envDefault:""`
}

func (c OCIConfig) Validate() error {
	if c.URL == "" {
		return errors.New("model registry url is required")
	}
	if _, err := url.Parse(c.URL); err != nil {
		return fmt.Errorf("model registry url is not a valid URL: %w", err)
	}

	if c.Authenticate {
		hasToken := c.Token != ""
		hasCredentials := c.Username != "" && c.Password != ""

		if !hasToken && !hasCredentials {
			return errors.New("either PAT or username/password must be provided when authentication is enabled")
		}

		if hasToken && c.Username == "" {
			return errors.New("username is required when using PAT authentication")
		}
	}

	return nil
}

func (c OCIConfig) setupAuthentication(repo *remote.Repository) {
	if !c.Authenticate {
		return
	}

	var cred auth.Credential
	if c.Username != "" && c.Password != "" {
		cred = auth.Credential{
			Username: c.Username,
			Password: c.Password,
		}
	} else if c.Token != "" {
		cred = auth.Credential{
			Username:    c.Username,
			AccessToken: c.Token,
		}
	}

	repo.Client = &auth.Client{
		Client:     retry.DefaultClient,
		Cache:      auth.NewCache(),
		Credential: auth.StaticCredential(c.URL, cred),
	}
}

// fetch pulls the model artifact named by reference ("name" or
// "name:tag") and returns the largest manifest layer, which is the
// artifact payload.
func (c OCIConfig) fetch(ctx context.Context, reference string) ([]byte, error) {
	name, tag := reference, defaultTag
	if idx := strings.LastIndex(reference, ":"); idx > 0 {
		name, tag = reference[:idx], reference[idx+1:]
	}

	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s", c.URL, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create repository for %s: %w", name, err)
	}

	c.setupAuthentication(repo)

	manifest, err := fetchManifest(ctx, repo, name, tag)
	if err != nil {
		return nil, err
	}

	layer, err := findLargestLayer(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to find layer for %s: %w", name, err)
	}

	layerReader, err := repo.Fetch(ctx, layer)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch layer for %s: %w", name, err)
	}
	defer layerReader.Close()

	data, err := io.ReadAll(layerReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer for %s: %w", name, err)
	}

	return data, nil
}

func fetchManifest(ctx context.Context, repo *remote.Repository, name, tag string) (*ocispec.Manifest, error) {
	descriptor, err := repo.Resolve(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest for %s: %w", name, err)
	}

	reader, err := repo.Fetch(ctx, descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest for %s: %w", name, err)
	}
	defer reader.Close()

	manifestData, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest for %s: %w", name, err)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest for %s: %w", name, err)
	}

	return &manifest, nil
}

func findLargestLayer(manifest *ocispec.Manifest) (ocispec.Descriptor, error) {
	var largestLayer ocispec.Descriptor
	var maxSize int64

	for _, layer := range manifest.Layers {
		if layer.Size > maxSize {
			maxSize = layer.Size
			largestLayer = layer
		}
	}

	if largestLayer.Size == 0 {
		return ocispec.Descriptor{}, errors.New("no valid layers found in manifest")
	}

	return largestLayer, nil
}
