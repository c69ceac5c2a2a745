package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Model names the pipeline expects in a manifest.
const (
	ModelURL     = "url"
	ModelContent = "content"
	ModelMeta    = "meta"
)

type ModelPaths struct {
	Model        string `yaml:"model"`
	FeatureIndex string `yaml:"feature_index"`
}

// Manifest maps each model name to its ensemble and feature-index files.
type Manifest struct {
	Models map[string]ModelPaths `yaml:"models"`
}

// DefaultModelPaths follows the layout the training export writes:
// <dir>/<name>_model.json and <dir>/<name>_feature_index.json.
func DefaultModelPaths(dir, name string) ModelPaths {
	return ModelPaths{
		Model:        filepath.Join(dir, name+"_model.json"),
		FeatureIndex: filepath.Join(dir, name+"_feature_index.json"),
	}
}

// LoadManifest reads the YAML manifest at path. A missing file yields the
// default layout under dir. Relative paths in the manifest resolve against
// the manifest's directory, and names it omits fall back to the defaults.
func LoadManifest(path, dir string) (*Manifest, error) {
	m := &Manifest{Models: map[string]ModelPaths{}}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read model manifest: %w", err)
	default:
		if err := yaml.Unmarshal(raw, m); err != nil {
			return nil, fmt.Errorf("parse model manifest %s: %w", path, err)
		}
		if m.Models == nil {
			m.Models = map[string]ModelPaths{}
		}
		base := filepath.Dir(path)
		for name, p := range m.Models {
			m.Models[name] = ModelPaths{
				Model:        resolve(base, p.Model),
				FeatureIndex: resolve(base, p.FeatureIndex),
			}
		}
	}

	for _, name := range []string{ModelURL, ModelContent, ModelMeta} {
		def := DefaultModelPaths(dir, name)
		p := m.Models[name]
		if p.Model == "" {
			p.Model = def.Model
		}
		if p.FeatureIndex == "" {
			p.FeatureIndex = def.FeatureIndex
		}
		m.Models[name] = p
	}
	return m, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
