package storage

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/taskforge/pkg/domain/strategy"
	"github.com/felixgeelhaar/taskforge/pkg/domain/worker"
)

// WorkersFile is the YAML layout of a worker seed file.
type WorkersFile struct {
	Workers []worker.Profile `yaml:"workers"`
}

// StrategiesFile is the YAML layout of a strategy seed file.
type StrategiesFile struct {
	// IncludeDefaults keeps the built-in strategies alongside the file's.
	IncludeDefaults bool                `yaml:"include_defaults"`
	Strategies      []strategy.Strategy `yaml:"strategies"`
}

// LoadWorkers reads and validates a worker seed file. Workers without an
// availability are taken as available.
func LoadWorkers(path string) ([]worker.Profile, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workers file: %w", err)
	}

	var f WorkersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse workers file %s: %w", path, err)
	}

	var errs []error
	for i := range f.Workers {
		if f.Workers[i].Availability == "" {
			f.Workers[i].Availability = worker.Available
		}
		if err := f.Workers[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("worker %d (%s): %w", i, f.Workers[i].ID, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return f.Workers, nil
}

// LoadStrategies reads and validates a strategy seed file.
func LoadStrategies(path string) ([]strategy.Strategy, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategies file: %w", err)
	}

	var f StrategiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse strategies file %s: %w", path, err)
	}

	out := f.Strategies
	if f.IncludeDefaults {
		out = append(strategy.Defaults(), out...)
	}
	for _, s := range out {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SeedRegistry registers every worker in path.
func SeedRegistry(r *worker.Registry, path string) error {
	profiles, err := LoadWorkers(path)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// NewCatalogFromFile builds a catalog from a strategy seed file.
func NewCatalogFromFile(path string) (*strategy.Catalog, error) {
	strategies, err := LoadStrategies(path)
	if err != nil {
		return nil, err
	}
	c := strategy.NewCatalog()
	for _, s := range strategies {
		if err := c.Register(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}
