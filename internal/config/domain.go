package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/couchcryptid/sire-dashboard/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed regions.yaml
var defaultDomainYAML []byte

// Domain is the static dashboard configuration: micro-regions, the
// per-indicator aggregation operations and the deployment scope.
type Domain struct {
	Regions    []domain.MicroRegion
	Operations domain.Operations
	Scope      domain.Scope
	// Unserved lists municipality codes drawn as not served on the map.
	Unserved []string
}

type domainFile struct {
	Regions []struct {
		Name  string   `yaml:"name"`
		Codes []string `yaml:"codes"`
	} `yaml:"regions"`
	Operations map[string]string `yaml:"operations"`
	Scope      struct {
		Indicators     []string `yaml:"indicators"`
		Municipalities []string `yaml:"municipalities"`
		Years          []string `yaml:"years"`
	} `yaml:"scope"`
	Unserved []string `yaml:"unserved"`
}

// LoadDomain reads the domain configuration from path, or the embedded default
// when path is empty.
func LoadDomain(path string) (*Domain, error) {
	if path == "" {
		return ParseDomain(defaultDomainYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domain config: %w", err)
	}
	return ParseDomain(data)
}

// ParseDomain decodes and validates a domain configuration document.
// Operation names are converted here; an unsupported one fails with a
// *domain.ConfigError.
func ParseDomain(data []byte) (*Domain, error) {
	var f domainFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode domain config: %w", err)
	}

	if len(f.Regions) == 0 {
		return nil, errors.New("domain config: at least one region is required")
	}
	seen := make(map[string]struct{}, len(f.Regions))
	regions := make([]domain.MicroRegion, 0, len(f.Regions))
	for i, r := range f.Regions {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("domain config: region %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("domain config: duplicate region %q", name)
		}
		seen[name] = struct{}{}
		regions = append(regions, domain.NewMicroRegion(name, r.Codes))
	}

	if len(f.Operations) == 0 {
		return nil, errors.New("domain config: operations table is empty")
	}
	ops, err := domain.ParseOperations(f.Operations)
	if err != nil {
		return nil, fmt.Errorf("domain config: %w", err)
	}

	return &Domain{
		Regions:    regions,
		Operations: ops,
		Scope: domain.Scope{
			Indicators:     f.Scope.Indicators,
			Municipalities: f.Scope.Municipalities,
			Years:          f.Scope.Years,
		},
		Unserved: f.Unserved,
	}, nil
}
