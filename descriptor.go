package harbor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DiscoveryMode controls which beans of a deployment unit are deployed.
type DiscoveryMode string

const (
	// DiscoveryAll deploys every bean of the unit.
	DiscoveryAll DiscoveryMode = "all"
	// DiscoveryAnnotated deploys only beans with a declared scope or
	// stereotype, producers, interceptors and decorators.
	DiscoveryAnnotated DiscoveryMode = "annotated"
	// DiscoveryNone deploys nothing from the unit.
	DiscoveryNone DiscoveryMode = "none"
)

// Descriptor is a deployment descriptor (beans.yaml). Entries name beans by id
// or by class.
//
//	alternatives:
//	  - mock-mailer
//	interceptors:
//	  - tx-interceptor
//	  - audit-interceptor
//	decorators:
//	  - caching-decorator
//	discovery: annotated
type Descriptor struct {
	Alternatives []string      `yaml:"alternatives"`
	Interceptors []string      `yaml:"interceptors"`
	Decorators   []string      `yaml:"decorators"`
	Discovery    DiscoveryMode `yaml:"discovery"`
}

// ParseDescriptor parses a YAML descriptor.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}

	switch d.Discovery {
	case "":
		d.Discovery = DiscoveryAll
	case DiscoveryAll, DiscoveryAnnotated, DiscoveryNone:
	default:
		return nil, fmt.Errorf("parse descriptor: unknown discovery mode %q", d.Discovery)
	}

	return &d, nil
}

// LoadDescriptor reads and parses a descriptor file.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load descriptor: %w", err)
	}

	return ParseDescriptor(data)
}

// discovers reports whether a bean is deployed under the descriptor's
// discovery mode.
func (d *Descriptor) discovers(b *Bean) bool {
	if d == nil {
		return true
	}

	switch d.Discovery {
	case DiscoveryNone:
		return false
	case DiscoveryAnnotated:
		return b.scopeDeclared || len(b.stereotypes) > 0 || b.kind != BeanManaged ||
			b.interceptor != nil || b.decorator != nil
	default:
		return true
	}
}

func entryIndex(entries []string, b *Bean) int {
	for i, e := range entries {
		if e == b.id || e == b.class {
			return i
		}
	}

	return -1
}
