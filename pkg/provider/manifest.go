package provider

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/polyglot/pkg/language"
	"github.com/ajitpratap0/polyglot/pkg/transport"
)

// Manifest is the YAML description of a plugin:
//
//	name: roslyn-bridge
//	auxiliary: false
//	endpoints: [/findusages, /gotodefinition]
//	languages:
//	  - csharp
//	  - {name: vb}
type Manifest struct {
	Name      string   `yaml:"name"`
	Version   string   `yaml:"version,omitempty"`
	Auxiliary bool     `yaml:"auxiliary,omitempty"`
	Endpoints NameList `yaml:"endpoints"`
	Languages NameList `yaml:"languages"`
}

// NameList is a list of names.
//
// Accepted formats:
//   - string array: [csharp, vb]
//   - object array: [{name: csharp}, {name: vb}]
type NameList []string

func (l *NameList) UnmarshalYAML(n *yaml.Node) error {
	if n == nil {
		*l = nil
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("expected a sequence, got %s", kindName(n.Kind))
	}

	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			out = append(out, strings.TrimSpace(item.Value))
		case yaml.MappingNode:
			var tmp struct {
				Name string `yaml:"name"`
			}
			if err := item.Decode(&tmp); err != nil {
				return fmt.Errorf("invalid entry: %w", err)
			}
			out = append(out, strings.TrimSpace(tmp.Name))
		default:
			return fmt.Errorf("invalid entry (must be string or object)")
		}
	}

	*l = out
	return nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}

// LoadManifest parses and validates a plugin manifest.
func LoadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// Validate checks required manifest fields.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(m.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint must be declared")
	}
	for _, e := range m.Endpoints {
		if e == "" {
			return fmt.Errorf("endpoint name is required")
		}
	}
	if len(m.Languages) == 0 {
		return fmt.Errorf("at least one language must be declared")
	}
	for _, l := range m.Languages {
		if language.Normalize(l) == "" {
			return fmt.Errorf("language name is required")
		}
	}
	return nil
}

// Plugin binds the manifest to caller.
func (m *Manifest) Plugin(caller transport.Caller) Plugin {
	return Plugin{
		Name:      m.Name,
		Endpoints: append([]string(nil), m.Endpoints...),
		Languages: append([]string(nil), m.Languages...),
		Auxiliary: m.Auxiliary,
		Caller:    caller,
	}
}
