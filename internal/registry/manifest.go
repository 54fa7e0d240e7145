package registry

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inkframe/inkframe/internal/plugin"
)

// Manifest is the parsed manifest.yaml of one plugin directory. It carries the
// full descriptor plus the name of the registered factory that builds the
// implementation.
type Manifest struct {
	plugin.Descriptor `yaml:",inline"`
	Factory           string `yaml:"factory"`
}

// parseManifest reads and validates a single manifest file.
func parseManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if strings.TrimSpace(m.ID) == "" {
		return nil, fmt.Errorf("manifest is missing an id")
	}
	if m.Factory == "" {
		// default factory name is the plugin id
		m.Factory = m.ID
	}
	switch m.Mode {
	case plugin.ModeOneShot, plugin.ModeContinuous:
	case "":
		m.Mode = plugin.ModeOneShot
	default:
		return nil, fmt.Errorf("unknown mode %q", m.Mode)
	}
	for _, f := range m.Schema {
		if strings.TrimSpace(f.Key) == "" {
			return nil, fmt.Errorf("schema field with empty key")
		}
	}
	return &m, nil
}
