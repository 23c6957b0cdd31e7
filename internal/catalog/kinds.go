// Package catalog loads the static catalogs served next to entity metadata:
// the registry of fixed entity kinds and the option-set label tables.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"xrmkit.io/xrmkit/internal/entity"
	"xrmkit.io/xrmkit/internal/metadata"
	apperrors "xrmkit.io/xrmkit/internal/pkg/errors"
)

type kindsFile struct {
	Kinds map[string]string `yaml:"kinds"`
}

// Kinds maps kind names (e.g. "Incident") to entity kinds.
type Kinds struct {
	kinds map[string]entity.Kind // key: lowercased kind name
	names []string
}

// NewKinds builds a registry from kind name to logical name.
func NewKinds(defs map[string]string) (*Kinds, error) {
	k := &Kinds{kinds: make(map[string]entity.Kind, len(defs))}
	for name, logicalName := range defs {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || metadata.NormalizeName(logicalName) == "" {
			return nil, fmt.Errorf("kind %q: name and logical name are required", name)
		}
		if _, dup := k.kinds[key]; dup {
			return nil, fmt.Errorf("kind %q declared twice", name)
		}
		k.kinds[key] = entity.NewKind(logicalName)
		k.names = append(k.names, name)
	}
	sort.Strings(k.names)
	return k, nil
}

// LoadKinds reads a kinds file. An empty path yields an empty registry.
func LoadKinds(path string) (*Kinds, error) {
	if path == "" {
		return NewKinds(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read kinds %s: %w", path, err)
	}
	var f kindsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse kinds %s: %w", path, err)
	}
	return NewKinds(f.Kinds)
}

// Get returns a kind by case-insensitive name.
func (k *Kinds) Get(name string) (entity.Kind, error) {
	kind, ok := k.kinds[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return entity.Kind{}, apperrors.NotFound(apperrors.CodeKindNotFound, "unknown entity kind "+name).
			WithParams(map[string]interface{}{"kind": name})
	}
	return kind, nil
}

// Names returns the declared kind names, sorted.
func (k *Kinds) Names() []string {
	out := make([]string, len(k.names))
	copy(out, k.names)
	return out
}

// LogicalNames returns the distinct logical names of all kinds, sorted.
func (k *Kinds) LogicalNames() []string {
	seen := make(map[string]bool, len(k.kinds))
	out := make([]string, 0, len(k.kinds))
	for _, kind := range k.kinds {
		if !seen[kind.LogicalName()] {
			seen[kind.LogicalName()] = true
			out = append(out, kind.LogicalName())
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of kinds.
func (k *Kinds) Len() int { return len(k.kinds) }
