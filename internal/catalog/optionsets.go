package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"xrmkit.io/xrmkit/internal/optionset"
	apperrors "xrmkit.io/xrmkit/internal/pkg/errors"
)

type optionSetFile struct {
	Name      string `yaml:"name"`
	Attribute string `yaml:"attribute"`
	Options   []struct {
		Value int    `yaml:"value"`
		Label string `yaml:"label"`
	} `yaml:"options"`
}

// OptionSet is the label table of one enumerated attribute.
type OptionSet struct {
	Name      string
	Attribute string // entity.attribute it applies to, informational
	Options   []optionset.OptionSetValue
}

// Lookup returns the option with the given code.
func (s OptionSet) Lookup(value int) (optionset.OptionSetValue, bool) {
	for _, o := range s.Options {
		if o.Value() == value {
			return o, true
		}
	}
	return optionset.OptionSetValue{}, false
}

// ByLabel returns the option with a case-insensitively matching label.
func (s OptionSet) ByLabel(label string) (optionset.OptionSetValue, bool) {
	for _, o := range s.Options {
		if strings.EqualFold(o.Label(), label) {
			return o, true
		}
	}
	return optionset.OptionSetValue{}, false
}

// OptionSets holds every option set loaded from a directory.
type OptionSets struct {
	sets map[string]OptionSet // key: lowercased name
}

// LoadOptionSets reads every *.yaml and *.yml file in dir. The set name
// comes from the file's name field, or its file stem. An empty dir yields
// no option sets.
func LoadOptionSets(dir string) (*OptionSets, error) {
	result := &OptionSets{sets: make(map[string]OptionSet)}
	if dir == "" {
		return result, nil
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read option sets %s: %w", dir, err)
	}
	for _, file := range files {
		ext := filepath.Ext(file.Name())
		if file.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, file.Name())
		set, err := loadOptionSet(path, strings.TrimSuffix(file.Name(), ext))
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(set.Name)
		if _, dup := result.sets[key]; dup {
			return nil, fmt.Errorf("option set %q declared twice (%s)", set.Name, path)
		}
		result.sets[key] = set
	}
	return result, nil
}

func loadOptionSet(path, stem string) (OptionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return OptionSet{}, err
	}
	var f optionSetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return OptionSet{}, fmt.Errorf("parse option set %s: %w", path, err)
	}

	set := OptionSet{Name: strings.TrimSpace(f.Name), Attribute: f.Attribute}
	if set.Name == "" {
		set.Name = stem
	}
	seen := make(map[int]bool, len(f.Options))
	for _, o := range f.Options {
		if seen[o.Value] {
			return OptionSet{}, fmt.Errorf("option set %s: value %d declared twice", set.Name, o.Value)
		}
		seen[o.Value] = true
		set.Options = append(set.Options, optionset.New(o.Value, o.Label))
	}
	return set, nil
}

// Get returns an option set by case-insensitive name.
func (s *OptionSets) Get(name string) (OptionSet, error) {
	set, ok := s.sets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return OptionSet{}, apperrors.NotFound(apperrors.CodeOptionSetNotFound, "unknown option set "+name).
			WithParams(map[string]interface{}{"name": name})
	}
	return set, nil
}

// Names returns the loaded option set names, sorted.
func (s *OptionSets) Names() []string {
	out := make([]string, 0, len(s.sets))
	for _, set := range s.sets {
		out = append(out, set.Name)
	}
	sort.Strings(out)
	return out
}
