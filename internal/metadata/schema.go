package metadata

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// RequiredLevel is the schema-declared necessity tier of an attribute.
type RequiredLevel string

const (
	RequiredNone                RequiredLevel = "None"
	RequiredRecommended         RequiredLevel = "Recommended"
	RequiredApplicationRequired RequiredLevel = "ApplicationRequired"
	RequiredSystemRequired      RequiredLevel = "SystemRequired"
)

// IsMandatory reports whether the level blocks create/update when unset.
// Only None and Recommended are optional; unknown tokens are mandatory.
func (r RequiredLevel) IsMandatory() bool {
	return r != RequiredNone && r != RequiredRecommended
}

// lookupSubtype is the xsi:type of attributes referencing other entities.
const lookupSubtype = "LookupAttributeMetadata"

// AttributeDescriptor is the value-less template of one entity field.
type AttributeDescriptor struct {
	LogicalName   string        `json:"logical_name"`
	Label         string        `json:"label"`
	DataType      string        `json:"data_type"`
	IsLookup      bool          `json:"is_lookup"`
	LookupTargets []string      `json:"lookup_targets,omitempty"`
	CanCreate     bool          `json:"can_create"`
	CanUpdate     bool          `json:"can_update"`
	CanRead       bool          `json:"can_read"`
	RequiredLevel RequiredLevel `json:"required_level"`
	AttributeOf   string        `json:"attribute_of,omitempty"`
}

// Writable reports whether the field can be set on create or update.
func (a AttributeDescriptor) Writable() bool {
	return a.CanCreate || a.CanUpdate
}

// AllowsTarget reports whether a lookup may reference the given entity.
func (a AttributeDescriptor) AllowsTarget(logicalName string) bool {
	return slices.Contains(a.LookupTargets, NormalizeName(logicalName))
}

// Mandatory names a mandatory field and the level that makes it so.
type Mandatory struct {
	LogicalName string        `json:"logical_name"`
	Reason      RequiredLevel `json:"reason"`
}

// Schema is the immutable attribute table of one entity kind. It is shared
// by every Entity of that kind and must not be modified after BuildSchema.
type Schema struct {
	logicalName string
	attributes  []AttributeDescriptor
	index       map[string]int
	mandatory   []Mandatory
}

// LogicalName returns the entity logical name the schema was built for.
func (s *Schema) LogicalName() string { return s.logicalName }

// Len returns the number of attributes.
func (s *Schema) Len() int { return len(s.attributes) }

// Attribute looks up a descriptor by case-insensitive logical name.
func (s *Schema) Attribute(name string) (AttributeDescriptor, bool) {
	i, ok := s.index[NormalizeName(name)]
	if !ok {
		return AttributeDescriptor{}, false
	}
	return s.At(i), true
}

// Index returns the document position of an attribute.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[NormalizeName(name)]
	return i, ok
}

// At returns the descriptor at document position i.
func (s *Schema) At(i int) AttributeDescriptor {
	a := s.attributes[i]
	a.LookupTargets = slices.Clone(a.LookupTargets)
	return a
}

// Attributes returns a copy of all descriptors in document order.
func (s *Schema) Attributes() []AttributeDescriptor {
	out := make([]AttributeDescriptor, len(s.attributes))
	for i, a := range s.attributes {
		a.LookupTargets = slices.Clone(a.LookupTargets)
		out[i] = a
	}
	return out
}

// Names returns attribute logical names in document order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.attributes))
	for i, a := range s.attributes {
		out[i] = a.LogicalName
	}
	return out
}

// Mandatory returns the mandatory fields in document order.
func (s *Schema) Mandatory() []Mandatory {
	return slices.Clone(s.mandatory)
}

// IsMandatory reports whether name is in the mandatory set.
func (s *Schema) IsMandatory(name string) (RequiredLevel, bool) {
	name = NormalizeName(name)
	for _, m := range s.mandatory {
		if m.LogicalName == name {
			return m.Reason, true
		}
	}
	return "", false
}

// BuildSchema derives the attribute table and mandatory set from a parsed
// document. Any missing or malformed node fails the whole build.
func BuildSchema(doc *Document) (*Schema, error) {
	if doc == nil {
		return nil, malformed("build schema", errors.New("nil document"))
	}
	if doc.entity.Attributes == nil {
		return nil, malformed("build schema", errors.New("Attributes node missing"))
	}

	items := doc.entity.Attributes.Items
	s := &Schema{
		logicalName: doc.LogicalName,
		attributes:  make([]AttributeDescriptor, 0, len(items)),
		index:       make(map[string]int, len(items)),
	}

	for pos, item := range items {
		a, err := buildAttribute(item)
		if err != nil {
			return nil, malformed("build schema", fmt.Errorf("attribute #%d: %w", pos, err))
		}
		if _, dup := s.index[a.LogicalName]; dup {
			return nil, malformed("build schema", fmt.Errorf("duplicate attribute %q", a.LogicalName))
		}
		s.index[a.LogicalName] = len(s.attributes)
		s.attributes = append(s.attributes, a)

		if a.RequiredLevel.IsMandatory() {
			s.mandatory = append(s.mandatory, Mandatory{LogicalName: a.LogicalName, Reason: a.RequiredLevel})
		}
	}
	return s, nil
}

func buildAttribute(item attributeMetadataXML) (AttributeDescriptor, error) {
	if item.LogicalName == nil || strings.TrimSpace(*item.LogicalName) == "" {
		return AttributeDescriptor{}, errors.New("LogicalName missing")
	}
	name := NormalizeName(*item.LogicalName)

	if item.RequiredLevel == nil || item.RequiredLevel.Value == nil {
		return AttributeDescriptor{}, fmt.Errorf("%s: RequiredLevel missing", name)
	}

	a := AttributeDescriptor{
		LogicalName:   name,
		Label:         item.DisplayName.UserLocalizedLabel.Label,
		DataType:      item.AttributeType,
		IsLookup:      stripPrefix(item.Subtype) == lookupSubtype,
		CanCreate:     item.IsValidForCreate == "true",
		CanUpdate:     item.IsValidForUpdate == "true",
		CanRead:       item.IsValidForRead == "true",
		RequiredLevel: RequiredLevel(*item.RequiredLevel.Value),
		AttributeOf:   NormalizeName(item.AttributeOf),
	}

	if a.IsLookup {
		if item.Targets == nil {
			return AttributeDescriptor{}, fmt.Errorf("%s: lookup Targets missing", name)
		}
		a.LookupTargets = make([]string, 0, len(item.Targets.Items))
		for _, target := range item.Targets.Items {
			a.LookupTargets = append(a.LookupTargets, NormalizeName(target))
		}
	}
	return a, nil
}

// NormalizeName is the canonical form of logical names used for every
// lookup and cache key.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
