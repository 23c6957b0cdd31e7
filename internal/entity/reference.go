package entity

import "xrmkit.io/xrmkit/internal/metadata"

// Reference points at another entity record by identifier and kind.
type Reference struct {
	ID          string `json:"id"`
	LogicalName string `json:"logical_name"`
}

// NewReference creates a Reference with a normalized logical name.
func NewReference(logicalName, id string) Reference {
	return Reference{ID: id, LogicalName: metadata.NormalizeName(logicalName)}
}

// Reference returns r itself.
func (r Reference) Reference() Reference { return r }

// Referencer is a value a lookup property accepts. The reference is taken
// when the payload is built, so an entity that gets its identifier after
// the assignment is serialized with it.
type Referencer interface {
	Reference() Reference
}
