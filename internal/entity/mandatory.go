package entity

import (
	"xrmkit.io/xrmkit/internal/metadata"
	apperrors "xrmkit.io/xrmkit/internal/pkg/errors"
)

// MissingField is a mandatory field left unset, with the required level
// that made it mandatory.
type MissingField struct {
	LogicalName string                 `json:"logical_name"`
	Reason      metadata.RequiredLevel `json:"reason"`
}

// CheckMandatories reports whether every mandatory field holds a value.
// Sub-attributes are checked through the attribute they belong to, and
// fields that can never be written are not checked at all. Missing fields
// are returned once each, in schema order.
func (e *Entity) CheckMandatories() (bool, []MissingField) {
	var missing []MissingField
	seen := make(map[string]bool)

	for _, m := range e.schema.Mandatory() {
		i, _ := e.schema.Index(m.LogicalName)
		field := m.LogicalName
		if parent := e.schema.At(i).AttributeOf; parent != "" {
			pi, ok := e.schema.Index(parent)
			if !ok {
				continue
			}
			i, field = pi, parent
		}
		if seen[field] || !e.schema.At(i).Writable() || !isEmpty(e.props[i].value) {
			continue
		}
		seen[field] = true
		missing = append(missing, MissingField{LogicalName: field, Reason: m.Reason})
	}
	return len(missing) == 0, missing
}

// MandatoryError converts missing fields into a 422 AppError.
func (e *Entity) MandatoryError(missing []MissingField) error {
	if len(missing) == 0 {
		return nil
	}
	fields := make([]apperrors.FieldError, len(missing))
	for i, m := range missing {
		fields[i] = apperrors.FieldError{
			Field:   m.LogicalName,
			Code:    string(m.Reason),
			Message: "mandatory field is not set",
		}
	}
	return apperrors.ErrMandatoryMissingf(e.logicalName, fields)
}

func isEmpty(v any) bool {
	if s, ok := v.(string); ok {
		return s == ""
	}
	return isNil(v)
}
