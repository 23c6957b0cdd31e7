// Package optionset holds the value type for enumerated CRM attributes.
package optionset

import (
	"strconv"
	"strings"
)

// OptionSetValue pairs the integer code of an option with its display label.
// It is immutable once created.
type OptionSetValue struct {
	value int
	label string
}

// New creates an OptionSetValue.
func New(value int, label string) OptionSetValue {
	return OptionSetValue{value: value, label: label}
}

// Value returns the integer code sent over the wire.
func (o OptionSetValue) Value() int { return o.value }

// Label returns the display label.
func (o OptionSetValue) Label() string { return o.label }

// Field gives case-insensitive access to "value" and "label".
func (o OptionSetValue) Field(name string) (any, bool) {
	switch strings.ToLower(name) {
	case "value":
		return o.value, true
	case "label":
		return o.label, true
	}
	return nil, false
}

// String renders the option as "[value] label".
func (o OptionSetValue) String() string {
	return "[" + strconv.Itoa(o.value) + "] " + o.label
}
