// Package entity implements the metadata-driven CRM record: a change-tracked
// bag of properties whose names, permissions and lookup targets come from
// the entity's schema at runtime.
package entity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"xrmkit.io/xrmkit/internal/metadata"
	apperrors "xrmkit.io/xrmkit/internal/pkg/errors"
)

// EmptyGUID is what ID returns while no identifier has been assigned.
var EmptyGUID = uuid.Nil.String()

// IDProperty is the reserved property name addressing the identifier.
const IDProperty = "ID"

var (
	ErrLogicalNameOverride = errors.New("logical name override")
	ErrLogicalNameRequired = errors.New("logical name required")
	ErrIDAlreadySet        = errors.New("entity id already set")
	ErrLookupTypeMismatch  = errors.New("lookup type mismatch")
	ErrNilConnection       = errors.New("nil connection")
)

// Connection is the collaborator owning metadata retrieval and the
// definition cache.
type Connection interface {
	IsEntityDefinitionCached(logicalName string) bool
	GetCachedEntityDefinition(logicalName string) (*metadata.Definition, bool)
	RetrieveEntity(ctx context.Context, logicalName string) (*metadata.Document, error)
	SetCachedEntityDefinition(logicalName string, def *metadata.Definition)
}

// Guard is implemented by connections that can run a check-fetch-store
// sequence exclusively per logical name.
type Guard interface {
	GuardEntityDefinition(logicalName string, fn func() (*metadata.Definition, error)) (*metadata.Definition, error)
}

// ResolveSchema returns the cached definition for logicalName, fetching,
// building and caching it on a miss. Fetch errors are returned unchanged.
//
// On a guarded connection the fetch is shared by every concurrent caller
// for the name, so it runs detached from ctx cancellation; the connection's
// own fetch timeout bounds it.
func ResolveSchema(ctx context.Context, conn Connection, logicalName string) (*metadata.Definition, error) {
	name := metadata.NormalizeName(logicalName)

	resolve := func(ctx context.Context) (*metadata.Definition, error) {
		if conn.IsEntityDefinitionCached(name) {
			if def, ok := conn.GetCachedEntityDefinition(name); ok {
				return def, nil
			}
		}
		doc, err := conn.RetrieveEntity(ctx, name)
		if err != nil {
			return nil, err
		}
		schema, err := metadata.BuildSchema(doc)
		if err != nil {
			return nil, err
		}
		def := &metadata.Definition{Document: doc, Schema: schema}
		conn.SetCachedEntityDefinition(name, def)
		return def, nil
	}

	if g, ok := conn.(Guard); ok {
		shared := context.WithoutCancel(ctx)
		return g.GuardEntityDefinition(name, func() (*metadata.Definition, error) {
			return resolve(shared)
		})
	}
	return resolve(ctx)
}

type property struct {
	value   any
	changed bool
}

// Entity is one record of a CRM entity kind. It is not safe for concurrent
// mutation; the schema it points at is shared and read-only.
type Entity struct {
	logicalName string
	id          string
	schema      *metadata.Schema
	props       []property
	reporter    Reporter
}

// Option configures an Entity at construction.
type Option func(*Entity)

// WithReporter routes property diagnostics to r instead of the log.
func WithReporter(r Reporter) Option {
	return func(e *Entity) {
		if r != nil {
			e.reporter = r
		}
	}
}

// New creates an Entity of the given logical name.
func New(ctx context.Context, conn Connection, logicalName string, opts ...Option) (*Entity, error) {
	return construct(ctx, conn, "", logicalName, opts)
}

// Kind is an entity variant with a fixed logical name.
type Kind struct {
	logicalName string
}

// NewKind creates a Kind fixed to logicalName.
func NewKind(logicalName string) Kind {
	return Kind{logicalName: metadata.NormalizeName(logicalName)}
}

// LogicalName returns the fixed logical name.
func (k Kind) LogicalName() string { return k.logicalName }

// New creates an Entity of this kind. logicalName may be empty; a
// different name than the fixed one fails with ErrLogicalNameOverride.
func (k Kind) New(ctx context.Context, conn Connection, logicalName string, opts ...Option) (*Entity, error) {
	return construct(ctx, conn, k.logicalName, logicalName, opts)
}

func construct(ctx context.Context, conn Connection, fixed, supplied string, opts []Option) (*Entity, error) {
	fixed = metadata.NormalizeName(fixed)
	supplied = metadata.NormalizeName(supplied)

	if fixed != "" && supplied != "" && supplied != fixed {
		return nil, apperrors.Wrap(ErrLogicalNameOverride, apperrors.CodeLogicalNameOverride,
			fmt.Sprintf("entity kind %q cannot be constructed as %q", fixed, supplied), http.StatusBadRequest).
			WithParams(map[string]interface{}{"kind": fixed, "logical_name": supplied})
	}
	name := fixed
	if name == "" {
		name = supplied
	}
	if name == "" {
		return nil, apperrors.Wrap(ErrLogicalNameRequired, apperrors.CodeLogicalNameRequired,
			"entity logical name is required", http.StatusBadRequest)
	}
	if conn == nil {
		return nil, ErrNilConnection
	}

	def, err := ResolveSchema(ctx, conn, name)
	if err != nil {
		return nil, err
	}

	e := &Entity{
		logicalName: name,
		schema:      def.Schema,
		props:       make([]property, def.Schema.Len()),
		reporter:    LogReporter{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// LogicalName returns the normalized entity logical name.
func (e *Entity) LogicalName() string { return e.logicalName }

// Schema returns the shared schema of this entity kind.
func (e *Entity) Schema() *metadata.Schema { return e.schema }

// ID returns the identifier, or EmptyGUID while unset.
func (e *Entity) ID() string {
	if e.id == "" {
		return EmptyGUID
	}
	return e.id
}

// HasID reports whether an identifier has been assigned.
func (e *Entity) HasID() bool { return e.id != "" }

// SetID assigns the identifier once. Empty values and EmptyGUID leave it
// unset. GUIDs are stored in canonical lowercase form; other identifiers
// are kept as given.
func (e *Entity) SetID(id string) error {
	if e.id != "" {
		return apperrors.Wrap(ErrIDAlreadySet, apperrors.CodeIDAlreadySet,
			"identifier of "+e.String()+" cannot be reassigned", http.StatusConflict).
			WithParams(map[string]interface{}{"entity": e.logicalName, "id": e.id})
	}
	id = strings.TrimSpace(id)
	if guid, err := uuid.Parse(id); err == nil {
		if guid == uuid.Nil {
			return nil
		}
		id = guid.String()
	}
	if id == "" {
		return nil
	}
	e.id = id
	return nil
}

// Get returns the value of a property, matched case-insensitively. Unknown
// and unreadable properties yield nil and a diagnostic.
func (e *Entity) Get(name string) any {
	if isIDProperty(name) {
		return e.ID()
	}
	i, ok := e.schema.Index(name)
	if !ok {
		e.report(notFound(name), SeverityWarning)
		return nil
	}
	if !e.schema.At(i).CanRead {
		e.report(notReadable(name), SeverityWarning)
		return nil
	}
	return e.props[i].value
}

// Set stores value and marks the property changed. Unknown and read-only
// properties are reported and left alone. Reassigning the identifier and
// assigning a lookup anything but a reference to an allowed target fail
// without changing state. A nil pointer is stored as nil.
func (e *Entity) Set(name string, value any) error {
	if isIDProperty(name) {
		return e.SetID(idString(value))
	}
	i, ok := e.schema.Index(name)
	if !ok {
		e.report(notFound(name), SeverityWarning)
		return nil
	}
	attr := e.schema.At(i)
	if !attr.Writable() {
		e.report(readOnly(attr.LogicalName), SeverityWarning)
		return nil
	}
	if attr.IsLookup {
		if err := e.checkLookup(attr, value); err != nil {
			return err
		}
	} else if isNil(value) {
		value = nil
	}
	e.props[i] = property{value: value, changed: true}
	return nil
}

func (e *Entity) checkLookup(attr metadata.AttributeDescriptor, value any) error {
	target := ""
	if ref, ok := value.(Referencer); ok && !isNil(value) {
		target = ref.Reference().LogicalName
		if attr.AllowsTarget(target) {
			return nil
		}
	}
	msg := fmt.Sprintf("%s.%s accepts %s, got %s", e.logicalName, attr.LogicalName,
		strings.Join(attr.LookupTargets, "|"), describe(value, target))
	e.reporter.Report(Diagnostic{
		Code:     apperrors.CodeLookupTypeMismatch,
		Entity:   e.logicalName,
		Property: attr.LogicalName,
		Severity: SeverityError,
		Message:  msg,
	})
	return apperrors.Wrap(ErrLookupTypeMismatch, apperrors.CodeLookupTypeMismatch, msg, http.StatusUnprocessableEntity).
		WithParams(map[string]interface{}{
			"entity":   e.logicalName,
			"property": attr.LogicalName,
			"targets":  attr.LookupTargets,
		})
}

// Reset clears every changed flag. Values are kept.
func (e *Entity) Reset() {
	for i := range e.props {
		e.props[i].changed = false
	}
}

// IsChanged reports whether a property was set since the last Reset.
// Unknown names are reported and yield false.
func (e *Entity) IsChanged(name string) bool {
	i, ok := e.schema.Index(name)
	if !ok {
		e.report(notFound(name), SeverityWarning)
		return false
	}
	return e.props[i].changed
}

// Property is a snapshot of one property of an Entity.
type Property struct {
	metadata.AttributeDescriptor
	Value   any  `json:"value"`
	Changed bool `json:"changed"`
}

// Properties returns every property in schema order.
func (e *Entity) Properties() []Property {
	attrs := e.schema.Attributes()
	out := make([]Property, len(attrs))
	for i, a := range attrs {
		out[i] = Property{AttributeDescriptor: a, Value: e.props[i].value, Changed: e.props[i].changed}
	}
	return out
}

// Reference returns the reference other entities' lookups store.
func (e *Entity) Reference() Reference {
	if e == nil {
		return Reference{}
	}
	return Reference{ID: e.ID(), LogicalName: e.logicalName}
}

// String renders the entity as logicalname<id>.
func (e *Entity) String() string {
	return e.logicalName + "<" + e.ID() + ">"
}

func (e *Entity) report(d Diagnostic, severity Severity) {
	d.Entity = e.logicalName
	d.Severity = severity
	d.Message = fmt.Sprintf("%s on %s: %s", d.Message, e.logicalName, d.Property)
	e.reporter.Report(d)
}

func isIDProperty(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), IDProperty)
}

func idString(v any) string {
	if isNil(v) {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case fmt.Stringer:
		return id.String()
	default:
		return fmt.Sprint(id)
	}
}

// isNil reports whether v is nil or holds a nil pointer-like value.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func describe(value any, target string) string {
	switch {
	case isNil(value):
		return "nil"
	case target != "":
		return target
	default:
		return fmt.Sprintf("%T", value)
	}
}
