package entity

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"xrmkit.io/xrmkit/internal/optionset"
)

// Namespaces of the create/update entity contract.
const (
	NamespaceContracts = "http://schemas.microsoft.com/xrm/2011/Contracts"
	NamespaceGeneric   = "http://schemas.datacontract.org/2004/07/System.Collections.Generic"
	NamespaceXSI       = "http://www.w3.org/2001/XMLSchema-instance"
	NamespaceXSD       = "http://www.w3.org/2001/XMLSchema"
)

// entityReferenceType is the wire type of lookup values.
const entityReferenceType = "EntityReference"

// PayloadAttribute is one key/typed-value pair of a Payload.
type PayloadAttribute struct {
	LogicalName string     `json:"logical_name"`
	Type        string     `json:"type"`
	Value       string     `json:"value,omitempty"`
	Nil         bool       `json:"nil,omitempty"`
	Reference   *Reference `json:"reference,omitempty"`
}

// Payload is the create/update representation of an Entity. Its XML form
// is the entity element the remote service expects.
type Payload struct {
	ID          string             `json:"id"`
	LogicalName string             `json:"logical_name"`
	Attributes  []PayloadAttribute `json:"attributes"`
}

// ToCreateUpdatePayload builds the payload of the entity. By default only
// changed properties are included; includeAllFields includes every
// property holding a value. Attributes follow schema order.
func (e *Entity) ToCreateUpdatePayload(includeAllFields bool) *Payload {
	p := &Payload{
		ID:          e.ID(),
		LogicalName: e.logicalName,
		Attributes:  make([]PayloadAttribute, 0),
	}
	for i, prop := range e.props {
		if !prop.changed && !(includeAllFields && prop.value != nil) {
			continue
		}
		attr := e.schema.At(i)
		pa := PayloadAttribute{LogicalName: attr.LogicalName}
		switch {
		case attr.IsLookup:
			ref := prop.value.(Referencer).Reference()
			if ref.ID == "" {
				ref.ID = EmptyGUID
			}
			pa.Type = entityReferenceType
			pa.Reference = &ref
		case isNil(prop.value):
			pa.Type = strings.ToLower(attr.DataType)
			pa.Nil = true
		default:
			pa.Type = strings.ToLower(attr.DataType)
			pa.Value = FormatValue(prop.value)
		}
		p.Attributes = append(p.Attributes, pa)
	}
	return p
}

// Attribute returns the payload entry for name.
func (p *Payload) Attribute(name string) (PayloadAttribute, bool) {
	for _, a := range p.Attributes {
		if strings.EqualFold(a.LogicalName, name) {
			return a, true
		}
	}
	return PayloadAttribute{}, false
}

// XML renders the payload as an entity element.
func (p *Payload) XML() (string, error) {
	b, err := xml.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MarshalXML writes the entity element with the prefixes the remote
// service expects: b for contracts, c for generic collections, i for
// schema-instance and d for schema types. b is declared on the entity
// element so the fragment also parses on its own.
func (p *Payload) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	if start.Name.Local == "" || start.Name.Local == "Payload" {
		start.Name = xml.Name{Local: "entity"}
	}
	start.Attr = append(start.Attr, xmlns("i", NamespaceXSI), xmlns("b", NamespaceContracts))

	w := &tokenWriter{enc: enc}
	w.start(start)

	w.start(elem("b:Attributes", xmlns("c", NamespaceGeneric)))
	for _, a := range p.Attributes {
		w.start(elem("b:KeyValuePairOfstringanyType"))
		w.text("c:key", a.LogicalName)
		switch {
		case a.Reference != nil:
			w.start(elem("c:value", attr("i:type", "b:"+entityReferenceType)))
			w.text("b:Id", a.Reference.ID)
			w.text("b:LogicalName", a.Reference.LogicalName)
			w.empty(elem("b:Name", attr("i:nil", "true")))
			w.end("c:value")
		case a.Nil:
			w.empty(elem("c:value", attr("i:nil", "true")))
		default:
			w.start(elem("c:value", attr("i:type", "d:"+a.Type), xmlns("d", NamespaceXSD)))
			w.chars(a.Value)
			w.end("c:value")
		}
		w.end("b:KeyValuePairOfstringanyType")
	}
	w.end("b:Attributes")

	w.empty(elem("b:EntityState", attr("i:nil", "true")))
	w.empty(elem("b:FormattedValues", xmlns("c", NamespaceGeneric)))
	w.text("b:Id", p.ID)
	w.text("b:LogicalName", p.LogicalName)
	w.empty(elem("b:RelatedEntities", xmlns("c", NamespaceGeneric)))

	w.emit(start.End())
	return w.err
}

// FormatValue renders a non-lookup property value as wire text. Nil and
// nil pointers render as the empty string.
func FormatValue(v any) string {
	if isNil(v) {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case optionset.OptionSetValue:
		return strconv.Itoa(val.Value())
	case *optionset.OptionSetValue:
		return strconv.Itoa(val.Value())
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// tokenWriter keeps the first encoder error so the element sequence reads
// straight through.
type tokenWriter struct {
	enc *xml.Encoder
	err error
}

func (w *tokenWriter) emit(tok xml.Token) {
	if w.err == nil {
		w.err = w.enc.EncodeToken(tok)
	}
}

func (w *tokenWriter) start(s xml.StartElement) { w.emit(s) }

func (w *tokenWriter) end(local string) {
	w.emit(xml.EndElement{Name: xml.Name{Local: local}})
}

func (w *tokenWriter) chars(s string) { w.emit(xml.CharData(s)) }

func (w *tokenWriter) empty(s xml.StartElement) {
	w.start(s)
	w.end(s.Name.Local)
}

func (w *tokenWriter) text(local, value string) {
	w.start(elem(local))
	w.chars(value)
	w.end(local)
}

func elem(local string, attrs ...xml.Attr) xml.StartElement {
	return xml.StartElement{Name: xml.Name{Local: local}, Attr: attrs}
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func xmlns(prefix, uri string) xml.Attr {
	return attr("xmlns:"+prefix, uri)
}
