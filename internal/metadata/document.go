// Package metadata turns entity metadata returned by the CRM service into
// immutable schemas and caches them per logical name.
package metadata

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "xrmkit.io/xrmkit/internal/pkg/errors"
)

// XML namespaces used by the RetrieveEntity response.
const (
	NamespaceMetadata  = "http://schemas.microsoft.com/xrm/2011/Metadata"
	NamespaceContracts = "http://schemas.microsoft.com/xrm/2011/Contracts"
	NamespaceArrays    = "http://schemas.microsoft.com/2003/10/Serialization/Arrays"
	NamespaceXSI       = "http://www.w3.org/2001/XMLSchema-instance"
)

// ErrMalformed is wrapped by every document or schema build failure.
var ErrMalformed = errors.New("malformed entity metadata")

type entityMetadataXML struct {
	LogicalName string         `xml:"http://schemas.microsoft.com/xrm/2011/Metadata LogicalName"`
	Attributes  *attributesXML `xml:"http://schemas.microsoft.com/xrm/2011/Metadata Attributes"`
}

type attributesXML struct {
	Items []attributeMetadataXML `xml:"http://schemas.microsoft.com/xrm/2011/Metadata AttributeMetadata"`
}

type attributeMetadataXML struct {
	Subtype          string            `xml:"http://www.w3.org/2001/XMLSchema-instance type,attr"`
	AttributeOf      string            `xml:"http://schemas.microsoft.com/xrm/2011/Metadata AttributeOf"`
	AttributeType    string            `xml:"http://schemas.microsoft.com/xrm/2011/Metadata AttributeType"`
	DisplayName      displayNameXML    `xml:"http://schemas.microsoft.com/xrm/2011/Metadata DisplayName"`
	IsValidForCreate string            `xml:"http://schemas.microsoft.com/xrm/2011/Metadata IsValidForCreate"`
	IsValidForRead   string            `xml:"http://schemas.microsoft.com/xrm/2011/Metadata IsValidForRead"`
	IsValidForUpdate string            `xml:"http://schemas.microsoft.com/xrm/2011/Metadata IsValidForUpdate"`
	LogicalName      *string           `xml:"http://schemas.microsoft.com/xrm/2011/Metadata LogicalName"`
	RequiredLevel    *requiredLevelXML `xml:"http://schemas.microsoft.com/xrm/2011/Metadata RequiredLevel"`
	Targets          *targetsXML       `xml:"http://schemas.microsoft.com/xrm/2011/Metadata Targets"`
}

type displayNameXML struct {
	UserLocalizedLabel struct {
		Label string `xml:"http://schemas.microsoft.com/xrm/2011/Contracts Label"`
	} `xml:"http://schemas.microsoft.com/xrm/2011/Contracts UserLocalizedLabel"`
}

type requiredLevelXML struct {
	Value *string `xml:"http://schemas.microsoft.com/xrm/2011/Contracts Value"`
}

type targetsXML struct {
	Items []string `xml:"http://schemas.microsoft.com/2003/10/Serialization/Arrays string"`
}

// Document is a parsed EntityMetadata node. Raw keeps the bytes it was
// parsed from so a cached definition can be inspected later.
type Document struct {
	LogicalName string
	Raw         []byte

	entity entityMetadataXML
}

// ParseDocument decodes entity metadata. raw may be a bare EntityMetadata
// element or any envelope containing one; the first element typed or named
// EntityMetadata is used, falling back to the root element.
func ParseDocument(raw []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var root *xml.StartElement
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed("decode metadata", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if root == nil {
			s := start.Copy()
			root = &s
		}
		if isEntityMetadata(start) {
			return decodeEntity(dec, start, raw)
		}
	}
	if root == nil {
		return nil, malformed("decode metadata", errors.New("no root element"))
	}

	// no typed node found: treat the root element as the EntityMetadata node
	dec = xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed("decode metadata", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return decodeEntity(dec, start, raw)
		}
	}
}

func decodeEntity(dec *xml.Decoder, start xml.StartElement, raw []byte) (*Document, error) {
	doc := &Document{Raw: raw}
	if err := dec.DecodeElement(&doc.entity, &start); err != nil {
		return nil, malformed("decode EntityMetadata", err)
	}
	doc.LogicalName = NormalizeName(doc.entity.LogicalName)
	return doc, nil
}

func isEntityMetadata(start xml.StartElement) bool {
	if start.Name.Local == "EntityMetadata" {
		return true
	}
	for _, attr := range start.Attr {
		if attr.Name.Space == NamespaceXSI && attr.Name.Local == "type" {
			return stripPrefix(attr.Value) == "EntityMetadata"
		}
	}
	return false
}

// stripPrefix drops a namespace prefix from a qualified name ("c:Foo" → "Foo").
func stripPrefix(qname string) string {
	if i := strings.LastIndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}

func malformed(msg string, err error) error {
	return apperrors.Wrap(fmt.Errorf("%w: %v", ErrMalformed, err),
		apperrors.CodeMetadataMalformed, msg, http.StatusBadGateway)
}
