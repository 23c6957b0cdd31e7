// Package testutil provides shared helpers for package tests: recorded
// entity metadata fixtures and a builder for synthetic metadata documents.
package testutil

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

//go:embed fixtures/*.xml
var fixtures embed.FS

// FixtureNames lists the recorded entity metadata fixtures.
var FixtureNames = []string{"account", "contact", "incident"}

// Metadata returns the recorded EntityMetadata XML for a logical name.
func Metadata(t testing.TB, logicalName string) []byte {
	t.Helper()
	b, err := fixtures.ReadFile("fixtures/" + logicalName + ".xml")
	if err != nil {
		t.Fatalf("read metadata fixture %q: %v", logicalName, err)
	}
	return b
}

// MetadataDir writes every recorded fixture into a temp dir laid out the
// way provider.FileRetriever expects and returns its path.
func MetadataDir(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range FixtureNames {
		if err := os.WriteFile(filepath.Join(dir, name+".xml"), Metadata(t, name), 0o600); err != nil {
			t.Fatalf("write metadata fixture %q: %v", name, err)
		}
	}
	return dir
}

// Attr describes one synthetic attribute for BuildMetadata.
type Attr struct {
	Name          string
	Type          string // AttributeType, defaults to String
	Label         string
	Create        bool
	Update        bool
	Read          bool
	RequiredLevel string // defaults to None
	AttributeOf   string
	Targets       []string // non-nil makes the attribute a lookup
}

// Writable is a readable attribute valid for create and update.
func Writable(name string) Attr {
	return Attr{Name: name, Create: true, Update: true, Read: true}
}

// BuildMetadata renders a minimal EntityMetadata document.
func BuildMetadata(logicalName string, attrs ...Attr) []byte {
	var b strings.Builder
	b.WriteString(`<EntityMetadata xmlns="http://schemas.microsoft.com/xrm/2011/Metadata"` +
		` xmlns:a="http://schemas.microsoft.com/xrm/2011/Contracts"` +
		` xmlns:i="http://www.w3.org/2001/XMLSchema-instance"` +
		` xmlns:s="http://schemas.microsoft.com/2003/10/Serialization/Arrays">`)
	b.WriteString("<Attributes>")
	for _, a := range attrs {
		subtype := "AttributeMetadata"
		if a.Targets != nil {
			subtype = "LookupAttributeMetadata"
		}
		typ := a.Type
		if typ == "" {
			typ = "String"
			if a.Targets != nil {
				typ = "Lookup"
			}
		}
		level := a.RequiredLevel
		if level == "" {
			level = "None"
		}
		fmt.Fprintf(&b, `<AttributeMetadata i:type="%s">`, subtype)
		if a.AttributeOf != "" {
			fmt.Fprintf(&b, "<AttributeOf>%s</AttributeOf>", a.AttributeOf)
		} else {
			b.WriteString(`<AttributeOf i:nil="true"/>`)
		}
		fmt.Fprintf(&b, "<AttributeType>%s</AttributeType>", typ)
		fmt.Fprintf(&b, "<DisplayName><a:UserLocalizedLabel><a:Label>%s</a:Label></a:UserLocalizedLabel></DisplayName>", a.Label)
		fmt.Fprintf(&b, "<IsValidForCreate>%t</IsValidForCreate>", a.Create)
		fmt.Fprintf(&b, "<IsValidForRead>%t</IsValidForRead>", a.Read)
		fmt.Fprintf(&b, "<IsValidForUpdate>%t</IsValidForUpdate>", a.Update)
		fmt.Fprintf(&b, "<LogicalName>%s</LogicalName>", a.Name)
		fmt.Fprintf(&b, "<RequiredLevel><a:Value>%s</a:Value></RequiredLevel>", level)
		if a.Targets != nil {
			b.WriteString("<Targets>")
			for _, target := range a.Targets {
				fmt.Fprintf(&b, "<s:string>%s</s:string>", target)
			}
			b.WriteString("</Targets>")
		}
		b.WriteString("</AttributeMetadata>")
	}
	b.WriteString("</Attributes>")
	fmt.Fprintf(&b, "<LogicalName>%s</LogicalName>", logicalName)
	b.WriteString("</EntityMetadata>")
	return []byte(b.String())
}
