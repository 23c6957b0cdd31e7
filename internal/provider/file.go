package provider

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"xrmkit.io/xrmkit/internal/metadata"
	apperrors "xrmkit.io/xrmkit/internal/pkg/errors"
)

// FileRetriever serves recorded RetrieveEntity responses from a directory,
// one <logicalname>.xml file per entity kind.
type FileRetriever struct {
	dir string
}

// NewFileRetriever creates a FileRetriever rooted at dir.
func NewFileRetriever(dir string) *FileRetriever {
	return &FileRetriever{dir: dir}
}

// Dir returns the source directory.
func (r *FileRetriever) Dir() string { return r.dir }

// RetrieveEntity reads and parses <dir>/<logicalname>.xml.
func (r *FileRetriever) RetrieveEntity(ctx context.Context, logicalName string) (*metadata.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := metadata.NormalizeName(logicalName)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, apperrors.ErrInvalidRequestFieldf("logical_name")
	}

	raw, err := os.ReadFile(filepath.Join(r.dir, name+".xml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NotFound(apperrors.CodeMetadataNotFound, "no metadata for entity "+name).
			WithParams(map[string]interface{}{"entity": name})
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMetadataFetch, "read metadata for "+name, http.StatusBadGateway)
	}
	return metadata.ParseDocument(raw)
}

// Available lists the logical names the directory has documents for.
func (r *FileRetriever) Available() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, "*.xml"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, metadata.NormalizeName(strings.TrimSuffix(filepath.Base(m), ".xml")))
	}
	return names, nil
}
