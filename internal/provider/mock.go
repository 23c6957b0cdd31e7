package provider

import (
	"context"
	"sync"

	"xrmkit.io/xrmkit/internal/metadata"
	apperrors "xrmkit.io/xrmkit/internal/pkg/errors"
)

// MockRetriever implements Retriever for testing without a remote service.
type MockRetriever struct {
	docs  map[string][]byte // key: normalized logical name
	calls map[string]int
	err   error
	mu    sync.RWMutex
}

// NewMockRetriever creates an empty MockRetriever.
func NewMockRetriever() *MockRetriever {
	return &MockRetriever{
		docs:  make(map[string][]byte),
		calls: make(map[string]int),
	}
}

// Seed registers a raw EntityMetadata document for logicalName.
func (m *MockRetriever) Seed(logicalName string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[metadata.NormalizeName(logicalName)] = raw
}

// FailWith makes every subsequent fetch return err. nil clears it.
func (m *MockRetriever) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Reset clears seeded documents, recorded calls and any injected error.
func (m *MockRetriever) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string][]byte)
	m.calls = make(map[string]int)
	m.err = nil
}

// Calls returns how many fetches were made for logicalName.
func (m *MockRetriever) Calls(logicalName string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[metadata.NormalizeName(logicalName)]
}

// TotalCalls returns the number of fetches across all names.
func (m *MockRetriever) TotalCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *MockRetriever) RetrieveEntity(ctx context.Context, logicalName string) (*metadata.Document, error) {
	name := metadata.NormalizeName(logicalName)

	m.mu.Lock()
	m.calls[name]++
	raw, ok := m.docs[name]
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeMetadataNotFound, "no metadata for entity "+name)
	}
	return metadata.ParseDocument(raw)
}
