// Package provider supplies the connection collaborator the entity model
// consumes: a metadata Retriever and a Session that owns the definition
// cache for the lifetime of one connection.
package provider

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"xrmkit.io/xrmkit/internal/metadata"
	"xrmkit.io/xrmkit/internal/pkg/logger"
)

// Retriever fetches the EntityMetadata document for one logical name.
// Implementations own transport, authentication and retries.
type Retriever interface {
	RetrieveEntity(ctx context.Context, logicalName string) (*metadata.Document, error)
}

// Session binds a Retriever to a connection-scoped definition cache.
type Session struct {
	retriever    Retriever
	cache        *metadata.Cache
	fetchTimeout time.Duration
	fetches      atomic.Int64
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithFetchTimeout bounds every RetrieveEntity call. Zero means no bound.
func WithFetchTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.fetchTimeout = d }
}

// WithCache shares an existing cache instead of creating a new one.
func WithCache(c *metadata.Cache) SessionOption {
	return func(s *Session) { s.cache = c }
}

// NewSession creates a Session fetching through r.
func NewSession(r Retriever, opts ...SessionOption) *Session {
	s := &Session{retriever: r}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = metadata.NewCache()
	}
	return s
}

// IsEntityDefinitionCached reports whether logicalName has a cached definition.
func (s *Session) IsEntityDefinitionCached(logicalName string) bool {
	return s.cache.Contains(logicalName)
}

// GetCachedEntityDefinition returns the cached definition for logicalName.
func (s *Session) GetCachedEntityDefinition(logicalName string) (*metadata.Definition, bool) {
	return s.cache.Get(logicalName)
}

// SetCachedEntityDefinition stores def under logicalName.
func (s *Session) SetCachedEntityDefinition(logicalName string, def *metadata.Definition) {
	s.cache.Set(logicalName, def)
}

// RetrieveEntity fetches metadata through the retriever. Errors are
// returned exactly as the retriever produced them.
func (s *Session) RetrieveEntity(ctx context.Context, logicalName string) (*metadata.Document, error) {
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	s.fetches.Add(1)
	start := time.Now()
	doc, err := s.retriever.RetrieveEntity(ctx, logicalName)
	if err != nil {
		logger.Warn("metadata fetch failed",
			zap.String("entity", logicalName),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	logger.Debug("metadata fetched",
		zap.String("entity", logicalName),
		zap.Duration("elapsed", time.Since(start)),
	)
	return doc, nil
}

// GuardEntityDefinition runs fn as the only check-fetch-store sequence in
// flight for logicalName.
func (s *Session) GuardEntityDefinition(logicalName string, fn func() (*metadata.Definition, error)) (*metadata.Definition, error) {
	return s.cache.Exclusive(logicalName, fn)
}

// FetchCount returns how many times RetrieveEntity reached the retriever.
func (s *Session) FetchCount() int64 {
	return s.fetches.Load()
}

// Cache exposes the session's definition cache.
func (s *Session) Cache() *metadata.Cache {
	return s.cache
}
