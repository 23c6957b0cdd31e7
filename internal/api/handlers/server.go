// Package handlers implements the HTTP inspection gateway: entity schemas,
// payload previews and catalog lookups.
package handlers

import (
	"github.com/gin-gonic/gin"

	"xrmkit.io/xrmkit/internal/catalog"
	"xrmkit.io/xrmkit/internal/entity"
	"xrmkit.io/xrmkit/internal/metadata"
)

// MetadataSource is the connection the gateway builds entities on.
type MetadataSource interface {
	entity.Connection
	FetchCount() int64
	Cache() *metadata.Cache
}

// PoolMetrics is the worker pool the schema prefetch runs on.
type PoolMetrics interface {
	Metrics() map[string]int
}

// Server holds the handler dependencies.
type Server struct {
	source     MetadataSource
	kinds      *catalog.Kinds
	optionSets *catalog.OptionSets
	pool       PoolMetrics
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Source     MetadataSource
	Kinds      *catalog.Kinds
	OptionSets *catalog.OptionSets
	Pool       PoolMetrics // optional
}

// NewServer creates a new Server. Missing catalogs are treated as empty.
func NewServer(deps ServerDeps) *Server {
	s := &Server{
		source:     deps.Source,
		kinds:      deps.Kinds,
		optionSets: deps.OptionSets,
		pool:       deps.Pool,
	}
	if s.kinds == nil {
		s.kinds, _ = catalog.NewKinds(nil)
	}
	if s.optionSets == nil {
		s.optionSets, _ = catalog.LoadOptionSets("")
	}
	return s
}

// RegisterRoutes mounts every handler under rg.
func (s *Server) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", s.GetHealth)

	rg.GET("/metadata", s.ListMetadata)
	rg.GET("/metadata/:entity", s.GetMetadata)

	rg.POST("/entities/:entity/payload", s.BuildPayload)

	rg.GET("/kinds", s.ListKinds)
	rg.GET("/option-sets", s.ListOptionSets)
	rg.GET("/option-sets/:name", s.GetOptionSet)
}
