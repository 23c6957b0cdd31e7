package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse reports gateway liveness and cache state.
type HealthResponse struct {
	Status          string `json:"status"`
	CachedEntities  int    `json:"cached_entities"`
	MetadataFetches int64  `json:"metadata_fetches"`
	// PrefetchPool holds the running/free/cap counts of the prefetch pool.
	PrefetchPool map[string]int `json:"prefetch_pool,omitempty"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:          "ok",
		CachedEntities:  s.source.Cache().Len(),
		MetadataFetches: s.source.FetchCount(),
	}
	if s.pool != nil {
		resp.PrefetchPool = s.pool.Metrics()
	}
	c.JSON(http.StatusOK, resp)
}
