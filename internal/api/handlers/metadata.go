package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"xrmkit.io/xrmkit/internal/entity"
	"xrmkit.io/xrmkit/internal/metadata"
)

// SchemaResponse describes one entity kind.
type SchemaResponse struct {
	LogicalName string                         `json:"logical_name"`
	Attributes  []metadata.AttributeDescriptor `json:"attributes"`
	Mandatory   []metadata.Mandatory           `json:"mandatory"`
}

// ListMetadata handles GET /metadata: the logical names currently cached.
func (s *Server) ListMetadata(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": s.source.Cache().Names()})
}

// GetMetadata handles GET /metadata/:entity, fetching the schema on a miss.
func (s *Server) GetMetadata(c *gin.Context) {
	def, err := entity.ResolveSchema(c.Request.Context(), s.source, c.Param("entity"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	mandatory := def.Schema.Mandatory()
	if mandatory == nil {
		mandatory = []metadata.Mandatory{}
	}
	c.JSON(http.StatusOK, SchemaResponse{
		LogicalName: def.Schema.LogicalName(),
		Attributes:  def.Schema.Attributes(),
		Mandatory:   mandatory,
	})
}
