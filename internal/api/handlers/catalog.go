package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// KindResponse maps a kind name to its fixed logical name.
type KindResponse struct {
	Name        string `json:"name"`
	LogicalName string `json:"logical_name"`
}

// OptionResponse is one option of an option set.
type OptionResponse struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// OptionSetResponse is a full option set.
type OptionSetResponse struct {
	Name      string           `json:"name"`
	Attribute string           `json:"attribute,omitempty"`
	Options   []OptionResponse `json:"options"`
}

// ListKinds handles GET /kinds.
func (s *Server) ListKinds(c *gin.Context) {
	items := make([]KindResponse, 0, s.kinds.Len())
	for _, name := range s.kinds.Names() {
		kind, err := s.kinds.Get(name)
		if err != nil {
			_ = c.Error(err)
			return
		}
		items = append(items, KindResponse{Name: name, LogicalName: kind.LogicalName()})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ListOptionSets handles GET /option-sets.
func (s *Server) ListOptionSets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": s.optionSets.Names()})
}

// GetOptionSet handles GET /option-sets/:name.
func (s *Server) GetOptionSet(c *gin.Context) {
	set, err := s.optionSets.Get(c.Param("name"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	resp := OptionSetResponse{
		Name:      set.Name,
		Attribute: set.Attribute,
		Options:   make([]OptionResponse, 0, len(set.Options)),
	}
	for _, o := range set.Options {
		resp.Options = append(resp.Options, OptionResponse{Value: o.Value(), Label: o.Label()})
	}
	c.JSON(http.StatusOK, resp)
}
