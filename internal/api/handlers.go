package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hephaistos-io/pyro/internal/resolve"
	"github.com/hephaistos-io/pyro/internal/template"
)

// systemTemplateResponse is the wire shape of a resolved SYSTEM template.
// appliedIdentifier is null when the request fell back to defaults.
type systemTemplateResponse struct {
	Type              string           `json:"type"`
	Schema            *template.Schema `json:"schema"`
	Values            map[string]any   `json:"values"`
	AppliedIdentifier *string          `json:"appliedIdentifier"`
}

// Handlers serves the customer read API.
type Handlers struct {
	resolver *resolve.CachedResolver
}

func NewHandlers(resolver *resolve.CachedResolver) *Handlers {
	return &Handlers{resolver: resolver}
}

// GetSystemTemplate resolves the caller's SYSTEM template, optionally
// layered with one identifier override selected by ?identifier=.
func (h *Handlers) GetSystemTemplate(c *gin.Context) {
	principal := principalFrom(c)
	identifier := c.Query("identifier")

	resolved, err := h.resolver.ResolveSystem(c.Request.Context(), principal.ApplicationID, principal.EnvironmentID, identifier)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var applied *string
	if len(resolved.AppliedIdentifiers) > 0 {
		applied = &resolved.AppliedIdentifiers[0]
	}

	c.JSON(http.StatusOK, systemTemplateResponse{
		Type:              resolved.Type,
		Schema:            resolved.Schema,
		Values:            resolved.Values,
		AppliedIdentifier: applied,
	})
}
