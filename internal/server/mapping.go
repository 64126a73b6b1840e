package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	mappingdomain "github.com/ledgerlinklabs/ledgerlink/internal/mapping/domain"
)

type createMappingRequest struct {
	PortalCustomerID    string `json:"portal_customer_id"`
	ExternalCustomerID  string `json:"external_customer_id"`
	ExternalDisplayName string `json:"external_display_name"`
}

// @Summary      Create Mapping
// @Description  Link a portal customer to an external billing customer. Replaces any prior link for the same portal customer.
// @Tags         mappings
// @Accept       json
// @Produce      json
// @Param        request body createMappingRequest true "Create Mapping Request"
// @Success      200  {object}  map[string]any
// @Router       /v1/mappings [post]
func (s *Server) CreateMapping(c *gin.Context) {
	var req createMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "malformed request body")
		return
	}

	displayName := strings.TrimSpace(req.ExternalDisplayName)
	externalID := strings.TrimSpace(req.ExternalCustomerID)

	// Fill the cached display name from the billing system when the
	// operator did not supply one. Best-effort: an unreachable billing
	// system must not block linking.
	if displayName == "" && s.billing != nil && externalID != "" {
		if customer, err := s.billing.GetCustomer(c.Request.Context(), externalID); err == nil {
			displayName = customer.DisplayName
		}
	}

	m, err := s.mappingSvc.Create(c.Request.Context(), mappingdomain.CreateRequest{
		PortalCustomerID:    strings.TrimSpace(req.PortalCustomerID),
		ExternalCustomerID:  externalID,
		ExternalDisplayName: displayName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, m)
}

// @Summary      List Mappings
// @Tags         mappings
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /v1/mappings [get]
func (s *Server) ListMappings(c *gin.Context) {
	items, err := s.mappingSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

// @Summary      Remove Mapping
// @Description  Unlink a portal customer. Cached invoices for the mapping are evicted.
// @Tags         mappings
// @Produce      json
// @Param        id  path  string  true  "Mapping ID"
// @Success      200  {object}  map[string]any
// @Router       /v1/mappings/{id} [delete]
func (s *Server) RemoveMapping(c *gin.Context) {
	raw, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil {
		invalidRequest(c, "mapping id must be numeric")
		return
	}

	if err := s.mappingSvc.Remove(c.Request.Context(), snowflake.ID(raw)); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"removed": true})
}
