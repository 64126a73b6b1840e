package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	mappingdomain "github.com/ledgerlinklabs/ledgerlink/internal/mapping/domain"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Code: code, Message: message}})
}

// AbortWithError maps domain errors onto the wire. MappingMissing is the one
// condition surfaced as a blocking, actionable state; everything else that
// reaches here is a caller or server fault.
func AbortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, mappingdomain.ErrMappingMissing):
		respondError(c, http.StatusConflict, "mapping_missing",
			"Your account is not linked to the billing system yet. Please contact your administrator.")
	case errors.Is(err, mappingdomain.ErrMappingNotFound):
		respondError(c, http.StatusNotFound, "mapping_not_found", "mapping not found")
	case errors.Is(err, mappingdomain.ErrInvalidMapping):
		respondError(c, http.StatusBadRequest, "invalid_mapping", "portal and external customer ids are required")
	default:
		respondError(c, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func invalidRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, "invalid_request", message)
}
