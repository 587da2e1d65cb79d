package handler

import (
	"net/http"

	"banking-services/internal/adapter/http/dto"
	"banking-services/internal/core/ports"
	"banking-services/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// IdentityHandler serves the identity gate. Its answers are bare JSON, not the
// response envelope, because the gate contract is consumed by other services.
type IdentityHandler struct {
	identitySvc ports.IdentityService
	log         zerolog.Logger
}

// NewIdentityHandler creates a new IdentityHandler.
func NewIdentityHandler(identitySvc ports.IdentityService, log zerolog.Logger) *IdentityHandler {
	return &IdentityHandler{identitySvc: identitySvc, log: log}
}

// Authenticate handles GET /authenticate/:customer_id.
func (h *IdentityHandler) Authenticate(c *gin.Context) {
	customerID := c.Param("customer_id")

	ok, err := h.identitySvc.Authenticate(c.Request.Context(), customerID)
	if err != nil {
		log := logger.WithContext(c.Request.Context(), h.log)
		log.Error().Err(err).
			Str("customer_id", customerID).
			Msg("identity lookup failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity store unavailable"})
		return
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
	}
	c.JSON(status, dto.AuthenticateResponse{CustomerID: customerID, Authenticated: ok})
}
