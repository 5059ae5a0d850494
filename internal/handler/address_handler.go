package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/iufc-admission-api/internal/service"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
	"github.com/noah-isme/iufc-admission-api/pkg/response"
)

// AddressHandler serves address reference data.
type AddressHandler struct {
	addresses *service.AddressService
}

// NewAddressHandler constructs AddressHandler.
func NewAddressHandler(addresses *service.AddressService) *AddressHandler {
	return &AddressHandler{addresses: addresses}
}

// Countries godoc
// @Summary List countries
// @Tags Addresses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /countries [get]
func (h *AddressHandler) Countries(c *gin.Context) {
	countries, err := h.addresses.Countries(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, countries, nil)
}

// Municipalities godoc
// @Summary Municipalities for a Belgian postal code
// @Tags Addresses
// @Produce json
// @Param postalCode query string true "Postal code"
// @Success 200 {object} response.Envelope
// @Router /municipalities [get]
func (h *AddressHandler) Municipalities(c *gin.Context) {
	postalCode := strings.TrimSpace(c.Query("postalCode"))
	if postalCode == "" {
		response.Error(c, appErrors.FieldError("postalCode", "is required"))
		return
	}
	municipalities, err := h.addresses.Municipalities(c.Request.Context(), postalCode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, municipalities, nil)
}
