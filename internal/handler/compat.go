package handler

import (
	"net/http"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/gin-gonic/gin"
)

// Routes kept for clients of the first API generation (/api/shorten and friends),
// which used camelCase fields and a bare shortUrl response.

// ShortenRequest is the legacy POST /api/shorten body, with camelCase fields.
type ShortenRequest struct {
	URL        string     `json:"url" binding:"required,http_url"`
	CustomSlug string     `json:"customSlug,omitempty"`
	Password   string     `json:"password,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// ShortenResponse is the legacy create response.
type ShortenResponse struct {
	ShortURL string `json:"shortUrl"`
}

// Shorten godoc
// @Summary Create a short link (legacy)
// @Tags legacy
// @Accept json
// @Produce json
// @Param request body ShortenRequest true "Link creation request"
// @Success 200 {object} ShortenResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/shorten [post]
func (h *LinkHandler) Shorten(c *gin.Context) {
	var req ShortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	input := &models.CreateLinkInput{URL: req.URL, ExpiresAt: req.ExpiresAt}
	if req.CustomSlug != "" {
		input.CustomSlug = &req.CustomSlug
	}
	if req.Password != "" {
		input.Password = &req.Password
	}

	link, err := h.service.CreateLink(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ShortenResponse{ShortURL: link.ShortURL})
}
