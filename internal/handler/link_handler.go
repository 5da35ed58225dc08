package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Where a visitor supplies the password of a protected link.
const (
	PasswordHeader = "X-Link-Password"
	PasswordQuery  = "password"
)

// LinkHandler serves the link endpoints on top of service.LinkService.
type LinkHandler struct {
	service service.LinkService
	logger  *zap.Logger
}

// NewLinkHandler creates a LinkHandler.
func NewLinkHandler(service service.LinkService, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		service: service,
		logger:  logger,
	}
}

// CreateLinkRequest is the POST /api/v1/links body. ExpiresIn is in minutes,
// at most service.MaxExpiresIn; ExpiresAt wins when both are set.
type CreateLinkRequest struct {
	URL        string     `json:"url" binding:"required,http_url"`
	CustomSlug string     `json:"custom_slug,omitempty"`
	Password   string     `json:"password,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ExpiresIn  *int       `json:"expires_in,omitempty"`
}

func (r *CreateLinkRequest) toInput() *models.CreateLinkInput {
	input := &models.CreateLinkInput{
		URL:       r.URL,
		ExpiresAt: r.ExpiresAt,
		ExpiresIn: r.ExpiresIn,
	}
	if r.CustomSlug != "" {
		input.CustomSlug = &r.CustomSlug
	}
	if r.Password != "" {
		input.Password = &r.Password
	}
	return input
}

// CreateLinkResponse is returned with 201 Created.
type CreateLinkResponse = models.ShortLink

// ErrorResponse is the body of every error reply. Error holds the kind code.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateLink godoc
// @Summary Create a short link
// @Description Create a new shortened URL, optionally with a custom slug, password and expiry
// @Tags links
// @Accept json
// @Produce json
// @Param request body CreateLinkRequest true "Link creation request"
// @Success 201 {object} CreateLinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	link, err := h.service.CreateLink(c.Request.Context(), req.toInput())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, link)
}

// Redirect godoc
// @Summary Redirect to the target URL
// @Description Resolve a slug, count the click and redirect. Protected links need the X-Link-Password header or password query parameter.
// @Tags links
// @Param slug path string true "Slug"
// @Success 302
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /{slug} [get]
func (h *LinkHandler) Redirect(c *gin.Context) {
	target, err := h.service.ResolveAndTrack(c.Request.Context(), c.Param("slug"), linkPassword(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	// Every visit must reach us to be counted.
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, target)
}

// GetStats godoc
// @Summary Get link statistics
// @Description Slug, target, click count and creation time. Available for expired links too.
// @Tags links
// @Produce json
// @Param slug path string true "Slug"
// @Success 200 {object} models.LinkStats
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{slug}/stats [get]
func (h *LinkHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// DeleteLink godoc
// @Summary Delete a short link
// @Description Permanently delete a link by slug
// @Tags links
// @Produce json
// @Param slug path string true "Slug"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{slug} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	if err := h.service.DeleteLink(c.Request.Context(), c.Param("slug")); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link deleted successfully"})
}

// linkPassword prefers the header so the password stays out of access logs.
func linkPassword(c *gin.Context) string {
	if password := c.GetHeader(PasswordHeader); password != "" {
		return password
	}
	return c.Query(PasswordQuery)
}

func (h *LinkHandler) badRequest(c *gin.Context, err error) {
	h.logger.Warn("Invalid request body", zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   service.KindValidation.String(),
		Message: err.Error(),
	})
}

func (h *LinkHandler) writeError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	status := statusFor(kind)

	message := "Internal server error"
	var svcErr *service.Error
	if kind != service.KindInternal && errors.As(err, &svcErr) {
		message = svcErr.Message
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	} else {
		h.logger.Debug("Request rejected",
			zap.String("path", c.Request.URL.Path),
			zap.String("kind", kind.String()),
		)
	}

	c.JSON(status, ErrorResponse{
		Error:   kind.String(),
		Message: message,
	})
}

func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation, service.KindConflict:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindExpired:
		return http.StatusGone
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
