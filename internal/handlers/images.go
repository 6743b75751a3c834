package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleImage serves a poster through the preloader cache.
func (h *Handler) handleImage(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" || !h.services.Images.Allowed(rawURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must point at the poster host"})
		return
	}

	img, err := h.services.Images.Get(c.Request.Context(), rawURL)
	if err != nil {
		h.logger.Warnf("[API] image fetch failed for %s: %v", rawURL, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch image"})
		return
	}

	contentType := img.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, contentType, img.Data)
}
