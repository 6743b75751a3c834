package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/amaumene/moviematch/internal/errors"
	"github.com/amaumene/moviematch/internal/models"
)

func (h *Handler) handleTopRated(c *gin.Context) {
	h.discover(c, models.CatalogGeneral, "Failed to fetch movies")
}

func (h *Handler) handleAnime(c *gin.Context) {
	h.discover(c, models.CatalogAnime, "Failed to fetch anime")
}

// discover relays one TMDB discover page so clients never see the key.
func (h *Handler) discover(c *gin.Context, catalog models.Catalog, failure string) {
	if h.services.TMDB == nil || !h.services.TMDB.HasAPIKey() {
		h.logger.Errorf("[API] API key missing in configuration")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server configuration error: API Key missing"})
		return
	}

	page, err := parsePage(c.DefaultQuery("page", "1"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp, err := h.services.TMDB.FetchPage(c.Request.Context(), catalog, page)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeInvalidPage) {
			h.respondError(c, err)
			return
		}
		h.logger.Errorf("[API] TMDB %s error: %v", catalog, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": failure})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func parsePage(raw string) (int, error) {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, apperrors.NewCatalogError(apperrors.ErrorTypeInvalidPage, "Invalid page number: "+raw, err)
	}
	return page, nil
}
