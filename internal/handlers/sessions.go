package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/moviematch/internal/models"
	"github.com/amaumene/moviematch/internal/stream"
)

type sessionResponse struct {
	Session stream.Status      `json:"session"`
	Current *models.ResultItem `json:"current,omitempty"`
}

type swipeRequest struct {
	Action models.Interaction `json:"action" binding:"required"`
}

func newSessionResponse(sess *stream.Session) sessionResponse {
	resp := sessionResponse{Session: sess.Status()}
	if item, ok := sess.Current(); ok {
		resp.Current = &item
	}
	return resp
}

func (h *Handler) session(c *gin.Context) (*stream.Session, bool) {
	sess, err := h.services.Sessions.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) handleCreateSession(c *gin.Context) {
	sess, err := h.services.Sessions.Create(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSessionResponse(sess))
}

func (h *Handler) handleGetSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) handleAdvance(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if _, ok := sess.Advance(); !ok {
		h.respondError(c, stream.ErrNotReady)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) handleSwipe(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req swipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := sess.Swipe(req.Action)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleReset discards the session's stream and loads a fresh first batch.
func (h *Handler) handleReset(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	sess.Reset()
	if err := sess.Start(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) handleDeleteSession(c *gin.Context) {
	if err := h.services.Sessions.Delete(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
