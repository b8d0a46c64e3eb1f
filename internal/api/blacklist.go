package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zapdispatch/zapdispatch/internal/model"
	"github.com/zapdispatch/zapdispatch/internal/repo"
)

type blacklistRequest struct {
	Phone     string `json:"phone" binding:"required"`
	NumberIDs string `json:"numberIds"`
	Reason    string `json:"reason"`
}

func (h *Handler) ListBlacklist(c *gin.Context) {
	entries, err := h.blocked.ListBlocked(c.Request.Context(), accountID(c))
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}

func (h *Handler) AddBlacklist(c *gin.Context) {
	var req blacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}

	entry := model.BlacklistEntry{
		ID:        uuid.NewString(),
		AccountID: accountID(c),
		Phone:     req.Phone,
		NumberIDs: req.NumberIDs,
		Reason:    req.Reason,
	}
	if err := h.blocked.Add(c.Request.Context(), entry); err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": entry.ID})
}

func (h *Handler) DeleteBlacklist(c *gin.Context) {
	err := h.blocked.Delete(c.Request.Context(), accountID(c), c.Param("id"))
	if errors.Is(err, repo.ErrNotFound) {
		abortError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}
