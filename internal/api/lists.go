package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zapdispatch/zapdispatch/internal/model"
	"github.com/zapdispatch/zapdispatch/internal/repo"
)

type savedListRequest struct {
	Name       string   `json:"name" binding:"required"`
	Kind       string   `json:"kind"`
	Recipients []string `json:"recipients" binding:"required,min=1"`
}

func (h *Handler) ListSavedLists(c *gin.Context) {
	kind := model.RecipientKind(c.DefaultQuery("kind", string(model.RecipientIndividual)))

	lists, err := h.lists.List(c.Request.Context(), accountID(c), kind)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": lists})
}

func (h *Handler) CreateSavedList(c *gin.Context) {
	var req savedListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}

	kind := model.RecipientKind(req.Kind)
	if kind == "" {
		kind = model.RecipientIndividual
	}

	list := model.SavedList{
		ID:         uuid.NewString(),
		AccountID:  accountID(c),
		Name:       req.Name,
		Kind:       kind,
		Recipients: req.Recipients,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.lists.Create(c.Request.Context(), list); err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": list.ID})
}

func (h *Handler) UpdateSavedList(c *gin.Context) {
	var req savedListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}

	list := model.SavedList{
		ID:         c.Param("id"),
		AccountID:  accountID(c),
		Name:       req.Name,
		Recipients: req.Recipients,
	}
	err := h.lists.Update(c.Request.Context(), list)
	if errors.Is(err, repo.ErrNotFound) {
		abortError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": list.ID})
}

func (h *Handler) DeleteSavedList(c *gin.Context) {
	err := h.lists.Delete(c.Request.Context(), accountID(c), c.Param("id"))
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
