package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zapdispatch/zapdispatch/internal/runner"
)

// oneShotWindow bounds a single dispatch invocation.
const oneShotWindow = 45 * time.Second

// StartSend launches a background run for the account. The response is an
// acknowledgment with the snapshot size, not a completion signal.
func (h *Handler) StartSend(c *gin.Context) {
	ack, err := h.runner.Start(c.Request.Context(), accountID(c))
	switch {
	case errors.Is(err, runner.ErrRunActive):
		abortError(c, http.StatusConflict, err)
		return
	case errors.Is(err, runner.ErrQueueEmpty), errors.Is(err, runner.ErrNoConfig):
		abortError(c, http.StatusBadRequest, err)
		return
	case err != nil:
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"started": true, "queued": ack.Queued})
}

// PauseSend requests a cooperative stop of the active run.
func (h *Handler) PauseSend(c *gin.Context) {
	if err := h.runner.Pause(c.Request.Context(), accountID(c)); err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

// RetrySend requeues failed, permanently failed and paused entries.
func (h *Handler) RetrySend(c *gin.Context) {
	n, err := h.runner.Requeue(c.Request.Context(), accountID(c))
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requeued": n})
}

func (h *Handler) SendStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Status(accountID(c)))
}

// DispatchOnce processes a single pace-safe batch synchronously and reports
// whether more remain. Callers re-invoke until moreRemaining is false.
func (h *Handler) DispatchOnce(c *gin.Context) {
	report, err := h.runner.RunOnce(c.Request.Context(), accountID(c), oneShotWindow)
	switch {
	case errors.Is(err, runner.ErrRunActive):
		abortError(c, http.StatusConflict, err)
		return
	case errors.Is(err, runner.ErrNoConfig):
		abortError(c, http.StatusBadRequest, err)
		return
	case err != nil:
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
