package api

import (
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

type enqueueItem struct {
	Phone     string `json:"phone"`
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
	Text      string `json:"text"`
	AssetPath string `json:"assetPath"`
	Filename  string `json:"filename"`
	MediaKind string `json:"mediaKind"`
}

type enqueueRequest struct {
	Items []enqueueItem `json:"items" binding:"required,min=1"`
}

// EnqueueMessages queues individual sends. The position inside the
// submission becomes the ordering index, so multiple payloads for the same
// recipient keep their order.
func (h *Handler) EnqueueMessages(c *gin.Context) {
	h.enqueue(c, model.RecipientIndividual)
}

// EnqueueGroupMessages queues group sends.
func (h *Handler) EnqueueGroupMessages(c *gin.Context) {
	h.enqueue(c, model.RecipientGroup)
}

func (h *Handler) enqueue(c *gin.Context, kind model.RecipientKind) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}

	account := accountID(c)
	msgs := make([]model.Message, 0, len(req.Items))
	for i, item := range req.Items {
		recipient := item.Phone
		if kind == model.RecipientGroup {
			recipient = item.GroupID
		}
		if recipient == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "item missing recipient"})
			return
		}
		if item.Text == "" && item.AssetPath == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "item has no payload"})
			return
		}

		msgs = append(msgs, model.Message{
			ID:            uuid.NewString(),
			AccountID:     account,
			RecipientKind: kind,
			Recipient:     recipient,
			GroupName:     item.GroupName,
			Text:          item.Text,
			AssetPath:     item.AssetPath,
			Filename:      item.Filename,
			MediaKind:     model.MediaKind(item.MediaKind),
			OrderingIndex: i,
		})
	}

	if err := h.messages.Enqueue(c.Request.Context(), msgs); err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"queued": len(msgs)})
}

func (h *Handler) ListQueue(c *gin.Context) {
	status := model.Status(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}

	limit := parseInt(c.Query("limit"), 50)
	offset := parseInt(c.Query("offset"), 0)

	items, err := h.messages.List(c.Request.Context(), accountID(c), status, limit, offset)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": toQueueViews(items)})
}

func (h *Handler) QueueStats(c *gin.Context) {
	counts, err := h.messages.CountByStatus(c.Request.Context(), accountID(c))
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queued":            counts[model.Queued],
		"sending":           counts[model.Sending],
		"sent":              counts[model.Sent],
		"failed":            counts[model.Failed],
		"permanentlyFailed": counts[model.PermanentlyFailed],
		"paused":            counts[model.Paused],
	})
}

func (h *Handler) ClearQueue(c *gin.Context) {
	status := model.Status(c.Query("status"))
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status query parameter required"})
		return
	}

	n, err := h.messages.DeleteByStatus(c.Request.Context(), accountID(c), status)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

const errorPreviewLen = 120

type queueView struct {
	ID           string  `json:"id"`
	Recipient    string  `json:"recipient"`
	GroupName    string  `json:"groupName,omitempty"`
	Text         string  `json:"text,omitempty"`
	Filename     string  `json:"filename,omitempty"`
	MediaKind    string  `json:"mediaKind,omitempty"`
	Status       string  `json:"status"`
	Attempts     int     `json:"attempts"`
	ErrorPreview string  `json:"errorPreview,omitempty"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	SentAt       *string `json:"sentAt,omitempty"`
	CreatedAt    string  `json:"createdAt"`
}

// toQueueViews shapes rows for the queue table: the full error text is
// present but a truncated preview is what the table renders by default.
func toQueueViews(msgs []model.Message) []queueView {
	out := make([]queueView, 0, len(msgs))
	for _, m := range msgs {
		v := queueView{
			ID:        m.ID,
			Recipient: m.Recipient,
			GroupName: m.GroupName,
			Text:      m.Text,
			Filename:  m.Filename,
			MediaKind: string(m.MediaKind),
			Status:    string(m.Status),
			Attempts:  m.Attempts,
			CreatedAt: m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if m.ErrorMessage != nil {
			v.ErrorMessage = *m.ErrorMessage
			v.ErrorPreview = truncate(*m.ErrorMessage, errorPreviewLen)
		}
		if m.SentAt != nil {
			s := m.SentAt.UTC().Format("2006-01-02T15:04:05Z07:00")
			v.SentAt = &s
		}
		out = append(out, v)
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a multi-byte rune;
// gateway error text is not guaranteed to be ASCII.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
