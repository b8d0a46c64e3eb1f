package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zapdispatch/zapdispatch/internal/evolution"
	"github.com/zapdispatch/zapdispatch/internal/ingest"
	"github.com/zapdispatch/zapdispatch/internal/model"
)

// AssetStore is the slice of the asset store the HTTP surface needs.
type AssetStore interface {
	Save(accountID, filename string, r io.Reader) (string, error)
	Verify(token string) (string, error)
	Open(path string) (*os.File, error)
}

// UploadAsset stores one attachment and returns the path to reference when
// enqueueing. An explicit kind (document or sticker) overrides extension
// detection at send time.
func (h *Handler) UploadAsset(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}

	src, err := file.Open()
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	defer src.Close()

	assetPath, err := h.store.Save(accountID(c), file.Filename, src)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	explicit := model.MediaKind(c.PostForm("kind"))
	c.JSON(http.StatusCreated, gin.H{
		"assetPath": assetPath,
		"filename":  file.Filename,
		"mediaKind": string(evolution.DetectMediaKind(file.Filename, explicit)),
	})
}

// UploadAssociations ingests the recipient↔file CSV and enqueues one
// message per row, referencing already-uploaded assets by filename.
func (h *Handler) UploadAssociations(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}

	src, err := file.Open()
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	defer src.Close()

	associations, err := ingest.ParseAssociations(src)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}

	account := accountID(c)
	msgs := make([]model.Message, 0, len(associations))
	for i, a := range associations {
		msgs = append(msgs, model.Message{
			ID:            uuid.NewString(),
			AccountID:     account,
			RecipientKind: model.RecipientIndividual,
			Recipient:     a.Phone,
			Text:          a.Caption,
			AssetPath:     account + "/" + a.Filename,
			Filename:      a.Filename,
			OrderingIndex: i,
		})
	}

	if err := h.messages.Enqueue(c.Request.Context(), msgs); err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"queued": len(msgs)})
}

// DownloadFile serves an asset to a holder of a valid signed token. This is
// the URL the delivery gateway fetches media from, so it skips auth.
func (h *Handler) DownloadFile(c *gin.Context) {
	assetPath, err := h.store.Verify(c.Param("token"))
	if err != nil {
		abortError(c, http.StatusForbidden, errors.New("invalid or expired link"))
		return
	}

	f, err := h.store.Open(assetPath)
	if err != nil {
		abortError(c, http.StatusNotFound, errors.New("asset not found"))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	http.ServeContent(c.Writer, c.Request, path.Base(assetPath), info.ModTime(), f)
}
