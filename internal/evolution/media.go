package evolution

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

var extKinds = map[string]model.MediaKind{}

func init() {
	register := func(kind model.MediaKind, exts ...string) {
		for _, e := range exts {
			extKinds[e] = kind
		}
	}
	register(model.MediaImage, "jpg", "jpeg", "png", "webp", "gif", "bmp", "tiff", "svg")
	register(model.MediaVideo, "mp4", "mov", "webm", "m4v", "avi", "3gp", "mkv", "flv", "wmv", "mpeg", "mpg")
	register(model.MediaAudio, "mp3", "m4a", "wav", "ogg", "aac", "flac", "wma", "opus")
	register(model.MediaDocument, "pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt", "zip", "rar", "7z", "csv")
}

// DetectMediaKind maps a filename to the provider media kind. An explicit
// kind (user chose document or sticker in the UI) wins over the extension.
func DetectMediaKind(filename string, explicit model.MediaKind) model.MediaKind {
	if explicit == model.MediaDocument || explicit == model.MediaSticker {
		return explicit
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if kind, ok := extKinds[ext]; ok {
		return kind
	}
	return model.MediaDocument
}

// fetchAsDataURL downloads the asset and re-encodes it as a
// data:<mime>;base64,… payload.
func (c *Client) fetchAsDataURL(ctx context.Context, assetURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code fetching asset: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}
