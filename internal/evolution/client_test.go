package evolution

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

func TestSendText_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/message/sendText/inst-1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("apikey"); got != "secret" {
			t.Fatalf("expected apikey header, got %q", got)
		}

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["number"] != "5521999999999" || payload["text"] != "hello" {
			t.Fatalf("unexpected payload %+v", payload)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"key": map[string]string{"id": "MSG123"},
		})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "secret", 5*time.Second)

	id, err := c.SendText(context.Background(), "inst-1", "5521999999999", "hello")
	if err != nil {
		t.Fatalf("SendText returned error: %v", err)
	}
	if id != "MSG123" {
		t.Fatalf("expected remote id MSG123, got %q", id)
	}
}

func TestSendText_NoSessionsClassified(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"No sessions"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "secret", 5*time.Second)

	_, err := c.SendText(context.Background(), "inst-1", "5521999999999", "hi")
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestSendText_OtherErrorIsAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "secret", 5*time.Second)

	_, err := c.SendText(context.Background(), "inst-1", "5521999999999", "hi")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", apiErr.StatusCode)
	}
}

func TestSendMedia_BuildsPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/message/sendMedia/inst-1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}

		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["mediatype"] != "image" {
			t.Fatalf("expected mediatype image, got %v", payload["mediatype"])
		}
		if payload["fileName"] != "42.jpg" || payload["caption"] != "look" {
			t.Fatalf("unexpected payload %+v", payload)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"key": map[string]string{"id": "MEDIA1"},
		})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "secret", 5*time.Second)

	id, err := c.SendMedia(context.Background(), "inst-1", MediaRequest{
		Number:    "5521999999999",
		MediaKind: model.MediaImage,
		Media:     "https://files.example/42.jpg",
		Filename:  "42.jpg",
		Caption:   "look",
	})
	if err != nil {
		t.Fatalf("SendMedia returned error: %v", err)
	}
	if id != "MEDIA1" {
		t.Fatalf("expected remote id MEDIA1, got %q", id)
	}
}

func TestSendSticker_FetchesAndEncodesAsset(t *testing.T) {
	t.Parallel()

	assetSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("sticker-bytes"))
	}))
	t.Cleanup(assetSrv.Close)

	var gotSticker string
	gwSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotSticker = payload["sticker"]
		_ = json.NewEncoder(w).Encode(map[string]any{
			"key": map[string]string{"id": "STK1"},
		})
	}))
	t.Cleanup(gwSrv.Close)

	c := NewClient(gwSrv.URL, "secret", 5*time.Second)

	id, err := c.SendSticker(context.Background(), "inst-1", "5521999999999", assetSrv.URL)
	if err != nil {
		t.Fatalf("SendSticker returned error: %v", err)
	}
	if id != "STK1" {
		t.Fatalf("expected remote id STK1, got %q", id)
	}
	if !strings.HasPrefix(gotSticker, "data:image/webp;base64,") {
		t.Fatalf("expected base64 data URL, got %q", gotSticker)
	}
}

func TestConnectionState_ParsesNestedAndFlat(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"nested": `{"instance":{"state":"open"}}`,
		"flat":   `{"state":"open"}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			payload := body
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(payload))
			}))
			t.Cleanup(srv.Close)

			c := NewClient(srv.URL, "secret", 5*time.Second)

			state, err := c.ConnectionState(context.Background(), "inst-1")
			if err != nil {
				t.Fatalf("ConnectionState returned error: %v", err)
			}
			if state != model.StateOpen {
				t.Fatalf("expected open, got %q", state)
			}
		})
	}
}

func TestDetectMediaKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		filename string
		explicit model.MediaKind
		want     model.MediaKind
	}{
		{"photo.JPG", model.MediaNone, model.MediaImage},
		{"clip.mp4", model.MediaNone, model.MediaVideo},
		{"voice.ogg", model.MediaNone, model.MediaAudio},
		{"report.pdf", model.MediaNone, model.MediaDocument},
		{"mystery.bin", model.MediaNone, model.MediaDocument},
		{"photo.jpg", model.MediaSticker, model.MediaSticker},
		{"photo.jpg", model.MediaDocument, model.MediaDocument},
	}

	for _, tc := range cases {
		if got := DetectMediaKind(tc.filename, tc.explicit); got != tc.want {
			t.Fatalf("DetectMediaKind(%q, %q) = %q, want %q", tc.filename, tc.explicit, got, tc.want)
		}
	}
}
