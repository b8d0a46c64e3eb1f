package assets

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), "https://api.test", "test-signing-key", 30*time.Minute)
}

func TestSaveAndOpen(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	rel, err := s.Save("acct-1", "42.jpg", strings.NewReader("image-bytes"))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if rel != "acct-1/42.jpg" {
		t.Fatalf("relative path = %q, want acct-1/42.jpg", rel)
	}

	f, err := s.Open(rel)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read asset: %v", err)
	}
	if string(b) != "image-bytes" {
		t.Fatalf("asset content = %q", b)
	}
}

func TestSave_RejectsTraversal(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	if _, err := s.Save("acct-1", "../escape.jpg", strings.NewReader("x")); !errors.Is(err, ErrBadPath) {
		t.Fatalf("expected ErrBadPath, got %v", err)
	}
}

func TestSignedURLRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	url, err := s.SignedURL("acct-1/42.jpg")
	if err != nil {
		t.Fatalf("SignedURL returned error: %v", err)
	}

	const prefix = "https://api.test/v1/files/"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("url %q does not use the download route", url)
	}

	path, err := s.Verify(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if path != "acct-1/42.jpg" {
		t.Fatalf("verified path = %q", path)
	}
}

func TestVerify_RejectsBadTokens(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	if _, err := s.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	// Token signed with a different key.
	other := NewStore(t.TempDir(), "https://api.test", "another-key", 30*time.Minute)
	url, err := other.SignedURL("acct-1/42.jpg")
	if err != nil {
		t.Fatalf("SignedURL returned error: %v", err)
	}
	token := strings.TrimPrefix(url, "https://api.test/v1/files/")

	if _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for a foreign signature, got %v", err)
	}
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir(), "https://api.test", "test-signing-key", -time.Minute)

	url, err := s.SignedURL("acct-1/42.jpg")
	if err != nil {
		t.Fatalf("SignedURL returned error: %v", err)
	}
	token := strings.TrimPrefix(url, "https://api.test/v1/files/")

	if _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for an expired token, got %v", err)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	rel, err := s.Save("acct-1", "42.jpg", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if err := s.Delete(rel); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := s.Open(rel); !os.IsNotExist(err) {
		t.Fatalf("expected the file to be gone, got %v", err)
	}

	// Second delete of the same path is a no-op.
	if err := s.Delete(rel); err != nil {
		t.Fatalf("repeated Delete returned error: %v", err)
	}
}

type staticLister struct {
	paths []string
}

func (l *staticLister) ListSentAssetsBefore(_ context.Context, _ time.Time, _ int) ([]string, error) {
	return l.paths, nil
}

func TestSweepOnce(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	old, err := s.Save("acct-1", "old.jpg", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	kept, err := s.Save("acct-1", "kept.jpg", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	sw := NewSweeper(&staticLister{paths: []string{old, "acct-1/already-gone.jpg"}}, s, 5*time.Hour, time.Hour, zap.NewNop())

	deleted, err := sw.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce returned error: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}

	if _, err := s.Open(old); !os.IsNotExist(err) {
		t.Fatalf("expected swept asset gone, got %v", err)
	}
	if f, err := s.Open(kept); err != nil {
		t.Fatalf("expected unlisted asset kept, got %v", err)
	} else {
		f.Close()
	}
}
