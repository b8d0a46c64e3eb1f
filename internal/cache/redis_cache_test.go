package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisCache(rdb, time.Hour), mr
}

func TestStoreSent(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	sentAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if err := c.StoreSent(context.Background(), "msg-1", "REMOTE1", sentAt); err != nil {
		t.Fatalf("StoreSent returned error: %v", err)
	}

	raw, err := mr.Get("msg:msg-1")
	if err != nil {
		t.Fatalf("key not stored: %v", err)
	}

	var val struct {
		RemoteMsgID string    `json:"remoteMsgId"`
		SentAt      time.Time `json:"sentAt"`
	}
	if err := json.Unmarshal([]byte(raw), &val); err != nil {
		t.Fatalf("stored value is not json: %v", err)
	}
	if val.RemoteMsgID != "REMOTE1" || !val.SentAt.Equal(sentAt) {
		t.Fatalf("stored value %+v does not match", val)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)

	info := model.SessionInfo{
		InstanceID:  "inst-1",
		State:       model.StateConnecting,
		QRCode:      "data:image/png;base64,QR",
		PairingCode: "ABCD-1234",
	}
	if err := c.StoreSession(context.Background(), info); err != nil {
		t.Fatalf("StoreSession returned error: %v", err)
	}

	got, err := c.LoadSession(context.Background(), "inst-1")
	if err != nil {
		t.Fatalf("LoadSession returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a session, got nil")
	}
	if *got != info {
		t.Fatalf("loaded session %+v, want %+v", *got, info)
	}
}

func TestStoreSession_DropsQRCodeOnceConnected(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)

	err := c.StoreSession(context.Background(), model.SessionInfo{
		InstanceID: "inst-1",
		State:      model.StateOpen,
		QRCode:     "data:image/png;base64,QR",
	})
	if err != nil {
		t.Fatalf("StoreSession returned error: %v", err)
	}

	got, err := c.LoadSession(context.Background(), "inst-1")
	if err != nil {
		t.Fatalf("LoadSession returned error: %v", err)
	}
	if got.QRCode != "" {
		t.Fatalf("expected QR code dropped, got %q", got.QRCode)
	}
	if got.State != model.StateOpen {
		t.Fatalf("state = %q, want open", got.State)
	}
}

func TestLoadSession_MissingReturnsNil(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)

	got, err := c.LoadSession(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("LoadSession returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for a missing session, got %+v", got)
	}
}

func TestRunLease(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	ctx := context.Background()

	ok, err := c.AcquireRun(ctx, "acct-1", time.Minute)
	if err != nil {
		t.Fatalf("AcquireRun returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}

	ok, err = c.AcquireRun(ctx, "acct-1", time.Minute)
	if err != nil {
		t.Fatalf("second AcquireRun returned error: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to fail while held")
	}

	if err := c.ReleaseRun(ctx, "acct-1"); err != nil {
		t.Fatalf("ReleaseRun returned error: %v", err)
	}

	ok, err = c.AcquireRun(ctx, "acct-1", time.Minute)
	if err != nil {
		t.Fatalf("AcquireRun after release returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected acquire after release to succeed")
	}

	// The lease must expire on its own if the process dies holding it.
	mr.FastForward(2 * time.Minute)
	ok, err = c.AcquireRun(ctx, "acct-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire after ttl expiry failed: ok=%v err=%v", ok, err)
	}
}
