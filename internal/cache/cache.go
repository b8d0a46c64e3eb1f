package cache

import (
	"context"
	"time"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

type MessageCache interface {
	StoreSent(ctx context.Context, messageID, remoteMsgID string, sentAt time.Time) error
}

type SessionCache interface {
	StoreSession(ctx context.Context, info model.SessionInfo) error
	LoadSession(ctx context.Context, instanceID string) (*model.SessionInfo, error)
}

// RunLease guards against two concurrent runs for the same account across
// process instances. AcquireRun returns false when another holder is active.
type RunLease interface {
	AcquireRun(ctx context.Context, accountID string, ttl time.Duration) (bool, error)
	ReleaseRun(ctx context.Context, accountID string) error
}
