package repo

import (
	"context"
	"errors"
	"time"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

var ErrNotFound = errors.New("not found")

type MessageRepository interface {
	// Enqueue inserts messages as queued, preserving the given ordering index
	// within the submission.
	Enqueue(ctx context.Context, msgs []model.Message) error

	// ListQueued returns the account's queued messages ordered by
	// (created_at, ordering_index) ascending.
	ListQueued(ctx context.Context, accountID string) ([]model.Message, error)

	// ListFailed returns failed messages with attempts below maxAttempts,
	// ordered like ListQueued.
	ListFailed(ctx context.Context, accountID string, maxAttempts int) ([]model.Message, error)

	List(ctx context.Context, accountID string, status model.Status, limit, offset int) ([]model.Message, error)

	// MarkSending flips a non-terminal message to sending and increments its
	// attempts counter.
	MarkSending(ctx context.Context, id string) error

	MarkSent(ctx context.Context, id string, remoteMsgID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
	MarkPermanentlyFailed(ctx context.Context, id string, reason string) error

	// PauseSending flips the account's in-flight sending rows to paused.
	PauseSending(ctx context.Context, accountID string) (int64, error)

	// RequeueFailed resets failed and permanently_failed rows to queued with
	// attempts zeroed. Explicit user action; the only path that rewinds a
	// terminal status.
	RequeueFailed(ctx context.Context, accountID string) (int64, error)

	DeleteByStatus(ctx context.Context, accountID string, status model.Status) (int64, error)
	CountByStatus(ctx context.Context, accountID string) (map[model.Status]int, error)

	// ListSentAssetsBefore returns asset paths of messages sent before the
	// cutoff, for the cleanup sweep.
	ListSentAssetsBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

type BlacklistRepository interface {
	ListBlocked(ctx context.Context, accountID string) ([]model.BlacklistEntry, error)
	Add(ctx context.Context, entry model.BlacklistEntry) error
	Delete(ctx context.Context, accountID, id string) error
}

type ConfigRepository interface {
	// GetPace returns ErrNotFound when the account has no pace row yet.
	GetPace(ctx context.Context, accountID string) (*model.PaceConfig, error)
	UpsertPace(ctx context.Context, cfg model.PaceConfig) error
}

type SavedListRepository interface {
	List(ctx context.Context, accountID string, kind model.RecipientKind) ([]model.SavedList, error)
	Create(ctx context.Context, list model.SavedList) error
	Update(ctx context.Context, list model.SavedList) error
	Delete(ctx context.Context, accountID, id string) error
}
