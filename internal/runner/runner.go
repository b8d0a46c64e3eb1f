// Package runner drives outbound delivery: it snapshots the queue, paces
// batches, coordinates pause and retry, and guards against concurrent runs
// for the same account.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zapdispatch/zapdispatch/internal/blacklist"
	"github.com/zapdispatch/zapdispatch/internal/evolution"
	"github.com/zapdispatch/zapdispatch/internal/model"
	"github.com/zapdispatch/zapdispatch/internal/pace"
	"github.com/zapdispatch/zapdispatch/internal/repo"
)

var (
	ErrRunActive  = errors.New("a run is already active for this account")
	ErrQueueEmpty = errors.New("no queued messages")
	ErrNoConfig   = errors.New("pace configuration not found")
)

// Gateway is the slice of the Evolution client the runner delivers through.
type Gateway interface {
	SendText(ctx context.Context, instanceID, number, text string) (string, error)
	SendMedia(ctx context.Context, instanceID string, req evolution.MediaRequest) (string, error)
	SendSticker(ctx context.Context, instanceID, number, assetURL string) (string, error)
}

// Sessions ensures the gateway session is usable before a run sends.
type Sessions interface {
	EnsureSession(ctx context.Context, instanceID string) bool
}

// URLSigner resolves a stored asset path into a URL the gateway can fetch.
type URLSigner interface {
	SignedURL(path string) (string, error)
}

// SentRecorder receives successful deliveries, best effort.
type SentRecorder interface {
	StoreSent(ctx context.Context, messageID, remoteMsgID string, sentAt time.Time) error
}

// RunLease extends the single-run-per-account guard across process
// instances. May be nil when redis is disabled.
type RunLease interface {
	AcquireRun(ctx context.Context, accountID string, ttl time.Duration) (bool, error)
	ReleaseRun(ctx context.Context, accountID string) error
}

// Options bound the retry cycle controller.
type Options struct {
	MaxAttempts   int
	MaxCycles     int
	CycleDelay    time.Duration
	ReconnectWait time.Duration
	LeaseTTL      time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:   5,
		MaxCycles:     3,
		CycleDelay:    10 * time.Second,
		ReconnectWait: time.Second,
		LeaseTTL:      30 * time.Minute,
	}
}

type Runner struct {
	messages repo.MessageRepository
	blocked  repo.BlacklistRepository
	configs  repo.ConfigRepository
	gateway  Gateway
	sessions Sessions
	signer   URLSigner
	recorder SentRecorder
	lease    RunLease
	opts     Options
	logger   *zap.Logger
	registry *registry
}

func New(
	messages repo.MessageRepository,
	blocked repo.BlacklistRepository,
	configs repo.ConfigRepository,
	gateway Gateway,
	sessions Sessions,
	signer URLSigner,
	recorder SentRecorder,
	lease RunLease,
	opts Options,
	logger *zap.Logger,
) *Runner {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}
	if opts.MaxCycles <= 0 {
		opts.MaxCycles = DefaultOptions().MaxCycles
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = DefaultOptions().LeaseTTL
	}

	return &Runner{
		messages: messages,
		blocked:  blocked,
		configs:  configs,
		gateway:  gateway,
		sessions: sessions,
		signer:   signer,
		recorder: recorder,
		lease:    lease,
		opts:     opts,
		logger:   logger,
		registry: newRegistry(),
	}
}

// StartAck is the immediate response of Start; the run itself continues in
// the background.
type StartAck struct {
	Queued int `json:"queued"`
}

// Start snapshots the account's queue and launches a run-to-completion
// worker. Setup errors (missing config, empty queue, active run) are
// returned synchronously and mutate nothing.
func (r *Runner) Start(ctx context.Context, accountID string) (*StartAck, error) {
	cfg, err := r.configs.GetPace(ctx, accountID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("load pace config: %w", err)
	}

	snapshot, err := r.snapshotQueue(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, ErrQueueEmpty
	}

	if r.lease != nil {
		ok, err := r.lease.AcquireRun(ctx, accountID, r.opts.LeaseTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire run lease: %w", err)
		}
		if !ok {
			return nil, ErrRunActive
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Handle{
		accountID: accountID,
		cancel:    cancel,
		done:      make(chan struct{}),
		total:     len(snapshot),
	}
	if !r.registry.add(h) {
		cancel()
		if r.lease != nil {
			_ = r.lease.ReleaseRun(ctx, accountID)
		}
		return nil, ErrRunActive
	}

	go r.run(runCtx, h, *cfg, snapshot)

	return &StartAck{Queued: len(snapshot)}, nil
}

// Pause requests a cooperative stop of the active run. When no run is
// active it instead recovers rows orphaned in sending by an earlier crash,
// flipping them to paused.
func (r *Runner) Pause(ctx context.Context, accountID string) error {
	if h, active := r.registry.get(accountID); active {
		h.Cancel()
		return nil
	}

	if _, err := r.messages.PauseSending(ctx, accountID); err != nil {
		return err
	}
	return nil
}

// Requeue resets failed, permanently failed and paused rows to queued with
// attempts zeroed. Explicit user action.
func (r *Runner) Requeue(ctx context.Context, accountID string) (int64, error) {
	return r.messages.RequeueFailed(ctx, accountID)
}

// RunStatus is what the status endpoint reports.
type RunStatus struct {
	Running bool            `json:"running"`
	Total   int             `json:"total"`
	Report  model.RunReport `json:"report"`
}

func (r *Runner) Status(accountID string) RunStatus {
	h, active := r.registry.get(accountID)
	if h == nil {
		return RunStatus{}
	}
	report, total := h.snapshot()
	return RunStatus{Running: active, Total: total, Report: report}
}

// RunOnce is the time-boxed shape: it processes a single pace-safe batch
// synchronously and reports whether queued messages remain. Meant for
// callers that re-invoke until MoreRemaining is false.
func (r *Runner) RunOnce(ctx context.Context, accountID string, maxWindow time.Duration) (*model.RunReport, error) {
	cfg, err := r.configs.GetPace(ctx, accountID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("load pace config: %w", err)
	}

	snapshot, err := r.snapshotQueue(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return &model.RunReport{}, nil
	}

	// The synchronous batch holds the same single-run-per-account guard as a
	// background run for its whole duration.
	if r.lease != nil {
		ok, err := r.lease.AcquireRun(ctx, accountID, r.opts.LeaseTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire run lease: %w", err)
		}
		if !ok {
			return nil, ErrRunActive
		}
		defer func() { _ = r.lease.ReleaseRun(context.WithoutCancel(ctx), accountID) }()
	}

	h := &Handle{accountID: accountID, cancel: func() {}, done: make(chan struct{}), total: len(snapshot)}
	if !r.registry.add(h) {
		return nil, ErrRunActive
	}
	defer func() {
		r.registry.remove(accountID)
		close(h.done)
	}()

	policy := pace.NewPolicy(*cfg)
	size := policy.SafeBatchSize(len(snapshot), maxWindow)
	batch := snapshot[:size]

	r.sessions.EnsureSession(ctx, cfg.InstanceID)
	r.processBatch(ctx, h, cfg.InstanceID, policy, batch)

	report, _ := h.snapshot()
	report.MoreRemaining = len(snapshot) > size
	return &report, nil
}

func (r *Runner) snapshotQueue(ctx context.Context, accountID string) ([]model.Message, error) {
	queued, err := r.messages.ListQueued(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list queued: %w", err)
	}

	entries, err := r.blocked.ListBlocked(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}

	return blacklist.Filter(blacklist.BuildBlockedSet(entries), queued), nil
}

// run is the run-to-completion worker: all batches, then the retry cycles.
func (r *Runner) run(ctx context.Context, h *Handle, cfg model.PaceConfig, snapshot []model.Message) {
	defer close(h.done)
	defer r.registry.remove(h.accountID)
	if r.lease != nil {
		defer func() { _ = r.lease.ReleaseRun(context.WithoutCancel(ctx), h.accountID) }()
	}

	start := time.Now()
	policy := pace.NewPolicy(cfg)

	r.logger.Info("run started",
		zap.String("account_id", h.accountID),
		zap.String("instance_id", cfg.InstanceID),
		zap.Int("queued", len(snapshot)),
	)

	r.sessions.EnsureSession(ctx, cfg.InstanceID)

	for offset := 0; offset < len(snapshot); {
		size := policy.BatchSize(len(snapshot) - offset)
		batch := snapshot[offset : offset+size]

		if !r.processBatch(ctx, h, cfg.InstanceID, policy, batch) {
			r.finish(h, offset, "paused")
			return
		}
		offset += size

		// Cooldown between batches, skipped after the last one.
		if offset < len(snapshot) {
			if !sleep(ctx, policy.PauseDuration()) {
				r.finish(h, offset, "paused")
				return
			}
		}
	}

	if ctx.Err() == nil {
		r.retryCycles(ctx, h, cfg.InstanceID)
	}

	report, _ := h.snapshot()
	r.logger.Info("run completed",
		zap.String("account_id", h.accountID),
		zap.Int("processed", report.Processed),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("permanently_failed", report.PermanentlyFailed),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// processBatch sends one batch sequentially with the pace delay between
// entries. Returns false when the run was cancelled.
func (r *Runner) processBatch(ctx context.Context, h *Handle, instanceID string, policy *pace.Policy, batch []model.Message) bool {
	for i, msg := range batch {
		if ctx.Err() != nil {
			return false
		}

		r.deliverOne(ctx, h, instanceID, msg)

		// No delay after the last entry of a batch.
		if i < len(batch)-1 {
			if !sleep(ctx, policy.NextDelay()) {
				return false
			}
		}
	}
	return true
}

// deliverOne performs one delivery attempt: mark sending (attempt counted),
// send, record the outcome. Per-entry errors never abort the batch. A started
// delivery always runs to completion: pause is observed at sleeps and
// iteration boundaries, never mid-call, so the gateway call and the status
// write that follows it are detached from cancellation.
func (r *Runner) deliverOne(ctx context.Context, h *Handle, instanceID string, msg model.Message) {
	ctx = context.WithoutCancel(ctx)

	if err := r.messages.MarkSending(ctx, msg.ID); err != nil {
		// Terminal or deleted row; skip without counting.
		r.logger.Warn("skipping undeliverable row",
			zap.String("message_id", msg.ID), zap.Error(err))
		return
	}

	remoteID, err := r.send(ctx, instanceID, &msg)
	if err != nil {
		r.logger.Warn("delivery failed",
			zap.String("message_id", msg.ID),
			zap.String("recipient", msg.Recipient),
			zap.Error(err),
		)
		if markErr := r.messages.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
			r.logger.Error("failed to mark failed", zap.String("message_id", msg.ID), zap.Error(markErr))
		}
		h.recordFailed()
		return
	}

	sentAt := time.Now()
	if err := r.messages.MarkSent(ctx, msg.ID, remoteID, sentAt); err != nil {
		r.logger.Error("failed to mark sent", zap.String("message_id", msg.ID), zap.Error(err))
	}
	if r.recorder != nil {
		_ = r.recorder.StoreSent(ctx, msg.ID, remoteID, sentAt)
	}
	h.recordSent()
}

// send maps the payload to the right gateway call. On a no-session
// rejection it reconnects once and retries the same call exactly once.
func (r *Runner) send(ctx context.Context, instanceID string, msg *model.Message) (string, error) {
	remoteID, err := r.sendPayload(ctx, instanceID, msg)
	if errors.Is(err, evolution.ErrNoSession) {
		r.sessions.EnsureSession(ctx, instanceID)
		sleep(ctx, r.opts.ReconnectWait)
		remoteID, err = r.sendPayload(ctx, instanceID, msg)
	}
	return remoteID, err
}

func (r *Runner) sendPayload(ctx context.Context, instanceID string, msg *model.Message) (string, error) {
	if !msg.HasAsset() {
		if msg.Text == "" {
			return "", errors.New("message has no payload")
		}
		return r.gateway.SendText(ctx, instanceID, msg.Recipient, msg.Text)
	}

	// An unresolvable asset fails this entry only.
	assetURL, err := r.signer.SignedURL(msg.AssetPath)
	if err != nil {
		return "", fmt.Errorf("resolve asset url: %w", err)
	}

	kind := evolution.DetectMediaKind(msg.Filename, msg.MediaKind)
	if kind == model.MediaSticker {
		return r.gateway.SendSticker(ctx, instanceID, msg.Recipient, assetURL)
	}

	return r.gateway.SendMedia(ctx, instanceID, evolution.MediaRequest{
		Number:    msg.Recipient,
		MediaKind: kind,
		Media:     assetURL,
		Filename:  msg.Filename,
		Caption:   msg.Text,
	})
}

func (r *Runner) finish(h *Handle, processed int, reason string) {
	report, total := h.snapshot()
	r.logger.Info("run stopped",
		zap.String("account_id", h.accountID),
		zap.String("reason", reason),
		zap.Int("processed", report.Processed),
		zap.Int("remaining", total-processed),
	)
}

// sleep waits d unless the context is cancelled first; cancellation is only
// observed here and at iteration boundaries, never mid-delivery.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
