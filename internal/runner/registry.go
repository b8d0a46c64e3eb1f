package runner

import (
	"context"
	"sync"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

// Handle is the per-account run handle. It owns the cancellation of one
// in-flight run and the counters the status endpoint reports.
type Handle struct {
	accountID string
	cancel    context.CancelFunc
	done      chan struct{}

	mu     sync.Mutex
	report model.RunReport
	total  int
}

// Cancel requests a cooperative stop. The run observes it at the next
// suspension or iteration boundary, never mid-delivery.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done closes when the run goroutine has fully exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) snapshot() (model.RunReport, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.report, h.total
}

func (h *Handle) recordSent() {
	h.mu.Lock()
	h.report.Processed++
	h.report.Sent++
	h.mu.Unlock()
}

func (h *Handle) recordFailed() {
	h.mu.Lock()
	h.report.Processed++
	h.report.Failed++
	h.mu.Unlock()
}

// recordRetrySent moves one entry from failed to sent. Retry cycles may pick
// up rows left failed by an earlier run; those were never counted in this
// handle's report, so the failed counter clamps at zero.
func (h *Handle) recordRetrySent() {
	h.mu.Lock()
	h.report.Sent++
	if h.report.Failed > 0 {
		h.report.Failed--
	}
	h.mu.Unlock()
}

func (h *Handle) recordPermanentFailure() {
	h.mu.Lock()
	h.report.PermanentlyFailed++
	if h.report.Failed > 0 {
		h.report.Failed--
	}
	h.mu.Unlock()
}

// registry holds at most one handle per account.
type registry struct {
	mu   sync.Mutex
	runs map[string]*Handle
}

func newRegistry() *registry {
	return &registry{runs: make(map[string]*Handle)}
}

// add registers a handle unless the account already has an active run.
func (r *registry) add(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.runs[h.accountID]; ok {
		select {
		case <-existing.Done():
			// finished but not yet removed; replace it
		default:
			return false
		}
	}
	r.runs[h.accountID] = h
	return true
}

func (r *registry) get(accountID string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.runs[accountID]
	if !ok {
		return nil, false
	}
	select {
	case <-h.Done():
		return h, false
	default:
		return h, true
	}
}

func (r *registry) remove(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, accountID)
}
