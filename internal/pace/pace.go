// Package pace implements the anti-ban delivery pacing policy.
package pace

import (
	"math/rand/v2"
	"time"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

// oneShotCap bounds a single time-boxed invocation regardless of how
// generous the execution window is.
const oneShotCap = 10

// Policy samples inter-message delays and sizes batches for one run. The
// config is read once at run start; mid-run edits do not affect it.
type Policy struct {
	cfg model.PaceConfig
}

func NewPolicy(cfg model.PaceConfig) *Policy {
	return &Policy{cfg: cfg}
}

// NextDelay samples uniformly from [DelayMin, DelayMax].
func (p *Policy) NextDelay() time.Duration {
	min, max := p.cfg.DelayMin, p.cfg.DelayMax
	if max <= min {
		return min
	}
	return min + rand.N(max-min+1)
}

// BatchSize returns the number of entries one batch may hold: PauseAfter,
// capped by what remains.
func (p *Policy) BatchSize(remaining int) int {
	n := p.cfg.PauseAfter
	if n < 1 {
		n = 1
	}
	if remaining < n {
		n = remaining
	}
	if n < 1 {
		n = 1
	}
	return n
}

// SafeBatchSize additionally caps the batch so that batch * avgDelay fits
// inside maxWindow. Used by the single-shot runner shape, where the host
// imposes a wall-clock execution ceiling.
func (p *Policy) SafeBatchSize(remaining int, maxWindow time.Duration) int {
	avg := p.cfg.AvgDelay()
	if avg < time.Millisecond {
		avg = time.Millisecond
	}

	byTime := int(maxWindow / avg)
	if byTime > oneShotCap {
		byTime = oneShotCap
	}

	n := p.BatchSize(remaining)
	if byTime < n {
		n = byTime
	}
	if n < 1 {
		n = 1
	}
	return n
}

// PauseDuration is the cooldown between batches.
func (p *Policy) PauseDuration() time.Duration {
	return p.cfg.PauseDuration
}
