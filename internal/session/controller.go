// Package session keeps the gateway WhatsApp session usable before sends.
package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

// Gateway is the slice of the Evolution client the controller needs.
type Gateway interface {
	ConnectionState(ctx context.Context, instanceID string) (model.ConnectionState, error)
	Connect(ctx context.Context, instanceID string) (model.SessionInfo, error)
}

// Controller ensures an instance has an active session before a run sends
// through it.
type Controller struct {
	gateway Gateway
	grace   time.Duration
	logger  *zap.Logger
}

func NewController(gateway Gateway, logger *zap.Logger) *Controller {
	return &Controller{
		gateway: gateway,
		grace:   1500 * time.Millisecond,
		logger:  logger,
	}
}

// EnsureSession returns true when the session is open, or after a reconnect
// request was issued and the grace period elapsed. It is optimistic: a true
// return does not guarantee the session is actually open, only that a
// reconnect was attempted. False means the reconnect request itself could
// not be issued; callers treat that as non-fatal and rely on the per-message
// retry-on-no-session path.
func (c *Controller) EnsureSession(ctx context.Context, instanceID string) bool {
	state, err := c.gateway.ConnectionState(ctx, instanceID)
	if err == nil && state == model.StateOpen {
		return true
	}

	c.logger.Warn("instance session not open, reconnecting",
		zap.String("instance_id", instanceID),
		zap.String("state", string(state)),
	)

	if _, err := c.gateway.Connect(ctx, instanceID); err != nil {
		c.logger.Warn("reconnect request failed",
			zap.String("instance_id", instanceID),
			zap.Error(err),
		)
		return false
	}

	// Give the session a moment to come up before the caller proceeds.
	select {
	case <-time.After(c.grace):
	case <-ctx.Done():
	}
	return true
}
