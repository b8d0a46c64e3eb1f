package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zapdispatch/zapdispatch/internal/model"
	"github.com/zapdispatch/zapdispatch/internal/repo"
)

type paceView struct {
	InstanceID      string `json:"instanceId"`
	DelayMinMs      int64  `json:"delayMinMs"`
	DelayMaxMs      int64  `json:"delayMaxMs"`
	PauseAfter      int    `json:"pauseAfter"`
	PauseDurationMs int64  `json:"pauseDurationMs"`
}

func (h *Handler) GetPaceConfig(c *gin.Context) {
	cfg, err := h.configs.GetPace(c.Request.Context(), accountID(c))
	if errors.Is(err, repo.ErrNotFound) {
		// No row yet: report the defaults the first save will start from.
		c.JSON(http.StatusOK, paceView{
			DelayMinMs:      h.defaults.DelayMin.Milliseconds(),
			DelayMaxMs:      h.defaults.DelayMax.Milliseconds(),
			PauseAfter:      h.defaults.PauseAfter,
			PauseDurationMs: h.defaults.PauseDuration.Milliseconds(),
		})
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, paceView{
		InstanceID:      cfg.InstanceID,
		DelayMinMs:      cfg.DelayMin.Milliseconds(),
		DelayMaxMs:      cfg.DelayMax.Milliseconds(),
		PauseAfter:      cfg.PauseAfter,
		PauseDurationMs: cfg.PauseDuration.Milliseconds(),
	})
}

func (h *Handler) PutPaceConfig(c *gin.Context) {
	var req paceView
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if req.DelayMinMs <= 0 || req.DelayMaxMs < req.DelayMinMs {
		c.JSON(http.StatusBadRequest, gin.H{"error": "delays must satisfy 0 < min <= max"})
		return
	}
	if req.PauseAfter <= 0 || req.PauseDurationMs < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pause configuration"})
		return
	}

	cfg := model.PaceConfig{
		AccountID:     accountID(c),
		InstanceID:    req.InstanceID,
		DelayMin:      time.Duration(req.DelayMinMs) * time.Millisecond,
		DelayMax:      time.Duration(req.DelayMaxMs) * time.Millisecond,
		PauseAfter:    req.PauseAfter,
		PauseDuration: time.Duration(req.PauseDurationMs) * time.Millisecond,
	}
	if err := h.configs.UpsertPace(c.Request.Context(), cfg); err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"saved": true})
}

type createInstanceRequest struct {
	InstanceName string `json:"instanceName" binding:"required"`
}

// CreateInstance registers a gateway instance for the account and returns
// the pairing QR code. The pace config row is created with defaults when
// the account has none yet.
func (h *Handler) CreateInstance(c *gin.Context) {
	var req createInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	info, err := h.gateway.CreateInstance(ctx, req.InstanceName, uuid.NewString())
	if err != nil {
		abortError(c, http.StatusBadGateway, err)
		return
	}

	cfg, err := h.configs.GetPace(ctx, accountID(c))
	if errors.Is(err, repo.ErrNotFound) {
		cfg = &model.PaceConfig{
			AccountID:     accountID(c),
			DelayMin:      h.defaults.DelayMin,
			DelayMax:      h.defaults.DelayMax,
			PauseAfter:    h.defaults.PauseAfter,
			PauseDuration: h.defaults.PauseDuration,
		}
	} else if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	cfg.InstanceID = req.InstanceName
	if err := h.configs.UpsertPace(ctx, *cfg); err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	if h.sessions != nil {
		_ = h.sessions.StoreSession(ctx, info)
	}

	c.JSON(http.StatusCreated, gin.H{
		"instanceId":  info.InstanceID,
		"qrCode":      info.QRCode,
		"pairingCode": info.PairingCode,
	})
}

// InstanceStatus queries the gateway connection state. "open" means the QR
// was scanned and the session is live.
func (h *Handler) InstanceStatus(c *gin.Context) {
	ctx := c.Request.Context()

	cfg, err := h.configs.GetPace(ctx, accountID(c))
	if errors.Is(err, repo.ErrNotFound) || (err == nil && cfg.InstanceID == "") {
		abortError(c, http.StatusBadRequest, errors.New("no instance configured"))
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	state, err := h.gateway.ConnectionState(ctx, cfg.InstanceID)
	if err != nil {
		abortError(c, http.StatusBadGateway, err)
		return
	}

	info := model.SessionInfo{InstanceID: cfg.InstanceID, State: state}
	if h.sessions != nil {
		_ = h.sessions.StoreSession(ctx, info)
	}

	c.JSON(http.StatusOK, gin.H{
		"connected": info.Connected(),
		"state":     string(state),
	})
}

// InstanceQR returns the current pairing QR code, from cache when fresh,
// otherwise by issuing a new connect request.
func (h *Handler) InstanceQR(c *gin.Context) {
	ctx := c.Request.Context()

	cfg, err := h.configs.GetPace(ctx, accountID(c))
	if errors.Is(err, repo.ErrNotFound) || (err == nil && cfg.InstanceID == "") {
		abortError(c, http.StatusBadRequest, errors.New("no instance configured"))
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	if h.sessions != nil {
		if cached, err := h.sessions.LoadSession(ctx, cfg.InstanceID); err == nil && cached != nil && cached.QRCode != "" {
			c.JSON(http.StatusOK, gin.H{"qrCode": cached.QRCode, "pairingCode": cached.PairingCode})
			return
		}
	}

	info, err := h.gateway.Connect(ctx, cfg.InstanceID)
	if err != nil {
		abortError(c, http.StatusBadGateway, err)
		return
	}
	if h.sessions != nil {
		_ = h.sessions.StoreSession(ctx, info)
	}

	c.JSON(http.StatusOK, gin.H{"qrCode": info.QRCode, "pairingCode": info.PairingCode})
}

func (h *Handler) FetchGroups(c *gin.Context) {
	ctx := c.Request.Context()

	cfg, err := h.configs.GetPace(ctx, accountID(c))
	if errors.Is(err, repo.ErrNotFound) || (err == nil && cfg.InstanceID == "") {
		abortError(c, http.StatusBadRequest, errors.New("no instance configured"))
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	groups, err := h.gateway.FetchGroups(ctx, cfg.InstanceID)
	if err != nil {
		abortError(c, http.StatusBadGateway, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": groups})
}
