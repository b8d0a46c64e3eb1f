package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zapdispatch/zapdispatch/internal/cache"
	"github.com/zapdispatch/zapdispatch/internal/config"
	"github.com/zapdispatch/zapdispatch/internal/evolution"
	"github.com/zapdispatch/zapdispatch/internal/repo"
	"github.com/zapdispatch/zapdispatch/internal/runner"
)

// Handler carries the dependencies the HTTP surface needs.
type Handler struct {
	runner   *runner.Runner
	messages repo.MessageRepository
	blocked  repo.BlacklistRepository
	configs  repo.ConfigRepository
	lists    repo.SavedListRepository
	gateway  *evolution.Client
	store    AssetStore
	sessions cache.SessionCache
	defaults config.PaceDefaults
	logger   *zap.Logger
}

func NewHandler(
	run *runner.Runner,
	messages repo.MessageRepository,
	blocked repo.BlacklistRepository,
	configs repo.ConfigRepository,
	lists repo.SavedListRepository,
	gateway *evolution.Client,
	store AssetStore,
	sessions cache.SessionCache,
	defaults config.PaceDefaults,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		runner:   run,
		messages: messages,
		blocked:  blocked,
		configs:  configs,
		lists:    lists,
		gateway:  gateway,
		store:    store,
		sessions: sessions,
		defaults: defaults,
		logger:   logger,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(200, gin.H{"ok": true})
}

func accountID(c *gin.Context) string {
	return c.GetString("account_id")
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func abortError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
