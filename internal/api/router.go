package api

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/zapdispatch/zapdispatch/internal/api/middleware"
)

func Router(h *Handler, jwtSecret, corsOrigins string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if corsOrigins == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = strings.Split(corsOrigins, ",")
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	router.Use(cors.New(corsCfg))

	router.GET("/v1/health", h.Health)

	// Asset downloads authenticate by signed token; the gateway fetches
	// media here without a bearer token.
	router.GET("/v1/files/:token", h.DownloadFile)

	protected := router.Group("/v1")
	protected.Use(middleware.Auth(jwtSecret))
	{
		protected.POST("/queue", h.EnqueueMessages)
		protected.POST("/queue/groups", h.EnqueueGroupMessages)
		protected.GET("/queue", h.ListQueue)
		protected.GET("/queue/stats", h.QueueStats)
		protected.DELETE("/queue", h.ClearQueue)

		protected.POST("/send/start", h.StartSend)
		protected.POST("/send/pause", h.PauseSend)
		protected.POST("/send/retry", h.RetrySend)
		protected.POST("/send/dispatch", h.DispatchOnce)
		protected.GET("/send/status", h.SendStatus)

		protected.GET("/blacklist", h.ListBlacklist)
		protected.POST("/blacklist", h.AddBlacklist)
		protected.DELETE("/blacklist/:id", h.DeleteBlacklist)

		protected.GET("/lists", h.ListSavedLists)
		protected.POST("/lists", h.CreateSavedList)
		protected.PUT("/lists/:id", h.UpdateSavedList)
		protected.DELETE("/lists/:id", h.DeleteSavedList)

		protected.GET("/config/pace", h.GetPaceConfig)
		protected.PUT("/config/pace", h.PutPaceConfig)

		protected.POST("/instance", h.CreateInstance)
		protected.GET("/instance/status", h.InstanceStatus)
		protected.GET("/instance/qr", h.InstanceQR)
		protected.GET("/groups", h.FetchGroups)

		protected.POST("/uploads", h.UploadAsset)
		protected.POST("/uploads/associations", h.UploadAssociations)
	}

	return router
}
