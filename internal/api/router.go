package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/gpx-tracks-etl/internal/config"
	"github.com/jengzang/gpx-tracks-etl/internal/handler"
	"github.com/jengzang/gpx-tracks-etl/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, tracks *handler.TrackHandler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(), gin.Recovery())

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "GPX tracks ETL is running",
			"driver":  cfg.DBDriver,
		})
	})

	api := r.Group("/api/v1")
	{
		group := api.Group("/tracks")
		{
			upload := []gin.HandlerFunc{middleware.RateLimit(cfg.RateLimit, cfg.RateWindow)}
			if cfg.JWTSecret != "" {
				upload = append(upload, middleware.JWTAuth(cfg.JWTSecret))
			}
			upload = append(upload, tracks.UploadTrack)

			group.POST("", upload...)
			group.GET("/points", tracks.GetTrackPoints)
			group.GET("/points/:id", tracks.GetTrackPointByID)
			group.GET("/recent", tracks.GetRecentTracks)
		}
	}

	return r
}
