package app

import (
	"github.com/gin-gonic/gin"

	"xrmkit.io/xrmkit/internal/api/handlers"
	"xrmkit.io/xrmkit/internal/api/middleware"
	"xrmkit.io/xrmkit/internal/config"
)

func newRouter(cfg *config.Config, server *handlers.Server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	if cors := middleware.CORS(cfg.Server.CORSOrigins, cfg.Server.AllowCredentials); cors != nil {
		router.Use(cors)
	}

	server.RegisterRoutes(router.Group("/api/v1"))
	return router
}
