package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Pranavd0828/make-your-video-2x/config"
	"github.com/Pranavd0828/make-your-video-2x/engine"
	"github.com/Pranavd0828/make-your-video-2x/job"
	"github.com/Pranavd0828/make-your-video-2x/resource"
)

func SetupRouter(ctx context.Context, m *job.Machine, lc *engine.Lifecycle, store *resource.Store, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	h := NewHandler(ctx, m, lc, store, cfg)

	r.GET("/health", h.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.POST("/jobs", h.handleCreateJob)
		v1.GET("/jobs/current", h.handleJobStatus)
		v1.DELETE("/jobs/current", h.handleResetJob)
		v1.POST("/engine/initialize", h.handleInitializeEngine)

		// Download URLs carry unguessable tokens, but auth applies here too
		// for consistency.
		v1.GET("/files/:token", h.handleGetFile)
	}
	return r
}
