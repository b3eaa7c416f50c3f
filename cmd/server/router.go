package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ojcore/internal/auth"
	"ojcore/internal/contest"
	"ojcore/internal/problem"
	"ojcore/internal/scoreboard"
	"ojcore/internal/submission"
	"ojcore/pkg/utils/contextkey"
	"ojcore/pkg/utils/logger"
	"ojcore/pkg/utils/response"

	appErr "ojcore/pkg/errors"
)

// traceMiddleware tags every request with a trace id and logs it.
func traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-Id")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), contextkey.TraceID, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-Id", traceID)

		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

// recoveryMiddleware converts panics into the standard error envelope.
func recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(c.Request.Context(), "panic recovered", zap.Any("panic", r))
				response.AbortWithErrorCode(c, appErr.CodeServerError, "Internal server error")
			}
		}()
		c.Next()
	}
}

// buildRouter assembles the full /api/v1 surface.
func buildRouter(cfg *Config, tm *auth.TokenManager,
	contests *contest.Controller, submissions *submission.Controller,
	standings *scoreboard.Controller, problems *problem.Controller) *gin.Engine {

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(traceMiddleware(), recoveryMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// Read-only contest browsing and standings admit anonymous viewers;
	// the access policy decides what they see.
	public := router.Group("/api/v1")
	public.Use(auth.Optional(tm))
	contests.RegisterPublic(public)
	standings.Register(public)

	api := router.Group("/api/v1")
	api.Use(auth.Middleware(tm))
	contests.Register(api)
	submissions.Register(api)
	problems.Register(api)
	return router
}
