package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/paynext/mchapply/internal/cache"
	"github.com/paynext/mchapply/internal/config"
	notifyhandlers "github.com/paynext/mchapply/internal/http/handlers/notify"
	"github.com/paynext/mchapply/internal/logger"
	"github.com/paynext/mchapply/internal/provider"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	healthPath  = "/health"
	metricsPath = "/metrics"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	notifyHandler := notifyhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "mchapply"
	}
	notifyRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:apply_notify", redisPrefix),
		WindowSeconds: cfg.Apply.NotifyRateLimit.WindowSeconds,
		MaxRequests:   cfg.Apply.NotifyRateLimit.MaxRequests,
		Message:       "notify rate limited",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log, healthPath, metricsPath))

	var db *gorm.DB
	if c != nil {
		db = c.DB
	}
	r.GET(healthPath, healthHandler(db))
	if c != nil {
		r.GET(metricsPath, gin.WrapH(c.Metrics.Handler()))
	}

	apiV1 := r.Group("/api/v1")
	{
		// 渠道异步通知（无需鉴权，由渠道签名保证来源）
		apply := apiV1.Group("/apply")
		apply.POST("/notify/:channel", RateLimitMiddleware(cache.Client(), notifyRule, KeyByIPAndParam("channel")), notifyHandler.ChannelNotify)
	}

	return r
}

// healthHandler 检查数据库与 Redis 连通性
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		healthy := true
		if db == nil {
			checks["database"] = "unavailable"
			healthy = false
		} else if sqlDB, err := db.DB(); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else if err := sqlDB.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}

		if client := cache.Client(); client == nil {
			checks["redis"] = "disabled"
		} else if err := client.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}

		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": checks})
	}
}
