package main

import (
	"github.com/paynext/mchapply/internal/config"
	"github.com/paynext/mchapply/internal/logger"
	"github.com/paynext/mchapply/internal/models"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 渠道进件配置
	configs := models.DefaultChannelApplyConfigs()
	created, err := models.SeedChannelApplyConfigs(models.DB, configs)
	if err != nil {
		stdLog.Fatalf("Failed to seed channel apply configs: %v", err)
	}
	for _, item := range configs {
		stdLog.Printf("Channel apply config ready: %s (%s)", item.ChannelCode, item.ConfigName)
	}
	stdLog.Printf("Seed finished, created %d channel apply configs", created)
}
