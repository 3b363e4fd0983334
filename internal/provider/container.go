package provider

import (
	"context"
	"strings"
	"time"

	"github.com/paynext/mchapply/internal/cache"
	"github.com/paynext/mchapply/internal/channel"
	"github.com/paynext/mchapply/internal/channel/alipay"
	"github.com/paynext/mchapply/internal/channel/unionpay"
	"github.com/paynext/mchapply/internal/channel/wechatpay"
	"github.com/paynext/mchapply/internal/config"
	"github.com/paynext/mchapply/internal/constants"
	"github.com/paynext/mchapply/internal/logger"
	"github.com/paynext/mchapply/internal/metrics"
	"github.com/paynext/mchapply/internal/models"
	"github.com/paynext/mchapply/internal/queue"
	"github.com/paynext/mchapply/internal/repository"
	"github.com/paynext/mchapply/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client
	Metrics     *metrics.Metrics
	Registry    *channel.Registry

	// Repositories
	ApplyRecordRepo   repository.MchApplyRecordRepository
	ApplyMaterialRepo repository.MchApplyMaterialRepository
	ApplyConfigRepo   repository.ChannelApplyConfigRepository
	ApplyAuditRepo    repository.MchApplyAuditRecordRepository
	ApplyNotifyRepo   repository.MchApplyNotifyLogRepository

	// Services
	ApplyService         *service.ApplyService
	ChannelConfigService *service.ChannelConfigService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		DB:          models.DB,
		QueueClient: queueClient,
		Metrics:     metrics.New(),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化渠道适配器，已启用的数据库渠道参数覆盖配置文件
	stored, err := c.ApplyConfigRepo.List(true)
	if err != nil {
		logger.Warnw("provider_load_channel_configs_failed", "error", err)
	}
	c.Registry = BuildRegistry(context.Background(), cfg, stored)

	// 3. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := c.DB
	c.ApplyRecordRepo = repository.NewMchApplyRecordRepository(db)
	c.ApplyMaterialRepo = repository.NewMchApplyMaterialRepository(db)
	c.ApplyConfigRepo = repository.NewChannelApplyConfigRepository(db)
	c.ApplyAuditRepo = repository.NewMchApplyAuditRecordRepository(db)
	c.ApplyNotifyRepo = repository.NewMchApplyNotifyLogRepository(db)
}

func (c *Container) initServices() {
	applyCfg := c.Config.Apply
	c.ApplyService = service.NewApplyService(
		c.DB,
		c.ApplyRecordRepo,
		c.ApplyMaterialRepo,
		c.ApplyConfigRepo,
		c.ApplyAuditRepo,
		c.ApplyNotifyRepo,
		c.Registry,
		c.QueueClient,
		c.Metrics,
		service.ApplyOptions{
			PollDelay:      time.Duration(applyCfg.PollDelaySeconds) * time.Second,
			PollMaxRounds:  applyCfg.PollMaxRounds,
			NotifyDedupTTL: time.Duration(applyCfg.NotifyDedupTTLSeconds) * time.Second,
		},
	)
	c.ChannelConfigService = service.NewChannelConfigService(c.ApplyConfigRepo, ConfigValidators())
}

// TransportOptionsFrom 渠道出站请求参数
func TransportOptionsFrom(cfg config.ApplyConfig) channel.TransportOptions {
	return channel.TransportOptions{
		Timeout:    time.Duration(cfg.ChannelTimeoutSeconds) * time.Second,
		MaxRetries: cfg.ChannelMaxRetries,
		RetryWait:  time.Duration(cfg.ChannelRetryWaitMS) * time.Millisecond,
	}
}

// BuildRegistry 根据渠道凭证构建适配器，未配置或配置无效的渠道跳过。
// stored 中的 ConfigParams 按键覆盖配置文件中的同名参数。
func BuildRegistry(ctx context.Context, cfg *config.Config, stored []models.ChannelApplyConfig) *channel.Registry {
	opts := TransportOptionsFrom(cfg.Apply)
	overrides := make(map[string]map[string]interface{}, len(stored))
	for _, item := range stored {
		if len(item.ConfigParams) > 0 {
			overrides[strings.ToUpper(strings.TrimSpace(item.ChannelCode))] = item.ConfigParams
		}
	}
	adapters := make([]channel.Adapter, 0, 3)

	if raw := channelParams(constants.ChannelCodeAliPay, cfg.Channels.Alipay, overrides); len(raw) > 0 {
		if adapter, err := buildAlipay(raw, opts); err != nil {
			logger.Warnw("provider_channel_adapter_skipped", "channel_code", constants.ChannelCodeAliPay, "error", err)
		} else {
			adapters = append(adapters, adapter)
		}
	}
	if raw := channelParams(constants.ChannelCodeWxPay, cfg.Channels.Wechat, overrides); len(raw) > 0 {
		if adapter, err := buildWechatPay(ctx, raw, opts); err != nil {
			logger.Warnw("provider_channel_adapter_skipped", "channel_code", constants.ChannelCodeWxPay, "error", err)
		} else {
			adapters = append(adapters, adapter)
		}
	}
	if raw := channelParams(constants.ChannelCodeYsfPay, cfg.Channels.UnionPay, overrides); len(raw) > 0 {
		if adapter, err := buildUnionPay(raw, opts); err != nil {
			logger.Warnw("provider_channel_adapter_skipped", "channel_code", constants.ChannelCodeYsfPay, "error", err)
		} else {
			adapters = append(adapters, adapter)
		}
	}

	registry, err := channel.NewRegistry(adapters...)
	if err != nil {
		logger.Errorw("provider_init_channel_registry_failed", "error", err)
		panic(err)
	}
	logger.Infow("provider_channel_registry_ready", "channels", registry.Codes())
	return registry
}

// channelParams 合并配置文件与数据库渠道参数，数据库非空值优先
func channelParams(channelCode string, file map[string]interface{}, overrides map[string]map[string]interface{}) map[string]interface{} {
	override := overrides[channelCode]
	if len(override) == 0 {
		return file
	}
	merged := make(map[string]interface{}, len(file)+len(override))
	for key, value := range file {
		merged[key] = value
	}
	applied := 0
	for key, value := range override {
		if value == nil {
			continue
		}
		if str, ok := value.(string); ok && strings.TrimSpace(str) == "" {
			continue
		}
		merged[key] = value
		applied++
	}
	logger.Infow("provider_channel_config_from_db", "channel_code", channelCode, "overridden_keys", applied)
	return merged
}

func buildAlipay(raw map[string]interface{}, opts channel.TransportOptions) (channel.Adapter, error) {
	cfg, err := alipay.ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	return alipay.New(cfg, opts)
}

func buildWechatPay(ctx context.Context, raw map[string]interface{}, opts channel.TransportOptions) (channel.Adapter, error) {
	cfg, err := wechatpay.ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	return wechatpay.New(ctx, cfg, opts)
}

func buildUnionPay(raw map[string]interface{}, opts channel.TransportOptions) (channel.Adapter, error) {
	cfg, err := unionpay.ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	return unionpay.New(cfg, opts)
}

// ConfigValidators 各渠道 ConfigParams 校验器
func ConfigValidators() map[string]service.ConfigParamsValidator {
	return map[string]service.ConfigParamsValidator{
		constants.ChannelCodeAliPay: func(params map[string]interface{}) error {
			cfg, err := alipay.ParseConfig(params)
			if err != nil {
				return err
			}
			return alipay.ValidateConfig(cfg)
		},
		constants.ChannelCodeWxPay: func(params map[string]interface{}) error {
			cfg, err := wechatpay.ParseConfig(params)
			if err != nil {
				return err
			}
			return wechatpay.ValidateConfig(cfg)
		},
		constants.ChannelCodeYsfPay: func(params map[string]interface{}) error {
			cfg, err := unionpay.ParseConfig(params)
			if err != nil {
				return err
			}
			return unionpay.ValidateConfig(cfg)
		},
	}
}

// Close 释放队列与缓存连接
func (c *Container) Close() error {
	var firstErr error
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			firstErr = err
		}
	}
	if err := cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
