package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/paynext/mchapply/internal/constants"
	"github.com/paynext/mchapply/internal/logger"
	"github.com/paynext/mchapply/internal/models"
	"github.com/paynext/mchapply/internal/repository"
)

// ConfigParamsValidator 渠道参数校验
type ConfigParamsValidator func(params map[string]interface{}) error

// ChannelConfigService 渠道进件配置服务
type ChannelConfigService struct {
	repo       repository.ChannelApplyConfigRepository
	validators map[string]ConfigParamsValidator
}

// NewChannelConfigService 创建渠道进件配置服务
func NewChannelConfigService(repo repository.ChannelApplyConfigRepository, validators map[string]ConfigParamsValidator) *ChannelConfigService {
	normalized := make(map[string]ConfigParamsValidator, len(validators))
	for code, fn := range validators {
		normalized[strings.ToUpper(strings.TrimSpace(code))] = fn
	}
	return &ChannelConfigService{repo: repo, validators: normalized}
}

// UpdateChannelConfigInput 更新渠道配置输入，nil 字段保持不变
type UpdateChannelConfigInput struct {
	ConfigName        *string
	RequiredMaterials []string
	ConfigParams      map[string]interface{}
	IsEnabled         *bool
	Remark            *string
}

// ListEnabledChannels 已启用的渠道配置
func (s *ChannelConfigService) ListEnabledChannels() ([]models.ChannelApplyConfig, error) {
	configs, err := s.repo.List(true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApplyFetchFailed, err)
	}
	return configs, nil
}

// ListConfigs 全部渠道配置
func (s *ChannelConfigService) ListConfigs() ([]models.ChannelApplyConfig, error) {
	configs, err := s.repo.List(false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApplyFetchFailed, err)
	}
	return configs, nil
}

// GetConfig 按渠道编码获取配置
func (s *ChannelConfigService) GetConfig(channelCode string) (*models.ChannelApplyConfig, error) {
	code := strings.ToUpper(strings.TrimSpace(channelCode))
	if code == "" {
		return nil, fmt.Errorf("%w: channel_code is required", ErrConfigInvalid)
	}
	cfg, err := s.repo.GetByChannelCode(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApplyFetchFailed, err)
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}
	return cfg, nil
}

// UpdateConfig 更新渠道配置
func (s *ChannelConfigService) UpdateConfig(channelCode string, input UpdateChannelConfigInput) (*models.ChannelApplyConfig, error) {
	cfg, err := s.GetConfig(channelCode)
	if err != nil {
		return nil, err
	}
	if input.ConfigName != nil {
		name := strings.TrimSpace(*input.ConfigName)
		if name == "" {
			return nil, fmt.Errorf("%w: config_name is required", ErrConfigInvalid)
		}
		cfg.ConfigName = name
	}
	if input.RequiredMaterials != nil {
		materials := make(models.StringArray, 0, len(input.RequiredMaterials))
		seen := make(map[string]struct{}, len(input.RequiredMaterials))
		for _, raw := range input.RequiredMaterials {
			materialType := strings.ToUpper(strings.TrimSpace(raw))
			if materialType == "" {
				continue
			}
			if !constants.KnownMaterialType(materialType) {
				return nil, fmt.Errorf("%w: %s", ErrMaterialTypeInvalid, materialType)
			}
			if _, ok := seen[materialType]; ok {
				continue
			}
			seen[materialType] = struct{}{}
			materials = append(materials, materialType)
		}
		cfg.RequiredMaterials = materials
	}
	if input.ConfigParams != nil {
		if validate, ok := s.validators[cfg.ChannelCode]; ok && len(input.ConfigParams) > 0 {
			if err := validate(input.ConfigParams); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
			}
		}
		cfg.ConfigParams = models.JSON(input.ConfigParams)
	}
	if input.IsEnabled != nil {
		cfg.IsEnabled = *input.IsEnabled
	}
	if input.Remark != nil {
		cfg.Remark = strings.TrimSpace(*input.Remark)
	}
	cfg.UpdatedAt = time.Now()
	if err := s.repo.Update(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigSaveFailed, err)
	}
	// 渠道参数在下次启动构建适配器时生效
	logger.Infow("channel_apply_config_updated", "channel_code", cfg.ChannelCode, "is_enabled", cfg.IsEnabled, "params_effective", "next_start")
	return cfg, nil
}

// SetEnabled 启用或停用渠道
func (s *ChannelConfigService) SetEnabled(channelCode string, enabled bool) error {
	code := strings.ToUpper(strings.TrimSpace(channelCode))
	ok, err := s.repo.SetEnabled(code, enabled)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigSaveFailed, err)
	}
	if !ok {
		return ErrConfigNotFound
	}
	logger.Infow("channel_apply_config_toggled", "channel_code", code, "is_enabled", enabled)
	return nil
}
