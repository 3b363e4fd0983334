package models

import (
	"errors"

	"github.com/paynext/mchapply/internal/constants"
	"github.com/paynext/mchapply/internal/logger"

	"gorm.io/gorm"
)

// DefaultChannelApplyConfigs 默认渠道进件配置
func DefaultChannelApplyConfigs() []ChannelApplyConfig {
	return []ChannelApplyConfig{
		{
			ConfigID:          "CFG_ALI_PAY",
			ChannelCode:       constants.ChannelCodeAliPay,
			ConfigName:        "支付宝间连进件",
			RequiredMaterials: StringArray{constants.MaterialBusinessLicense, constants.MaterialLegalIDFront, constants.MaterialLegalIDBack},
			ConfigParams:      JSON{},
			IsEnabled:         true,
		},
		{
			ConfigID:          "CFG_WX_PAY",
			ChannelCode:       constants.ChannelCodeWxPay,
			ConfigName:        "微信支付特约商户进件",
			RequiredMaterials: StringArray{constants.MaterialBusinessLicense, constants.MaterialLegalIDFront, constants.MaterialLegalIDBack, constants.MaterialStoreFront},
			ConfigParams:      JSON{},
			IsEnabled:         true,
		},
		{
			ConfigID:          "CFG_YSF_PAY",
			ChannelCode:       constants.ChannelCodeYsfPay,
			ConfigName:        "云闪付商户进件",
			RequiredMaterials: StringArray{constants.MaterialBusinessLicense, constants.MaterialLegalIDFront, constants.MaterialBankAccountLicense},
			ConfigParams:      JSON{},
			IsEnabled:         true,
		},
	}
}

// SeedChannelApplyConfigs 初始化缺失的渠道进件配置，已存在的配置保持不变
func SeedChannelApplyConfigs(db *gorm.DB, configs []ChannelApplyConfig) (int, error) {
	if db == nil {
		return 0, errors.New("db is nil")
	}
	created := 0
	for i := range configs {
		cfg := configs[i]
		var existing ChannelApplyConfig
		err := db.Where("channel_code = ?", cfg.ChannelCode).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, err
		}
		if err := db.Create(&cfg).Error; err != nil {
			return created, err
		}
		created++
		logger.Infow("channel_apply_config_seeded", "channel_code", cfg.ChannelCode, "config_id", cfg.ConfigID)
	}
	return created, nil
}
