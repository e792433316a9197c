package service

import (
	"github.com/fenxiao-mall/internal/models"
	"github.com/fenxiao-mall/internal/repository"
)

// SettingService 设置业务服务
type SettingService struct {
	repo                 repository.SettingRepository
	distributionDefaults *DistributionSetting
}

// NewSettingService 创建设置服务
func NewSettingService(repo repository.SettingRepository) *SettingService {
	return &SettingService{repo: repo}
}

// SetDistributionDefaults 注入分销配置默认值（来自配置文件）
func (s *SettingService) SetDistributionDefaults(defaults DistributionSetting) {
	normalized := NormalizeDistributionSetting(defaults)
	s.distributionDefaults = &normalized
}

// GetByKey 获取设置
func (s *SettingService) GetByKey(key string) (models.JSON, error) {
	if s.repo == nil {
		return nil, nil
	}
	setting, err := s.repo.GetByKey(key)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, nil
	}
	return setting.ValueJSON, nil
}

// Update 设置值
func (s *SettingService) Update(key string, value map[string]interface{}) (models.JSON, error) {
	setting, err := s.repo.Upsert(key, models.JSON(value))
	if err != nil {
		return nil, err
	}
	return setting.ValueJSON, nil
}
