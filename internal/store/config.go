package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// 流水线阈值在 config 表中的键
const pipelineConfigKey = "pipeline"

// GetConfig 获取配置项
func (s *Store) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("config key not found: %s", key)
		}
		return "", err
	}
	return value, nil
}

// SetConfig 设置配置项
func (s *Store) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = CURRENT_TIMESTAMP
	`, key, value, value)
	return err
}

// GetPipelineConfig 读取持久化的流水线阈值；从未保存过时返回默认值
func (s *Store) GetPipelineConfig() (*model.PipelineConfig, error) {
	value, err := s.GetConfig(pipelineConfigKey)
	if err != nil {
		return model.DefaultPipelineConfig(), nil
	}
	cfg := model.DefaultPipelineConfig()
	if err := json.Unmarshal([]byte(value), cfg); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	return cfg, nil
}

// SetPipelineConfig 持久化流水线阈值
func (s *Store) SetPipelineConfig(cfg *model.PipelineConfig) error {
	value, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline config: %w", err)
	}
	return s.SetConfig(pipelineConfigKey, string(value))
}
