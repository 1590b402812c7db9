package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// AppConfig 应用配置
type AppConfig struct {
	Server   ServerConfig          `toml:"server"`
	Data     DataConfig            `toml:"data"`
	Log      LogConfig             `toml:"log"`
	Pipeline *model.PipelineConfig `toml:"pipeline"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20318,
			DevMode: false,
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Log: LogConfig{
			Level: "info",
		},
		Pipeline: model.DefaultPipelineConfig(),
	}
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// LoadConfig 从 config.toml 加载配置
// 配置文件位于可执行文件同目录下，缺失时使用默认配置
func LoadConfig() (*AppConfig, error) {
	config := DefaultConfig()

	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}

	configPath := filepath.Join(exeDir, "config.toml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	// 环境变量覆盖（用于 E2E / 本地运行）
	if v := os.Getenv("FF_DATA_DIR"); v != "" {
		config.Data.DataDir = v
	}
	if v := os.Getenv("FF_LOG_LEVEL"); v != "" {
		config.Log.Level = v
	}

	if err := ValidatePipeline(config.Pipeline); err != nil {
		return nil, err
	}

	return config, nil
}

// ValidatePipeline 校验流水线阈值；业务常量只能来自配置，错误配置必须在启动期暴露
func ValidatePipeline(cfg *model.PipelineConfig) error {
	if cfg == nil {
		return fmt.Errorf("pipeline config is required")
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			first := errs[0]
			return fmt.Errorf("pipeline config invalid: %s fails %s", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("pipeline config invalid: %w", err)
	}

	// 跨字段约束无法用 tag 表达，逐条校验
	if cfg.Overcapacity.CoreMaxReductionPct >= cfg.Overcapacity.MaxReductionPct {
		return fmt.Errorf("pipeline config invalid: core_max_reduction_pct must be below max_reduction_pct")
	}
	if cfg.MissedOpportunity.LowAffinity >= cfg.MissedOpportunity.HighAffinity {
		return fmt.Errorf("pipeline config invalid: low_affinity must be below high_affinity")
	}
	if cfg.MissedOpportunity.MediumTierThreshold >= cfg.MissedOpportunity.HighTierThreshold {
		return fmt.Errorf("pipeline config invalid: medium_tier_threshold must be below high_tier_threshold")
	}

	return nil
}

// SaveConfig 保存配置到 config.toml
func SaveConfig(config *AppConfig) error {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}

	configPath := filepath.Join(exeDir, "config.toml")

	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// EnsureDataDir 确保数据目录存在
func EnsureDataDir(config *AppConfig) (string, error) {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}

	dataDir := config.Data.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(exeDir, dataDir)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	subdirs := []string{"uploads", "exports"}
	for _, subdir := range subdirs {
		if err := os.MkdirAll(filepath.Join(dataDir, subdir), 0755); err != nil {
			return "", err
		}
	}

	return dataDir, nil
}
