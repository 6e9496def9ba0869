// Package config 載入與驗證服務配置
// 優先序：預設值 < YAML檔 < 環境變數
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/intenza/hfeval/internal/database"
)

// AppConfig 應用層配置
type AppConfig struct {
	Name  string `yaml:"name" env:"APP_NAME" default:"hfeval"`
	Debug bool   `yaml:"debug" env:"APP_DEBUG" default:"false"`
}

// APIServerConfig API伺服器配置
type APIServerConfig struct {
	Host    string        `yaml:"host" env:"API_HOST" default:"0.0.0.0"`
	Port    int           `yaml:"port" env:"API_PORT" default:"8080" validate:"min=1,max=65535"`
	Mode    string        `yaml:"mode" env:"GIN_MODE" default:"release" validate:"oneof=debug release test"`
	Timeout time.Duration `yaml:"timeout" env:"API_TIMEOUT" default:"30s"`
}

// QueueConfig Redis批次佇列配置
type QueueConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" default:"localhost:6379" validate:"required"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" default:"0"`
}

// StorageConfig MinIO物件儲存配置
type StorageConfig struct {
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"MINIO_ACCESS_KEY_ID" default:"minioadmin"`
	SecretAccessKey string `yaml:"secret_access_key" env:"MINIO_SECRET_ACCESS_KEY" default:"minioadmin"`
	UseSSL          bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" default:"false"`
	BucketName      string `yaml:"bucket_name" env:"MINIO_BUCKET_NAME" default:"hfeval"`
	Region          string `yaml:"region" env:"MINIO_REGION" default:"us-east-1"`
}

// CatalogConfig 評估目錄配置
// Path為空時使用內建目錄
type CatalogConfig struct {
	Path string `yaml:"path" env:"CATALOG_PATH" default:""`
}

// Config 全量配置
type Config struct {
	App       AppConfig                  `yaml:"app"`
	APIServer APIServerConfig            `yaml:"api_server"`
	Database  database.PostgreSQLConfig  `yaml:"database"`
	Queue     QueueConfig                `yaml:"queue"`
	Storage   StorageConfig              `yaml:"storage"`
	Catalog   CatalogConfig              `yaml:"catalog"`
}

// Load 載入配置
// 檔案不存在時只套用預設值與環境變數，不視為錯誤
func Load(filePath string) (*Config, error) {
	cfg := &Config{}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("套用預設配置失敗: %w", err)
	}

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("解析配置檔失敗: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("讀取配置檔失敗: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("解析環境變數失敗: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("配置驗證失敗: %w", err)
	}

	return cfg, nil
}
