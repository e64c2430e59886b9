// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey       string              `mapstructure:"api_key"`
	BaseURL      string              `mapstructure:"base_url"`
	Model        string              `mapstructure:"model"`
	SummaryModel string              `mapstructure:"summary_model"`
	Generation   LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ChatConfig 配置对话轮次引擎的行为。
type ChatConfig struct {
	// HistoryLimit 每轮请求加载的最近历史消息条数
	HistoryLimit int `mapstructure:"history_limit"`
	// MaxToolCallDepth 工具调用触发的递归轮次上限
	MaxToolCallDepth int `mapstructure:"max_tool_call_depth"`
	// Timezone 历史消息时间戳本地化所用时区，如 "Asia/Shanghai"
	Timezone string `mapstructure:"timezone"`
}

// MemoryConfig 配置语义记忆检索。
type MemoryConfig struct {
	// MaxResults 相似度排序后保留的命中条数
	MaxResults int `mapstructure:"max_results"`
	// ContextWindow 每条命中消息前后各取的消息条数
	ContextWindow int `mapstructure:"context_window"`
}

// CatalogConfig 存储内容目录服务的配置。
type CatalogConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	CacheTTL int    `mapstructure:"cache_ttl_seconds"`
}

// ReminderConfig 配置随访提醒扫描任务。
type ReminderConfig struct {
	ScanIntervalSeconds int `mapstructure:"scan_interval_seconds"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults()
}

// applyDefaults 为缺省的引擎参数填入默认值。
func applyDefaults() {
	if Conf.Chat.HistoryLimit <= 0 {
		Conf.Chat.HistoryLimit = 30
	}
	if Conf.Chat.MaxToolCallDepth <= 0 {
		Conf.Chat.MaxToolCallDepth = 10
	}
	if Conf.Memory.MaxResults <= 0 {
		Conf.Memory.MaxResults = 35
	}
	if Conf.Memory.ContextWindow <= 0 {
		Conf.Memory.ContextWindow = 2
	}
	if Conf.Reminder.ScanIntervalSeconds <= 0 {
		Conf.Reminder.ScanIntervalSeconds = 60
	}
}
