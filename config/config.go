// Package config 负责应用配置（YAML 文件 + 环境变量覆盖）与后处理 Node 的配置驱动注册表。
//
// 加载顺序：Defaults() → YAML 文件 → 环境变量（前缀 RECFLOW_）→ Validate()。
//
//	RECFLOW_STORE_DRIVER=redis
//	RECFLOW_STORE_REDIS_ADDR=127.0.0.1:6379
//	RECFLOW_BATCH_THROTTLE=250ms
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/notify"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/pkg/logging"
	"github.com/rushteam/recflow/recall"
	"github.com/rushteam/recflow/store"
)

// EnvPrefix 是环境变量前缀。
const EnvPrefix = "RECFLOW"

// 存储与推送驱动
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverLog    = "log"
)

// Config 是应用配置。
type Config struct {
	Log      LogConfig      `yaml:"log" json:"log"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Notify   NotifyConfig   `yaml:"notify" json:"notify"`
	Scoring  ScoringConfig  `yaml:"scoring" json:"scoring"`
	Generate GenerateConfig `yaml:"generate" json:"generate"`
	Batch    BatchConfig    `yaml:"batch" json:"batch"`

	// Snapshot 是用户/内容/事件快照文件路径（命令行使用）
	Snapshot string `yaml:"snapshot" json:"snapshot"`

	// PostProcess 后处理链；为空时使用默认链 filter.viewed → rerank.topn
	PostProcess []pipeline.NodeConfig `yaml:"post_process" json:"post_process" ignored:"true"`
	// PostProcessFile 从单独的 YAML/JSON 文件加载后处理链，优先于 PostProcess
	PostProcessFile string `yaml:"post_process_file" json:"post_process_file" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type StoreConfig struct {
	// Driver: memory / redis
	Driver string             `yaml:"driver" json:"driver"`
	Redis  store.RedisOptions `yaml:"redis" json:"redis"`
}

type NotifyConfig struct {
	// Driver: log / redis
	Driver        string               `yaml:"driver" json:"driver"`
	ChannelPrefix string               `yaml:"channel_prefix" json:"channel_prefix" split_words:"true"`
	Breaker       notify.BreakerConfig `yaml:"breaker" json:"breaker"`
	// BreakerEnabled 是否用熔断器包装推送
	BreakerEnabled bool `yaml:"breaker_enabled" json:"breaker_enabled" split_words:"true"`
}

type ScoringConfig struct {
	Weights        recall.Weights `yaml:"weights" json:"weights"`
	CategoryBonus  float64        `yaml:"category_bonus" json:"category_bonus" split_words:"true"`
	KeywordBonus   float64        `yaml:"keyword_bonus" json:"keyword_bonus" split_words:"true"`
	TrendingWindow time.Duration  `yaml:"trending_window" json:"trending_window" split_words:"true"`
	// HybridTimeout 混合打分的整体超时，0 表示不限制
	HybridTimeout time.Duration `yaml:"hybrid_timeout" json:"hybrid_timeout" split_words:"true"`
}

type GenerateConfig struct {
	DefaultAlgorithm string `yaml:"default_algorithm" json:"default_algorithm" split_words:"true"`
}

type BatchConfig struct {
	MaxUsers    int           `yaml:"max_users" json:"max_users" split_words:"true"`
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	Throttle    time.Duration `yaml:"throttle" json:"throttle"`
	// Eligibility 用户准入 CEL 表达式，只能在"有推送地址"之上追加条件
	Eligibility string `yaml:"eligibility" json:"eligibility"`
}

// DefaultEligibility 是默认的用户准入表达式：必须注册了推送地址。
const DefaultEligibility = `user.push_target != ""`

// Defaults 返回默认配置。
func Defaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Store: StoreConfig{
			Driver: DriverMemory,
			Redis:  store.RedisOptions{Addr: "127.0.0.1:6379"},
		},
		Notify: NotifyConfig{
			Driver:         DriverLog,
			ChannelPrefix:  notify.DefaultChannelPrefix,
			Breaker:        notify.DefaultBreakerConfig(),
			BreakerEnabled: true,
		},
		Scoring: ScoringConfig{
			Weights:        recall.DefaultWeights(),
			CategoryBonus:  core.CategoryBonus,
			KeywordBonus:   core.KeywordBonus,
			TrendingWindow: core.TrendingWindow,
		},
		Generate: GenerateConfig{DefaultAlgorithm: string(core.AlgorithmHybrid)},
		Batch: BatchConfig{
			MaxUsers:    core.DefaultMaxUsers,
			Concurrency: 1,
			Throttle:    100 * time.Millisecond,
			Eligibility: DefaultEligibility,
		},
	}
}

// Load 加载配置：path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate 校验配置。
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if strings.TrimSpace(c.Store.Redis.Addr) == "" {
			return fmt.Errorf("store.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Notify.Driver {
	case DriverLog, DriverRedis:
	default:
		return fmt.Errorf("unknown notify driver %q", c.Notify.Driver)
	}
	if _, err := core.ParseAlgorithm(c.Generate.DefaultAlgorithm); err != nil {
		return err
	}
	w := c.Scoring.Weights
	if w.Content < 0 || w.Collaborative < 0 || w.Trending < 0 {
		return fmt.Errorf("scoring weights must not be negative")
	}
	if c.Batch.MaxUsers < 0 {
		return fmt.Errorf("batch.max_users must not be negative")
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be at least 1")
	}
	if c.Batch.Throttle < 0 {
		return fmt.Errorf("batch.throttle must not be negative")
	}
	pc, err := c.PostProcessConfig()
	if err != nil {
		return err
	}
	return ValidatePipelineConfig(pc)
}

// LoggingConfig 转换为 logging.Config。
func (c *Config) LoggingConfig() logging.Config {
	lc := logging.DefaultConfig()
	if c.Log.Level != "" {
		lc.Level = c.Log.Level
	}
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	return lc
}

// DefaultPostProcess 是默认后处理链：去掉已看，再截断到 limit。
func DefaultPostProcess() []pipeline.NodeConfig {
	return []pipeline.NodeConfig{
		{Type: "filter.viewed"},
		{Type: "rerank.topn"},
	}
}

// PostProcessConfig 返回后处理链配置：PostProcessFile > PostProcess > DefaultPostProcess。
func (c *Config) PostProcessConfig() (*pipeline.Config, error) {
	if c.PostProcessFile != "" {
		pc, err := pipeline.LoadConfig(c.PostProcessFile)
		if err != nil {
			return nil, err
		}
		if pc.Pipeline.Name == "" {
			pc.Pipeline.Name = "postprocess"
		}
		return pc, nil
	}
	nodes := c.PostProcess
	if len(nodes) == 0 {
		nodes = DefaultPostProcess()
	}
	pc := &pipeline.Config{}
	pc.Pipeline.Name = "postprocess"
	pc.Pipeline.Nodes = nodes
	return pc, nil
}
