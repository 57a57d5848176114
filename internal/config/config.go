// Package config provides unified configuration for the tidelake core.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tidelake/tidelake/internal/errors"
)

// BalancingStrategy selects the load-balancing strategy for the executor.
type BalancingStrategy string

const (
	BalanceRoundRobin       BalancingStrategy = "round_robin"
	BalanceLeastConnections BalancingStrategy = "least_connections"
	BalanceResourceBased    BalancingStrategy = "resource_based"
	BalanceAdaptive         BalancingStrategy = "adaptive"
)

// Config holds the unified configuration for all tidelake components.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Inference configuration
	Inference InferenceConfig `json:"inference" yaml:"inference"`

	// Partition configuration
	Partition PartitionConfig `json:"partition" yaml:"partition"`

	// Optimizer configuration
	Optimizer OptimizerConfig `json:"optimizer" yaml:"optimizer"`

	// Executor configuration
	Executor ExecutorConfig `json:"executor" yaml:"executor"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// InferenceConfig holds schema inference tuning parameters.
type InferenceConfig struct {
	// SampleSize is the maximum number of records sampled per inference
	SampleSize int `json:"sample_size" yaml:"sample_size"`

	// ConfidenceThreshold is the minimum share a type must hold to win
	// without promotion
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// NullThreshold is the null fraction above which a field is nullable
	NullThreshold float64 `json:"null_threshold" yaml:"null_threshold"`

	// PatternThreshold is the match fraction required to tag a semantic pattern
	PatternThreshold float64 `json:"pattern_threshold" yaml:"pattern_threshold"`
}

// PartitionConfig holds partition management tuning parameters.
type PartitionConfig struct {
	// TargetPartitionSize is the target row count per partition
	TargetPartitionSize int64 `json:"target_partition_size" yaml:"target_partition_size"`

	// MaxPartitions is the ceiling on partitions per dataset
	MaxPartitions int `json:"max_partitions" yaml:"max_partitions"`

	// MaxPartitionSizeBytes is the size above which a partition is full
	MaxPartitionSizeBytes int64 `json:"max_partition_size_bytes" yaml:"max_partition_size_bytes"`

	// PruningEnabled controls filter-based partition pruning
	PruningEnabled bool `json:"pruning_enabled" yaml:"pruning_enabled"`
}

// OptimizerConfig holds query optimizer tuning parameters.
type OptimizerConfig struct {
	// CacheTTL is how long a cached plan stays fresh
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// DisabledRules lists rewrite rules to skip by name
	DisabledRules []string `json:"disabled_rules" yaml:"disabled_rules"`
}

// ExecutorConfig holds parallel processor tuning parameters.
type ExecutorConfig struct {
	// MaxParallelism is the worker pool size
	MaxParallelism int `json:"max_parallelism" yaml:"max_parallelism"`

	// WorkerConcurrency is the per-worker concurrent task cap
	WorkerConcurrency int `json:"worker_concurrency" yaml:"worker_concurrency"`

	// QueueCapacity bounds the pending task queue
	QueueCapacity int `json:"queue_capacity" yaml:"queue_capacity"`

	// TickInterval is the scheduler tick period
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval"`

	// HealthInterval is the heartbeat check period
	HealthInterval time.Duration `json:"health_interval" yaml:"health_interval"`

	// HeartbeatStaleness is how long without a heartbeat before a worker
	// is marked failed
	HeartbeatStaleness time.Duration `json:"heartbeat_staleness" yaml:"heartbeat_staleness"`

	// BatchTimeout bounds ExecuteParallel end to end
	BatchTimeout time.Duration `json:"batch_timeout" yaml:"batch_timeout"`

	// LoadIncrement is the load added per assigned task (percent)
	LoadIncrement float64 `json:"load_increment" yaml:"load_increment"`

	// Strategy selects the load-balancing strategy
	Strategy BalancingStrategy `json:"strategy" yaml:"strategy"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/tidelake",
		Inference: InferenceConfig{
			SampleSize:          1000,
			ConfidenceThreshold: 0.7,
			NullThreshold:       0.1,
			PatternThreshold:    0.8,
		},
		Partition: PartitionConfig{
			TargetPartitionSize:   100_000,
			MaxPartitions:         1000,
			MaxPartitionSizeBytes: 128 * 1024 * 1024,
			PruningEnabled:        true,
		},
		Optimizer: OptimizerConfig{
			CacheTTL: 10 * time.Minute,
		},
		Executor: ExecutorConfig{
			MaxParallelism:     8,
			WorkerConcurrency:  4,
			QueueCapacity:      1024,
			TickInterval:       100 * time.Millisecond,
			HealthInterval:     5 * time.Second,
			HeartbeatStaleness: 30 * time.Second,
			BatchTimeout:       5 * time.Minute,
			LoadIncrement:      10,
			Strategy:           BalanceAdaptive,
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}
}

// Load builds the configuration: defaults, then an optional config file,
// then .env and environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	_ = godotenv.Load()
	LoadFromEnv(cfg)
	cfg.Resolve()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("config: unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TIDELAKE_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TIDELAKE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Inference configuration
	if v := os.Getenv("TIDELAKE_INFERENCE_SAMPLE_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Inference.SampleSize)
	}
	if v := os.Getenv("TIDELAKE_INFERENCE_CONFIDENCE_THRESHOLD"); v != "" {
		fmt.Sscanf(v, "%f", &cfg.Inference.ConfidenceThreshold)
	}

	// Partition configuration
	if v := os.Getenv("TIDELAKE_PARTITION_TARGET_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Partition.TargetPartitionSize)
	}
	if v := os.Getenv("TIDELAKE_PARTITION_MAX_PARTITIONS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Partition.MaxPartitions)
	}
	if v := os.Getenv("TIDELAKE_PARTITION_PRUNING"); v != "" {
		cfg.Partition.PruningEnabled = v == "true" || v == "1"
	}

	// Optimizer configuration
	if v := os.Getenv("TIDELAKE_OPTIMIZER_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Optimizer.CacheTTL = d
		}
	}

	// Executor configuration
	if v := os.Getenv("TIDELAKE_EXECUTOR_MAX_PARALLELISM"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Executor.MaxParallelism)
	}
	if v := os.Getenv("TIDELAKE_EXECUTOR_STRATEGY"); v != "" {
		cfg.Executor.Strategy = BalancingStrategy(v)
	}
	if v := os.Getenv("TIDELAKE_EXECUTOR_BATCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Executor.BatchTimeout = d
		}
	}

	// Storage configuration
	if v := os.Getenv("TIDELAKE_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("TIDELAKE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("TIDELAKE_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("TIDELAKE_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("TIDELAKE_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/tidelake"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
}

// Validate validates the configuration. All failures are configuration
// errors; the first one found is returned.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.NewConfigurationError("data_dir is required")
	}

	if c.Inference.SampleSize <= 0 {
		return errors.NewConfigurationError(fmt.Sprintf("inference.sample_size must be positive, got %d", c.Inference.SampleSize))
	}
	if c.Inference.ConfidenceThreshold <= 0 || c.Inference.ConfidenceThreshold > 1 {
		return errors.NewConfigurationError(fmt.Sprintf("inference.confidence_threshold must be in (0,1], got %g", c.Inference.ConfidenceThreshold))
	}
	if c.Inference.NullThreshold < 0 || c.Inference.NullThreshold > 1 {
		return errors.NewConfigurationError(fmt.Sprintf("inference.null_threshold must be in [0,1], got %g", c.Inference.NullThreshold))
	}
	if c.Inference.PatternThreshold <= 0 || c.Inference.PatternThreshold > 1 {
		return errors.NewConfigurationError(fmt.Sprintf("inference.pattern_threshold must be in (0,1], got %g", c.Inference.PatternThreshold))
	}

	if c.Partition.TargetPartitionSize <= 0 {
		return errors.NewConfigurationError(fmt.Sprintf("partition.target_partition_size must be positive, got %d", c.Partition.TargetPartitionSize))
	}
	if c.Partition.MaxPartitions <= 0 {
		return errors.NewConfigurationError(fmt.Sprintf("partition.max_partitions must be positive, got %d", c.Partition.MaxPartitions))
	}

	if c.Optimizer.CacheTTL <= 0 {
		return errors.NewConfigurationError(fmt.Sprintf("optimizer.cache_ttl must be positive, got %s", c.Optimizer.CacheTTL))
	}

	if c.Executor.MaxParallelism <= 0 {
		return errors.NewConfigurationError(fmt.Sprintf("executor.max_parallelism must be positive, got %d", c.Executor.MaxParallelism))
	}
	if c.Executor.WorkerConcurrency <= 0 {
		return errors.NewConfigurationError(fmt.Sprintf("executor.worker_concurrency must be positive, got %d", c.Executor.WorkerConcurrency))
	}
	if c.Executor.TickInterval <= 0 {
		return errors.NewConfigurationError(fmt.Sprintf("executor.tick_interval must be positive, got %s", c.Executor.TickInterval))
	}
	if c.Executor.BatchTimeout <= 0 {
		return errors.NewConfigurationError(fmt.Sprintf("executor.batch_timeout must be positive, got %s", c.Executor.BatchTimeout))
	}
	if c.Executor.LoadIncrement <= 0 || c.Executor.LoadIncrement > 100 {
		return errors.NewConfigurationError(fmt.Sprintf("executor.load_increment must be in (0,100], got %g", c.Executor.LoadIncrement))
	}
	switch c.Executor.Strategy {
	case BalanceRoundRobin, BalanceLeastConnections, BalanceResourceBased, BalanceAdaptive:
	default:
		return errors.NewConfigurationError(fmt.Sprintf("invalid executor.strategy: %s", c.Executor.Strategy))
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return errors.NewConfigurationError(fmt.Sprintf("invalid storage type: %s (must be local or s3)", c.Storage.Type))
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return errors.NewConfigurationError("s3.bucket is required when storage type is s3")
	}

	return nil
}
