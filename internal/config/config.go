package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel   string           `json:"log_level" yaml:"log_level"`
	LogFormat  string           `json:"log_format" yaml:"log_format"`
	Model      ModelConfig      `json:"model" yaml:"model"`
	Training   TrainingConfig   `json:"training" yaml:"training"`
	API        APIConfig        `json:"api" yaml:"api"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Ingest     IngestConfig     `json:"ingest" yaml:"ingest"`
	Publish    PublishConfig    `json:"publish" yaml:"publish"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	History    HistoryConfig    `json:"history" yaml:"history"`
	Engine     EngineConfig     `json:"engine" yaml:"engine"`
}

type ModelConfig struct {
	Storage          string        `json:"storage" yaml:"storage"`
	Path             string        `json:"path" yaml:"path"`
	S3               S3Config      `json:"s3" yaml:"s3"`
	Normalization    string        `json:"normalization" yaml:"normalization"`
	InferenceTimeout time.Duration `json:"inference_timeout" yaml:"inference_timeout"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	Key       string `json:"key" yaml:"key"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	Secure    bool   `json:"secure" yaml:"secure"`
}

type TrainingConfig struct {
	Dataset        string `json:"dataset" yaml:"dataset"`
	Trees          int    `json:"trees" yaml:"trees"`
	Seed           uint64 `json:"seed" yaml:"seed"`
	MaxDepth       int    `json:"max_depth" yaml:"max_depth"`
	MinSamplesLeaf int    `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	MaxFeatures    int    `json:"max_features" yaml:"max_features"`
	Workers        int    `json:"workers" yaml:"workers"`
}

type APIConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Addr        string   `json:"addr" yaml:"addr"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`
}

type SimulationConfig struct {
	Seed     uint64        `json:"seed" yaml:"seed"`
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Interval time.Duration `json:"interval" yaml:"interval"`
}

type IngestConfig struct {
	ChannelBuffer int             `json:"channel_buffer" yaml:"channel_buffer"`
	Kafka         KafkaConfig     `json:"kafka" yaml:"kafka"`
	TCPStream     TCPStreamConfig `json:"tcp_stream" yaml:"tcp_stream"`
	FileTail      FileTailConfig  `json:"file_tail" yaml:"file_tail"`
}

type TCPStreamConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type FileTailConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	Files      []string `json:"files" yaml:"files"`
	StartAtEnd bool     `json:"start_at_end" yaml:"start_at_end"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type PublishConfig struct {
	Kafka KafkaConfig `json:"kafka" yaml:"kafka"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type EngineConfig struct {
	DedupeWindow  time.Duration `json:"dedupe_window" yaml:"dedupe_window"`
	AlertCooldown time.Duration `json:"alert_cooldown" yaml:"alert_cooldown"`
}

type HistoryConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Model: ModelConfig{
			Storage:       "file",
			Path:          "rockfall_model.json.zst",
			Normalization: "legacy",
		},
		Training: TrainingConfig{
			Dataset:        "rockfall_training_data.csv",
			Trees:          100,
			Seed:           42,
			MinSamplesLeaf: 1,
			Workers:        4,
		},
		API:        APIConfig{Enabled: true, Addr: ":5000", CORSOrigins: []string{"*"}},
		Simulation: SimulationConfig{Interval: 5 * time.Second},
		Ingest: IngestConfig{
			ChannelBuffer: 1000,
			TCPStream:     TCPStreamConfig{Addr: ":5514"},
			FileTail:      FileTailConfig{StartAtEnd: true},
		},
		Publish: PublishConfig{},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:rockguard.db?_pragma=busy_timeout(5000)"},
		History: HistoryConfig{StoreLimit: 500},
		Engine:  EngineConfig{DedupeWindow: 2 * time.Second, AlertCooldown: time.Minute},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault returns the defaults when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := DefaultConfig()
		return cfg, Validate(cfg)
	}
	return Load(ResolvePath(path))
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.Model.Storage == "" {
		cfg.Model.Storage = "file"
	}
	if cfg.Model.Normalization == "" {
		cfg.Model.Normalization = "legacy"
	}
	if cfg.Training.Trees <= 0 {
		cfg.Training.Trees = 100
	}
	if cfg.Training.MinSamplesLeaf <= 0 {
		cfg.Training.MinSamplesLeaf = 1
	}
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 1000
	}
	if cfg.History.StoreLimit <= 0 {
		cfg.History.StoreLimit = 500
	}
	if cfg.Simulation.Interval <= 0 {
		cfg.Simulation.Interval = 5 * time.Second
	}
}

func Validate(cfg *Config) error {
	switch strings.ToLower(cfg.Model.Storage) {
	case "file":
		if cfg.Model.Path == "" {
			return errors.New("model.path required when model.storage is file")
		}
	case "s3":
		if cfg.Model.S3.Endpoint == "" || cfg.Model.S3.Bucket == "" || cfg.Model.S3.Key == "" {
			return errors.New("model.s3 requires endpoint, bucket, key")
		}
	default:
		return fmt.Errorf("model.storage must be file or s3, got %q", cfg.Model.Storage)
	}
	switch strings.ToLower(cfg.Model.Normalization) {
	case "legacy", "clamp":
	default:
		return fmt.Errorf("model.normalization must be legacy or clamp, got %q", cfg.Model.Normalization)
	}
	if cfg.Model.InferenceTimeout < 0 {
		return errors.New("model.inference_timeout must be >= 0")
	}
	if cfg.Training.MaxDepth < 0 || cfg.Training.MaxFeatures < 0 {
		return errors.New("training.max_depth and training.max_features must be >= 0")
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Ingest.TCPStream.Enabled && cfg.Ingest.TCPStream.Addr == "" {
		return errors.New("ingest.tcp_stream.addr required when enabled")
	}
	if cfg.Ingest.FileTail.Enabled && len(cfg.Ingest.FileTail.Files) == 0 {
		return errors.New("ingest.file_tail.files required when enabled")
	}
	if cfg.Simulation.Enabled && cfg.Simulation.Interval <= 0 {
		return errors.New("simulation.interval must be > 0 when simulation is enabled")
	}
	if cfg.Publish.Kafka.Enabled {
		if len(cfg.Publish.Kafka.Brokers) == 0 || cfg.Publish.Kafka.Topic == "" {
			return errors.New("publish.kafka requires brokers, topic")
		}
	}
	if cfg.Engine.DedupeWindow < 0 || cfg.Engine.AlertCooldown < 0 {
		return errors.New("engine.dedupe_window and engine.alert_cooldown must be >= 0")
	}
	if cfg.Storage.Enabled && cfg.Storage.Driver == "" {
		return errors.New("storage.driver required when storage.enabled is true")
	}
	return nil
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
