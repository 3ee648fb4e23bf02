package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           int   `yaml:"port"`
		MaxUploadBytes int64 `yaml:"maxUploadBytes"` // request body limit, not file size
		RateLimit      struct {
			Capacity   int `yaml:"capacity"`
			RefillRate int `yaml:"refillRate"`
		} `yaml:"rateLimit"`
		CORSOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // postgres | mysql | sqlite
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
		Path     string `yaml:"path"` // sqlite only
		Migrate  bool   `yaml:"migrate"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		QueueKey string `yaml:"queueKey"`
	} `yaml:"redis"`

	Minio struct {
		Endpoint        string `yaml:"endpoint"`
		AccessKey       string `yaml:"accessKey"`
		SecretKey       string `yaml:"secretKey"`
		RawBucket       string `yaml:"rawBucket"`
		ProcessedBucket string `yaml:"processedBucket"`
		Region          string `yaml:"region"`
		UseSSL          bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	ClickHouse struct {
		Addr     string `yaml:"addr"`
		Database string `yaml:"database"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Table    string `yaml:"table"`
	} `yaml:"clickhouse"`

	OpenAI struct {
		APIKey             string `yaml:"apiKey"`
		BaseURL            string `yaml:"baseURL"`
		TranscriptionModel string `yaml:"transcriptionModel"`
		ChatModel          string `yaml:"chatModel"`
	} `yaml:"openai"`

	Pipeline struct {
		PollInterval   time.Duration `yaml:"pollInterval"`
		ErrorPause     time.Duration `yaml:"errorPause"`
		UploadAttempts int           `yaml:"uploadAttempts"`
		UploadBackoff  time.Duration `yaml:"uploadBackoff"`
		Transform      string        `yaml:"transform"` // passthrough | separate
		Separator      struct {
			Image  string `yaml:"image"`
			Stems  string `yaml:"stems"`
			Binary string `yaml:"binary"`
		} `yaml:"separator"`
		Analyze struct {
			Enabled  bool   `yaml:"enabled"`
			Artifact string `yaml:"artifact"`
		} `yaml:"analyze"`
		Derive struct {
			Enabled          bool   `yaml:"enabled"`
			Classifier       string `yaml:"classifier"` // keyword | openai
			SummarySentences int    `yaml:"summarySentences"`
		} `yaml:"derive"`
	} `yaml:"pipeline"`

	Sync struct {
		Interval  time.Duration `yaml:"interval"`
		Window    time.Duration `yaml:"window"`
		BatchSize int           `yaml:"batchSize"`
		LockFile  string        `yaml:"lockFile"`
	} `yaml:"sync"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text | json | auto
	} `yaml:"log"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	// Auth maps owner -> API key. Empty disables auth on the HTTP API.
	Auth struct {
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`
}

// Load baca file config.yaml, lalu isi default dan override dari env
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML bytes and applies defaults and env overrides.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 512 << 20
	}
	if c.Server.RateLimit.Capacity == 0 {
		c.Server.RateLimit.Capacity = 20
	}
	if c.Server.RateLimit.RefillRate == 0 {
		c.Server.RateLimit.RefillRate = 2
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Path == "" {
		c.Database.Path = "ingest.db"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.QueueKey == "" {
		c.Redis.QueueKey = "file_queue"
	}
	if c.Minio.RawBucket == "" {
		c.Minio.RawBucket = "raw-bucket"
	}
	if c.Minio.ProcessedBucket == "" {
		c.Minio.ProcessedBucket = "processed-bucket"
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "default"
	}
	if c.ClickHouse.User == "" {
		c.ClickHouse.User = "default"
	}
	if c.ClickHouse.Table == "" {
		c.ClickHouse.Table = "file_stats"
	}
	if c.OpenAI.TranscriptionModel == "" {
		c.OpenAI.TranscriptionModel = "whisper-1"
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if c.Pipeline.PollInterval == 0 {
		c.Pipeline.PollInterval = time.Second
	}
	if c.Pipeline.ErrorPause == 0 {
		c.Pipeline.ErrorPause = c.Pipeline.PollInterval
	}
	if c.Pipeline.UploadAttempts == 0 {
		c.Pipeline.UploadAttempts = 3
	}
	if c.Pipeline.UploadBackoff == 0 {
		c.Pipeline.UploadBackoff = 2 * time.Second
	}
	if c.Pipeline.Transform == "" {
		c.Pipeline.Transform = "passthrough"
	}
	if c.Pipeline.Separator.Image == "" {
		c.Pipeline.Separator.Image = "deezer/spleeter:3.8-5stems"
	}
	if c.Pipeline.Separator.Stems == "" {
		c.Pipeline.Separator.Stems = "spleeter:2stems"
	}
	if c.Pipeline.Separator.Binary == "" {
		c.Pipeline.Separator.Binary = "docker"
	}
	if c.Pipeline.Derive.Classifier == "" {
		c.Pipeline.Derive.Classifier = "keyword"
	}
	if c.Pipeline.Derive.SummarySentences == 0 {
		c.Pipeline.Derive.SummarySentences = 2
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 10 * time.Second
	}
	if c.Sync.Window == 0 {
		c.Sync.Window = time.Hour
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = 1000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "auto"
	}
}

// secrets boleh datang dari env supaya tidak perlu ditulis di file
func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Database.Password, "DATABASE_PASSWORD")
	override(&c.Redis.Password, "REDIS_PASSWORD")
	override(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	override(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	override(&c.ClickHouse.Password, "CLICKHOUSE_PASSWORD")
	override(&c.OpenAI.APIKey, "OPENAI_API_KEY")
}

// Validate checks values that would otherwise fail deep inside a loop.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported value %q", c.Database.Driver))
	}
	switch c.Pipeline.Transform {
	case "passthrough", "separate":
	default:
		errs = append(errs, fmt.Errorf("pipeline.transform: unsupported value %q", c.Pipeline.Transform))
	}
	switch c.Pipeline.Separator.Stems {
	case "spleeter:2stems", "spleeter:4stems", "spleeter:5stems":
	default:
		errs = append(errs, fmt.Errorf("pipeline.separator.stems: unsupported value %q", c.Pipeline.Separator.Stems))
	}
	switch c.Pipeline.Derive.Classifier {
	case "keyword", "openai":
	default:
		errs = append(errs, fmt.Errorf("pipeline.derive.classifier: unsupported value %q", c.Pipeline.Derive.Classifier))
	}
	if c.Pipeline.PollInterval < 0 || c.Pipeline.ErrorPause < 0 || c.Pipeline.UploadBackoff < 0 {
		errs = append(errs, errors.New("pipeline: intervals must be positive"))
	}
	if c.Pipeline.UploadAttempts < 1 {
		errs = append(errs, errors.New("pipeline.uploadAttempts must be at least 1"))
	}
	if c.Sync.Interval < 0 || c.Sync.Window < 0 {
		errs = append(errs, errors.New("sync: interval and window must be positive"))
	}
	if c.Sync.BatchSize < 1 {
		errs = append(errs, errors.New("sync.batchSize must be at least 1"))
	}
	if c.Minio.RawBucket == c.Minio.ProcessedBucket {
		errs = append(errs, errors.New("minio: raw and processed buckets must differ"))
	}
	needsOpenAI := c.Pipeline.Analyze.Enabled || (c.Pipeline.Derive.Enabled && c.Pipeline.Derive.Classifier == "openai")
	if needsOpenAI && c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("openai.apiKey is required when analysis or the openai classifier is enabled"))
	}
	return errors.Join(errs...)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC&multiStatements=true&clientFoundRows=true",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection URL.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	switch c.Database.Driver {
	case "mysql":
		return c.MySQLDSN()
	case "sqlite":
		return c.Database.Path
	default:
		return c.PostgresDSN()
	}
}

// LogLevel maps the configured level name to slog.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
