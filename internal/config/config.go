package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server      ServerConfig
	Worker      WorkerConfig
	Acquisition AcquisitionConfig
	Cooldown    CooldownConfig
	Clip        ClipConfig
	Cache       CacheConfig
	Redis       RedisConfig
	Database    DatabaseConfig
	MinIO       MinIOConfig
	RabbitMQ    RabbitMQConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
	DownloadURLTTL  time.Duration `envconfig:"API_DOWNLOAD_URL_TTL" default:"1h"`
	RateLimit       int           `envconfig:"API_RATE_LIMIT" default:"30"`
	RateWindow      time.Duration `envconfig:"API_RATE_WINDOW" default:"1m"`
}

type WorkerConfig struct {
	TempDir         string        `envconfig:"WORKER_TEMP_DIR" default:"/tmp/clipstream"`
	MaxRetries      int           `envconfig:"WORKER_MAX_RETRIES" default:"3"`
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"60s"`
}

// AcquisitionConfig drives the yt-dlp strategy chain.
type AcquisitionConfig struct {
	BinaryPath        string        `envconfig:"YTDLP_PATH" default:"yt-dlp"`
	BaseURL           string        `envconfig:"YTDLP_BASE_URL" default:"https://www.youtube.com"`
	Strategies        []string      `envconfig:"ACQUISITION_STRATEGIES"`
	ExtraRules        []string      `envconfig:"ACQUISITION_EXTRA_RULES"`
	AttemptTimeout    time.Duration `envconfig:"ACQUISITION_ATTEMPT_TIMEOUT" default:"3m"`
	InterAttemptDelay time.Duration `envconfig:"ACQUISITION_INTER_ATTEMPT_DELAY" default:"2s"`
	SocketTimeout     time.Duration `envconfig:"ACQUISITION_SOCKET_TIMEOUT" default:"30s"`
	KillGrace         time.Duration `envconfig:"ACQUISITION_KILL_GRACE" default:"2s"`
}

type CooldownConfig struct {
	Threshold         int           `envconfig:"COOLDOWN_THRESHOLD" default:"3"`
	Window            time.Duration `envconfig:"COOLDOWN_WINDOW" default:"5m"`
	BaseDelay         time.Duration `envconfig:"COOLDOWN_BASE_DELAY" default:"15s"`
	MaxDelay          time.Duration `envconfig:"COOLDOWN_MAX_DELAY" default:"5m"`
	MinSpacing        time.Duration `envconfig:"COOLDOWN_MIN_SPACING" default:"5s"`
	RecentBlockWindow time.Duration `envconfig:"COOLDOWN_RECENT_BLOCK_WINDOW" default:"60s"`
}

// ClipConfig covers window selection and transcoding.
type ClipConfig struct {
	WindowCount    int           `envconfig:"CLIP_WINDOW_COUNT" default:"3"`
	MinGap         float64       `envconfig:"CLIP_MIN_GAP_SECONDS" default:"30"`
	Parallelism    int           `envconfig:"CLIP_PARALLELISM" default:"2"`
	MinOutputBytes int64         `envconfig:"CLIP_MIN_OUTPUT_BYTES" default:"10240"`
	Timeout        time.Duration `envconfig:"CLIP_TIMEOUT" default:"5m"`
	WatermarkText  string        `envconfig:"CLIP_WATERMARK_TEXT" default:"clipstream"`
	FFmpegPath     string        `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	VideoPreset    string        `envconfig:"FFMPEG_PRESET" default:"veryfast"`
}

// CacheConfig sets the session cache backend and one bucket width per operation.
type CacheConfig struct {
	Backend         string        `envconfig:"CACHE_BACKEND" default:"redis"`
	MetadataWindow  time.Duration `envconfig:"CACHE_METADATA_WINDOW" default:"10m"`
	MediaWindow     time.Duration `envconfig:"CACHE_MEDIA_WINDOW" default:"30m"`
	HighlightWindow time.Duration `envconfig:"CACHE_HIGHLIGHT_WINDOW" default:"1h"`
	ComputeTimeout  time.Duration `envconfig:"CACHE_COMPUTE_TIMEOUT" default:"30m"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"clipstream"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"clipstream"`
	DBName   string `envconfig:"POSTGRES_DB" default:"clipstream"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type MinIOConfig struct {
	Endpoint       string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	PublicEndpoint string `envconfig:"MINIO_PUBLIC_ENDPOINT" default:""`
	AccessKey      string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey      string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket         string `envconfig:"MINIO_BUCKET" default:"clips"`
	UseSSL         bool   `envconfig:"MINIO_USE_SSL" default:"false"`
	CreateBucket   bool   `envconfig:"MINIO_CREATE_BUCKET" default:"false"`
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"clipstream"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"clipstream"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("CACHE_BACKEND must be redis or memory, got %q", c.Cache.Backend)
	}
	if c.Clip.WindowCount < 1 {
		return fmt.Errorf("CLIP_WINDOW_COUNT must be positive, got %d", c.Clip.WindowCount)
	}
	for name, d := range map[string]time.Duration{
		"CACHE_METADATA_WINDOW":  c.Cache.MetadataWindow,
		"CACHE_MEDIA_WINDOW":     c.Cache.MediaWindow,
		"CACHE_HIGHLIGHT_WINDOW": c.Cache.HighlightWindow,
	} {
		if d < time.Second {
			return fmt.Errorf("%s must be at least 1s, got %s", name, d)
		}
	}
	return nil
}
