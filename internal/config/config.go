package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Model     ModelConfig     `mapstructure:"model"`
	Vision    VisionConfig    `mapstructure:"vision"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

type ServerConfig struct {
	Port          int             `mapstructure:"port" validate:"min=1,max=65535"`
	Mode          string          `mapstructure:"mode" validate:"oneof=debug release test"`
	MaxUploadMB   int             `mapstructure:"max_upload_mb" validate:"min=1"`
	WarmupOnStart bool            `mapstructure:"warmup_on_start"`
	CORS          CORSConfig      `mapstructure:"cors"`
	RateLimit     RateLimitConfig `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// RateLimitConfig bounds how often the upload endpoint may run inference.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=0"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

type StorageConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Type         string `mapstructure:"type" validate:"omitempty,oneof=r2 s3 s3compatible"`
	Endpoint     string `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	Bucket       string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	Region       string `mapstructure:"region"`
	PublicURL    string `mapstructure:"public_url"`
	UploadPrefix string `mapstructure:"upload_prefix"`
}

type VisionConfig struct {
	CascadePath  string  `mapstructure:"cascade_path" validate:"required"`
	ScaleFactor  float64 `mapstructure:"scale_factor" validate:"gt=1"`
	MinNeighbors int     `mapstructure:"min_neighbors" validate:"min=1"`
	MinSize      int     `mapstructure:"min_size" validate:"min=1"`
	ShiftFactor  float64 `mapstructure:"shift_factor" validate:"gt=0,lt=1"`
	IoUThreshold float64 `mapstructure:"iou_threshold" validate:"gt=0,lt=1"`
	Padding      float64 `mapstructure:"padding" validate:"gte=0,lt=1"`
}

type CatalogConfig struct {
	// Path is a local CSV file; ObjectKey, when set, reads the CSV from storage instead.
	Path      string `mapstructure:"path" validate:"required_without=ObjectKey"`
	ObjectKey string `mapstructure:"object_key"`
}

type RecommendConfig struct {
	Size        int    `mapstructure:"size" validate:"min=1"`
	MinUnplayed int    `mapstructure:"min_unplayed" validate:"min=0"`
	LinkBase    string `mapstructure:"link_base" validate:"required,url"`
}

type CacheConfig struct {
	Backend     string        `mapstructure:"backend" validate:"oneof=memory badger"`
	BadgerPath  string        `mapstructure:"badger_path" validate:"required_if=Backend badger"`
	ArtifactTTL time.Duration `mapstructure:"artifact_ttl" validate:"gt=0"`
	ResultTTL   time.Duration `mapstructure:"result_ttl" validate:"gt=0"`
	MoodBucket  time.Duration `mapstructure:"mood_bucket" validate:"gt=0"`
	Shards      int           `mapstructure:"shards" validate:"min=1"`
}

var validate = validator.New()

// Validate checks struct constraints and model settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.Model.Validate()
}

// Load reads configuration from file, .env and environment.
// Parameters:
//   - configPath: explicit config file; empty searches ./configs and the working directory.
//
// Returns:
//   - *Config: loaded and validated configuration.
//   - error: non-nil if the file is unreadable or a value is invalid.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("model.base_url", "MODEL_SERVER_URL")
	v.BindEnv("catalog.path", "CATALOG_PATH")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Model.ResolveEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("server.warmup_on_start", true)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.requests_per_second", 5.0)
	v.SetDefault("server.rate_limit.burst", 10)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/moodtune.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.bucket", "moodtune")
	v.SetDefault("storage.upload_prefix", "uploads/")

	v.SetDefault("model.provider", "tfserving")
	v.SetDefault("model.base_url", "http://localhost:8501")
	v.SetDefault("model.name", "face_emotion")
	v.SetDefault("model.timeout", 30*time.Second)
	v.SetDefault("model.input_size", 48)
	v.SetDefault("model.confidence_threshold", 0.6)
	v.SetDefault("model.breaker.failure_threshold", 5)
	v.SetDefault("model.breaker.open_timeout", 30*time.Second)

	v.SetDefault("vision.cascade_path", "./resource/facefinder")
	v.SetDefault("vision.scale_factor", 1.1)
	v.SetDefault("vision.min_neighbors", 5)
	v.SetDefault("vision.min_size", 48)
	v.SetDefault("vision.shift_factor", 0.1)
	v.SetDefault("vision.iou_threshold", 0.2)
	v.SetDefault("vision.padding", 0.1)

	v.SetDefault("catalog.path", "./resource/ClassifiedMusic.csv")

	v.SetDefault("recommend.size", 5)
	v.SetDefault("recommend.min_unplayed", 5)
	v.SetDefault("recommend.link_base", "https://open.spotify.com")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.badger_path", "./data/cache")
	v.SetDefault("cache.artifact_ttl", time.Hour)
	v.SetDefault("cache.result_ttl", time.Hour)
	v.SetDefault("cache.mood_bucket", time.Hour)
	v.SetDefault("cache.shards", 32)
}
