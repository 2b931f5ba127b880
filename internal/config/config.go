package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	BackendMongo  = "mongo"
	BackendHybrid = "hybrid"
)

type Config struct {
	App     AppConfig     `yaml:"app"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Mongo   MongoConfig   `yaml:"mongo"`
	Hybrid  HybridConfig  `yaml:"hybrid"`
	Tracing TracingConfig `yaml:"tracing"`
}

type AppConfig struct {
	Name string `yaml:"name" env:"APP_NAME" env-default:"bestcity-api"`
	Env  string `yaml:"env" env:"APP_ENV" env-default:"development"`
}

// Production reports whether the process runs with production defaults
// (plain console output).
func (a AppConfig) Production() bool {
	return strings.EqualFold(a.Env, "production")
}

type HTTPConfig struct {
	Port            string        `yaml:"port" env:"PORT" env-default:"4000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-default:"*"`
}

type LogConfig struct {
	Level       string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Dir         string `yaml:"dir" env:"LOG_DIR" env-default:"logs"`
	DisableFile bool   `yaml:"disable_file" env:"DISABLE_FILE_LOGGING" env-default:"false"`
	MaxSizeMB   int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB" env-default:"20"`
	MaxAgeDays  int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" env-default:"14"`
}

type StoreConfig struct {
	Backend string `yaml:"backend" env:"STORE_BACKEND" env-default:"mongo"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"bestcity"`
}

type HybridConfig struct {
	RedisAddr  string        `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	BadgerPath string        `yaml:"badger_path" env:"BADGER_PATH" env-default:"./badger-data"`
	GCInterval time.Duration `yaml:"gc_interval" env:"BADGER_GC_INTERVAL" env-default:"5m"`
}

type TracingConfig struct {
	Endpoint string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure bool   `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`
}

// Load reads configuration from the environment. When path is non-empty the
// YAML file is read first and environment variables override it.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	switch cfg.Store.Backend {
	case BackendMongo, BackendHybrid:
	default:
		return Config{}, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMongo, BackendHybrid, cfg.Store.Backend)
	}
	if cfg.HTTP.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	return cfg, nil
}
