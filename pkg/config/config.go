package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every engine environment variable.
const EnvPrefix = "furniq"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names used by tests and the cmd harness.
const (
	EnvAppEnv          = "FURNIQ_APP_ENV"
	EnvCompanyID       = "FURNIQ_COMPANY_ID"
	EnvSnapshotDir     = "FURNIQ_SNAPSHOT_DIR"
	EnvSnapshotFlush   = "FURNIQ_SNAPSHOT_FLUSH_INTERVAL"
	EnvDispatcherQueue = "FURNIQ_DISPATCHER_QUEUE_SIZE"
)

type Config struct {
	App        AppConfig
	Company    CompanyConfig
	Snapshot   SnapshotConfig
	Dispatcher DispatcherConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FURNIQ_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"FURNIQ_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FURNIQ_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CompanyConfig fixes the active company for the standalone harness.
// Multi-tenant hosts supply their own resolver and ignore these.
type CompanyConfig struct {
	ID   string `envconfig:"FURNIQ_COMPANY_ID" required:"true"`
	Name string `envconfig:"FURNIQ_COMPANY_NAME" default:"Default Company"`
}

type SnapshotConfig struct {
	Dir           string        `envconfig:"FURNIQ_SNAPSHOT_DIR" default:"./data"`
	FlushInterval time.Duration `envconfig:"FURNIQ_SNAPSHOT_FLUSH_INTERVAL" default:"30s"`
}

type DispatcherConfig struct {
	QueueSize   int           `envconfig:"FURNIQ_DISPATCHER_QUEUE_SIZE" default:"256"`
	MaxAttempts int           `envconfig:"FURNIQ_DISPATCHER_MAX_ATTEMPTS" default:"10"`
	BaseBackoff time.Duration `envconfig:"FURNIQ_DISPATCHER_BASE_BACKOFF" default:"250ms"`
	MaxBackoff  time.Duration `envconfig:"FURNIQ_DISPATCHER_MAX_BACKOFF" default:"10s"`
}
