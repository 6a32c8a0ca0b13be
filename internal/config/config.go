package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/soaringjerry/Canvass/internal/utils"
)

type DatabaseConfig struct {
	Driver        string
	DSN           string
	MigrationsDir string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config is the server configuration, read from CANVASS_* environment variables.
type Config struct {
	Addr        string
	Database    DatabaseConfig
	Redis       RedisConfig
	SummaryTTL  time.Duration
	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins []string
	Log         struct {
		Level  string
		Format string
	}
	Commit    string
	BuildTime string
}

const devJWTSecret = "canvass-dev-secret"

// Load reads envFiles (missing files are skipped; real environment variables win) and then
// builds the Config from the environment.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	cfg.Addr = utils.SafeEnv("CANVASS_ADDR", ":8080")
	cfg.Database.Driver = utils.SafeEnv("CANVASS_DB_DRIVER", "sqlite3")
	cfg.Database.DSN = utils.SafeEnv("CANVASS_DB_DSN", "data/canvass.db")
	cfg.Database.MigrationsDir = utils.SafeEnv("CANVASS_MIGRATIONS_DIR", "")
	cfg.Redis.Addr = utils.SafeEnv("CANVASS_REDIS_ADDR", "")
	cfg.Redis.Password = utils.SafeEnv("CANVASS_REDIS_PASSWORD", "")
	cfg.Redis.DB = utils.EnvInt("CANVASS_REDIS_DB", 0)
	cfg.SummaryTTL = utils.EnvDuration("CANVASS_SUMMARY_TTL", 5*time.Minute)
	cfg.JWTSecret = utils.SafeEnv("CANVASS_JWT_SECRET", "")
	cfg.TokenTTL = utils.EnvDuration("CANVASS_TOKEN_TTL", 30*24*time.Hour)
	cfg.CORSOrigins = utils.EnvList("CANVASS_CORS_ORIGINS", []string{"*"})
	cfg.Log.Level = utils.SafeEnv("CANVASS_LOG_LEVEL", "info")
	cfg.Log.Format = utils.SafeEnv("CANVASS_LOG_FORMAT", "json")
	cfg.Commit = utils.SafeEnv("CANVASS_COMMIT", "")
	cfg.BuildTime = utils.SafeEnv("CANVASS_BUILD_TIME", "")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("CANVASS_DB_DRIVER must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("CANVASS_DB_DSN is required")
	}
	return nil
}

// Secret returns the JWT signing secret and whether it is the built-in development value.
func (c *Config) Secret() ([]byte, bool) {
	if c.JWTSecret == "" {
		return []byte(devJWTSecret), true
	}
	return []byte(c.JWTSecret), false
}
