package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"golang.org/x/crypto/bcrypt"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr            string
		ShutdownTimeout time.Duration
	}
	Log struct {
		Level  string
		Format string
	}
	Database struct {
		Driver       string
		Path         string
		DSN          string
		MaxOpenConns int
	}
	Auth struct {
		JWTSecret       string
		AccessTokenTTL  time.Duration
		RefreshTokenTTL time.Duration
		BcryptCost      int
	}
	Reset struct {
		TTL           time.Duration
		SweepInterval time.Duration
	}
	Storage struct {
		Bucket        string
		KeyPrefix     string
		Region        string
		Endpoint      string
		PublicBaseURL string
	}
	AWS struct {
		Profile string
	}
}

// FlagBindings maps config keys to command line flag names.
var FlagBindings = map[string]string{
	"server.addr": "addr",
}

// Load reads configuration from environment variables, an optional .env file
// and an optional config file. An explicit path must exist; without one a
// config.{yaml,json,toml} in the working directory is used when present.
// Flags present in flags override every other source.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("IDENTITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if flags != nil {
		for key, name := range FlagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.shutdowntimeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/identity.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.maxopenconns", 10)
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.accesstokenttl", "24h")
	v.SetDefault("auth.refreshtokenttl", "168h")
	v.SetDefault("auth.bcryptcost", bcrypt.DefaultCost)
	v.SetDefault("reset.ttl", "1h")
	v.SetDefault("reset.sweepinterval", "10m")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "avatars")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.publicbaseurl", "")
	v.SetDefault("aws.profile", "")
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Auth.JWTSecret = strings.TrimSpace(c.Auth.JWTSecret)
	c.Storage.KeyPrefix = strings.Trim(c.Storage.KeyPrefix, "/")
	c.Storage.PublicBaseURL = strings.TrimRight(c.Storage.PublicBaseURL, "/")
}

// Validate reports the first setting that cannot start the service.
func (c Config) Validate() error {
	switch {
	case c.Auth.JWTSecret == "":
		return errors.New("auth jwt secret is required")
	case c.Auth.AccessTokenTTL <= 0:
		return errors.New("auth access token ttl must be positive")
	case c.Auth.RefreshTokenTTL <= 0:
		return errors.New("auth refresh token ttl must be positive")
	case c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost:
		return fmt.Errorf("auth bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	case c.Reset.TTL <= 0:
		return errors.New("reset ttl must be positive")
	case c.Reset.SweepInterval <= 0:
		return errors.New("reset sweep interval must be positive")
	case c.Server.ShutdownTimeout <= 0:
		return errors.New("server shutdown timeout must be positive")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	return nil
}

// loadDotEnv exports variables from path without overriding the environment.
func loadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
