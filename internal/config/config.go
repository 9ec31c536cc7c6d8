// Package config loads liftsync settings from flags, LIFTSYNC_* environment
// variables, and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys shared by flags, env vars, and the config file.
const (
	KeyDB             = "db"
	KeyUser           = "user"
	KeyServerURL      = "server.url"
	KeyServerToken    = "server.token"
	KeyOffline        = "offline"
	KeySyncInterval   = "sync.interval"
	KeyRequestTimeout = "request.timeout"
	KeyRequestRate    = "request.rate"
	KeyRequestBurst   = "request.burst"
	KeyCacheTTL       = "cache.ttl"
	KeyCacheSweep     = "cache.sweep_chance"
	KeyCacheBackend   = "cache.backend"
	KeyCacheRedisAddr = "cache.redis_addr"
	KeyServeAddr      = "serve.addr"
)

// EnvPrefix prefixes every environment variable, e.g. LIFTSYNC_SERVER_URL.
const EnvPrefix = "LIFTSYNC"

// Config is the resolved configuration.
type Config struct {
	DB      string
	User    string
	Offline bool
	Server  ServerConfig
	Sync    SyncConfig
	Request RequestConfig
	Cache   CacheConfig
	Serve   ServeConfig
}

type ServerConfig struct {
	URL   string
	Token string
}

type SyncConfig struct {
	Interval time.Duration
}

type RequestConfig struct {
	Timeout time.Duration
	Rate    float64
	Burst   int
}

type CacheConfig struct {
	TTL         time.Duration
	SweepChance float64
	// Backend is "sqlite" or "redis".
	Backend   string
	RedisAddr string
}

type ServeConfig struct {
	Addr string
}

// New returns a viper instance with defaults and env binding applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers the default for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDB, "liftsync.db")
	v.SetDefault(KeyUser, "")
	v.SetDefault(KeyServerURL, "http://localhost:8080")
	v.SetDefault(KeyServerToken, "")
	v.SetDefault(KeyOffline, false)
	v.SetDefault(KeySyncInterval, "5m")
	v.SetDefault(KeyRequestTimeout, "10s")
	v.SetDefault(KeyRequestRate, 10.0)
	v.SetDefault(KeyRequestBurst, 5)
	v.SetDefault(KeyCacheTTL, "5m")
	v.SetDefault(KeyCacheSweep, 0.05)
	v.SetDefault(KeyCacheBackend, "sqlite")
	v.SetDefault(KeyCacheRedisAddr, "localhost:6379")
	v.SetDefault(KeyServeAddr, "127.0.0.1:7070")
}

// ReadFile reads path, or $HOME/.liftsync.yaml when path is empty.
// A missing default file is not an error; a missing explicit file is.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		v.AddConfigPath(home)
		v.SetConfigName(".liftsync")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load resolves and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	c := Config{
		DB:      v.GetString(KeyDB),
		User:    v.GetString(KeyUser),
		Offline: v.GetBool(KeyOffline),
		Server: ServerConfig{
			URL:   v.GetString(KeyServerURL),
			Token: v.GetString(KeyServerToken),
		},
		Sync: SyncConfig{Interval: v.GetDuration(KeySyncInterval)},
		Request: RequestConfig{
			Timeout: v.GetDuration(KeyRequestTimeout),
			Rate:    v.GetFloat64(KeyRequestRate),
			Burst:   v.GetInt(KeyRequestBurst),
		},
		Cache: CacheConfig{
			TTL:         v.GetDuration(KeyCacheTTL),
			SweepChance: v.GetFloat64(KeyCacheSweep),
			Backend:     strings.ToLower(v.GetString(KeyCacheBackend)),
			RedisAddr:   v.GetString(KeyCacheRedisAddr),
		},
		Serve: ServeConfig{Addr: v.GetString(KeyServeAddr)},
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if !strings.HasPrefix(c.Server.URL, "http://") && !strings.HasPrefix(c.Server.URL, "https://") {
		errs = append(errs, fmt.Errorf("server.url %q must be http or https", c.Server.URL))
	}
	if c.Request.Timeout <= 0 {
		errs = append(errs, errors.New("request.timeout must be positive"))
	}
	if c.Sync.Interval <= 0 {
		errs = append(errs, errors.New("sync.interval must be positive"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Cache.SweepChance < 0 || c.Cache.SweepChance > 1 {
		errs = append(errs, fmt.Errorf("cache.sweep_chance %v must be within [0, 1]", c.Cache.SweepChance))
	}
	switch c.Cache.Backend {
	case "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q must be sqlite or redis", c.Cache.Backend))
	}
	return errors.Join(errs...)
}
