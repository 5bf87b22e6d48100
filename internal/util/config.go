package util

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

//nolint:gochecknoglobals // here its ok
var (
	once sync.Once
	vp   *viper.Viper
)

// env loads .env once and returns the shared viper instance bound to the process environment.
func env() *viper.Viper {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
		vp = viper.New()
		vp.AutomaticEnv()
	})
	return vp
}

const (
	defaultServerAddr      = "localhost:8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	DefaultAccessSecret  = "dev-access-secret"
	DefaultRefreshSecret = "dev-refresh-secret"
	defaultAccessTTL     = "15m"
	defaultRefreshTTL    = "7d"

	defaultSweepInterval = time.Hour
	defaultLogLevel      = "info"

	productionEnv = "production"
)

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
}

func NewServerConfig() *ServerConfig {
	addr := env().GetString("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
	}
}

// TokenConfig keeps the raw token settings exactly as configured.
// Nothing is validated here: secrets and TTL specs are checked on first use.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     string
	RefreshTTL    string
	Production    bool
}

func NewTokenConfig() *TokenConfig {
	v := env()
	return &TokenConfig{
		AccessSecret:  stringOrDefault(v, "JWT_ACCESS_SECRET", DefaultAccessSecret),
		RefreshSecret: stringOrDefault(v, "JWT_REFRESH_SECRET", DefaultRefreshSecret),
		AccessTTL:     stringOrDefault(v, "JWT_ACCESS_EXPIRE", defaultAccessTTL),
		RefreshTTL:    stringOrDefault(v, "JWT_REFRESH_EXPIRE", defaultRefreshTTL),
		Production:    IsProduction(),
	}
}

// IsProduction reports whether APP_ENV selects production mode.
func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(env().GetString("APP_ENV")), productionEnv)
}

type SweepConfig struct {
	Interval time.Duration
}

func NewSweepConfig() *SweepConfig {
	return &SweepConfig{Interval: parseDurationOrDefault("SESSION_SWEEP_INTERVAL", defaultSweepInterval)}
}

func GetWebhookURL() string {
	return env().GetString("WEBHOOK_URL")
}

func GetAPIKey() string {
	return strings.TrimSpace(env().GetString("AUTH_SERVICE_API_KEY"))
}

func GetLogLevel() string {
	return stringOrDefault(env(), "LOG_LEVEL", defaultLogLevel)
}

func stringOrDefault(v *viper.Viper, key, def string) string {
	if s := v.GetString(key); s != "" {
		return s
	}
	return def
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(env().GetString(varName)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}
