package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppPort string `mapstructure:"APP_PORT"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     int    `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBScheme   string `mapstructure:"DB_SCHEME"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	AuthJWTSecret string        `mapstructure:"AUTH_JWT_SECRET"`
	AuthIssuer    string        `mapstructure:"AUTH_ISSUER"`
	AuthTokenTTL  time.Duration `mapstructure:"AUTH_TOKEN_TTL"`

	// --- S3 (avatars) ---
	S3Endpoint  string `mapstructure:"S3_ENDPOINT"`
	S3Region    string `mapstructure:"S3_REGION"`
	S3Bucket    string `mapstructure:"S3_BUCKET"`
	S3AccessKey string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey string `mapstructure:"S3_SECRET_KEY"`
	S3UseSSL    bool   `mapstructure:"S3_USE_SSL"`
	S3PathStyle bool   `mapstructure:"S3_PATH_STYLE"`

	// --- cache / counters / realtime tuning ---
	CacheUserTTL      int           `mapstructure:"CACHE_USER_TTL"`      // seconds
	CacheBlocksTTL    int           `mapstructure:"CACHE_BLOCKS_TTL"`    // seconds
	CacheSettingsTTL  int           `mapstructure:"CACHE_SETTINGS_TTL"`  // seconds
	CacheTrendingTTL  int           `mapstructure:"CACHE_TRENDING_TTL"`  // seconds
	CacheNegativeTTL  int           `mapstructure:"CACHE_NEGATIVE_TTL"`  // seconds
	ViewFlushInterval time.Duration `mapstructure:"VIEW_FLUSH_INTERVAL"` // view-count buffer flush period
	ViewFlushMax      int           `mapstructure:"VIEW_FLUSH_MAX"`      // flush early past this many buffered deltas
	RealtimeQueueCap  int           `mapstructure:"REALTIME_QUEUE_CAP"`
	HeartbeatInterval time.Duration `mapstructure:"HEARTBEAT_INTERVAL"`
	ResyncInterval    time.Duration `mapstructure:"RESYNC_INTERVAL"`

	RatePostsPerMin int `mapstructure:"RATE_POSTS_PER_MIN"`
	RateLikesPerMin int `mapstructure:"RATE_LIKES_PER_MIN"`
}

// String implements Stringer; secrets are masked.
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  AppPort: %s\n", c.AppPort))
	sb.WriteString(fmt.Sprintf("  DBHost: %s\n", c.DBHost))
	sb.WriteString(fmt.Sprintf("  DBPort: %d\n", c.DBPort))
	sb.WriteString(fmt.Sprintf("  DBUser: %s\n", c.DBUser))
	sb.WriteString(fmt.Sprintf("  DBName: %s\n", c.DBName))
	sb.WriteString(fmt.Sprintf("  DBScheme: %s\n", c.DBScheme))
	if c.DBPassword != "" {
		sb.WriteString("  DBPassword: ********\n")
	} else {
		sb.WriteString("  DBPassword: (empty)\n")
	}
	sb.WriteString(fmt.Sprintf("  RedisAddr: %s\n", c.RedisAddr))
	sb.WriteString(fmt.Sprintf("  RedisDB: %d\n", c.RedisDB))
	if c.RedisPassword != "" {
		sb.WriteString("  RedisPassword: ********\n")
	}
	if c.AuthJWTSecret != "" {
		sb.WriteString("  AuthJWTSecret: ********\n")
	}
	sb.WriteString(fmt.Sprintf("  AuthIssuer: %s\n", c.AuthIssuer))
	sb.WriteString(fmt.Sprintf("  AuthTokenTTL: %s\n", c.AuthTokenTTL))
	sb.WriteString(fmt.Sprintf("  S3Endpoint: %s\n", c.S3Endpoint))
	sb.WriteString(fmt.Sprintf("  S3Bucket: %s\n", c.S3Bucket))
	sb.WriteString(fmt.Sprintf("  RealtimeQueueCap: %d\n", c.RealtimeQueueCap))
	sb.WriteString(fmt.Sprintf("  HeartbeatInterval: %s\n", c.HeartbeatInterval))
	sb.WriteString(fmt.Sprintf("  ResyncInterval: %s\n", c.ResyncInterval))
	return sb.String()
}

// LoadFromEnv reads configuration from environment variables; a local .env is
// honored for development.
func LoadFromEnv() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, errors.New("failed to load .env")
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	keys := []string{
		"APP_ENV", "APP_PORT",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SCHEME",
		"REDIS_ADDR", "REDIS_DB", "REDIS_PASSWORD",
		"AUTH_JWT_SECRET", "AUTH_ISSUER", "AUTH_TOKEN_TTL",
		"S3_ENDPOINT", "S3_REGION", "S3_BUCKET", "S3_ACCESS_KEY", "S3_SECRET_KEY",
		"S3_USE_SSL", "S3_PATH_STYLE",
		"CACHE_USER_TTL", "CACHE_BLOCKS_TTL", "CACHE_SETTINGS_TTL",
		"CACHE_TRENDING_TTL", "CACHE_NEGATIVE_TTL",
		"VIEW_FLUSH_INTERVAL", "VIEW_FLUSH_MAX",
		"REALTIME_QUEUE_CAP", "HEARTBEAT_INTERVAL", "RESYNC_INTERVAL",
		"RATE_POSTS_PER_MIN", "RATE_LIKES_PER_MIN",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AppPort == "" {
		c.AppPort = ":8080"
	}
	if c.DBScheme == "" {
		c.DBScheme = "public"
	}
	if c.AuthIssuer == "" {
		c.AuthIssuer = "astrbook"
	}
	if c.AuthTokenTTL == 0 {
		c.AuthTokenTTL = 7 * 24 * time.Hour
	}
	if c.CacheUserTTL == 0 {
		c.CacheUserTTL = 60
	}
	if c.CacheBlocksTTL == 0 {
		c.CacheBlocksTTL = 60
	}
	if c.CacheSettingsTTL == 0 {
		c.CacheSettingsTTL = 300
	}
	if c.CacheTrendingTTL == 0 {
		c.CacheTrendingTTL = 120
	}
	if c.CacheNegativeTTL == 0 {
		c.CacheNegativeTTL = 15
	}
	if c.ViewFlushInterval == 0 {
		c.ViewFlushInterval = 10 * time.Second
	}
	if c.ViewFlushMax == 0 {
		c.ViewFlushMax = 1000
	}
	if c.RealtimeQueueCap == 0 {
		c.RealtimeQueueCap = 100
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ResyncInterval == 0 {
		c.ResyncInterval = 10 * time.Minute
	}
	if c.RatePostsPerMin == 0 {
		c.RatePostsPerMin = 20
	}
	if c.RateLikesPerMin == 0 {
		c.RateLikesPerMin = 30
	}
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
	)
}
