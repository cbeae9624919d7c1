package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "BAZAARLY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Orders       OrdersConfig
	Razorpay     RazorpayConfig
	Shiprocket   ShiprocketConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BAZAARLY_APP_ENV" required:"true"`
	Port         string `envconfig:"BAZAARLY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BAZAARLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAZAARLY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BAZAARLY_DB_DSN"`
	Driver string `envconfig:"BAZAARLY_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BAZAARLY_DB_HOST"`
	Port     int    `envconfig:"BAZAARLY_DB_PORT" default:"5432"`
	User     string `envconfig:"BAZAARLY_DB_USER"`
	Password string `envconfig:"BAZAARLY_DB_PASSWORD"`
	Name     string `envconfig:"BAZAARLY_DB_NAME"`
	SSLMode  string `envconfig:"BAZAARLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAZAARLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAZAARLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAZAARLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAZAARLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAZAARLY_REDIS_URL"`
	Address      string        `envconfig:"BAZAARLY_REDIS_ADDR"`
	Password     string        `envconfig:"BAZAARLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAZAARLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAZAARLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAZAARLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAZAARLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAZAARLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAZAARLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BAZAARLY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BAZAARLY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BAZAARLY_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BAZAARLY_AUTO_MIGRATE" default:"false"`
}

type OrdersConfig struct {
	NumberPrefix    string `envconfig:"BAZAARLY_ORDER_NUMBER_PREFIX" default:"ORD"`
	DeliveryEtaDays int    `envconfig:"BAZAARLY_ORDER_DELIVERY_ETA_DAYS" default:"7"`
}

type RazorpayConfig struct {
	KeyID     string        `envconfig:"BAZAARLY_RAZORPAY_KEY_ID"`
	KeySecret string        `envconfig:"BAZAARLY_RAZORPAY_KEY_SECRET"`
	BaseURL   string        `envconfig:"BAZAARLY_RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	Timeout   time.Duration `envconfig:"BAZAARLY_RAZORPAY_TIMEOUT" default:"15s"`
}

type ShiprocketConfig struct {
	Email            string        `envconfig:"BAZAARLY_SHIPROCKET_EMAIL"`
	Password         string        `envconfig:"BAZAARLY_SHIPROCKET_PASSWORD"`
	BaseURL          string        `envconfig:"BAZAARLY_SHIPROCKET_BASE_URL" default:"https://apiv2.shiprocket.in/v1/external"`
	Timeout          time.Duration `envconfig:"BAZAARLY_SHIPROCKET_TIMEOUT" default:"20s"`
	TokenTTL         time.Duration `envconfig:"BAZAARLY_SHIPROCKET_TOKEN_TTL" default:"216h"`
	MaxRetries       int           `envconfig:"BAZAARLY_SHIPROCKET_MAX_RETRIES" default:"3"`
	FallbackPincode  string        `envconfig:"BAZAARLY_SHIPROCKET_FALLBACK_PINCODE" default:"110001"`
	ChannelID        string        `envconfig:"BAZAARLY_SHIPROCKET_CHANNEL_ID"`
	DefaultWeightKg  float64       `envconfig:"BAZAARLY_SHIPROCKET_DEFAULT_WEIGHT_KG" default:"0.5"`
	DefaultDimension int           `envconfig:"BAZAARLY_SHIPROCKET_DEFAULT_DIMENSION_CM" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for env, value := range map[string]string{
		"BAZAARLY_DB_HOST": db.Host,
		"BAZAARLY_DB_USER": db.User,
		"BAZAARLY_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either BAZAARLY_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
