package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Inventory    InventoryConfig
	Coupons      CouponsConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"SHOPCORE_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPCORE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SHOPCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPCORE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SHOPCORE_LOG_FORMAT" default:"json"`

	CORSOrigins []string `envconfig:"SHOPCORE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPCORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPCORE_DB_DSN"`
	Driver string `envconfig:"SHOPCORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPCORE_DB_USER"`
	LegacyPassword string `envconfig:"SHOPCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPCORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPCORE_REDIS_URL"`
	Address      string        `envconfig:"SHOPCORE_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// InventoryConfig holds the reservation knobs shared by the API and the cron worker.
type InventoryConfig struct {
	ReservationTTL time.Duration `envconfig:"SHOPCORE_RESERVATION_TTL" default:"30m"`
	SweepInterval  time.Duration `envconfig:"SHOPCORE_RESERVATION_SWEEP_INTERVAL" default:"15m"`
	SweepBatchSize int           `envconfig:"SHOPCORE_RESERVATION_SWEEP_BATCH_SIZE" default:"500"`
}

type CouponsConfig struct {
	DeactivationEnabled bool `envconfig:"SHOPCORE_COUPON_DEACTIVATION_ENABLED" default:"true"`

	// Throttles coupon code probing per IP and per user.
	ValidateWindow    time.Duration `envconfig:"SHOPCORE_COUPON_VALIDATE_WINDOW" default:"1m"`
	ValidateIPLimit   int           `envconfig:"SHOPCORE_COUPON_VALIDATE_IP_LIMIT" default:"30"`
	ValidateUserLimit int           `envconfig:"SHOPCORE_COUPON_VALIDATE_USER_LIMIT" default:"10"`
}

// CronConfig paces the worker. The reservation sweep runs on every tick
// (Inventory.SweepInterval); the slower jobs run at their own cadence.
type CronConfig struct {
	LockTTL                 time.Duration `envconfig:"SHOPCORE_CRON_LOCK_TTL" default:"14m"`
	CouponDeactivationEvery time.Duration `envconfig:"SHOPCORE_CRON_COUPON_DEACTIVATION_EVERY" default:"1h"`
	OutboxRetentionEvery    time.Duration `envconfig:"SHOPCORE_CRON_OUTBOX_RETENTION_EVERY" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHOPCORE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SHOPCORE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"SHOPCORE_PUBSUB_DOMAIN_TOPIC" default:"shopcore-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SHOPCORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SHOPCORE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SHOPCORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"SHOPCORE_OUTBOX_RETENTION_DAYS" default:"30"`
}

// ReservationTTLOrDefault guards against zero/negative TTLs coming from the environment.
func (i InventoryConfig) ReservationTTLOrDefault() time.Duration {
	if i.ReservationTTL <= 0 {
		return DefaultReservationTTL
	}
	return i.ReservationTTL
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
