package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "apitaxi"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "APITAXI_DB_DSN"
	EnvDBHost = "APITAXI_DB_HOST"
	EnvDBUser = "APITAXI_DB_USER"
	EnvDBName = "APITAXI_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Geotaxi      GeotaxiConfig
	Dispatch     DispatchConfig
	Hails        HailConfig
	Customers    CustomerConfig
	Zones        ZoneConfig
	TaskQueue    TaskQueueConfig
	Cron         CronConfig
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
	Env          string `envconfig:"APITAXI_APP_ENV" required:"true"`
	Port         string `envconfig:"APITAXI_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"APITAXI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"APITAXI_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"APITAXI_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"APITAXI_DB_DSN"`
	Driver string `envconfig:"APITAXI_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"APITAXI_DB_HOST"`
	LegacyPort     int    `envconfig:"APITAXI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"APITAXI_DB_USER"`
	LegacyPassword string `envconfig:"APITAXI_DB_PASSWORD"`
	LegacyName     string `envconfig:"APITAXI_DB_NAME"`
	LegacySSLMode  string `envconfig:"APITAXI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"APITAXI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"APITAXI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"APITAXI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"APITAXI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"APITAXI_REDIS_URL" required:"true"`
	Address      string        `envconfig:"APITAXI_REDIS_ADDR"`
	Password     string        `envconfig:"APITAXI_REDIS_PASSWORD"`
	DB           int           `envconfig:"APITAXI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"APITAXI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"APITAXI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"APITAXI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"APITAXI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"APITAXI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"APITAXI_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"APITAXI_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"APITAXI_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"APITAXI_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"APITAXI_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	HailDeliveryTopic        string `envconfig:"APITAXI_PUBSUB_HAIL_DELIVERY_TOPIC" required:"true"`
	HailDeliverySubscription string `envconfig:"APITAXI_PUBSUB_HAIL_DELIVERY_SUBSCRIPTION" required:"true"`
	DomainEventsTopic        string `envconfig:"APITAXI_PUBSUB_DOMAIN_EVENTS_TOPIC" required:"true"`
	DomainEventsSubscription string `envconfig:"APITAXI_PUBSUB_DOMAIN_EVENTS_SUBSCRIPTION"`
}

// GeotaxiConfig tunes the real-time position store.
type GeotaxiConfig struct {
	FreshnessWindow  time.Duration `envconfig:"APITAXI_GEOTAXI_FRESHNESS_WINDOW" default:"2m"`
	MaxBatchSize     int           `envconfig:"APITAXI_GEOTAXI_MAX_BATCH_SIZE" default:"50"`
	CleanupRetention time.Duration `envconfig:"APITAXI_GEOTAXI_CLEANUP_RETENTION" default:"2m"`
	BlurAfter        time.Duration `envconfig:"APITAXI_GEOTAXI_BLUR_AFTER" default:"1440h"`
}

type DispatchConfig struct {
	SearchRadiusMeters float64 `envconfig:"APITAXI_DISPATCH_SEARCH_RADIUS_METERS" default:"500"`
	DefaultCount       int     `envconfig:"APITAXI_DISPATCH_DEFAULT_COUNT" default:"10"`
	MaxCount           int     `envconfig:"APITAXI_DISPATCH_MAX_COUNT" default:"50"`
}

type HailConfig struct {
	OperatorHTTPTimeout      time.Duration `envconfig:"APITAXI_HAIL_OPERATOR_HTTP_TIMEOUT" default:"10s"`
	DeliveryStaleAfter       time.Duration `envconfig:"APITAXI_HAIL_DELIVERY_STALE_AFTER" default:"10s"`
	ReceivedByOperatorExpiry time.Duration `envconfig:"APITAXI_HAIL_RECEIVED_BY_OPERATOR_EXPIRY" default:"10s"`
	ReceivedByTaxiExpiry     time.Duration `envconfig:"APITAXI_HAIL_RECEIVED_BY_TAXI_EXPIRY" default:"30s"`
	AcceptedByTaxiExpiry     time.Duration `envconfig:"APITAXI_HAIL_ACCEPTED_BY_TAXI_EXPIRY" default:"1m"`
	AcceptedByCustomerExpiry time.Duration `envconfig:"APITAXI_HAIL_ACCEPTED_BY_CUSTOMER_EXPIRY" default:"30m"`
	CustomerOnBoardExpiry    time.Duration `envconfig:"APITAXI_HAIL_CUSTOMER_ON_BOARD_EXPIRY" default:"2h"`
	ListPageSize             int           `envconfig:"APITAXI_HAIL_LIST_PAGE_SIZE" default:"30"`
	ListHorizon              time.Duration `envconfig:"APITAXI_HAIL_LIST_HORIZON" default:"1440h"`
	BlurAfter                time.Duration `envconfig:"APITAXI_HAIL_BLUR_AFTER" default:"1440h"`
	ArchiveAfter             time.Duration `envconfig:"APITAXI_HAIL_ARCHIVE_AFTER" default:"8760h"`
}

type CustomerConfig struct {
	SessionReuseWindow time.Duration `envconfig:"APITAXI_CUSTOMER_SESSION_REUSE_WINDOW" default:"5m"`
	BanBaseDuration    time.Duration `envconfig:"APITAXI_CUSTOMER_BAN_BASE_DURATION" default:"24h"`
}

type ZoneConfig struct {
	ReloadInterval time.Duration `envconfig:"APITAXI_ZONES_RELOAD_INTERVAL" default:"1h"`
}

type TaskQueueConfig struct {
	Key          string        `envconfig:"APITAXI_TASKQUEUE_KEY" default:"hail_timeouts"`
	PollInterval time.Duration `envconfig:"APITAXI_TASKQUEUE_POLL_INTERVAL" default:"1s"`
	ClaimBatch   int           `envconfig:"APITAXI_TASKQUEUE_CLAIM_BATCH" default:"20"`
}

type CronConfig struct {
	GeoindexCleanupInterval time.Duration `envconfig:"APITAXI_CRON_GEOINDEX_CLEANUP_INTERVAL" default:"1m"`
	LocationBlurInterval    time.Duration `envconfig:"APITAXI_CRON_LOCATION_BLUR_INTERVAL" default:"1h"`
	GeotaxiBlurInterval     time.Duration `envconfig:"APITAXI_CRON_GEOTAXI_BLUR_INTERVAL" default:"1h"`
	HailBlurInterval        time.Duration `envconfig:"APITAXI_CRON_HAIL_BLUR_INTERVAL" default:"1h"`
	HailArchiveInterval     time.Duration `envconfig:"APITAXI_CRON_HAIL_ARCHIVE_INTERVAL" default:"24h"`
	OrphanTaxisInterval     time.Duration `envconfig:"APITAXI_CRON_ORPHAN_TAXIS_INTERVAL" default:"24h"`
	LockTTL                 time.Duration `envconfig:"APITAXI_CRON_LOCK_TTL" default:"5m"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"APITAXI_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"APITAXI_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"APITAXI_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
