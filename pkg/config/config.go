package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Payment      PaymentConfig
	Registry     RegistryConfig
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
	if err := cfg.Registry.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LICENSECORE_APP_ENV" required:"true"`
	Port         string `envconfig:"LICENSECORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LICENSECORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LICENSECORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LICENSECORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LICENSECORE_DB_DSN"`
	Driver string `envconfig:"LICENSECORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LICENSECORE_DB_HOST"`
	LegacyPort     int    `envconfig:"LICENSECORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LICENSECORE_DB_USER"`
	LegacyPassword string `envconfig:"LICENSECORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"LICENSECORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"LICENSECORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LICENSECORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LICENSECORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LICENSECORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LICENSECORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LICENSECORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LICENSECORE_REDIS_ADDR"`
	Password     string        `envconfig:"LICENSECORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"LICENSECORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LICENSECORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LICENSECORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LICENSECORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LICENSECORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LICENSECORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LICENSECORE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LICENSECORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LICENSECORE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the access token TTL configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// PaymentConfig points at the external fungible-token ledger that settles
// purchases. EngineAccount is the service account holding accumulated
// balance; buyers pre-approve it for the exact purchase cost.
type PaymentConfig struct {
	BaseURL       string        `envconfig:"LICENSECORE_PAYMENT_BASE_URL" required:"true"`
	APIKey        string        `envconfig:"LICENSECORE_PAYMENT_API_KEY"`
	EngineAccount string        `envconfig:"LICENSECORE_PAYMENT_ENGINE_ACCOUNT" required:"true"`
	Timeout       time.Duration `envconfig:"LICENSECORE_PAYMENT_TIMEOUT" default:"10s"`
}

// EngineAccountID parses the configured engine account.
func (p PaymentConfig) EngineAccountID() (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(p.EngineAccount))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing payment engine account: %w", err)
	}
	return id, nil
}

// RegistryConfig seeds the administrative wiring on first boot. Subsequent
// changes go through the guarded admin setters, never through env edits.
type RegistryConfig struct {
	OwnerAccount    string `envconfig:"LICENSECORE_REGISTRY_OWNER_ACCOUNT" required:"true"`
	MetadataBaseURI string `envconfig:"LICENSECORE_REGISTRY_METADATA_BASE_URI"`
}

func (r RegistryConfig) validate() error {
	if _, err := uuid.Parse(strings.TrimSpace(r.OwnerAccount)); err != nil {
		return fmt.Errorf("parsing registry owner account: %w", err)
	}
	return nil
}

// OwnerAccountID parses the configured bootstrap owner account.
func (r RegistryConfig) OwnerAccountID() uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(r.OwnerAccount))
	if err != nil {
		return uuid.Nil
	}
	return id
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LICENSECORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LICENSECORE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LICENSECORE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LICENSECORE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LICENSECORE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	LedgerTopic        string `envconfig:"LICENSECORE_PUBSUB_LEDGER_TOPIC" default:"lc-ledger-events"`
	LedgerSubscription string `envconfig:"LICENSECORE_PUBSUB_LEDGER_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LICENSECORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LICENSECORE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LICENSECORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
