package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Ticket       TicketConfig
	Policy       PolicyConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `env:"APP_NAME, default=helpdesk-service"`
	Env                   string `env:"APP_ENV, default=development"`
	Host                  string `env:"APP_HOST, default=0.0.0.0"`
	Port                  string `env:"APP_PORT, default=8080"`
	Version               string `env:"APP_VERSION, default=dev"`
	RequestTimeoutSeconds int    `env:"HTTP_REQUEST_TIMEOUT_SECONDS, default=30"`
}

// PostgresConfig holds DB connection values. An empty DSN runs the service on
// the in-memory store.
type PostgresConfig struct {
	DSN            string `env:"POSTGRES_DSN"`
	MaxConns       int32  `env:"POSTGRES_MAX_CONNS, default=10"`
	MinConns       int32  `env:"POSTGRES_MIN_CONNS, default=2"`
	RunMigrations  bool   `env:"POSTGRES_RUN_MIGRATIONS, default=true"`
	MigrationsDir  string `env:"POSTGRES_MIGRATIONS_DIR, default=migrations"`
	ConnMaxIdleSec int32  `env:"POSTGRES_CONN_MAX_IDLE_SECONDS, default=30"`
	ConnMaxLifeSec int32  `env:"POSTGRES_CONN_MAX_LIFE_SECONDS, default=300"`
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=127.0.0.1:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL, default=info"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string `env:"AUTH_JWT_SECRET, default=dev-secret"`
	AccessTokenTTLMinutes int    `env:"AUTH_ACCESS_TOKEN_TTL_MINUTES, default=60"`
	BcryptCost            int    `env:"AUTH_BCRYPT_COST, default=12"`

	// BootstrapAdminEmail, when set, ensures an admin account exists at startup.
	BootstrapAdminEmail    string `env:"AUTH_BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `env:"AUTH_BOOTSTRAP_ADMIN_PASSWORD"`
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string `env:"NOTIFY_EMAIL_FROM, default=noreply@example.com"`
	WebhookURL string `env:"NOTIFY_WEBHOOK_URL"`
}

// Ticket number allocators.
const (
	AllocatorPostgres = "postgres"
	AllocatorRedis    = "redis"
)

// TicketConfig tunes the ticket lifecycle.
type TicketConfig struct {
	// NumberTimezone fixes the calendar day used in ticket numbers.
	NumberTimezone    string `env:"TICKET_NUMBER_TIMEZONE, default=UTC"`
	NumberAllocator   string `env:"TICKET_NUMBER_ALLOCATOR, default=postgres"`
	AllowReopen       bool   `env:"TICKET_ALLOW_REOPEN, default=true"`
	CreateMaxAttempts int    `env:"TICKET_CREATE_MAX_ATTEMPTS, default=5"`
}

// Policy sources.
const (
	PolicySourceStatic   = "static"
	PolicySourcePostgres = "postgres"
)

// PolicyConfig selects where the role matrix comes from.
type PolicyConfig struct {
	Source              string `env:"POLICY_SOURCE, default=static"`
	InvalidationChannel string `env:"POLICY_INVALIDATION_CHANNEL, default=authz:policy:changed"`
}

// Load reads configuration from the environment (and a .env file when present).
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadWith(context.Background(), nil)
}

// LoadWith processes configuration from lookuper, or the OS environment when nil.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.Ticket.Location(); err != nil {
		return fmt.Errorf("invalid TICKET_NUMBER_TIMEZONE: %w", err)
	}
	switch strings.ToLower(c.Ticket.NumberAllocator) {
	case AllocatorPostgres, AllocatorRedis:
	default:
		return fmt.Errorf("invalid TICKET_NUMBER_ALLOCATOR %q", c.Ticket.NumberAllocator)
	}
	switch strings.ToLower(c.Policy.Source) {
	case PolicySourceStatic, PolicySourcePostgres:
	default:
		return fmt.Errorf("invalid POLICY_SOURCE %q", c.Policy.Source)
	}
	if c.Ticket.CreateMaxAttempts <= 0 {
		c.Ticket.CreateMaxAttempts = 1
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Location resolves NumberTimezone.
func (t TicketConfig) Location() (*time.Location, error) {
	return time.LoadLocation(t.NumberTimezone)
}
