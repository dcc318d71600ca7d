package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Lockout   LockoutSettings   `mapstructure:"lockout"`
	Reset     ResetSettings     `mapstructure:"reset"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// JWTSettings holds token lifetimes. AccessTokenTTL is an auditable policy
// value: the environment profile only changes the default, never the meaning.
type JWTSettings struct {
	KeyDirectory    string        `mapstructure:"key_directory"`
	SigningKID      string        `mapstructure:"signing_kid"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// LockoutSettings configures the failed-login lockout guard.
type LockoutSettings struct {
	Threshold int           `mapstructure:"threshold"`
	Duration  time.Duration `mapstructure:"duration"`
}

// Reset store backends.
const (
	ResetStoreMemory   = "memory"
	ResetStorePostgres = "postgres"
)

// ResetSettings configures the two-phase password reset flow. Store selects
// the backing repository: "memory" is the bounded single-node cache,
// "postgres" persists reset state across restarts and instances.
type ResetSettings struct {
	Store         string        `mapstructure:"store"`
	CodeTTL       time.Duration `mapstructure:"code_ttl"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	CacheCapacity int           `mapstructure:"cache_capacity"`
	RequestLimit  int           `mapstructure:"request_limit"`
	RequestWindow time.Duration `mapstructure:"request_window"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

const envProduction = "production"

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTHCORE")

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.key_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"jwt.key_directory",
		"jwt.signing_kid",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"lockout.threshold",
		"lockout.duration",
		"reset.store",
		"reset.code_ttl",
		"reset.token_ttl",
		"reset.cache_capacity",
		"reset.request_limit",
		"reset.request_window",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	// The environment decides the default access-token lifetime, so it has
	// to be resolved before the remaining defaults are registered.
	env := v.GetString("app.env")
	if env == "" {
		env = "development"
	}
	setDefaults(v, env)

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("app.name", "auth-core")
	v.SetDefault("app.env", env)
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "auth")
	v.SetDefault("postgres.password", "auth_password")
	v.SetDefault("postgres.database", "auth")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "authcore")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "auth")

	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.signing_kid", "v1")
	if env == envProduction {
		v.SetDefault("jwt.access_token_ttl", "5m")
	} else {
		v.SetDefault("jwt.access_token_ttl", "15m")
	}
	v.SetDefault("jwt.refresh_token_ttl", "720h")

	v.SetDefault("lockout.threshold", 5)
	v.SetDefault("lockout.duration", "15m")

	v.SetDefault("reset.store", ResetStoreMemory)
	v.SetDefault("reset.code_ttl", "15m")
	v.SetDefault("reset.token_ttl", "10m")
	v.SetDefault("reset.cache_capacity", 1000)
	v.SetDefault("reset.request_limit", 3)
	v.SetDefault("reset.request_window", "1h")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "auth-core")
	v.SetDefault("telemetry.sampling_rate", 1.0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AUTHCORE_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
