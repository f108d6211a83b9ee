// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the store, identity tokens, the event bus,
// marketplace policy, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-filemarket-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects and locates the persistent store.
type DBConfig struct {
	Driver       string        // DB_DRIVER: sqlite|postgres
	Path         string        // DB_PATH (sqlite)
	URL          string        // DATABASE_URL (postgres)
	StoreTimeout time.Duration // STORE_TIMEOUT, bound on a single operation's store work
}

// AuthConfig defines identity token settings.
type AuthConfig struct {
	JWTSecret string        // JWT_SECRET (HS256)
	Issuer    string        // JWT_ISSUER
	TokenTTL  time.Duration // JWT_TTL
}

// RedisConfig locates the shared token revocation list. Empty Addr keeps the
// list in process memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig locates the lifecycle event bus. No brokers means events are
// written to the log instead.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// MarketConfig holds marketplace policy.
type MarketConfig struct {
	PaymentMethods []string // PAYMENT_METHODS
	InvoiceTaxBPS  int64    // INVOICE_TAX_BPS, basis points in [0,10000]
}

// ServerConfig tunes the HTTP listener.
type ServerConfig struct {
	Port              string // PORT, without the colon
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // GIN_MODE; anything unknown becomes release
}

// Addr is the listen address for http.Server.
func (s ServerConfig) Addr() string { return ":" + s.Port }

func (s ServerConfig) validate() error {
	var errs []error
	if strings.TrimSpace(s.Port) == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	for name, d := range map[string]time.Duration{
		"READ_TIMEOUT":        s.ReadTimeout,
		"READ_HEADER_TIMEOUT": s.ReadHeaderTimeout,
		"WRITE_TIMEOUT":       s.WriteTimeout,
		"IDLE_TIMEOUT":        s.IdleTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", name))
		}
	}
	if s.MaxHeaderBytes <= 0 {
		errs = append(errs, errors.New("MAX_HEADER_BYTES must be > 0"))
	}
	return errors.Join(errs...)
}

// Config is the full process configuration.
type Config struct {
	Server ServerConfig

	LogLevel       string // LOG_LEVEL, lower-cased; "warning" is read as warn
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string // always starts with '/', never ends with one unless root

	DB     DBConfig
	Auth   AuthConfig
	Redis  RedisConfig
	Kafka  KafkaConfig
	Market MarketConfig

	// Per-caller token bucket. RateRPS 0 turns limiting off.
	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	// How long a download Idempotency-Key keeps replaying the first result.
	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// MustLoad is Load for binaries: any problem is fatal.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, applies defaults and normalization, and returns
// every problem it found (unparseable values and failed checks) joined.
func Load() (Config, error) {
	e := &env{}
	cfg := Config{
		Server: ServerConfig{
			Port:              e.str("PORT", "8080"),
			ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
			ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
			WriteTimeout:      e.dur("WRITE_TIMEOUT", 20*time.Second),
			IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
			MaxHeaderBytes:    e.num("MAX_HEADER_BYTES", 1<<20),
			GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),
		},

		LogLevel:       strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.flag("LOG_PRETTY", false),
		SwaggerEnabled: e.flag("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		DB: DBConfig{
			Driver:       strings.ToLower(e.str("DB_DRIVER", "sqlite")),
			Path:         e.str("DB_PATH", "app.db"),
			URL:          e.str("DATABASE_URL", ""),
			StoreTimeout: e.dur("STORE_TIMEOUT", 3*time.Second),
		},

		Auth: AuthConfig{
			JWTSecret: e.str("JWT_SECRET", ""),
			Issuer:    e.str("JWT_ISSUER", "go-filemarket-backend"),
			TokenTTL:  e.dur("JWT_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     e.str("REDIS_ADDR", ""),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.num("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(e.str("KAFKA_BROKERS", "")),
			Topic:   e.str("KAFKA_TOPIC", "filemarket.events"),
		},

		Market: MarketConfig{
			PaymentMethods: splitCSV(e.str("PAYMENT_METHODS", "esewa,khalti,imepay")),
			InvoiceTaxBPS:  int64(e.num("INVOICE_TAX_BPS", 0)),
		},

		RateRPS:   e.real("RATE_RPS", 5.0),
		RateBurst: e.num("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(e.str("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: e.flag("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     e.flag("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.flag("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "go-filemarket-backend"),
			SampleRatio: e.real("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	if m := cfg.Server.GinMode; m != "debug" && m != "test" {
		cfg.Server.GinMode = "release"
	}

	return cfg, errors.Join(append(e.errs, cfg.validate())...)
}

// validate returns all problems found, joined with errors.Join.
func (c Config) validate() error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"))
	}
	check(c.RateRPS < 0, "RATE_RPS must be >= 0")
	check(c.RateBurst < 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	errs = append(errs, c.Server.validate(), c.DB.validate(), c.Auth.validate(), c.Kafka.validate(), c.Market.validate())
	return errors.Join(errs...)
}

func (d DBConfig) validate() error {
	var err error
	switch d.Driver {
	case "sqlite":
		if strings.TrimSpace(d.Path) == "" {
			err = errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(d.URL) == "" {
			err = errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		err = errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if d.StoreTimeout <= 0 {
		err = errors.Join(err, errors.New("STORE_TIMEOUT must be > 0"))
	}
	return err
}

func (a AuthConfig) validate() error {
	var errs []error
	if strings.TrimSpace(a.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if a.TokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be > 0"))
	}
	return errors.Join(errs...)
}

func (k KafkaConfig) validate() error {
	if len(k.Brokers) > 0 && strings.TrimSpace(k.Topic) == "" {
		return errors.New("KAFKA_TOPIC must not be empty when KAFKA_BROKERS is set")
	}
	return nil
}

func (m MarketConfig) validate() error {
	var errs []error
	if len(m.PaymentMethods) == 0 {
		errs = append(errs, errors.New("PAYMENT_METHODS must list at least one method"))
	}
	if m.InvoiceTaxBPS < 0 || m.InvoiceTaxBPS > 10000 {
		errs = append(errs, errors.New("INVOICE_TAX_BPS must be in [0,10000]"))
	}
	return errors.Join(errs...)
}

// env reads typed variables and keeps a note of every value that failed to
// parse, so a typo fails Load instead of silently using the default.
type env struct {
	errs []error
}

func (e *env) str(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func (e *env) num(k string, def int) int { return lookup(e, k, def, strconv.Atoi) }

func (e *env) real(k string, def float64) float64 {
	return lookup(e, k, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func (e *env) dur(k string, def time.Duration) time.Duration {
	return lookup(e, k, def, time.ParseDuration)
}

func (e *env) flag(k string, def bool) bool { return lookup(e, k, def, parseBool) }

func lookup[T any](e *env, k string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(k)
	v := strings.TrimSpace(raw)
	if !ok || v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: cannot parse %q", k, raw))
		return def
	}
	return out
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, errors.New("not a boolean")
}

// splitCSV returns the non-blank, trimmed items of a comma separated list.
func splitCSV(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// normalizeBasePath turns "api/v1/" into "/api/v1". Blank means root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
