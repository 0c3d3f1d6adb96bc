package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config is the full runtime configuration, built from the environment so
// main stays lean.
type Config struct {
	Environment Environment
	LogLevel    string
	Server      Server
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Providers   ProvidersConfig
	Secrets     SecretsConfig
	Workflow    WorkflowConfig
	Statements  StatementsConfig
	Risk        RiskConfig
	Financial   FinancialConfig
	Biometric   BiometricConfig
}

// Server captures HTTP trigger configuration. WriteTimeout must outlast
// RequestTimeout so synchronous runs can still answer.
type Server struct {
	Addr           string
	RequestTimeout time.Duration
	WriteTimeout   time.Duration
}

// DatabaseConfig selects the durable store. An empty URL means in-memory stores.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the notification channel. No brokers means
// notifications are logged only.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ProvidersConfig holds the gateway call policy and provider endpoints.
type ProvidersConfig struct {
	UseStubs bool
	// StubFallback lets a failing live provider fall back to its stub.
	// Never honoured in production.
	StubFallback    bool
	StubFixtureFile string
	Timeout         time.Duration
	MaxAttempts     int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
	// MaxConcurrent bounds in-flight provider attempts across all processes.
	MaxConcurrent int
	TokenCache    string // memory | redis
	// Endpoints maps provider id to its base URL.
	Endpoints map[string]string
}

type SecretsConfig struct {
	Source    string // env | kms | sealed
	KMSRegion string
	KMSKeyID  string
	SealedKey string
}

type WorkflowConfig struct {
	ProcessTTL time.Duration
	// MaxInFlight caps processes being driven at once, including those
	// waiting between statement polls.
	MaxInFlight  int
	QueueSize    int
	ReapInterval time.Duration
}

// StatementsConfig bounds the asynchronous statement-retrieval poll loop.
type StatementsConfig struct {
	PollInterval time.Duration
	MaxPolls     int
}

type RiskConfig struct {
	ReviewAbove     int
	RejectAtOrAbove int
}

type FinancialConfig struct {
	PremiumIncomeAbove    float64
	LowBalanceBelow       float64
	LargeTransactionAbove float64
	InsightWindow         time.Duration
}

type BiometricConfig struct {
	MinSimilarity     float64
	MinFaceConfidence float64
	MinSharpness      float64
	MinBrightness     float64
	RequireLiveness   bool
}

// Policy defaults. These are product policy values; override per deployment.
const (
	DefaultReviewAbove        = 50
	DefaultRejectAtOrAbove    = 75
	DefaultPremiumIncomeAbove = 150000
)

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Environment: Environment(getString("APP_ENV", string(EnvDevelopment))),
		LogLevel:    getString("LOG_LEVEL", "info"),
		Server: Server{
			Addr:           getString("ONBOARD_ADDR", ":8080"),
			RequestTimeout: getDuration("ONBOARD_REQUEST_TIMEOUT", 90*time.Second),
			WriteTimeout:   getDuration("ONBOARD_WRITE_TIMEOUT", 2*time.Minute),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getList("KAFKA_BROKERS"),
			Topic:   getString("KAFKA_NOTIFY_TOPIC", "onboarding.status"),
		},
		Providers: ProvidersConfig{
			UseStubs:        getBool("USE_STUB_PROVIDERS", false),
			StubFallback:    getBool("PROVIDER_STUB_FALLBACK", false),
			StubFixtureFile: os.Getenv("STUB_FIXTURE_FILE"),
			Timeout:         getDuration("PROVIDER_TIMEOUT", 10*time.Second),
			MaxAttempts:     getInt("PROVIDER_MAX_ATTEMPTS", 3),
			BackoffBase:     getDuration("PROVIDER_BACKOFF_BASE", 200*time.Millisecond),
			BackoffMax:      getDuration("PROVIDER_BACKOFF_MAX", 5*time.Second),
			BreakerFailures: getInt("PROVIDER_BREAKER_FAILURES", 5),
			BreakerCooldown: getDuration("PROVIDER_BREAKER_COOLDOWN", 30*time.Second),
			MaxConcurrent:   getInt("PROVIDER_MAX_CONCURRENT", 16),
			TokenCache:      getString("PROVIDER_TOKEN_CACHE", "memory"),
			Endpoints:       getEndpoints("PROVIDER_ENDPOINTS"),
		},
		Secrets: SecretsConfig{
			Source:    getString("SECRETS_SOURCE", "env"),
			KMSRegion: os.Getenv("SECRETS_KMS_REGION"),
			KMSKeyID:  os.Getenv("SECRETS_KMS_KEY_ID"),
			SealedKey: os.Getenv("SECRETS_SEALED_KEY"),
		},
		Workflow: WorkflowConfig{
			ProcessTTL:   getDuration("PROCESS_TTL", 72*time.Hour),
			MaxInFlight:  getInt("WORKFLOW_MAX_IN_FLIGHT", 1024),
			QueueSize:    getInt("WORKFLOW_QUEUE_SIZE", 256),
			ReapInterval: getDuration("REAP_INTERVAL", 10*time.Minute),
		},
		Statements: StatementsConfig{
			PollInterval: getDuration("STATEMENT_POLL_INTERVAL", 5*time.Second),
			MaxPolls:     getInt("STATEMENT_MAX_POLLS", 12),
		},
		Risk: RiskConfig{
			ReviewAbove:     getInt("RISK_REVIEW_ABOVE", DefaultReviewAbove),
			RejectAtOrAbove: getInt("RISK_REJECT_AT_OR_ABOVE", DefaultRejectAtOrAbove),
		},
		Financial: FinancialConfig{
			PremiumIncomeAbove:    getFloat("PREMIUM_INCOME_ABOVE", DefaultPremiumIncomeAbove),
			LowBalanceBelow:       getFloat("LOW_BALANCE_BELOW", 100),
			LargeTransactionAbove: getFloat("LARGE_TRANSACTION_ABOVE", 5000),
			InsightWindow:         getDuration("INSIGHT_WINDOW", 90*24*time.Hour),
		},
		Biometric: BiometricConfig{
			MinSimilarity:     getFloat("BIOMETRIC_MIN_SIMILARITY", 90),
			MinFaceConfidence: getFloat("BIOMETRIC_MIN_FACE_CONFIDENCE", 90),
			MinSharpness:      getFloat("BIOMETRIC_MIN_SHARPNESS", 40),
			MinBrightness:     getFloat("BIOMETRIC_MIN_BRIGHTNESS", 30),
			RequireLiveness:   getBool("BIOMETRIC_REQUIRE_LIVENESS", false),
		},
	}
	return cfg, cfg.Validate()
}

func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Validate rejects combinations that would let simulated results reach
// production decisions, and thresholds that are out of order.
func (c Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("unknown APP_ENV %q", c.Environment)
	}
	if c.IsProduction() && c.Providers.UseStubs {
		return fmt.Errorf("USE_STUB_PROVIDERS is not allowed in production")
	}
	if c.IsProduction() && c.Providers.StubFallback {
		return fmt.Errorf("PROVIDER_STUB_FALLBACK is not allowed in production")
	}
	if c.Risk.ReviewAbove >= c.Risk.RejectAtOrAbove {
		return fmt.Errorf("RISK_REVIEW_ABOVE (%d) must be below RISK_REJECT_AT_OR_ABOVE (%d)", c.Risk.ReviewAbove, c.Risk.RejectAtOrAbove)
	}
	if c.Providers.MaxAttempts < 1 {
		return fmt.Errorf("PROVIDER_MAX_ATTEMPTS must be at least 1")
	}
	if c.Server.RequestTimeout >= c.Server.WriteTimeout {
		return fmt.Errorf("ONBOARD_REQUEST_TIMEOUT must be below ONBOARD_WRITE_TIMEOUT")
	}
	if c.Providers.MaxConcurrent < 1 {
		return fmt.Errorf("PROVIDER_MAX_CONCURRENT must be at least 1")
	}
	if c.Statements.MaxPolls < 1 {
		return fmt.Errorf("STATEMENT_MAX_POLLS must be at least 1")
	}
	return nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEndpoints parses "id=url,id=url".
func getEndpoints(key string) map[string]string {
	out := map[string]string{}
	for _, pair := range getList(key) {
		id, url, ok := strings.Cut(pair, "=")
		if ok && id != "" && url != "" {
			out[strings.TrimSpace(id)] = strings.TrimSpace(url)
		}
	}
	return out
}
