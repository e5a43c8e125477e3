package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Meilisearch   MeilisearchConfig   `yaml:"meilisearch"`
	Redis         RedisConfig         `yaml:"redis"`
	ClickHouse    ClickHouseConfig    `yaml:"clickhouse"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Search        SearchConfig        `yaml:"search"`
	Payments      PaymentsConfig      `yaml:"payments"`
	Webhooks      WebhooksConfig      `yaml:"webhooks"`
	Import        ImportConfig        `yaml:"import"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

type MeilisearchConfig struct {
	Host             string        `yaml:"host"`
	APIKey           string        `yaml:"api_key"`
	TemplatesIndex   string        `yaml:"templates_index"`
	FreelancersIndex string        `yaml:"freelancers_index"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	BulkChunkSize    int           `yaml:"bulk_chunk_size"`
}

type RedisConfig struct {
	Addresses    []string      `yaml:"addresses"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	JobStatusTTL time.Duration `yaml:"job_status_ttl"`
}

type ClickHouseConfig struct {
	Addresses    []string      `yaml:"addresses"`
	Database     string        `yaml:"database"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
}

type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	TopicJobs     string        `yaml:"topic_jobs"`
	TopicDLQ      string        `yaml:"topic_dlq"`
	ConsumerGroup string        `yaml:"consumer_group"`
	BatchSize     int           `yaml:"batch_size"`
	BatchTimeout  time.Duration `yaml:"batch_timeout"`
	MaxRetries    int           `yaml:"max_retries"`
}

type SearchConfig struct {
	DefaultLimit   int                  `yaml:"default_limit"`
	MaxLimit       int                  `yaml:"max_limit"`
	QueryTimeout   time.Duration        `yaml:"query_timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry"`
	SlowQuery      SlowQueryConfig      `yaml:"slow_query"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

type SlowQueryConfig struct {
	WarningThreshold  time.Duration `yaml:"warning_threshold"`
	CriticalThreshold time.Duration `yaml:"critical_threshold"`
}

type PaymentsConfig struct {
	FrontendURL            string        `yaml:"frontend_url"`
	MercadoPagoAccessToken string        `yaml:"mercadopago_access_token"`
	MercadoPagoPublicKey   string        `yaml:"mercadopago_public_key"`
	StripeSecretKey        string        `yaml:"stripe_secret_key"`
	StripeWebhookSecret    string        `yaml:"stripe_webhook_secret"`
	RequestTimeout         time.Duration `yaml:"request_timeout"`
}

type WebhooksConfig struct {
	GitHubSecret string `yaml:"github_secret"`
	N8NSecret    string `yaml:"n8n_secret"`
}

type ImportConfig struct {
	RepoOwner   string        `yaml:"repo_owner"`
	RepoName    string        `yaml:"repo_name"`
	GitHubToken string        `yaml:"github_token"`
	JobTimeout  time.Duration `yaml:"job_timeout"`
}

type RateLimitConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

type ObservabilityConfig struct {
	TracingEndpoint string `yaml:"tracing_endpoint"`
	LogLevel        string `yaml:"log_level"`
	ServiceName     string `yaml:"service_name"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            3306,
			User:            "marketplace",
			Name:            "marketplace",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Meilisearch: MeilisearchConfig{
			Host:             "http://localhost:7700",
			TemplatesIndex:   "templates",
			FreelancersIndex: "freelancers",
			RequestTimeout:   2 * time.Second,
			BulkChunkSize:    500,
		},
		Redis: RedisConfig{
			Addresses:    []string{"localhost:6379"},
			PoolSize:     50,
			MinIdleConns: 10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			JobStatusTTL: 24 * time.Hour,
		},
		ClickHouse: ClickHouseConfig{
			Addresses:    []string{"localhost:9000"},
			Database:     "marketplace_analytics",
			DialTimeout:  5 * time.Second,
			QueryTimeout: 2 * time.Second,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			TopicJobs:     "marketplace.jobs",
			TopicDLQ:      "marketplace.jobs.dlq",
			ConsumerGroup: "marketplace-worker",
			BatchSize:     100,
			BatchTimeout:  time.Second,
			MaxRetries:    3,
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
			QueryTimeout: 2 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:      50,
				Interval:         30 * time.Second,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
			Retry: RetryConfig{
				MaxAttempts: 2,
				InitialWait: 50 * time.Millisecond,
				MaxWait:     500 * time.Millisecond,
				Multiplier:  2.0,
			},
			SlowQuery: SlowQueryConfig{
				WarningThreshold:  200 * time.Millisecond,
				CriticalThreshold: 500 * time.Millisecond,
			},
		},
		Payments: PaymentsConfig{
			FrontendURL:    "http://localhost:3000",
			RequestTimeout: 10 * time.Second,
		},
		Import: ImportConfig{
			RepoOwner:  "enescingoz",
			RepoName:   "awesome-n8n-templates",
			JobTimeout: 10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 100,
			Window:      time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			ServiceName: "marketplace-api",
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		return fmt.Errorf("database host and name required")
	}
	if c.Meilisearch.Host == "" {
		return fmt.Errorf("meilisearch host required")
	}
	if len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("at least one redis address required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker required")
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("default search limit must be positive")
	}
	if c.Search.MaxLimit <= 0 || c.Search.MaxLimit > 1000 {
		return fmt.Errorf("max search limit must be between 1 and 1000")
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate limit max requests must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	return nil
}
