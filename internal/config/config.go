package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Backend selection constants
const (
	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"

	QueueBackendRabbitMQ = "rabbitmq"
	QueueBackendMemory   = "memory"

	ExecutorBackendMock = "mock"
	ExecutorBackendDex  = "dex"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Queue    QueueConfig    `yaml:"queue"`
	Executor ExecutorConfig `yaml:"executor"`
	Worker   WorkerConfig   `yaml:"worker"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects and configures the job store backend
type StorageConfig struct {
	Backend string `yaml:"backend"` // postgres | memory

	// LeaseTimeout is how long a processing claim stays exclusive before a
	// redelivered message may take the job over from a dead worker. Must
	// exceed worker.job_timeout.
	LeaseTimeout time.Duration `yaml:"lease_timeout"`

	Postgres DatabaseConfig `yaml:"postgres"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// QueueConfig selects and configures the queue backend
type QueueConfig struct {
	Backend  string         `yaml:"backend"` // rabbitmq | memory
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      AMQPQueueConfig  `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// AMQPQueueConfig holds RabbitMQ queue configuration
type AMQPQueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// ExecutorConfig selects and configures the execution backend
type ExecutorConfig struct {
	Backend        string        `yaml:"backend"`      // mock | dex
	SuccessRate    float64       `yaml:"success_rate"` // mock only, 0..1
	MinLatency     time.Duration `yaml:"min_latency"`  // mock only
	MaxLatency     time.Duration `yaml:"max_latency"`  // mock only
	Endpoint       string        `yaml:"endpoint"`     // dex only
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// WorkerConfig holds worker pool and retry policy configuration
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	MaxAttempts     int           `yaml:"max_attempts"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	BackoffBase     time.Duration `yaml:"backoff_base"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

// applyDefaults fills in values the config file may omit
func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageBackendMemory
	}
	if c.Storage.LeaseTimeout <= 0 {
		c.Storage.LeaseTimeout = 60 * time.Second
	}
	if c.Queue.Backend == "" {
		c.Queue.Backend = QueueBackendMemory
	}
	if c.Executor.Backend == "" {
		c.Executor.Backend = ExecutorBackendMock
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 4
	}
	if c.Worker.MaxAttempts <= 0 {
		c.Worker.MaxAttempts = 3
	}
	if c.Worker.JobTimeout <= 0 {
		c.Worker.JobTimeout = 10 * time.Second
	}
	if c.Worker.BackoffBase <= 0 {
		c.Worker.BackoffBase = 500 * time.Millisecond
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	switch c.Storage.Backend {
	case StorageBackendMemory:
	case StorageBackendPostgres:
		if c.Storage.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Storage.Postgres.Port < MinPort || c.Storage.Postgres.Port > MaxPort {
			return fmt.Errorf("invalid postgres port: %d (must be between %d and %d)", c.Storage.Postgres.Port, MinPort, MaxPort)
		}
		if c.Storage.Postgres.Database == "" {
			return fmt.Errorf("postgres database name is required")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	switch c.Queue.Backend {
	case QueueBackendMemory:
	case QueueBackendRabbitMQ:
		if c.Queue.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}
		if c.Queue.RabbitMQ.Port < MinPort || c.Queue.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.Queue.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.Queue.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}
		if c.Queue.RabbitMQ.Queue.Name == "" {
			return fmt.Errorf("rabbitmq queue name is required")
		}
	default:
		return fmt.Errorf("unknown queue backend: %q", c.Queue.Backend)
	}

	switch c.Executor.Backend {
	case ExecutorBackendMock:
		if c.Executor.SuccessRate < 0 || c.Executor.SuccessRate > 1 {
			return fmt.Errorf("executor success_rate must be between 0 and 1")
		}
	case ExecutorBackendDex:
		if c.Executor.Endpoint == "" {
			return fmt.Errorf("executor endpoint is required for the dex backend")
		}
	default:
		return fmt.Errorf("unknown executor backend: %q", c.Executor.Backend)
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.MaxAttempts <= 0 {
		return fmt.Errorf("worker max_attempts must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.BackoffBase <= 0 {
		return fmt.Errorf("worker backoff_base must be greater than 0")
	}

	if c.Storage.LeaseTimeout <= c.Worker.JobTimeout {
		return fmt.Errorf("storage lease_timeout (%s) must exceed worker job_timeout (%s)", c.Storage.LeaseTimeout, c.Worker.JobTimeout)
	}

	return nil
}
