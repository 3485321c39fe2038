package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, StorageBackendPostgres, cfg.Storage.Backend)
				assert.Equal(t, "orders_db", cfg.Storage.Postgres.Database)
				assert.Equal(t, QueueBackendRabbitMQ, cfg.Queue.Backend)
				assert.Equal(t, "orders_exchange", cfg.Queue.RabbitMQ.Exchange.Name)
				assert.Equal(t, "orders_queue", cfg.Queue.RabbitMQ.Queue.Name)
				assert.Equal(t, ExecutorBackendMock, cfg.Executor.Backend)
				assert.Equal(t, 3, cfg.Worker.MaxAttempts)
				assert.Equal(t, 500*time.Millisecond, cfg.Worker.BackoffBase)
				assert.Equal(t, "order-execution-engine", cfg.App.Name)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, StorageBackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 60*time.Second, cfg.Storage.LeaseTimeout)
	assert.Equal(t, QueueBackendMemory, cfg.Queue.Backend)
	assert.Equal(t, ExecutorBackendMock, cfg.Executor.Backend)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 3, cfg.Worker.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Worker.JobTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Worker.BackoffBase)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Storage: StorageConfig{
			Backend:      StorageBackendPostgres,
			LeaseTimeout: 60 * time.Second,
			Postgres: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "orders_db",
			},
		},
		Queue: QueueConfig{
			Backend: QueueBackendRabbitMQ,
			RabbitMQ: RabbitMQConfig{
				Host:     "localhost",
				Port:     5672,
				Exchange: ExchangeConfig{Name: "orders_exchange"},
				Queue:    AMQPQueueConfig{Name: "orders_queue"},
			},
		},
		Executor: ExecutorConfig{
			Backend:     ExecutorBackendMock,
			SuccessRate: 0.7,
		},
		Worker: WorkerConfig{
			Concurrency: 4,
			MaxAttempts: 3,
			JobTimeout:  10 * time.Second,
			BackoffBase: 500 * time.Millisecond,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port",
			mutate:    func(cfg *Config) { cfg.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "unknown storage backend",
			mutate:    func(cfg *Config) { cfg.Storage.Backend = "dynamo" },
			wantErr:   true,
			errString: "unknown storage backend",
		},
		{
			name:      "postgres backend requires host",
			mutate:    func(cfg *Config) { cfg.Storage.Postgres.Host = "" },
			wantErr:   true,
			errString: "postgres host is required",
		},
		{
			name:      "postgres backend requires database",
			mutate:    func(cfg *Config) { cfg.Storage.Postgres.Database = "" },
			wantErr:   true,
			errString: "postgres database name is required",
		},
		{
			name: "memory storage needs no postgres settings",
			mutate: func(cfg *Config) {
				cfg.Storage = StorageConfig{Backend: StorageBackendMemory}
			},
			wantErr: false,
		},
		{
			name:      "unknown queue backend",
			mutate:    func(cfg *Config) { cfg.Queue.Backend = "kafka" },
			wantErr:   true,
			errString: "unknown queue backend",
		},
		{
			name:      "rabbitmq backend requires exchange name",
			mutate:    func(cfg *Config) { cfg.Queue.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "rabbitmq backend requires queue name",
			mutate:    func(cfg *Config) { cfg.Queue.RabbitMQ.Queue.Name = "" },
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "unknown executor backend",
			mutate:    func(cfg *Config) { cfg.Executor.Backend = "cex" },
			wantErr:   true,
			errString: "unknown executor backend",
		},
		{
			name:      "mock success rate out of range",
			mutate:    func(cfg *Config) { cfg.Executor.SuccessRate = 1.5 },
			wantErr:   true,
			errString: "success_rate must be between 0 and 1",
		},
		{
			name: "dex backend requires endpoint",
			mutate: func(cfg *Config) {
				cfg.Executor = ExecutorConfig{Backend: ExecutorBackendDex}
			},
			wantErr:   true,
			errString: "executor endpoint is required",
		},
		{
			name:      "zero worker concurrency",
			mutate:    func(cfg *Config) { cfg.Worker.Concurrency = 0 },
			wantErr:   true,
			errString: "worker concurrency must be greater than 0",
		},
		{
			name:      "zero max attempts",
			mutate:    func(cfg *Config) { cfg.Worker.MaxAttempts = 0 },
			wantErr:   true,
			errString: "worker max_attempts must be greater than 0",
		},
		{
			name:      "zero job timeout",
			mutate:    func(cfg *Config) { cfg.Worker.JobTimeout = 0 },
			wantErr:   true,
			errString: "worker job_timeout must be greater than 0",
		},
		{
			name:      "zero backoff base",
			mutate:    func(cfg *Config) { cfg.Worker.BackoffBase = 0 },
			wantErr:   true,
			errString: "worker backoff_base must be greater than 0",
		},
		{
			name:      "lease timeout not exceeding job timeout",
			mutate:    func(cfg *Config) { cfg.Storage.LeaseTimeout = cfg.Worker.JobTimeout },
			wantErr:   true,
			errString: "lease_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
