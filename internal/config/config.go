package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Ethereum node configuration
	Ethereum EthereumConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Cache configuration
	Cache CacheConfig

	// Static data files (collectives, tokens, exchange rates)
	Data DataConfig

	// API server configuration
	API APIConfig

	// Indexer configuration
	Indexer IndexerConfig

	// Logging configuration
	Log LogConfig
}

// EthereumConfig holds Ethereum node connection settings
type EthereumConfig struct {
	RPCURL         string        `envconfig:"ETH_RPC_URL" default:"http://localhost:8545"`
	ChainID        int64         `envconfig:"ETH_CHAIN_ID" default:"42220"`
	ChainName      string        `envconfig:"ETH_CHAIN_NAME" default:"celo"`
	RequestTimeout time.Duration `envconfig:"ETH_REQUEST_TIMEOUT" default:"30s"`
	MaxRetries     int           `envconfig:"ETH_MAX_RETRIES" default:"3"`
	RetryDelay     time.Duration `envconfig:"ETH_RETRY_DELAY" default:"1s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"ledger"`
	Password        string        `envconfig:"DB_PASSWORD" default:"ledger"`
	Name            string        `envconfig:"DB_NAME" default:"collective_ledger"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	MigrationsDir   string        `envconfig:"DB_MIGRATIONS_DIR" default:"./migrations"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Addr returns the host:port address of the Redis server
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheConfig holds settings for the stale-while-revalidate cache
type CacheConfig struct {
	// Backend is one of memory, leveldb or redis
	Backend        string        `envconfig:"CACHE_BACKEND" default:"memory"`
	LevelDBPath    string        `envconfig:"CACHE_LEVELDB_PATH" default:"./data/cache"`
	KeyPrefix      string        `envconfig:"CACHE_KEY_PREFIX" default:"ledger:"`
	Version        int           `envconfig:"CACHE_VERSION" default:"1"`
	TTL            time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	GracePeriod    time.Duration `envconfig:"CACHE_GRACE_PERIOD" default:"1h"`
	RefreshTimeout time.Duration `envconfig:"CACHE_REFRESH_TIMEOUT" default:"30s"`
}

// DataConfig holds locations of the static data files
type DataConfig struct {
	CollectivesFile string `envconfig:"DATA_COLLECTIVES_FILE" default:"./data/collectives.json"`
	TokensFile      string `envconfig:"DATA_TOKENS_FILE" default:"./data/tokens.json"`
	FxRateDir       string `envconfig:"DATA_FXRATE_DIR" default:"./data/fxrate"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Host            string        `envconfig:"API_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"API_PORT" default:"8081"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"API_RATE_LIMIT_RPS" default:"100"`
	MetricsPort     int           `envconfig:"API_METRICS_PORT" default:"9091"`
}

// IndexerConfig holds indexer-specific settings
type IndexerConfig struct {
	MetricsPort        int           `envconfig:"INDEXER_METRICS_PORT" default:"8080"`
	BatchSize          int           `envconfig:"INDEXER_BATCH_SIZE" default:"100"`
	BlockConfirmations int           `envconfig:"INDEXER_BLOCK_CONFIRMATIONS" default:"12"`
	PollInterval       time.Duration `envconfig:"INDEXER_POLL_INTERVAL" default:"12s"`
	BackfillBatchSize  int           `envconfig:"INDEXER_BACKFILL_BATCH_SIZE" default:"1000"`
	WorkerCount        int           `envconfig:"INDEXER_WORKER_COUNT" default:"4"`
	StartBlock         int64         `envconfig:"INDEXER_START_BLOCK" default:"0"`

	// Extra token contracts to index on top of the ones referenced by collectives
	TokenAddresses []string `envconfig:"INDEXER_TOKEN_ADDRESSES"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}
