package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration shared by the rollup core's services
// (Block Builder, Validity Prover, worker pool, Store Vault, Withdrawal
// Server). Each cmd/ entrypoint reads the subset of fields it needs.
type Config struct {
	// L1 Configuration
	EthereumURL           string
	EthChainID            int64
	EthPrivateKey         string // signs rollup-contract posts (block builder) and on-chain claims (withdrawal server)
	EthAccountAddress     string
	RollupContractAddress string

	// Server Configuration
	ListenAddr  string
	MetricsAddr string
	HealthAddr  string

	// Database Configuration (URL-based, legacy)
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int  // seconds
	DatabaseMaxLifetime int  // seconds
	DatabaseRequired    bool // If true, startup fails if database connection fails

	// Database Configuration (individual fields for client.go)
	DBHost            string
	DBPort            int
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Redis Configuration (pkg/queue work queue, pkg/blockbuilder's shared
	// nonce manager)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DataDir string // Base directory for data files (e.g. proof-system keys, snapshots)

	// Service Configuration
	ValidatorID string // this instance's identity, for logging/metrics labels
	LogLevel    string
	Debug       bool // preserves full request bodies in HTTP error responses instead of truncating to 500 chars

	// Network Identification
	NetworkName string // e.g. "mainnet", "sepolia", "devnet"

	// Proof System Configuration
	VerifierKeysDir string // directory of "<kind>.vk" files, per pkg/proofsystem.Registry

	// Block Builder Configuration
	AcceptingTxsWindow time.Duration
	SignatureWindow    time.Duration
	MaxTxsPerBlock     int
	DepositCheckEvery  time.Duration
	UseFee             bool
	FeeTokenIndex      uint32
	QuotedFee          uint64

	// Validity Prover / Worker Pool Configuration
	WorkerPoolSize     int
	WorkerPollInterval time.Duration
	ProverMaxLagBlocks uint64 // loaded from PROVER_MAX_LAG_BLOCKS; no component reads it

	// Security Configuration
	JWTSecret   string
	CORSOrigins []string
	TLSEnabled  bool

	// Rate Limiting
	RateLimitRequests int
	RateLimitWindow   int
}

// Load reads configuration from environment variables.
//
// SECURITY: Required variables have no defaults and must be explicitly set.
// Call Validate() after Load() to ensure all required configuration is present.
func Load() (*Config, error) {
	cfg := &Config{
		// L1 Configuration
		EthereumURL:           getEnv("ETHEREUM_URL", ""),
		EthChainID:            getEnvInt64("ETH_CHAIN_ID", 11155111),
		EthPrivateKey:         getEnv("ETH_PRIVATE_KEY", ""),
		EthAccountAddress:     getEnv("ETH_ACCOUNT_ADDRESS", ""),
		RollupContractAddress: getEnv("ROLLUP_CONTRACT_ADDRESS", ""),

		// Server Configuration - safe defaults
		ListenAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("API_PORT", "8080"),
		MetricsAddr: getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("METRICS_PORT", "9090"),
		HealthAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("HEALTH_CHECK_PORT", "8081"),

		// Database Configuration - REQUIRED, no default for security
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 5),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),  // 5 minutes
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600), // 1 hour
		DatabaseRequired:    getEnvBool("DATABASE_REQUIRED", false),   // If true, fail startup on DB error

		// Database Configuration - individual fields for client.go
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnvInt("DB_PORT", 5432),
		DBUser:            getEnv("DB_USER", "certen"),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBName:            getEnv("DB_NAME", "rollup_core"),
		DBSSLMode:         getEnv("DB_SSL_MODE", "require"),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),

		// Redis Configuration
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DataDir: getEnv("DATA_DIR", "./data"),

		// Service Configuration
		ValidatorID: getEnv("VALIDATOR_ID", "rollup-core-default"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Debug:       getEnvBool("DEBUG", false),

		// Network Identification
		NetworkName: getEnv("NETWORK_NAME", "devnet"),

		// Proof System Configuration
		VerifierKeysDir: getEnv("VERIFIER_KEYS_DIR", "./keys"),

		// Block Builder Configuration
		AcceptingTxsWindow: getEnvDuration("ACCEPTING_TXS_WINDOW", 2*time.Second),
		SignatureWindow:    getEnvDuration("SIGNATURE_WINDOW", 5*time.Second),
		MaxTxsPerBlock:     getEnvInt("MAX_TXS_PER_BLOCK", 128),
		DepositCheckEvery:  getEnvDuration("DEPOSIT_CHECK_EVERY", 30*time.Second),
		UseFee:             getEnvBool("USE_FEE", false),
		FeeTokenIndex:      uint32(getEnvInt("FEE_TOKEN_INDEX", 0)),
		QuotedFee:          uint64(getEnvInt("QUOTED_FEE", 0)),

		// Validity Prover / Worker Pool Configuration
		WorkerPoolSize:     getEnvInt("WORKER_POOL_SIZE", 4),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", time.Second),
		ProverMaxLagBlocks: uint64(getEnvInt("PROVER_MAX_LAG_BLOCKS", 32)),

		// Security Configuration - REQUIRED, no weak defaults
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001"), ","),
		TLSEnabled:  getEnvBool("TLS_ENABLED", true), // Default to secure

		// Rate Limiting
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvInt("RATE_LIMIT_WINDOW", 60),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and secure.
// This must be called after Load() before starting the service.
func (c *Config) Validate() error {
	var errors []string

	// Required L1 configuration
	if c.EthereumURL == "" {
		errors = append(errors, "ETHEREUM_URL is required but not set")
	}

	// Required blockchain configuration
	if c.EthPrivateKey == "" {
		errors = append(errors, "ETH_PRIVATE_KEY is required but not set")
	}

	if c.RollupContractAddress == "" {
		errors = append(errors, "ROLLUP_CONTRACT_ADDRESS is required")
	}

	// Database configuration validation
	if c.DatabaseURL == "" {
		errors = append(errors, "DATABASE_URL is required but not set")
	} else {
		// Validate database security settings
		if strings.Contains(c.DatabaseURL, "sslmode=disable") {
			errors = append(errors, "DATABASE_URL must use sslmode=require for production security")
		}
		if strings.Contains(c.DatabaseURL, "development") || strings.Contains(c.DatabaseURL, "password") {
			errors = append(errors, "DATABASE_URL appears to contain default/weak credentials - use secure credentials")
		}
	}

	// JWT secret validation
	if c.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET is required but not set")
	} else {
		// Check for weak/default secrets
		weakSecrets := []string{"development", "secret", "password", "change-me", "changeme", "default", "test"}
		lowerSecret := strings.ToLower(c.JWTSecret)
		for _, weak := range weakSecrets {
			if strings.Contains(lowerSecret, weak) {
				errors = append(errors, "JWT_SECRET contains weak/default value - generate a secure random secret")
				break
			}
		}
		// Check minimum length
		if len(c.JWTSecret) < 32 {
			errors = append(errors, "JWT_SECRET must be at least 32 characters for security")
		}
	}

	// TLS should be enabled in production
	if !c.TLSEnabled {
		// This is a warning, not an error, but log it
		// In a stricter setup, this could be an error
		fmt.Println("WARNING: TLS_ENABLED is false - enable TLS for production security")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// ValidateForDevelopment performs relaxed validation suitable for local development.
// WARNING: Do not use this in production - use Validate() instead.
func (c *Config) ValidateForDevelopment() error {
	var errors []string

	// Only require the absolute minimum for development
	if c.EthereumURL == "" {
		errors = append(errors, "ETHEREUM_URL is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("development configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}


func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
