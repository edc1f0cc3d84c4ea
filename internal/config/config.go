package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

type Config struct {
	Port      string
	GrpcPort  string
	GinMode   string
	LogLevel  string
	LogFormat string

	Database    DatabaseConfig
	AutoMigrate bool

	RedisAddr string

	ReconcileCron       string
	ActivationThreshold decimal.Decimal
}

// LoadEnv loads .env from the working directory, then its parent. Missing files are not an
// error; the process environment is used as is.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found in current directory, trying parent")
		if err := godotenv.Load("../.env"); err != nil {
			logrus.Debug("No .env file found, using system environment variables")
		}
	}
}

func Load() *Config {
	driver := strings.ToLower(getEnv("DB_DRIVER", "mysql"))
	defaultPort := "3306"
	if driver == "postgres" {
		defaultPort = "5432"
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		GrpcPort:  getEnv("GRPC_PORT", "50051"),
		GinMode:   getEnv("GIN_MODE", ""),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		Database: DatabaseConfig{
			Driver:   driver,
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", defaultPort),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "referral_ledger"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:       getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvAsInt("DB_CONN_MAX_LIFETIME", 60),
		},
		AutoMigrate: getEnvAsBool("AUTO_MIGRATE", false),

		RedisAddr: getEnv("REDIS_URL", "localhost:6379"),

		ReconcileCron:       getEnv("RECONCILE_CRON", "0 */6 * * *"),
		ActivationThreshold: getEnvAsDecimal("ACTIVATION_THRESHOLD", decimal.NewFromInt(1000)),
	}
}

// ConfigureLogger applies LOG_LEVEL and LOG_FORMAT to the standard logrus logger.
func (c *Config) ConfigureLogger() {
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.Warnf("Unknown LOG_LEVEL %q, keeping %s", c.LogLevel, logrus.GetLevel())
	}
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("Invalid integer for %s: %q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		logrus.Warnf("Invalid boolean for %s: %q, using %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := decimal.NewFromString(value)
	if err != nil || d.IsNegative() {
		logrus.Warnf("Invalid amount for %s: %q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
