package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// PostgresPort is fixed: the service always talks to the standard port.
const PostgresPort = 5432

type Config struct {
	DBHost     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	DBLog      string

	Port string

	RedisAddr     string
	RedisPassword string
	NatsURL       string
}

func LoadConfig() *Config {
	return &Config{
		DBHost:        os.Getenv("PGHOST"),
		DBName:        os.Getenv("PGDATABASE"),
		DBUser:        os.Getenv("PGUSER"),
		DBPassword:    os.Getenv("PGPASSWORD"),
		DBSSLMode:     getenv("PGSSLMODE", "require"),
		DBLog:         getenv("DB_LOG", "warn"),
		Port:          getenv("PORT", "8080"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		NatsURL:       os.Getenv("NATS_URL"),
	}
}

// Validate reports every missing database setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DBHost == "" {
		errs = append(errs, errors.New("PGHOST is required"))
	}
	if c.DBName == "" {
		errs = append(errs, errors.New("PGDATABASE is required"))
	}
	if c.DBUser == "" {
		errs = append(errs, errors.New("PGUSER is required"))
	}
	return errors.Join(errs...)
}

// DSN renders a keyword/value connection string for the gorm postgres driver.
func (c *Config) DSN() string {
	parts := []string{
		"host=" + quote(c.DBHost),
		fmt.Sprintf("port=%d", PostgresPort),
		"user=" + quote(c.DBUser),
		"dbname=" + quote(c.DBName),
		"sslmode=" + quote(c.DBSSLMode),
	}
	if c.DBPassword != "" {
		parts = append(parts, "password="+quote(c.DBPassword))
	}
	return strings.Join(parts, " ")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// quote escapes a libpq keyword value when it holds spaces, quotes or backslashes.
func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
