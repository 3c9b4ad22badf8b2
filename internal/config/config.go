package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type StoreKind string

const (
	StorePostgres StoreKind = "postgres"
	StoreMemory   StoreKind = "memory"
)

type Config struct {
	LogLevel slog.Level
	Store    StoreKind
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Schedule ScheduleConfig
	Sweep    SweepConfig

	// VehicleProfilesPath names an optional YAML file of extra vehicle profiles.
	VehicleProfilesPath string
	// StationsPath names the YAML station seed of the in-memory store.
	StationsPath string
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	// An empty Addr disables the cache, pub/sub, rate limiting and idempotency.
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}

type RabbitMQConfig struct {
	// An empty URL disables the broker.
	URL string
}

type ScheduleConfig struct {
	Location    *time.Location
	HorizonDays int
}

type SweepConfig struct {
	Interval time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		if err := logLevel.UnmarshalText([]byte(s)); err != nil {
			return nil, fmt.Errorf("%s: invalid LOG_LEVEL: %w", op, err)
		}
	}

	store := StoreKind(strings.ToLower(os.Getenv("STORE")))
	if store == "" {
		store = StorePostgres
	}
	if store != StorePostgres && store != StoreMemory {
		return nil, fmt.Errorf("%s: invalid STORE %q", op, store)
	}

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPort, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	serverCfg := ServerConfig{
		Host: serverHost,
		Port: serverPort,
	}

	var postgresCfg PostgresConfig
	if store == StorePostgres {
		postgresCfg, err = postgresFromEnv()
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	redisCfg := RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	}

	loc := time.UTC
	if tz := os.Getenv("SCHEDULE_TIMEZONE"); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid SCHEDULE_TIMEZONE: %w", op, err)
		}
	}

	horizon, err := intEnv("GENERATION_HORIZON_DAYS", 56)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("%s: GENERATION_HORIZON_DAYS must be positive", op)
	}

	interval := 5 * time.Minute
	if s := os.Getenv("SWEEP_INTERVAL"); s != "" {
		interval, err = time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid SWEEP_INTERVAL: %w", op, err)
		}
		if interval <= 0 {
			return nil, fmt.Errorf("%s: SWEEP_INTERVAL must be positive", op)
		}
	}

	return &Config{
		LogLevel: logLevel,
		Store:    store,
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		RabbitMQ: RabbitMQConfig{URL: os.Getenv("RABBITMQ_URL")},
		Schedule: ScheduleConfig{
			Location:    loc,
			HorizonDays: horizon,
		},
		Sweep:               SweepConfig{Interval: interval},
		VehicleProfilesPath: os.Getenv("VEHICLE_PROFILES_PATH"),
		StationsPath:        os.Getenv("STATIONS_PATH"),
	}, nil
}

func postgresFromEnv() (PostgresConfig, error) {
	postgresHost := os.Getenv("POSTGRES_HOST")
	if postgresHost == "" {
		postgresHost = "localhost"
	}

	postgresPort, err := intEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return PostgresConfig{}, err
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_USER")
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_PASSWORD")
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_DB")
	}

	postgresSSLMode := os.Getenv("POSTGRES_SSLMODE")
	if postgresSSLMode == "" {
		postgresSSLMode = "disable"
	}

	return PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     postgresHost,
		Port:     postgresPort,
		SSLMode:  postgresSSLMode,
	}, nil
}

func intEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
