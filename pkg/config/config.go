package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Snapshot  SnapshotConfig
}

type DatabaseConfig struct {
	Driver       string
	Path         string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes the automatic assignment engine and its run queue.
type SchedulerConfig struct {
	ProposalTTL   time.Duration
	MaxSteps      int
	SolveTimeout  time.Duration
	GreedyFill    bool
	Seed          int64
	RunWorkers    int
	RunRetention  time.Duration
	RatePerMinute int
	RateBurst     int
}

// SnapshotConfig governs snapshot caching.
type SnapshotConfig struct {
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
		Path:         v.GetString("DB_PATH"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}
	if cfg.Database.Driver != DriverSQLite {
		cfg.Database.Driver = DriverPostgres
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		ProposalTTL:   parseDuration(v.GetString("SCHEDULER_PROPOSAL_TTL"), 30*time.Minute),
		MaxSteps:      v.GetInt("SCHEDULER_MAX_STEPS"),
		SolveTimeout:  parseDuration(v.GetString("SCHEDULER_SOLVE_TIMEOUT"), 30*time.Second),
		GreedyFill:    v.GetBool("SCHEDULER_GREEDY_FILL"),
		Seed:          v.GetInt64("SCHEDULER_SEED"),
		RunWorkers:    v.GetInt("SCHEDULER_RUN_WORKERS"),
		RunRetention:  parseDuration(v.GetString("SCHEDULER_RUN_RETENTION"), time.Hour),
		RatePerMinute: v.GetInt("SCHEDULER_RATE_PER_MINUTE"),
		RateBurst:     v.GetInt("SCHEDULER_RATE_BURST"),
	}

	cfg.Snapshot = SnapshotConfig{
		CacheTTL: parseDuration(v.GetString("SNAPSHOT_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_PATH", "timetable.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_PROPOSAL_TTL", "30m")
	v.SetDefault("SCHEDULER_MAX_STEPS", 200000)
	v.SetDefault("SCHEDULER_SOLVE_TIMEOUT", "30s")
	v.SetDefault("SCHEDULER_GREEDY_FILL", false)
	v.SetDefault("SCHEDULER_SEED", 0)
	v.SetDefault("SCHEDULER_RUN_WORKERS", 2)
	v.SetDefault("SCHEDULER_RUN_RETENTION", "1h")
	v.SetDefault("SCHEDULER_RATE_PER_MINUTE", 6)
	v.SetDefault("SCHEDULER_RATE_BURST", 2)

	v.SetDefault("SNAPSHOT_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
