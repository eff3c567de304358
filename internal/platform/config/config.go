package config

import (
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	MigrationsPath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JudgeURL             string
	JudgeAuthToken       string
	JudgePollInterval    time.Duration
	JudgeMaxWait         time.Duration
	LeaderboardCacheTTL  time.Duration
	LeaderboardSizeLimit int
}

// Load reads the environment (optionally seeded from a .env file) and returns
// the assembled configuration. Callers hold onto the returned value; there is
// no package-level config instance.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIPort:        getEnv("API_PORT", "8080"),
		JWTKey:         []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:         time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "user"),
		DBPassword:     getEnv("DB_PASSWORD", "password"),
		DBName:         getEnv("DB_NAME", "codearena_db"),
		DBSslMode:      getEnv("DB_SSLMODE", "disable"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),

		JudgeURL:             getEnv("JUDGE_URL", "http://localhost:2358"),
		JudgeAuthToken:       getEnv("JUDGE_AUTH_TOKEN", ""),
		JudgePollInterval:    time.Duration(getEnvAsInt("JUDGE_POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		JudgeMaxWait:         time.Duration(getEnvAsInt("JUDGE_MAX_WAIT_SECONDS", 60)) * time.Second,
		LeaderboardCacheTTL:  time.Duration(getEnvAsInt("LEADERBOARD_CACHE_TTL_SECONDS", 30)) * time.Second,
		LeaderboardSizeLimit: getEnvAsInt("LEADERBOARD_SIZE_LIMIT", 100),
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode

	return cfg
}

// DatabaseURL builds the pgx5:// URL form of the connection settings, used by
// the migration tooling.
func (c *Config) DatabaseURL() string {
	u := &url.URL{
		Scheme: "pgx5",
		Host:   c.DBHost + ":" + c.DBPort,
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Path:   c.DBName,
	}
	q := u.Query()
	q.Set("sslmode", c.DBSslMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
