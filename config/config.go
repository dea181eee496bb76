package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// SupervisorConfig holds the tunables for the session monitoring loop.
type SupervisorConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	ActivityTimeout time.Duration `yaml:"activity_timeout"`
	MaxRestarts     int           `yaml:"max_restarts"`
	StopGracePeriod time.Duration `yaml:"stop_grace_period"`
	WorkerBinary    string        `yaml:"worker_binary"`
}

type AppConfig struct {
	Port           string
	Database       DatabaseConfig
	Supervisor     SupervisorConfig
	JWTSecret      string
	GeminiAPIKey   string
	TelegramToken  string
	TelegramChatID int64
	Environment    string
}

func GetDatabaseConfig() DatabaseConfig {
	port, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	password := getEnv("DB_PASSWORD", "")

	if password == "" {
		log.Println("Warning: DB_PASSWORD environment variable is not set")
	}

	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     port,
		User:     getEnv("DB_USER", "postgres"),
		Password: password,
		DBName:   getEnv("DB_NAME", "applypilot"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

// GetSupervisorConfig loads supervisor tunables from an optional YAML file,
// then applies environment overrides and defaults.
func GetSupervisorConfig() SupervisorConfig {
	cfg := SupervisorConfig{}

	path := getEnv("SUPERVISOR_CONFIG", "configs/supervisor.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Printf("Warning: could not parse %s: %v", path, err)
		}
	}

	if v := os.Getenv("SUPERVISOR_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("SUPERVISOR_ACTIVITY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ActivityTimeout = d
		}
	}
	if v := os.Getenv("SUPERVISOR_MAX_RESTARTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRestarts = n
		}
	}
	if v := os.Getenv("SUPERVISOR_STOP_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StopGracePeriod = d
		}
	}
	if v := os.Getenv("WORKER_BINARY"); v != "" {
		cfg.WorkerBinary = v
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.ActivityTimeout <= 0 {
		cfg.ActivityTimeout = 5 * time.Minute
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = 10
	}
	if cfg.StopGracePeriod <= 0 {
		cfg.StopGracePeriod = 30 * time.Second
	}
	if cfg.WorkerBinary == "" {
		cfg.WorkerBinary = "./applypilot-worker"
	}

	return cfg
}

func GetAppConfig() AppConfig {
	chatID, _ := strconv.ParseInt(getEnv("TELEGRAM_CHAT_ID", "0"), 10, 64)

	return AppConfig{
		Port:           getEnv("PORT", "8081"),
		Database:       GetDatabaseConfig(),
		Supervisor:     GetSupervisorConfig(),
		JWTSecret:      getEnv("JWT_SECRET", "your-secret-key"),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: chatID,
		Environment:    getEnv("ENVIRONMENT", "development"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
