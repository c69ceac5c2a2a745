package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Mailjet  MailjetConfig
	Redis    RedisConfig
	Detector DetectorConfig
}

type MailjetConfig struct {
	MailjetBaseUrl           string
	MailjetBasicAuthUsername string
	MailjetBasicAuthPassword string
	MailjetSenderEmail       string
	MailjetSenderName        string
	AlertRecipientEmail      string
	AlertRecipientName       string
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

type JWTConfig struct {
	SecretKey string
}

type RedisConfig struct {
	Enabled       bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
}

type DetectorConfig struct {
	StoreCapacity   int
	InboxSize       int
	DeliveryTimeout time.Duration
	ManifestPath    string
	ModelDir        string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, errors.New("invalid redis database")
	}
	sessionTTL, err := getEnvDuration("REDIS_SESSION_TTL", 30*time.Minute)
	if err != nil {
		return nil, errors.New("invalid redis session ttl")
	}
	capacity, err := getEnvInt("DETECTOR_STORE_CAPACITY", 10)
	if err != nil {
		return nil, errors.New("invalid detector store capacity")
	}
	inbox, err := getEnvInt("DETECTOR_INBOX_SIZE", 64)
	if err != nil {
		return nil, errors.New("invalid detector inbox size")
	}
	deliveryTimeout, err := getEnvDuration("DETECTOR_DELIVERY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, errors.New("invalid detector delivery timeout")
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Phish Sentinel"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", ""),
			Name:       getEnv("DB_NAME", "phish_sentinel"),
			SSLMode:    getEnv("DB_SSL_MODE", "disable"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "phish_sentinel.db"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", ""),
		},
		Mailjet: MailjetConfig{
			MailjetBaseUrl:           getEnv("MAILJET_BASE_URL", ""),
			MailjetBasicAuthUsername: getEnv("MAILJET_BASIC_AUTH_USERNAME", ""),
			MailjetBasicAuthPassword: getEnv("MAILJET_BASIC_AUTH_PASSWORD", ""),
			MailjetSenderEmail:       getEnv("MAILJET_SENDER_EMAIL", ""),
			MailjetSenderName:        getEnv("MAILJET_SENDER_NAME", ""),
			AlertRecipientEmail:      getEnv("ALERT_RECIPIENT_EMAIL", ""),
			AlertRecipientName:       getEnv("ALERT_RECIPIENT_NAME", ""),
		},
		Redis: RedisConfig{
			Enabled:       getEnv("REDIS_ENABLED", "true") != "false",
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
			SessionTTL:    sessionTTL,
		},
		Detector: DetectorConfig{
			StoreCapacity:   capacity,
			InboxSize:       inbox,
			DeliveryTimeout: deliveryTimeout,
			ManifestPath:    getEnv("MODEL_MANIFEST", "models.yaml"),
			ModelDir:        getEnv("MODEL_DIR", "production"),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("missing jwt secret")
	}

	if cfg.Detector.StoreCapacity <= 0 {
		return nil, errors.New("detector store capacity must be positive")
	}

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Password == "" {
			return nil, errors.New("missing database password")
		}
	case "sqlite":
	default:
		return nil, errors.New("unsupported database driver " + cfg.Database.Driver)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(val)
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(val)
}
