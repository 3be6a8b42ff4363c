package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds SQL database connection settings.
// Driver selects between the embedded SQLite file and a PostgreSQL server.
type DatabaseConfig struct {
	Driver             string
	SQLitePath         string
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig selects where backup archives are kept.
type StorageConfig struct {
	Driver     string // "local" or "minio"
	BackupDir  string
	PresignTTL time.Duration
}

// MinecraftConfig holds settings for the managed game server processes.
type MinecraftConfig struct {
	ServersDir      string
	JDKDir          string
	JDKAutoInstall  bool
	MinRAM          string
	MaxRAM          string
	StopTimeout     time.Duration
	ConsoleMaxLines int
}

// ModsConfig holds credentials for the mod platforms.
type ModsConfig struct {
	CurseForgeAPIKey string
	HTTPTimeout      time.Duration
}

// NotifyConfig holds the Telegram notification settings.
type NotifyConfig struct {
	TelegramToken  string
	TelegramChatID int64
	Mode           int
	Lang           string
}

// HTTPConfig holds web-facing settings.
type HTTPConfig struct {
	FrontendDir      string
	CORSAllowOrigins string
	LoginRateLimit   int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost   string
	Port      string
	Timezone  string
	LogLevel  string
	SecretKey string
	TokenTTL  time.Duration
	Database  DatabaseConfig
	MinIO     MinIOConfig
	Storage   StorageConfig
	Minecraft MinecraftConfig
	Mods      ModsConfig
	Notify    NotifyConfig
	HTTP      HTTPConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:   getEnv("APP_HOST", "localhost:5000"),
		Port:      getEnv("PORT", "5000"),
		Timezone:  getEnv("APP_TIMEZONE", "UTC"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		SecretKey: getEnv("SECRET_KEY", ""),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),
		Database: DatabaseConfig{
			Driver:             strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			SQLitePath:         getEnv("SQLITE_PATH", "data/protonmc.db"),
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Storage: StorageConfig{
			Driver:     strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
			BackupDir:  getEnv("BACKUP_DIR", "data/backups"),
			PresignTTL: getEnvDuration("STORAGE_PRESIGN_TTL", 15*time.Minute),
		},
		Minecraft: MinecraftConfig{
			ServersDir:      getEnv("SERVERS_DIR", "data/servers"),
			JDKDir:          getEnv("JDK_DIR", "data/jdk"),
			JDKAutoInstall:  getEnvBool("JDK_AUTO_INSTALL", true),
			MinRAM:          getEnv("JAVA_MIN_RAM", "1G"),
			MaxRAM:          getEnv("JAVA_MAX_RAM", "4G"),
			StopTimeout:     getEnvDuration("STOP_TIMEOUT", 30*time.Second),
			ConsoleMaxLines: getEnvInt("CONSOLE_MAX_LINES", 1000),
		},
		Mods: ModsConfig{
			CurseForgeAPIKey: getEnv("CURSEFORGE_API_KEY", ""),
			HTTPTimeout:      getEnvDuration("MODS_HTTP_TIMEOUT", 10*time.Second),
		},
		Notify: NotifyConfig{
			TelegramToken:  getEnv("TELEGRAM_TOKEN", ""),
			TelegramChatID: getEnvInt64("TELEGRAM_CHAT_ID", 0),
			Mode:           getEnvInt("NOTIFY_MODE", 7),
			Lang:           strings.ToUpper(getEnv("NOTIFY_LANG", "EN")),
		},
		HTTP: HTTPConfig{
			FrontendDir:      getEnv("FRONTEND_DIR", ""),
			CORSAllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
			LoginRateLimit:   getEnvInt("LOGIN_RATE_LIMIT", 10),
		},
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("90s") or bare seconds ("90").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
