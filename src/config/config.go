package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config アプリケーション設定
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	S3        S3Config
	Database  DatabaseConfig
	Auth      AuthConfig
	Backend   BackendConfig
	Export    ExportConfig
	RateLimit RateLimitConfig
	Locale    LocaleConfig
}

// ServerConfig サーバー設定
type ServerConfig struct {
	Port         string
	AllowOrigin  string
	SecureCookie bool
}

// LogConfig ログ設定
type LogConfig struct {
	Level          string
	Directory      string
	UploadEnabled  bool
	UploadMaxAge   time.Duration
	UploadInterval time.Duration
}

// S3Config S3設定
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	UseSSL          bool
}

// DatabaseConfig データベース設定
type DatabaseConfig struct {
	Driver   string // postgres または sqlite
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string // sqlite用
}

// AuthConfig 認証設定
type AuthConfig struct {
	JWTSecret    string
	JWTExpiresIn time.Duration
}

// BackendConfig 外部APIバックエンド設定（空の場合はデータベースを使用）
type BackendConfig struct {
	URL      string
	Token    string
	RetryMax int
	Timeout  time.Duration
}

// ExportConfig CSVエクスポート設定
type ExportConfig struct {
	ArchiveEnabled bool
	ArchivePrefix  string
}

// RateLimitConfig レート制限設定
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// LocaleConfig 言語と生年月日フィールドの設定
type LocaleConfig struct {
	DefaultLanguage  string
	BirthDateMinimum string // YYYY-MM-DD
}

// LoadDotEnv .envファイルがあれば環境変数に読み込む（既存の値は上書きしない）
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf(".envの読み込みに失敗 (%s): %w", p, err)
		}
	}
	return nil
}

// LoadConfig 環境変数から設定を読み込み
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			AllowOrigin:  getEnv("CORS_ALLOW_ORIGIN", "*"),
			SecureCookie: getBoolEnv("COOKIE_SECURE", false),
		},
		Log: LogConfig{
			Level:          getEnv("LOG_LEVEL", "info"),
			Directory:      getEnv("LOG_DIRECTORY", "logs"),
			UploadEnabled:  getBoolEnv("LOG_UPLOAD_ENABLED", false),
			UploadMaxAge:   getDurationEnv("LOG_UPLOAD_MAX_AGE", 24*time.Hour),
			UploadInterval: getDurationEnv("LOG_UPLOAD_INTERVAL", 1*time.Hour),
		},
		S3: S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", "http://localhost:9000"), // MinIO用のデフォルト
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", "minioadmin"),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", "minioadmin"),
			Region:          getEnv("S3_REGION", "eu-west-1"),
			Bucket:          getEnv("S3_BUCKET", "ppn-portal"),
			UseSSL:          getBoolEnv("S3_USE_SSL", false),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getIntEnv("DB_PORT", 5432),
			User:     getEnv("DB_USER", "ppn"),
			Password: getEnv("DB_PASSWORD", "ppn"),
			Name:     getEnv("DB_NAME", "ppn"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "ppn.db"),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", "change-me"),
			JWTExpiresIn: getDurationEnv("JWT_EXPIRES_IN", 8*time.Hour),
		},
		Backend: BackendConfig{
			URL:      getEnv("BACKEND_API_URL", ""),
			Token:    getEnv("BACKEND_API_TOKEN", ""),
			RetryMax: getIntEnv("BACKEND_API_RETRY_MAX", 3),
			Timeout:  getDurationEnv("BACKEND_API_TIMEOUT", 30*time.Second),
		},
		Export: ExportConfig{
			ArchiveEnabled: getBoolEnv("EXPORT_ARCHIVE_ENABLED", false),
			ArchivePrefix:  getEnv("EXPORT_ARCHIVE_PREFIX", "exports"),
		},
		RateLimit: RateLimitConfig{
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
			Window:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		},
		Locale: LocaleConfig{
			DefaultLanguage:  getEnv("DEFAULT_LANGUAGE", "nl"),
			BirthDateMinimum: getEnv("BIRTH_DATE_MINIMUM", "1900-01-01"),
		},
	}
}

// getEnv 環境変数を取得（デフォルト値付き）
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv 環境変数をboolで取得
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv 環境変数をintで取得
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv 環境変数をtime.Durationで取得
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
