package database

import (
	"context"
	"fmt"
	"time"

	"ppn-portal/src/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB represents the database connection
type DB struct {
	*sqlx.DB
	logger *logrus.Logger
	driver string
}

// Config represents database configuration
type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Path     string
}

// ConfigFrom converts the application settings
func ConfigFrom(c config.DatabaseConfig) *Config {
	return &Config{
		Driver:   c.Driver,
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		DBName:   c.Name,
		SSLMode:  c.SSLMode,
		Path:     c.Path,
	}
}

// DSN returns the data source name for the configured driver
func (c *Config) DSN() (string, error) {
	switch c.Driver {
	case DriverPostgres, "":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode), nil
	case DriverSQLite:
		if c.Path == "" {
			return "", fmt.Errorf("sqlite path is required")
		}
		return c.Path, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", c.Driver)
	}
}

// NewDB creates a new database connection
func NewDB(config *Config, logger *logrus.Logger) (*DB, error) {
	driver := config.Driver
	if driver == "" {
		driver = DriverPostgres
	}
	dsn, err := config.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 接続をテスト
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 接続プールの設定
	if driver == DriverSQLite {
		// :memory: は接続ごとに別のDBになるため1接続に固定
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.WithField("driver", driver).Info("データベースに接続しました")

	return &DB{
		DB:     db,
		logger: logger,
		driver: driver,
	}, nil
}

// Driver returns the driver name
func (db *DB) Driver() string {
	return db.driver
}

// Close closes the database connection
func (db *DB) Close() error {
	db.logger.Info("データベース接続を閉じています")
	return db.DB.Close()
}

// Health checks database health
func (db *DB) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return db.PingContext(ctx)
}

// Migrate creates the tables when they do not exist yet
func (db *DB) Migrate(ctx context.Context) error {
	statements := postgresSchema
	if db.driver == DriverSQLite {
		statements = sqliteSchema
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	db.logger.WithField("tables", len(statements)).Info("スキーマを適用しました")
	return nil
}
