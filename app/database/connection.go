package database

import (
	"fmt"
	"time"

	"RestoPOS/app/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BuildDSN constructs the postgres connection string.
// Priority: URL > individual fields > defaults
func BuildDSN(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	user := cfg.Username
	if user == "" {
		user = "postgres"
	}
	dbname := cfg.Database
	if dbname == "" {
		dbname = "restopos"
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s", host, port, user, dbname, sslmode)
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}

// Connect opens the remote postgres source and migrates its tables
func Connect(cfg config.DatabaseConfig) (*RemoteSource, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		PrepareStmt: true,
	}

	db, err := gorm.Open(postgres.Open(BuildDSN(cfg)), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// connection pool settings
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	remote := NewRemoteSource(db)
	if err := remote.Migrate(); err != nil {
		return nil, err
	}

	createIndexes(db)
	return remote, nil
}

// createIndexes creates database indexes for better query performance
func createIndexes(db *gorm.DB) {
	db.Exec("CREATE INDEX IF NOT EXISTS idx_remote_orders_status ON remote_orders(status)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_remote_orders_created_at ON remote_orders(created_at)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_remote_orders_table_id ON remote_orders(table_id)")
}
