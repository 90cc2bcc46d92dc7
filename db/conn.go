// Package db opens the metadata store. Postgres is used in production and
// SQLite for local runs and tests.
package db

import (
	"bitwise74/fileshare-api/internal/model"
	"bitwise74/fileshare-api/pkg/util"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}
}

func New() (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch viper.GetString("db.driver") {
	case "sqlite":
		db, err = NewSQLite(viper.GetString("db.path"))
	default:
		db, err = gorm.Open(postgres.Open(PostgresDSN()), gormConfig())
		if err != nil {
			err = fmt.Errorf("failed to connect to postgres, %w", err)
		}
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// PostgresDSN builds the connection string from the db.* config keys
func PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		viper.GetString("db.host"),
		viper.GetInt("db.port"),
		viper.GetString("db.user"),
		viper.GetString("db.password"),
		viper.GetString("db.name"),
		viper.GetString("db.sslmode"),
	)
}

// NewSQLite opens a SQLite database at p. Use ":memory:" for a throwaway one.
func NewSQLite(p string) (*gorm.DB, error) {
	// If running in a docker container don't allow the sqlite file to be created.
	// The host should instead mount it using volumes
	if p != ":memory:" && util.IsRunningInDocker() {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("SQLite database file not mounted, please use docker volumes to mount it to /app/%s", p)
		}
	}

	db, err := gorm.Open(sqlite.Open(p), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite database, %w", err)
	}

	if p == ":memory:" {
		// Every new connection would get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(model.User{}, model.Stats{}, model.File{}, model.UploadSlot{})
	if err != nil {
		return fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return nil
}
