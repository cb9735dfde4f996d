// database_utils should be the canonical place to put shared DB utils.
// It should not include:
// 1. Any util that doesn't manipulate DB
// 2. Any util that contains business logic
package utils

import (
	"fmt"
	"net/url"
	"os"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	SqlServerDriver = "sqlserver"
	PostgresDriver  = "postgres"
)

// SourceDBConfig holds everything needed to reach the relational source view.
type SourceDBConfig struct {
	Driver   string
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// SourceDBConfigFromEnv reads SQL_* variables.
func SourceDBConfigFromEnv() SourceDBConfig {
	return SourceDBConfig{
		Driver:   EnvOrDefault("SQL_DRIVER", SqlServerDriver),
		Host:     os.Getenv("SQL_SERVER"),
		Port:     os.Getenv("SQL_PORT"),
		Database: os.Getenv("SQL_DATABASE"),
		User:     os.Getenv("SQL_USER"),
		Password: os.Getenv("SQL_PASSWORD"),
	}
}

// DSN renders the connection string for the configured driver.
func (c SourceDBConfig) DSN() (string, error) {
	switch c.Driver {
	case SqlServerDriver:
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.User, c.Password),
			Host:     c.Host,
			RawQuery: url.Values{"database": {c.Database}, "encrypt": {"true"}}.Encode(),
		}
		if c.Port != "" {
			u.Host = c.Host + ":" + c.Port
		}
		return u.String(), nil
	case PostgresDriver:
		port := c.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			c.Host, c.User, c.Password, c.Database, port), nil
	}
	return "", errors.Errorf("unsupported SQL_DRIVER %q", c.Driver)
}

// GetSourceDBConnection get a connection to the source database specified by env
func GetSourceDBConnection() (*gorm.DB, error) {
	return GetCustomizedConnection(SourceDBConfigFromEnv())
}

// GetCustomizedConnection connect to any supported db
func GetCustomizedConnection(c SourceDBConfig) (*gorm.DB, error) {
	dsn, err := c.DSN()
	if err != nil {
		return nil, err
	}
	var dialector gorm.Dialector
	if c.Driver == PostgresDriver {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlserver.Open(dsn)
	}
	db, err := getDB(dialector)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to connect to %s database %s", c.Driver, c.Database)
	}
	return db, nil
}

// GetLedgerDBConnection connects to the postgres database holding sync run
// records, configured through LEDGER_DB_* variables.
func GetLedgerDBConnection() (*gorm.DB, error) {
	return GetCustomizedConnection(SourceDBConfig{
		Driver:   PostgresDriver,
		Host:     os.Getenv("LEDGER_DB_HOST"),
		Port:     os.Getenv("LEDGER_DB_PORT"),
		Database: os.Getenv("LEDGER_DB_NAME"),
		User:     os.Getenv("LEDGER_DB_USER"),
		Password: os.Getenv("LEDGER_DB_PASS"),
	})
}

// CloseDB releases the pooled connection behind a gorm handle. Safe on nil.
func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func getDB(dialector gorm.Dialector) (db *gorm.DB, err error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}
