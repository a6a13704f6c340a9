package config

import (
	"github.com/spf13/viper"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL          string
	Migrate      bool
	MaxOpenConns int
	MaxIdleConns int
}

// NewDatabaseConfig creates a new database configuration using Viper
func NewDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:          viper.GetString(DBURL),
		Migrate:      viper.GetBool(DBMigrate),
		MaxOpenConns: viper.GetInt(DBMaxOpenConns),
		MaxIdleConns: viper.GetInt(DBMaxIdleConns),
	}
}

// GetConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return c.URL
}
