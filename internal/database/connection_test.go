package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/customeros/inboxsync/config"
)

func TestValidateConfig(t *testing.T) {
	require.Error(t, validateConfig(nil))

	cfg := &config.DatabaseConfig{Host: "localhost", Port: "5432", User: "u", Password: "p", DBName: "inbox", SSLMode: "disable"}
	require.NoError(t, validateConfig(cfg))

	cfg.SSLMode = ""
	assert.EqualError(t, validateConfig(cfg), "database SSLMode config is empty")
}

func TestNewConnection_InvalidPort(t *testing.T) {
	cfg := &config.DatabaseConfig{Host: "localhost", Port: "pg", User: "u", Password: "p", DBName: "inbox", SSLMode: "disable"}
	_, err := NewConnection(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port number")
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Warn, gormLogLevel("WARN"))
	assert.Equal(t, gormlogger.Info, gormLogLevel("info"))
	assert.Equal(t, gormlogger.Silent, gormLogLevel("silent"))
	assert.Equal(t, gormlogger.Warn, gormLogLevel("unknown"))
}
