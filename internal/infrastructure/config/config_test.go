package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"SURV_APP_NAME":                 os.Getenv("SURV_APP_NAME"),
		"SURV_APP_ENV":                  os.Getenv("SURV_APP_ENV"),
		"SURV_APP_PORT":                 os.Getenv("SURV_APP_PORT"),
		"SURV_DATABASE_HOST":            os.Getenv("SURV_DATABASE_HOST"),
		"SURV_DATABASE_PORT":            os.Getenv("SURV_DATABASE_PORT"),
		"SURV_DATABASE_USER":            os.Getenv("SURV_DATABASE_USER"),
		"SURV_DATABASE_PASSWORD":        os.Getenv("SURV_DATABASE_PASSWORD"),
		"SURV_DATABASE_DBNAME":          os.Getenv("SURV_DATABASE_DBNAME"),
		"SURV_DATABASE_SSLMODE":         os.Getenv("SURV_DATABASE_SSLMODE"),
		"SURV_DATABASE_MAX_OPEN_CONNS":  os.Getenv("SURV_DATABASE_MAX_OPEN_CONNS"),
		"SURV_DATABASE_MAX_IDLE_CONNS":  os.Getenv("SURV_DATABASE_MAX_IDLE_CONNS"),
		"SURV_DATASET_OBSERVATION_YEAR": os.Getenv("SURV_DATASET_OBSERVATION_YEAR"),
		"SURV_DATASET_CLOSED_STAGE":     os.Getenv("SURV_DATASET_CLOSED_STAGE"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "survival-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres", cfg.Database.User)
		assert.Equal(t, "loans", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 2021, cfg.Dataset.ObservationYear)
		assert.Equal(t, 6, cfg.Dataset.ClosedStage)
		assert.Equal(t, 1, cfg.Dataset.RelationMarried)
		assert.Equal(t, 2, cfg.Dataset.RelationDependent)
		assert.Equal(t, "0 2 * * *", cfg.Scheduler.CronSchedule)
		assert.Equal(t, 30*time.Minute, cfg.Scheduler.JobTimeout)
		assert.False(t, cfg.RedisEnabled())
	})

	t.Run("loads values from environment variables with SURV prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("SURV_APP_NAME", "test-app")
		os.Setenv("SURV_APP_ENV", "testing")
		os.Setenv("SURV_DATABASE_HOST", "testdb.local")
		os.Setenv("SURV_DATABASE_PORT", "5433")
		os.Setenv("SURV_DATASET_OBSERVATION_YEAR", "2022")
		os.Setenv("SURV_DATASET_CLOSED_STAGE", "9")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 2022, cfg.Dataset.ObservationYear)
		assert.Equal(t, 9, cfg.Dataset.ClosedStage)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("SURV_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("SURV_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("validates observation year range", func(t *testing.T) {
		clearEnv()
		os.Setenv("SURV_DATASET_OBSERVATION_YEAR", "21")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "observation_year")
	})

	t.Run("requires database password in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("SURV_APP_ENV", "production")
		os.Setenv("SURV_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("rejects sslmode disable in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("SURV_APP_ENV", "production")
		os.Setenv("SURV_DATABASE_PASSWORD", "secure-password")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "pass%40word%23123")
	})
}
