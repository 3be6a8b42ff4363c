package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("STOP_TIMEOUT", "45")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("NOTIFY_LANG", "ru")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, 45*time.Second, cfg.Minecraft.StopTimeout)
	assert.Equal(t, int64(-100123), cfg.Notify.TelegramChatID)
	assert.Equal(t, "RU", cfg.Notify.Lang)
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "STORAGE_DRIVER", "CONSOLE_MAX_LINES", "NOTIFY_MODE", "TOKEN_TTL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, 1000, cfg.Minecraft.ConsoleMaxLines)
	assert.Equal(t, 7, cfg.Notify.Mode)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
}

func TestLocation(t *testing.T) {
	cfg := &AppConfig{Timezone: "Not/AZone"}
	assert.Equal(t, time.UTC, cfg.Location())

	cfg.Timezone = "UTC"
	assert.Equal(t, "UTC", cfg.Location().String())
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	os.Setenv(key, "value")
	defer os.Unsetenv(key)

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	os.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	os.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	os.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	os.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	os.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	os.Unsetenv(key)
	assert.Equal(t, 10, getEnvInt(key, 10))
}

func TestGetEnvDuration(t *testing.T) {
	key := "TEST_DURATION_VAR"

	t.Setenv(key, "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration(key, time.Second))

	t.Setenv(key, "12")
	assert.Equal(t, 12*time.Second, getEnvDuration(key, time.Second))

	t.Setenv(key, "soon")
	assert.Equal(t, time.Second, getEnvDuration(key, time.Second))
}
