package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, 7, cfg.Runner.Capacity)
	assert.Equal(t, 1, cfg.Runner.RPM["gemini"])
	assert.Equal(t, 50, cfg.Runner.RPM["chatgpt"])
	assert.Equal(t, "0 6 * * *", cfg.Inngest.DailyCron)
	assert.Equal(t, "0 7 * * *", cfg.Inngest.MapsCron)
	assert.Equal(t, "https://places.googleapis.com/v1", cfg.Places.BaseURL)
	assert.Equal(t, "admin", cfg.Auth.AdminRole)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRACKER_PORT", "9090")
	t.Setenv("TRACKER_OPENAI_API_KEY", "sk-test")
	t.Setenv("TRACKER_DATABASE_URL", "postgres://u:p@db.internal:6543/tracker?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "u", cfg.Database.User)
	assert.Equal(t, "p", cfg.Database.Password)
	assert.Equal(t, "tracker", cfg.Database.Name)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "require"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=require", d.DSN())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.Error(t, InitLogger(LogConfig{Level: "loud"}))
}

func TestAuthConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, AuthConfig{}.Validate(), ErrMissingJWTSecret)
	assert.ErrorIs(t, AuthConfig{JWTSecret: "   "}.Validate(), ErrMissingJWTSecret)
	assert.NoError(t, AuthConfig{JWTSecret: "s3cret"}.Validate())
}
