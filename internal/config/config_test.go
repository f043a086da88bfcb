package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		JWTSecret:        "secure-secret-at-least-32-chars-long!!",
		Port:             "8420",
		DBPassword:       "secure-password",
		Env:              "development",
		SweepIntervalMin: 5,
		MediaMode:        "local",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"Valid Development", func(c *Config) {}, false},
		{"Missing Port", func(c *Config) { c.Port = "" }, true},
		{"Missing JWT Secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"Zero Sweep Interval", func(c *Config) { c.SweepIntervalMin = 0 }, true},
		{"Unknown Media Mode", func(c *Config) { c.MediaMode = "s3" }, true},
		{"Remote Media Without URL", func(c *Config) {
			c.MediaMode = "remote"
			c.MediaRemoteURL = ""
		}, true},
		{"Remote Media With URL", func(c *Config) {
			c.MediaMode = "remote"
			c.MediaRemoteURL = "http://resizer:9000"
		}, false},
		{"Production Default Secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = "your-secret-key-change-in-production"
		}, true},
		{"Production Short Secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = "short"
		}, true},
		{"Production Weak DB Password", func(c *Config) {
			c.Env = "production"
			c.DBPassword = "password"
		}, true},
		{"Production Valid", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "require"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	envKeys := []string{"APP_ENV", "PORT", "JWT_SECRET", "MEDIA_MODE", "MEDIA_REMOTE_URL", "FEATURE_FLAGS"}
	defer func() {
		for _, key := range envKeys {
			_ = os.Unsetenv(key)
		}
		viper.Reset()
	}()

	os.Setenv("APP_ENV", "development")
	os.Setenv("PORT", "9999")
	os.Setenv("JWT_SECRET", "env-secret-that-is-at-least-32-chars")
	os.Setenv("MEDIA_MODE", "remote")
	os.Setenv("MEDIA_REMOTE_URL", "http://resizer:9000")
	os.Setenv("FEATURE_FLAGS", "redis_fanout=on")

	c, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "9999", c.Port)
	assert.Equal(t, "env-secret-that-is-at-least-32-chars", c.JWTSecret)
	assert.Equal(t, "remote", c.MediaMode)
	assert.Equal(t, "http://resizer:9000", c.MediaRemoteURL)
	assert.Equal(t, "redis_fanout=on", c.FeatureFlags)
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer func() {
		_ = os.Unsetenv("APP_ENV")
		viper.Reset()
	}()
	os.Setenv("APP_ENV", "development")

	c, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "local", c.MediaMode)
	assert.Positive(t, c.SweepIntervalMin)
	assert.Positive(t, c.MediaMaxUploadMB)
	assert.NotEmpty(t, c.Port)
}
