package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellkit/core"
)

func TestLoad(t *testing.T) {
	// Test loading default config
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify defaults
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Empty(t, cfg.Catalog.Path)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WELLKIT_SERVER_ADDR", ":7000")
	t.Setenv("WELLKIT_STORAGE_ADAPTER", "file")
	t.Setenv("WELLKIT_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.Equal(t, "file", cfg.Storage.Adapter)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	// Create a temporary config file
	configContent := `{
		"environment": "testing",
		"server": {
			"address": ":9090"
		},
		"storage": {
			"adapter": "memory"
		}
	}`

	tmpFile, err := os.CreateTemp("", "config_test_*.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(configContent)
	require.NoError(t, err)
	tmpFile.Close()

	// Load config from file
	cfg, err := LoadFromFile(tmpFile.Name())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify loaded values
	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:        "valid defaults",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name:        "empty environment",
			mutate:      func(c *Config) { c.Environment = "" },
			expectError: true,
		},
		{
			name:        "bad adapter",
			mutate:      func(c *Config) { c.Storage.Adapter = "mongodb" },
			expectError: true,
		},
		{
			name:        "bad log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
		},
		{
			name:        "zero server timeout",
			mutate:      func(c *Config) { c.Server.ReadTimeout = 0 },
			expectError: true,
		},
		{
			name: "rate limit enabled without limits",
			mutate: func(c *Config) {
				c.Security.EnableRateLimit = true
				c.Security.RateLimit = RateLimitConfig{CleanupInterval: time.Minute}
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultRulebook(t *testing.T) {
	rb := DefaultRulebook()
	require.NoError(t, rb.Validate())

	// All 14 activity types must have a rate.
	assert.Len(t, rb.Rewards, 14)
	steps, ok := rb.Rate(core.ActivitySteps)
	require.True(t, ok)
	require.NotNil(t, steps.Formula)
	assert.Equal(t, int64(20), steps.DailyCap)

	mood, ok := rb.Rate(core.ActivityMood)
	require.True(t, ok)
	assert.Equal(t, int64(20), mood.Base)

	assert.Equal(t, int64(200), rb.Level.CoinsPerLevel)
	assert.Equal(t, 100, rb.Level.MaxLevel)
	assert.Len(t, rb.StreakMilestones, 8)
	assert.Len(t, rb.ActiveQuests(), 10)
	assert.Len(t, rb.ActiveBadges(), 16)
}

func TestLoadRulebookFromFile(t *testing.T) {
	catalog := `{
		"rewards": {
			"mood": {"base": 15, "daily_cap": 15, "description": "Mood logged"},
			"steps": {"formula": {"field": "steps", "divisor": 2000}, "daily_cap": 10}
		},
		"quests": [
			{
				"id": "weekend-walker",
				"title": "Weekend Walker",
				"condition": "thisWeek.steps >= 20000",
				"reward_coins": 40,
				"reset_period": "weekly",
				"is_active": true
			}
		]
	}`

	tmpFile, err := os.CreateTemp("", "catalog_test_*.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(catalog)
	require.NoError(t, err)
	tmpFile.Close()

	rb, err := LoadRulebook(tmpFile.Name())
	require.NoError(t, err)

	mood, ok := rb.Rate(core.ActivityMood)
	require.True(t, ok)
	assert.Equal(t, int64(15), mood.Base)

	// Missing sections fall back to defaults.
	assert.Equal(t, int64(200), rb.Level.CoinsPerLevel)
	assert.NotEmpty(t, rb.StreakTiers)

	quests := rb.ActiveQuests()
	require.Len(t, quests, 1)
	assert.Equal(t, "weekend-walker", quests[0].ID)
}

func TestLoadRulebookRejectsUnknownField(t *testing.T) {
	catalog := `{
		"rewards": {"mood": {"base": 15, "daily_cap": 15}},
		"quests": [
			{
				"id": "broken",
				"title": "Broken",
				"condition": "totals.noSuchCounter >= 1",
				"reward_coins": 5,
				"reset_period": "none",
				"is_active": true
			}
		]
	}`

	tmpFile, err := os.CreateTemp("", "catalog_bad_*.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(catalog)
	require.NoError(t, err)
	tmpFile.Close()

	_, err = LoadRulebook(tmpFile.Name())
	assert.Error(t, err)
}

func TestLoadRulebookEmptyPathUsesDefaults(t *testing.T) {
	rb, err := LoadRulebook("")
	require.NoError(t, err)
	assert.Len(t, rb.Rewards, 14)
}
