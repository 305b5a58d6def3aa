package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakaguchiii/bus-notification/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("TZ", "Asia/Tokyo")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "polling", cfg.RunMode)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, 7*time.Minute, cfg.MonitorLead)
	assert.Equal(t, 5*time.Minute, cfg.MonitorTail)
	assert.Equal(t, 5, cfg.MaxCandidates)
	assert.Equal(t, []string{"乙部朝日", "藤枝東"}, cfg.FavoriteStops)

	clocks, err := cfg.Clocks()
	require.NoError(t, err)
	require.Len(t, clocks, 5)
	assert.Equal(t, domain.Clock{Hour: 7, Minute: 30}, clocks[0])
	assert.Equal(t, "Asia/Tokyo", cfg.Location().String())
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	_, err := Load()
	require.Error(t, err)
}

func validConfig() Config {
	return Config{
		BotToken:         "123:abc",
		RunMode:          "polling",
		WebhookPath:      "/telegram/webhook",
		LogLevel:         "info",
		HTTPAddr:         ":8080",
		TZ:               "Asia/Tokyo",
		DBPath:           "bus.db",
		BusVisionBaseURL: "https://bus-vision.jp/sanco/view/",
		FetchTimeout:     10 * time.Second,
		FetchRatePerSec:  2,
		FetchBurst:       2,
		PollInterval:     15 * time.Second,
		ActivationCheck:  time.Second,
		MonitorLead:      7 * time.Minute,
		MonitorTail:      5 * time.Minute,
		MaxCandidates:    5,
		TimePresets:      []string{"08:00"},
		DedupSize:        100,
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "valid", mutate: func(*Config) {}, ok: true},
		{name: "poll interval below 15s", mutate: func(c *Config) { c.PollInterval = 5 * time.Second }},
		{name: "unknown run mode", mutate: func(c *Config) { c.RunMode = "push" }},
		{name: "webhook without url", mutate: func(c *Config) { c.RunMode = "webhook" }},
		{name: "webhook with url", mutate: func(c *Config) {
			c.RunMode = "webhook"
			c.WebhookURL = "https://example.com/telegram/webhook"
		}, ok: true},
		{name: "too many candidates", mutate: func(c *Config) { c.MaxCandidates = 9 }},
		{name: "bad preset", mutate: func(c *Config) { c.TimePresets = []string{"25:99"} }},
		{name: "bad time zone", mutate: func(c *Config) { c.TZ = "Mars/Olympus" }},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "trace" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
