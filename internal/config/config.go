package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/sakaguchiii/bus-notification/internal/domain"
)

// minPollInterval is the finest polling resolution the bot supports.
const minPollInterval = 15 * time.Second

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken    string `envconfig:"BOT_TOKEN" required:"true" validate:"required"`
	RunMode     string `envconfig:"RUN_MODE" default:"polling" validate:"oneof=polling webhook"`
	WebhookURL  string `envconfig:"WEBHOOK_URL" validate:"required_if=RunMode webhook"`
	WebhookPath string `envconfig:"WEBHOOK_PATH" default:"/telegram/webhook" validate:"startswith=/"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080" validate:"required"`
	TZ          string `envconfig:"TZ" default:"Asia/Tokyo"`

	DBPath    string `envconfig:"DB_PATH" default:"./data/bus.db" validate:"required"`
	StopsFile string `envconfig:"STOPS_FILE"` // optional YAML stop list, upserted at startup

	BusVisionBaseURL string        `envconfig:"BUSVISION_BASE_URL" default:"https://bus-vision.jp/sanco/view/" validate:"url"`
	FetchTimeout     time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s" validate:"gt=0"`
	FetchRatePerSec  float64       `envconfig:"FETCH_RATE_PER_SEC" default:"2" validate:"gt=0"`
	FetchBurst       int           `envconfig:"FETCH_BURST" default:"2" validate:"min=1"`
	FetchRetries     int           `envconfig:"FETCH_RETRIES" default:"2" validate:"min=0,max=5"`

	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"15s"`
	ActivationCheck time.Duration `envconfig:"ACTIVATION_CHECK_INTERVAL" default:"1s" validate:"gt=0"`
	MonitorLead     time.Duration `envconfig:"MONITOR_LEAD" default:"7m" validate:"gt=0"`
	MonitorTail     time.Duration `envconfig:"MONITOR_TAIL" default:"5m" validate:"gt=0"`

	MaxCandidates int           `envconfig:"MAX_CANDIDATES" default:"5" validate:"min=5,max=8"`
	FavoriteStops []string      `envconfig:"FAVORITE_STOPS" default:"乙部朝日,藤枝東"`
	TimePresets   []string      `envconfig:"TIME_PRESETS" default:"07:30,08:00,08:30,18:00,18:30" validate:"max=10"`
	DedupTTL      time.Duration `envconfig:"DEDUP_TTL" default:"1h"`
	DedupSize     int           `envconfig:"DEDUP_SIZE" default:"10000" validate:"min=1"`
}

// Load reads environment variables into Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.PollInterval < minPollInterval {
		return fmt.Errorf("invalid config: POLL_INTERVAL %s is below %s", c.PollInterval, minPollInterval)
	}
	if _, err := time.LoadLocation(c.TZ); err != nil {
		return fmt.Errorf("invalid config: TZ: %w", err)
	}
	if _, err := c.Clocks(); err != nil {
		return fmt.Errorf("invalid config: TIME_PRESETS: %w", err)
	}
	return nil
}

// Location returns the configured time zone, falling back to Asia/Tokyo.
func (c Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.TZ); err == nil {
		return loc
	}
	return time.FixedZone("JST", 9*60*60)
}

// Clocks parses the departure time presets.
func (c Config) Clocks() ([]domain.Clock, error) {
	out := make([]domain.Clock, 0, len(c.TimePresets))
	var errs []error
	for _, p := range c.TimePresets {
		clk, err := domain.ParseClock(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, clk)
	}
	return out, errors.Join(errs...)
}
