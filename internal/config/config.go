package config

import (
	"fmt"
	"supmap-directions/internal/gis/directions"
	"supmap-directions/internal/navigation"
	"time"

	"github.com/caarlos0/env/v11"
)

type Env string

const (
	EnvProd Env = "prod"
	EnvDev  Env = "dev"
)

func (e Env) IsValid() bool {
	switch e {
	case EnvProd, EnvDev:
		return true
	}
	return false
}

type Config struct {
	APIServerHost           string                `env:"API_SERVER_HOST"`
	APIServerPort           string                `env:"API_SERVER_PORT" envDefault:"8081"`
	RedisHost               string                `env:"REDIS_HOST"`
	RedisPort               string                `env:"REDIS_PORT" envDefault:"6379"`
	RedisIncidentsChannel   string                `env:"REDIS_INCIDENTS_CHANNEL" envDefault:"incidents"`
	DirectionsBaseURL       string                `env:"DIRECTIONS_BASE_URL" envDefault:"https://maps.googleapis.com/maps/api/directions/json"`
	DirectionsAPIKey        string                `env:"DIRECTIONS_API_KEY,required,notEmpty"`
	DirectionsTimeout       time.Duration         `env:"DIRECTIONS_TIMEOUT" envDefault:"7s"`
	TravelMode              directions.TravelMode `env:"TRAVEL_MODE" envDefault:"driving"`
	SessionTTL              time.Duration         `env:"SESSION_TTL" envDefault:"30m"`
	ViewportPadding         Padding
	IncidentToleranceMeters float64 `env:"INCIDENT_TOLERANCE_METERS" envDefault:"30"`
	Env                     Env     `env:"ENV" envDefault:"prod"`
}

// Padding is the edge padding, in device-independent pixels, of fitted viewports.
type Padding struct {
	Top    int `env:"VIEWPORT_PADDING_TOP" envDefault:"200"`
	Bottom int `env:"VIEWPORT_PADDING_BOTTOM" envDefault:"80"`
	Left   int `env:"VIEWPORT_PADDING_LEFT" envDefault:"40"`
	Right  int `env:"VIEWPORT_PADDING_RIGHT" envDefault:"40"`
}

func (p Padding) EdgePadding() navigation.EdgePadding {
	return navigation.EdgePadding{Top: p.Top, Bottom: p.Bottom, Left: p.Left, Right: p.Right}
}

func New() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Env.IsValid() {
		return nil, fmt.Errorf("invalid env variable (must be 'prod' or 'dev')")
	}
	if !cfg.TravelMode.IsValid() {
		return nil, fmt.Errorf("invalid travel mode %q", cfg.TravelMode)
	}
	if cfg.DirectionsTimeout <= 0 {
		return nil, fmt.Errorf("directions timeout must be positive, got %s", cfg.DirectionsTimeout)
	}
	if cfg.IncidentToleranceMeters < 0 {
		return nil, fmt.Errorf("incident tolerance must not be negative, got %g", cfg.IncidentToleranceMeters)
	}
	return &cfg, nil
}
