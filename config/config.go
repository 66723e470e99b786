package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// Server configuration
	Server struct {
		// Port the dashboard API listens on
		Port string `env:"SERVER_PORT" envDefault:"5250"`

		// Origins allowed by CORS, comma separated
		CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	}

	// Marketplace core API configuration
	Marketplace struct {
		// Base URL of the marketplace core API
		BaseURL string `env:"MARKETPLACE_BASE_URL" envDefault:"http://localhost:8080"`

		// Request timeout in seconds
		TimeoutSeconds int `env:"MARKETPLACE_TIMEOUT" envDefault:"15"`
	}

	// Listing view configuration
	Listing struct {
		// Quiet period after the last search edit before a request fires (ms)
		DebounceMillis int `env:"LIST_DEBOUNCE_MS" envDefault:"300"`
	}

	// Draft autosave configuration
	Drafts struct {
		// Path of the local sqlite database holding draft autosaves
		DBPath string `env:"DRAFTS_DB_PATH" envDefault:"database/drafts.db"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
