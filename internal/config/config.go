package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/geohunt.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir   string     `env:"SPA_DIR" envDefault:"../web/dist"`
	RedisURL string     `env:"REDIS_URL"`

	TotalChallenges   int  `env:"TOTAL_CHALLENGES" envDefault:"40"`
	PictureChallenges int  `env:"PICTURE_CHALLENGES" envDefault:"20"`
	RiddleChallenges  int  `env:"RIDDLE_CHALLENGES" envDefault:"20"`
	ShuffleChallenges bool `env:"SHUFFLE_CHALLENGES" envDefault:"true"`

	MaxSkips      int           `env:"MAX_SKIPS" envDefault:"3"`
	SkipPenalty   int           `env:"SKIP_PENALTY" envDefault:"5"`
	Cooldown      time.Duration `env:"COOLDOWN" envDefault:"60s"`
	CASMaxRetries int           `env:"CAS_MAX_RETRIES" envDefault:"5"`

	DefaultDataset      string        `env:"DEFAULT_DATASET" envDefault:"A"`
	DefaultGameDuration time.Duration `env:"DEFAULT_GAME_DURATION" envDefault:"2h"`
	PreservedTeams      []string      `env:"PRESERVED_TEAMS" envSeparator:","`

	AdminEmail        string `env:"ADMIN_EMAIL" envDefault:"admin@geohunt.local"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`

	LoginRate  float64 `env:"LOGIN_RATE" envDefault:"1"`
	LoginBurst int     `env:"LOGIN_BURST" envDefault:"5"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.TotalChallenges <= 0 {
		errs = append(errs, errors.New("TOTAL_CHALLENGES must be positive"))
	}
	if c.PictureChallenges < 0 || c.RiddleChallenges < 0 ||
		c.PictureChallenges+c.RiddleChallenges != c.TotalChallenges {
		errs = append(errs, errors.New("PICTURE_CHALLENGES + RIDDLE_CHALLENGES must equal TOTAL_CHALLENGES"))
	}
	if c.MaxSkips < 0 {
		errs = append(errs, errors.New("MAX_SKIPS must not be negative"))
	}
	if c.SkipPenalty < 0 {
		errs = append(errs, errors.New("SKIP_PENALTY must not be negative"))
	}
	if c.Cooldown < 0 {
		errs = append(errs, errors.New("COOLDOWN must not be negative"))
	}
	if c.CASMaxRetries <= 0 {
		errs = append(errs, errors.New("CAS_MAX_RETRIES must be positive"))
	}
	if c.DefaultGameDuration <= 0 {
		errs = append(errs, errors.New("DEFAULT_GAME_DURATION must be positive"))
	}
	if c.LoginRate <= 0 || c.LoginBurst <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE and LOGIN_BURST must be positive"))
	}
	return errors.Join(errs...)
}
