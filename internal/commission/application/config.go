package application

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config controls the commission sweep.
type Config struct {
	// Rate is the commission fraction applied at read time.
	Rate float64 `yaml:"rate"`
	// BatchSize bounds how many finished trades one sweep picks up.
	BatchSize int `yaml:"batch_size"`
	// DailyAt is the UTC wall-clock time ("15:04") of the scheduled run.
	DailyAt string `yaml:"daily_at"`
	// AdminRecipientID receives sweep notifications.
	AdminRecipientID string `yaml:"admin_recipient_id"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Rate:      0.05,
		BatchSize: 100,
		DailyAt:   "02:00",
	}
}

// LoadConfig reads the YAML config file when path is non-empty, then
// applies environment overrides. A missing file at an explicit path is an
// error; env-only operation passes an empty path.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if v := os.Getenv("COMMISSION_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, errors.New("commission: COMMISSION_RATE must be a float")
		}
		cfg.Rate = rate
	}
	if v := os.Getenv("COMMISSION_BATCH_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return cfg, errors.New("commission: COMMISSION_BATCH_SIZE must be an integer")
		}
		cfg.BatchSize = size
	}
	if v := os.Getenv("COMMISSION_DAILY_AT"); v != "" {
		cfg.DailyAt = v
	}
	if v := os.Getenv("COMMISSION_ADMIN_RECIPIENT"); v != "" {
		cfg.AdminRecipientID = v
	}

	return cfg, cfg.Validate()
}

// Validate checks config invariants.
func (c Config) Validate() error {
	if c.Rate <= 0 || c.Rate >= 1 {
		return errors.New("commission: rate must be in (0, 1)")
	}
	if c.BatchSize <= 0 {
		return errors.New("commission: batch_size must be positive")
	}
	if _, err := time.Parse("15:04", c.DailyAt); err != nil {
		return errors.New("commission: daily_at must be HH:MM")
	}
	return nil
}
