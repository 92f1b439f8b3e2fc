package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rewired-gh/elecwatch/internal/models"
	"github.com/rewired-gh/elecwatch/internal/storage"
)

// ErrNoUnits is returned when neither the environment nor the units file
// provides a unit list.
var ErrNoUnits = errors.New("no unit configuration found")

// LoadUnits reads the unit list from the environment variable named by
// c.Units.Env, falling back to c.Units.File. Every unit is validated and keys
// must be unique.
func (c *Config) LoadUnits() ([]models.Unit, error) {
	data, source, err := c.unitsSource()
	if err != nil {
		return nil, err
	}
	return ParseUnits(data, source)
}

func (c *Config) unitsSource() ([]byte, string, error) {
	if c.Units.Env != "" {
		if raw, ok := os.LookupEnv(c.Units.Env); ok && raw != "" {
			return []byte(raw), "$" + c.Units.Env, nil
		}
	}
	if c.Units.File != "" {
		data, err := os.ReadFile(c.Units.File)
		if err == nil {
			return data, c.Units.File, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("failed to read %s: %w", c.Units.File, err)
		}
	}
	return nil, "", ErrNoUnits
}

// ParseUnits decodes and validates a JSON unit list. source names the origin
// in error messages.
func ParseUnits(data []byte, source string) ([]models.Unit, error) {
	var units []models.Unit
	if err := json.Unmarshal(data, &units); err != nil {
		return nil, fmt.Errorf("%s: malformed unit list: %w", source, err)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrNoUnits)
	}

	seen := make(map[string]bool, len(units))
	for i := range units {
		if err := units[i].Validate(); err != nil {
			return nil, fmt.Errorf("%s: unit %d: %w", source, i, err)
		}
		key := units[i].Key()
		if seen[key] {
			return nil, fmt.Errorf("%s: duplicate unit id %q", source, key)
		}
		seen[key] = true
	}
	return units, nil
}

// PublicUnits returns the redacted view of units.
func PublicUnits(units []models.Unit) []models.PublicUnit {
	out := make([]models.PublicUnit, 0, len(units))
	for _, u := range units {
		out = append(out, u.Public())
	}
	return out
}

// WritePublicUnits writes the redacted unit list to path atomically.
func WritePublicUnits(path string, units []models.Unit) error {
	data, err := json.MarshalIndent(PublicUnits(units), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal public units: %w", err)
	}
	if err := storage.WriteFileAtomic(path, append(data, '\n'), 0o644, 0o755); err != nil {
		return fmt.Errorf("failed to write public units: %w", err)
	}
	return nil
}
