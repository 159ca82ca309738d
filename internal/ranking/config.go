package ranking

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Bonuses are the additive score increments for profile matches.
type Bonuses struct {
	Category     float64 `json:"category"`     // Candidate shares a category with a favorite (default: 2.0)
	Municipality float64 `json:"municipality"` // Candidate is in a favorited municipality (default: 1.0)
	Territory    float64 `json:"territory"`    // Candidate is in a favorited territory (default: 0.5)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Bonuses Bonuses `json:"bonuses"`
}

// Default request sizing. The candidate pool is an oversample of the index
// used for personalized requests; it has no derivation beyond being larger
// than MaxSize.
const (
	DefaultSize              = 10
	MinSize                  = 1
	MaxSize                  = 50
	DefaultCandidatePoolSize = 200
)

// Configuration errors.
var (
	ErrInvalidSizeBounds = errors.New("ranking size bounds must satisfy 1 <= min <= default <= max")
	ErrInvalidPoolSize   = errors.New("candidate pool size must be positive")
)

// Config controls request sizing and scoring for a Ranker.
type Config struct {
	DefaultSize       int
	MinSize           int
	MaxSize           int
	CandidatePoolSize int
	Bonuses           Bonuses
}

// DefaultBonuses returns the default bonus configuration.
//
// Formula: score = base + category(2.0) + municipality(1.0) + territory(0.5)
// - A shared category dominates: it is the strongest signal of taste
// - Municipality beats territory since it is the narrower area
func DefaultBonuses() Bonuses {
	return Bonuses{
		Category:     2.0,
		Municipality: 1.0,
		Territory:    0.5,
	}
}

// DefaultConfig returns a Config with the default sizes and bonuses.
func DefaultConfig() Config {
	return Config{
		DefaultSize:       DefaultSize,
		MinSize:           MinSize,
		MaxSize:           MaxSize,
		CandidatePoolSize: DefaultCandidatePoolSize,
		Bonuses:           DefaultBonuses(),
	}
}

// Validate checks size bounds and pool size.
func (c Config) Validate() error {
	if c.MinSize < 1 || c.MinSize > c.DefaultSize || c.DefaultSize > c.MaxSize {
		return ErrInvalidSizeBounds
	}
	if c.CandidatePoolSize <= 0 {
		return ErrInvalidPoolSize
	}
	return nil
}

// ClampSize returns size bounded to [MinSize, MaxSize].
func (c Config) ClampSize(size int) int {
	if size < c.MinSize {
		return c.MinSize
	}
	if size > c.MaxSize {
		return c.MaxSize
	}
	return size
}

// LoadCalibration loads bonuses from a JSON calibration file.
// An empty path yields the defaults without error. On read or parse failure
// the defaults are returned together with the error so callers can degrade
// gracefully. Partial files are merged over the defaults.
func LoadCalibration(filePath string) (Bonuses, error) {
	if filePath == "" {
		return DefaultBonuses(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultBonuses(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultBonuses(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultBonuses()
	merged := MergeCalibration(defaults, config.Bonuses)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration applies the non-zero values of override onto base.
func MergeCalibration(base, override Bonuses) Bonuses {
	result := base
	if override.Category != 0 {
		result.Category = override.Category
	}
	if override.Municipality != 0 {
		result.Municipality = override.Municipality
	}
	if override.Territory != 0 {
		result.Territory = override.Territory
	}
	return result
}

// logCalibrationOverrides logs which bonuses differ from the defaults.
func logCalibrationOverrides(defaults, loaded Bonuses) {
	var overrides []string

	if loaded.Category != defaults.Category {
		overrides = append(overrides, fmt.Sprintf("category: %.2f -> %.2f",
			defaults.Category, loaded.Category))
	}
	if loaded.Municipality != defaults.Municipality {
		overrides = append(overrides, fmt.Sprintf("municipality: %.2f -> %.2f",
			defaults.Municipality, loaded.Municipality))
	}
	if loaded.Territory != defaults.Territory {
		overrides = append(overrides, fmt.Sprintf("territory: %.2f -> %.2f",
			defaults.Territory, loaded.Territory))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
