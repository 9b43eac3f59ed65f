package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// CalibrationConfig represents the JSON structure of the weight calibration
// file.
type CalibrationConfig struct {
	Version string        `json:"version"` // Config version for future compatibility
	Weights PolicyWeights `json:"weights"` // Weight configurations per policy
}

// LoadCalibration loads fusion weights from a JSON calibration file.
// Partial configurations are merged with defaults so a file can override a
// single weight. On any error the defaults are returned alongside the
// error so callers can degrade gracefully.
func LoadCalibration(filePath string) (*PolicyWeights, error) {
	if filePath == "" {
		return DefaultPolicyWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultPolicyWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultPolicyWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultPolicyWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights into base weights. Only non-zero
// values from the override are applied, allowing partial calibration files.
func MergeCalibration(base *PolicyWeights, override *PolicyWeights) *PolicyWeights {
	if base == nil {
		return DefaultPolicyWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base
	result.Video = mergeWeights(base.Video, override.Video)
	result.Venue = mergeWeights(base.Venue, override.Venue)
	return &result
}

func mergeWeights(base, override Weights) Weights {
	if override.Taste != 0 {
		base.Taste = override.Taste
	}
	if override.Social != 0 {
		base.Social = override.Social
	}
	if override.Proximity != 0 {
		base.Proximity = override.Proximity
	}
	if override.Recency != 0 {
		base.Recency = override.Recency
	}
	if override.Diversity != 0 {
		base.Diversity = override.Diversity
	}
	return base
}

// logCalibrationOverrides logs which weights differ from the defaults.
func logCalibrationOverrides(defaults *PolicyWeights, loaded *PolicyWeights) {
	var overrides []string
	overrides = append(overrides, diffWeights("video", defaults.Video, loaded.Video)...)
	overrides = append(overrides, diffWeights("venue", defaults.Venue, loaded.Venue)...)

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}

func diffWeights(policy string, def, loaded Weights) []string {
	var out []string
	add := func(field string, from, to float64) {
		if from != to {
			out = append(out, fmt.Sprintf("%s.%s: %.2f -> %.2f", policy, field, from, to))
		}
	}
	add("taste", def.Taste, loaded.Taste)
	add("social", def.Social, loaded.Social)
	add("proximity", def.Proximity, loaded.Proximity)
	add("recency", def.Recency, loaded.Recency)
	add("diversity", def.Diversity, loaded.Diversity)
	return out
}
