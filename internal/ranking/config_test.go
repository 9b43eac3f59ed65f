package ranking

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestLoadCalibrationDefaults verifies an empty path yields defaults.
func TestLoadCalibrationDefaults(t *testing.T) {
	weights, err := LoadCalibration("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if weights.Video.Social != 0.40 {
		t.Errorf("expected default video social weight 0.40, got %f", weights.Video.Social)
	}
	if weights.Venue.Diversity != 0.05 {
		t.Errorf("expected default venue diversity 0.05, got %f", weights.Venue.Diversity)
	}
}

// TestLoadCalibrationMissingFile verifies graceful degradation.
func TestLoadCalibrationMissingFile(t *testing.T) {
	weights, err := LoadCalibration("/nonexistent/calibration.json")
	if err == nil {
		t.Error("expected an error for a missing file")
	}
	if weights == nil {
		t.Fatal("expected default weights despite error")
	}
	if weights.Video.Taste != 0.30 {
		t.Errorf("expected defaults, got %+v", weights)
	}
}

// TestLoadCalibrationPartialOverride verifies partial files merge with
// defaults.
func TestLoadCalibrationPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	content := `{"version": "1", "weights": {"video": {"social": 0.5}}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	weights, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(weights.Video.Social-0.5) > 0.0001 {
		t.Errorf("expected overridden social 0.5, got %f", weights.Video.Social)
	}
	if math.Abs(weights.Video.Taste-0.30) > 0.0001 {
		t.Errorf("expected default taste 0.30, got %f", weights.Video.Taste)
	}
	if math.Abs(weights.Venue.Social-0.35) > 0.0001 {
		t.Errorf("expected untouched venue social 0.35, got %f", weights.Venue.Social)
	}
}

// TestMergeCalibrationNilSafety verifies nil handling.
func TestMergeCalibrationNilSafety(t *testing.T) {
	if got := MergeCalibration(nil, nil); got.Video.Taste != 0.30 {
		t.Errorf("nil base should yield defaults, got %+v", got)
	}

	base := DefaultPolicyWeights()
	merged := MergeCalibration(base, nil)
	if *merged != *base {
		t.Errorf("nil override should copy base")
	}
	if merged == base {
		t.Errorf("merge should return a copy, not the base pointer")
	}
}
