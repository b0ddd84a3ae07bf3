package activities

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Range is an inclusive integer bound.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Config is the per-activity constraint document stored on the Activity
// row. Bounds are optional; a nil range is not enforced.
type Config struct {
	WeightKg         *Range   `json:"weight_kg,omitempty"`
	HeightCm         *Range   `json:"height_cm,omitempty"`
	MinAge           int      `json:"min_age,omitempty"`
	MaxParticipants  int      `json:"max_participants,omitempty"`
	MinCertification string   `json:"min_certification,omitempty"`
	MaxDepthM        int      `json:"max_depth_m,omitempty"`
	AllowedTides     []string `json:"allowed_tides,omitempty"`
}

// ParseConfig decodes a constraint document. Unknown fields are rejected so
// a typo in an operator-supplied config fails loudly instead of silently
// disabling a bound.
func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if len(raw) == 0 {
		return cfg, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("activities: parse config: %w", err)
	}
	if cfg.WeightKg != nil && cfg.WeightKg.Min > cfg.WeightKg.Max {
		return Config{}, fmt.Errorf("activities: weight range inverted: [%d, %d]", cfg.WeightKg.Min, cfg.WeightKg.Max)
	}
	if cfg.HeightCm != nil && cfg.HeightCm.Min > cfg.HeightCm.Max {
		return Config{}, fmt.Errorf("activities: height range inverted: [%d, %d]", cfg.HeightCm.Min, cfg.HeightCm.Max)
	}
	return cfg, nil
}
