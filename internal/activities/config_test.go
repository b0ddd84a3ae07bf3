package activities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		check   func(t *testing.T, cfg Config)
	}{
		{
			name: "paragliding bounds",
			raw:  `{"weight_kg":{"min":40,"max":120},"min_age":16,"max_participants":4}`,
			check: func(t *testing.T, cfg Config) {
				require.NotNil(t, cfg.WeightKg)
				assert.Equal(t, 40, cfg.WeightKg.Min)
				assert.Equal(t, 120, cfg.WeightKg.Max)
				assert.Equal(t, 16, cfg.MinAge)
				assert.Equal(t, 4, cfg.MaxParticipants)
				assert.Nil(t, cfg.HeightCm)
			},
		},
		{
			name: "surfing bounds",
			raw:  `{"height_cm":{"min":120,"max":210},"allowed_tides":["low","mid"]}`,
			check: func(t *testing.T, cfg Config) {
				require.NotNil(t, cfg.HeightCm)
				assert.Equal(t, []string{"low", "mid"}, cfg.AllowedTides)
			},
		},
		{
			name: "diving bounds",
			raw:  `{"min_certification":"advanced","max_depth_m":30}`,
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "advanced", cfg.MinCertification)
				assert.Equal(t, 30, cfg.MaxDepthM)
			},
		},
		{
			name: "empty document",
			raw:  ``,
			check: func(t *testing.T, cfg Config) {
				assert.Nil(t, cfg.WeightKg)
				assert.Zero(t, cfg.MinAge)
			},
		},
		{
			name:    "unknown field",
			raw:     `{"wieght_kg":{"min":40,"max":120}}`,
			wantErr: true,
		},
		{
			name:    "inverted weight range",
			raw:     `{"weight_kg":{"min":120,"max":40}}`,
			wantErr: true,
		},
		{
			name:    "inverted height range",
			raw:     `{"height_cm":{"min":210,"max":120}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
