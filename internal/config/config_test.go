package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/petco2_cvr_go/internal/petco2"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "petco2.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_MatchesProtocolDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, petco2.DefaultProtocolParams(), cfg.ProtocolParams())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `# site settings
PHYS_DATA = /data/phys_data.txt
air_pressure=1013
DELAY=12.5
TR=2
N_TPTS=240

INFER_SIG0=true
INFER_DELAY=1
PDF_REPORT=out.pdf
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/phys_data.txt", cfg.PhysData)
	assert.Equal(t, 1013.0, cfg.AirPressure)
	assert.Equal(t, 12.5, cfg.Delay)
	assert.Equal(t, 2.0, cfg.TR)
	assert.Equal(t, 240, cfg.NTpts)
	assert.Equal(t, "out.pdf", cfg.PDFPath)
	assert.Equal(t, 60.0, cfg.Baseline)

	opts := cfg.ModelOptions()
	assert.True(t, opts.InferSig0)
	assert.True(t, opts.InferDelay)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing equals", "BASELINE 60\n", "invalid config line 1"},
		{"unknown key", "\nCOLOUR=red\n", "unknown config key: COLOUR"},
		{"bad float", "SAMP_RATE=fast\n", "invalid SAMP_RATE"},
		{"bad bool", "INFER_DELAY=maybe\n", "invalid INFER_DELAY"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)
}

func TestLoad_RangeErrors(t *testing.T) {
	for _, content := range []string{"SAMP_RATE=0\n", "TR=-1\n", "DELAY=-3\n", "N_TPTS=-1\n", "MAX_DELAY=-2\n", "MAX_DELAY=0\n"} {
		_, err := Load(writeConfig(t, content))
		assert.ErrorIs(t, err, petco2.ErrRange, content)
	}
}
