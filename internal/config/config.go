package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/user/petco2_cvr_go/internal/model"
	"github.com/user/petco2_cvr_go/internal/petco2"
)

// Config holds all run configuration values.
type Config struct {
	// Input
	PhysData string

	// Protocol
	Baseline      float64 // s
	BlockOn       float64 // s
	BlockOff      float64 // s
	SampleRate    float64 // Hz
	AirPressure   float64 // mbar
	ThresholdTrig float64
	Delay         float64 // mechanical delay, s

	// Acquisition
	TR    float64 // nominal repetition time, s
	NTpts int     // BOLD volumes; 0 means one per calibrated volume

	// Model
	InferSig0  bool
	InferDelay bool

	// Output
	PDFPath  string
	CSVPath  string
	MaxDelay float64 // largest delay in the report sweep, volumes
}

// Default returns the standard protocol with no outputs configured.
func Default() *Config {
	p := petco2.DefaultProtocolParams()
	return &Config{
		Baseline:      p.Baseline,
		BlockOn:       p.BlockOn,
		BlockOff:      p.BlockOff,
		SampleRate:    p.SampleRate,
		AirPressure:   p.AirPressure,
		ThresholdTrig: p.TriggerThreshold,
		Delay:         p.MechanicalDelay,
		TR:            0.8,
		MaxDelay:      10,
	}
}

// Load reads a KEY=VALUE file on top of the defaults.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.ToUpper(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	case "PHYS_DATA":
		c.PhysData = value

	case "BASELINE":
		c.Baseline, err = parseFloat(key, value)
	case "BLOCKSIZE_ON":
		c.BlockOn, err = parseFloat(key, value)
	case "BLOCKSIZE_OFF":
		c.BlockOff, err = parseFloat(key, value)
	case "SAMP_RATE":
		c.SampleRate, err = parseFloat(key, value)
	case "AIR_PRESSURE":
		c.AirPressure, err = parseFloat(key, value)
	case "THRESHOLD_TRIG":
		c.ThresholdTrig, err = parseFloat(key, value)
	case "DELAY":
		c.Delay, err = parseFloat(key, value)

	case "TR":
		c.TR, err = parseFloat(key, value)
	case "N_TPTS":
		c.NTpts, err = strconv.Atoi(value)
		if err != nil {
			err = fmt.Errorf("invalid N_TPTS: %w", err)
		}

	case "INFER_SIG0":
		c.InferSig0, err = parseBool(key, value)
	case "INFER_DELAY":
		c.InferDelay, err = parseBool(key, value)

	case "PDF_REPORT":
		c.PDFPath = value
	case "CSV_OUTPUT":
		c.CSVPath = value
	case "MAX_DELAY":
		c.MaxDelay, err = parseFloat(key, value)

	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return err
}

// Validate checks the protocol and the run settings.
func (c *Config) Validate() error {
	if err := c.ProtocolParams().Validate(); err != nil {
		return err
	}
	if !(c.TR > 0) {
		return fmt.Errorf("%w: TR must be > 0, got %v", petco2.ErrRange, c.TR)
	}
	if c.NTpts < 0 {
		return fmt.Errorf("%w: N_TPTS must be >= 0, got %d", petco2.ErrRange, c.NTpts)
	}
	if !(c.MaxDelay > 0) {
		return fmt.Errorf("%w: MAX_DELAY must be > 0, got %v", petco2.ErrRange, c.MaxDelay)
	}
	return nil
}

// ProtocolParams returns the calibration parameters.
func (c *Config) ProtocolParams() petco2.ProtocolParams {
	return petco2.ProtocolParams{
		Baseline:         c.Baseline,
		BlockOn:          c.BlockOn,
		BlockOff:         c.BlockOff,
		SampleRate:       c.SampleRate,
		AirPressure:      c.AirPressure,
		TriggerThreshold: c.ThresholdTrig,
		MechanicalDelay:  c.Delay,
	}
}

// ModelOptions returns the forward model switches.
func (c *Config) ModelOptions() model.Options {
	return model.Options{InferSig0: c.InferSig0, InferDelay: c.InferDelay}
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
