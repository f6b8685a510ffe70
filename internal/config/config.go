// Package config loads the YAML file that configures the miniisp tools.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"miniisp/internal/logger"
	"miniisp/pkg/isp"
)

// MaxFileSize bounds the configuration file.
const MaxFileSize = 1 << 20

// WhiteBalance selects the white balance method for single captures.
type WhiteBalance struct {
	Method string  `yaml:"method"`
	Ratio  float64 `yaml:"ratio"`
	// Multipliers are as-shot R, G, B gains.
	Multipliers []float64 `yaml:"multipliers,omitempty"`
}

// Batch configures directory runs over decoded images.
type Batch struct {
	Method     string   `yaml:"method"`
	Ratio      float64  `yaml:"ratio"`
	Extensions []string `yaml:"extensions"`
}

// Config is the full file. Omitted fields keep their Default values.
type Config struct {
	Pattern      string       `yaml:"pattern"`
	BitDepth     int          `yaml:"bit_depth"`
	Width        int          `yaml:"width,omitempty"`
	Height       int          `yaml:"height,omitempty"`
	WhiteBalance WhiteBalance `yaml:"white_balance"`
	CCM          [][]float64  `yaml:"ccm,omitempty"`
	Gamma        float64      `yaml:"gamma"`
	MaxValue     float64      `yaml:"max_value"`
	DumpDir      string       `yaml:"dump_dir,omitempty"`
	Workers      int          `yaml:"workers"`
	LogLevel     string       `yaml:"log_level,omitempty"`
	Batch        Batch        `yaml:"batch"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Pattern:  "RGGB",
		BitDepth: 10,
		WhiteBalance: WhiteBalance{
			Method: "perfect-reflector",
			Ratio:  0.2,
		},
		Gamma:    2.2,
		MaxValue: 1023,
		Batch: Batch{
			Method:     "perfect-reflector",
			Ratio:      0.05,
			Extensions: []string{".jpg", ".png"},
		},
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := strings.ToLower(filepath.Ext(cleanPath)); ext != ".yaml" && ext != ".yml" {
		return nil, errors.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat config file")
	}
	if info.Size() > MaxFileSize {
		return nil, errors.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to parse config YAML")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks every field that has a fixed domain.
func (c *Config) Validate() error {
	if _, err := isp.ParsePattern(c.Pattern); err != nil {
		return err
	}
	if c.BitDepth < 1 || c.BitDepth > 16 {
		return errors.Wrapf(isp.ErrInvalidConfiguration, "bit_depth must be in [1,16], got %d", c.BitDepth)
	}
	if c.Width < 0 || c.Height < 0 {
		return errors.Wrapf(isp.ErrInvalidConfiguration, "width and height must not be negative, got %dx%d", c.Width, c.Height)
	}
	if _, err := c.whiteBalanceParams(); err != nil {
		return errors.Wrap(err, "white_balance")
	}
	if _, err := batchParams(c.Batch.Method, c.Batch.Ratio); err != nil {
		return errors.Wrap(err, "batch")
	}
	for _, ext := range c.Batch.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return errors.Wrapf(isp.ErrInvalidConfiguration, "batch extension %q must start with a dot", ext)
		}
	}
	if _, err := c.ColorMatrix(); err != nil {
		return errors.Wrap(err, "ccm")
	}
	if !(c.Gamma > 0) {
		return errors.Wrapf(isp.ErrInvalidConfiguration, "gamma must be positive, got %v", c.Gamma)
	}
	if !(c.MaxValue > 0) {
		return errors.Wrapf(isp.ErrInvalidConfiguration, "max_value must be positive, got %v", c.MaxValue)
	}
	if c.Workers < 0 {
		return errors.Wrapf(isp.ErrInvalidConfiguration, "workers must not be negative, got %d", c.Workers)
	}
	if c.LogLevel != "" {
		if _, err := logger.ParseLevel(c.LogLevel); err != nil {
			return errors.Wrap(isp.ErrInvalidConfiguration, err.Error())
		}
	}
	return nil
}

// ColorMatrix returns the configured CCM, or nil when none is set.
func (c *Config) ColorMatrix() (*isp.ColorMatrix, error) {
	if len(c.CCM) == 0 {
		return nil, nil
	}
	return isp.NewColorMatrix(c.CCM)
}

// Multipliers returns the as-shot gains.
func (c *Config) Multipliers() isp.GainVector {
	m := c.WhiteBalance.Multipliers
	if len(m) != 3 {
		return isp.GainVector{}
	}
	return isp.GainVector{Red: m[0], Green: m[1], Blue: m[2]}
}

func (c *Config) whiteBalanceParams() (isp.WhiteBalanceParams, error) {
	p, err := batchParams(c.WhiteBalance.Method, c.WhiteBalance.Ratio)
	if err != nil {
		return p, err
	}
	if n := len(c.WhiteBalance.Multipliers); n != 0 && n != 3 {
		return p, errors.Wrapf(isp.ErrInvalidConfiguration, "multipliers need 3 values, got %d", n)
	}
	p.Multipliers = c.Multipliers()
	return p, nil
}

func batchParams(method string, ratio float64) (isp.WhiteBalanceParams, error) {
	m, err := isp.ParseWhiteBalanceMethod(method)
	if err != nil {
		return isp.WhiteBalanceParams{}, err
	}
	if m == isp.PerfectReflector && !(ratio > 0 && ratio < 1) {
		return isp.WhiteBalanceParams{}, errors.Wrapf(isp.ErrInvalidConfiguration, "ratio must be in (0,1), got %v", ratio)
	}
	return isp.WhiteBalanceParams{Method: m, Ratio: ratio}, nil
}

// PipelineOptions converts the file into pipeline options for single
// captures. Logger and Dumper are left for the caller.
func (c *Config) PipelineOptions() (isp.Options, error) {
	pattern, err := isp.ParsePattern(c.Pattern)
	if err != nil {
		return isp.Options{}, err
	}
	wb, err := c.whiteBalanceParams()
	if err != nil {
		return isp.Options{}, err
	}
	return isp.Options{
		Pattern:      pattern,
		WhiteBalance: wb,
		Gamma:        isp.GammaParams{Gamma: c.Gamma, MaxValue: c.MaxValue},
	}, nil
}

// BatchWhiteBalance returns the white balance used for batch runs.
func (c *Config) BatchWhiteBalance() (isp.WhiteBalanceParams, error) {
	return batchParams(c.Batch.Method, c.Batch.Ratio)
}
