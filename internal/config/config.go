// Package config loads runtime settings from the environment, after an
// optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Environment variable names.
const (
	EnvModel        = "RETINA_MODEL"
	EnvWeightsDir   = "RETINA_WEIGHTS_DIR"
	EnvAlpha        = "RETINA_ALPHA"
	EnvInputSize    = "RETINA_INPUT_SIZE"
	EnvLogLevel     = "RETINA_LOG_LEVEL"
	EnvOCRLang      = "RETINA_OCR_LANG"
	EnvONNXModel    = "RETINA_ONNX_MODEL"
	EnvONNXMetadata = "RETINA_ONNX_METADATA"
)

// Config holds the server and CLI settings.
type Config struct {
	Model        string
	WeightsDir   string
	Alpha        float64
	InputSize    int
	LogLevel     string
	OCRLang      string
	ONNXModel    string
	ONNXMetadata string
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Model:      "efficientnet_b4",
		WeightsDir: "models",
		Alpha:      0.5,
		InputSize:  224,
		LogLevel:   "info",
		OCRLang:    "eng",
	}
}

// Load reads .env files (missing files are ignored) and the environment.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, which has the signature of
// os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(EnvModel, &cfg.Model)
	str(EnvWeightsDir, &cfg.WeightsDir)
	str(EnvLogLevel, &cfg.LogLevel)
	str(EnvOCRLang, &cfg.OCRLang)
	str(EnvONNXModel, &cfg.ONNXModel)
	str(EnvONNXMetadata, &cfg.ONNXMetadata)

	if v, ok := lookup(EnvAlpha); ok && v != "" {
		a, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", EnvAlpha)
		}
		cfg.Alpha = a
	}
	if v, ok := lookup(EnvInputSize); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, errors.Wrapf(err, "%s", EnvInputSize)
		}
		cfg.InputSize = n
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if !(c.Alpha >= 0 && c.Alpha <= 1) {
		return errors.Errorf("%s must be in [0,1], got %g", EnvAlpha, c.Alpha)
	}
	if c.InputSize < 32 {
		return errors.Errorf("%s must be at least 32, got %d", EnvInputSize, c.InputSize)
	}
	return nil
}
