package subsampling

import (
	"github.com/pkg/errors"
)

// Type names a subsampler.
type Type string

// The available subsamplers.
const (
	TypeFull     Type = "full"
	TypeUniform  Type = "uniform"
	TypeAdaptive Type = "adaptive"
)

// Config selects and tunes a subsampler.
type Config struct {
	Type   Type    `json:"type"`
	Factor float64 `json:"factor"`
	Seed   int64   `json:"seed"`
}

// Validate ensures the config values make sense.
func (cfg *Config) Validate(path string) error {
	switch cfg.Type {
	case TypeFull, "":
		return nil
	case TypeUniform:
		if cfg.Factor < 1 || cfg.Factor != float64(int(cfg.Factor)) {
			return errors.Errorf("%s: uniform factor must be a positive integer, got %v", path, cfg.Factor)
		}
	case TypeAdaptive:
		if cfg.Factor < 1 {
			return errors.Errorf("%s: adaptive factor must be at least 1, got %v", path, cfg.Factor)
		}
	default:
		return errors.Errorf("%s: unknown subsampler type %q", path, cfg.Type)
	}
	return nil
}

// New returns the subsampler described by cfg. An empty type keeps every pixel.
func New(cfg Config) (DepthSubsampler, error) {
	if err := cfg.Validate("subsampling"); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case TypeUniform:
		return Uniform{Factor: int(cfg.Factor)}, nil
	case TypeAdaptive:
		return Adaptive{Factor: cfg.Factor, Seed: cfg.Seed}, nil
	default:
		return Full{}, nil
	}
}
