package depthcloud

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/depthcloud/depthalign"
	"go.viam.com/depthcloud/subsampling"
)

// ExportFormat is the file format of debug point clouds.
type ExportFormat string

// The supported debug export formats.
const (
	ExportPCD       ExportFormat = "pcd"
	ExportPCDBinary ExportFormat = "pcd_binary"
	ExportLAS       ExportFormat = "las"
)

// Config describes how a Pipeline aligns and back-projects depth.
type Config struct {
	AlignmentStrategy depthalign.Strategy     `json:"alignment_strategy"`
	Robust            depthalign.RobustConfig `json:"robust"`
	Subsampling       subsampling.Config      `json:"subsampling"`

	// DebugExportDir enables debug point cloud export when non-empty.
	DebugExportDir    string       `json:"debug_export_dir"`
	DebugExportFormat ExportFormat `json:"debug_export_format"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.AlignmentStrategy == "" {
		return errors.Errorf("%s: alignment_strategy is required", path)
	}
	if _, err := depthalign.ParseStrategy(string(cfg.AlignmentStrategy)); err != nil {
		return errors.Wrapf(err, "%s.alignment_strategy", path)
	}
	if err := cfg.Robust.Validate(path + ".robust"); err != nil {
		return err
	}
	if err := cfg.Subsampling.Validate(path + ".subsampling"); err != nil {
		return err
	}
	switch cfg.DebugExportFormat {
	case "", ExportPCD, ExportPCDBinary, ExportLAS:
	default:
		return errors.Errorf("%s: unknown debug_export_format %q", path, cfg.DebugExportFormat)
	}
	return nil
}

// ConfigFromAttributes decodes and validates a Config from a generic attribute
// map such as one read from JSON.
func ConfigFromAttributes(attrs map[string]interface{}) (*Config, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &conf,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "decoding depthcloud config")
	}
	if err := conf.Validate("depthcloud"); err != nil {
		return nil, err
	}
	return &conf, nil
}
