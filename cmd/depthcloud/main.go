// Package main is the depthcloud command line tool.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"go.viam.com/depthcloud/depthalign"
	"go.viam.com/depthcloud/logging"
)

const (
	// Flags.
	flagDebug           = "debug"
	flagConfig          = "config"
	flagStrategies      = "strategies"
	flagNoise           = "noise"
	flagOutliers        = "outliers"
	flagPoints          = "points"
	flagSeed            = "seed"
	flagSubsampling     = "subsampling"
	flagSubsampleFactor = "subsample-factor"
	flagIntrinsics      = "intrinsics"
	flagDebugDir        = "debug-dir"
	flagDebugFormat     = "debug-format"
	flagDumpDepth       = "dump-depth"
	flagDumpImage       = "dump-image"
	flagPlot            = "plot"
	flagHistogramBins   = "histogram-bins"
)

func main() {
	var logger logging.Logger

	strategies := make([]string, 0, len(depthalign.Strategies()))
	for _, s := range depthalign.Strategies() {
		strategies = append(strategies, string(s))
	}

	app := &cli.App{
		Name:  "depthcloud",
		Usage: "align predicted depth with SfM points and build point clouds",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("depthcloud")
			} else {
				logger = logging.NewLogger("depthcloud")
			}
			logging.ReplaceGlobal(logger)
			return nil
		},
		After: func(c *cli.Context) error {
			if logger != nil {
				//nolint:errcheck
				logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "ablate",
				Usage:     "compare alignment strategies on synthetic scenes",
				UsageText: "depthcloud ablate [--noise 0,0.01] [--outliers 0.2] [--debug-dir DIR]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagConfig,
						Usage: "base pipeline configuration from JSON `FILE`",
					},
					&cli.StringSliceFlag{
						Name:  flagStrategies,
						Value: cli.NewStringSlice(strategies...),
						Usage: "alignment strategies to compare",
					},
					&cli.Float64SliceFlag{
						Name:  flagNoise,
						Value: cli.NewFloat64Slice(0, 0.01, 0.05, 0.1),
						Usage: "depth noise levels, as a fraction of the mean predicted depth",
					},
					&cli.Float64Flag{
						Name:  flagOutliers,
						Value: 0.2,
						Usage: "fraction of SfM points placed at a wrong depth",
					},
					&cli.IntFlag{
						Name:  flagPoints,
						Value: 200,
						Usage: "number of SfM points per scene",
					},
					&cli.Int64Flag{
						Name:  flagSeed,
						Usage: "seed for scenes and robust strategies",
					},
					&cli.StringFlag{
						Name:  flagSubsampling,
						Usage: "subsampler type (full, uniform, adaptive)",
					},
					&cli.Float64Flag{
						Name:  flagSubsampleFactor,
						Usage: "subsampling factor",
					},
					&cli.StringFlag{
						Name:  flagIntrinsics,
						Usage: "pinhole intrinsics JSON `FILE` for the synthetic camera",
					},
					&cli.StringFlag{
						Name:  flagDebugDir,
						Usage: "write debug point clouds for every run under `DIR`",
					},
					&cli.StringFlag{
						Name:  flagDebugFormat,
						Value: "pcd",
						Usage: "debug point cloud format (pcd, pcd_binary, las)",
					},
					&cli.StringFlag{
						Name:  flagDumpDepth,
						Usage: "write the predicted depth of the first scene to `FILE`",
					},
					&cli.StringFlag{
						Name:  flagDumpImage,
						Usage: "write the image of the first scene as PPM to `FILE`",
					},
					&cli.StringFlag{
						Name:  flagPlot,
						Usage: "save a chart of depth RMSE against noise to `FILE` (png, svg or pdf)",
					},
					&cli.IntFlag{
						Name:  flagHistogramBins,
						Usage: "print a histogram of depth residuals with this many bins for every run",
					},
				},
				Action: func(c *cli.Context) error {
					opts, err := ablationOptionsFromContext(c)
					if err != nil {
						return err
					}
					rows, err := runAblation(opts, logger)
					if err != nil {
						return err
					}
					if _, err := c.App.Writer.Write([]byte(renderAblation(rows) + "\n")); err != nil {
						return err
					}
					if bins := c.Int(flagHistogramBins); bins > 0 {
						if err := renderHistograms(c.App.Writer, rows, bins); err != nil {
							return err
						}
					}
					if fn := c.String(flagPlot); fn != "" {
						return plotAblation(rows, opts.Strategies, fn)
					}
					return nil
				},
			},
			{
				Name:  "schema",
				Usage: "print the JSON schema of the pipeline configuration",
				Action: func(c *cli.Context) error {
					return printConfigSchema(c.App.Writer)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
