package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/a8m/envsubst"
	"github.com/aybabtme/uniplot/histogram"
	"github.com/invopop/jsonschema"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"go.viam.com/depthcloud/depthalign"
	"go.viam.com/depthcloud/depthcloud"
	"go.viam.com/depthcloud/depthcloud/synthetic"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/rimage/transform"
	"go.viam.com/depthcloud/subsampling"
)

type ablationOptions struct {
	Base            depthcloud.Config
	Strategies      []depthalign.Strategy
	NoiseFractions  []float64
	OutlierFraction float64
	NumPoints       int
	Seed            int64
	Intrinsics      *transform.PinholeCameraIntrinsics
	DebugDir        string
	DebugFormat     depthcloud.ExportFormat
	DumpDepth       string
	DumpImage       string
}

type ablationRow struct {
	Strategy depthalign.Strategy
	Noise    float64
	Params   depthalign.Params
	Truth    depthalign.Params
	RMSE     float64
	Points   int
	Err      error
	// Residuals are the per-pixel aligned depth errors.
	Residuals []float64
}

func ablationOptionsFromContext(c *cli.Context) (ablationOptions, error) {
	opts := ablationOptions{
		NoiseFractions:  c.Float64Slice(flagNoise),
		OutlierFraction: c.Float64(flagOutliers),
		NumPoints:       c.Int(flagPoints),
		Seed:            c.Int64(flagSeed),
		DebugDir:        c.String(flagDebugDir),
		DebugFormat:     depthcloud.ExportFormat(c.String(flagDebugFormat)),
		DumpDepth:       c.String(flagDumpDepth),
		DumpImage:       c.String(flagDumpImage),
	}
	for _, name := range c.StringSlice(flagStrategies) {
		s, err := depthalign.ParseStrategy(name)
		if err != nil {
			return ablationOptions{}, err
		}
		opts.Strategies = append(opts.Strategies, s)
	}

	if fn := c.String(flagConfig); fn != "" {
		base, err := readConfig(fn)
		if err != nil {
			return ablationOptions{}, err
		}
		opts.Base = *base
	}
	opts.Base.Robust.Seed = opts.Seed
	if t := c.String(flagSubsampling); t != "" {
		opts.Base.Subsampling = subsampling.Config{
			Type:   subsampling.Type(t),
			Factor: c.Float64(flagSubsampleFactor),
			Seed:   opts.Seed,
		}
	}

	if fn := c.String(flagIntrinsics); fn != "" {
		intrinsics, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(fn)
		if err != nil {
			return ablationOptions{}, err
		}
		opts.Intrinsics = intrinsics
	}
	return opts, nil
}

// readConfig reads depthcloud attributes from a JSON file after expanding
// environment variables in it.
func readConfig(fn string) (*depthcloud.Config, error) {
	raw, err := envsubst.ReadFile(fn)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}
	var attrs map[string]interface{}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}
	if _, ok := attrs["alignment_strategy"]; !ok {
		attrs["alignment_strategy"] = string(depthalign.LeastSquares)
	}
	return depthcloud.ConfigFromAttributes(attrs)
}

func runAblation(opts ablationOptions, logger logging.Logger) ([]ablationRow, error) {
	if len(opts.Strategies) == 0 {
		return nil, errors.New("no strategies to compare")
	}
	rows := make([]ablationRow, len(opts.NoiseFractions)*len(opts.Strategies))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, noise := range opts.NoiseFractions {
		sceneOpts := synthetic.Options{
			Intrinsics:      opts.Intrinsics,
			NumPoints:       opts.NumPoints,
			NoiseFraction:   noise,
			OutlierFraction: opts.OutlierFraction,
			Seed:            opts.Seed + int64(i),
		}
		if opts.Intrinsics != nil {
			sceneOpts.Width, sceneOpts.Height = opts.Intrinsics.Width, opts.Intrinsics.Height
		}
		scene, err := synthetic.NewScene(sceneOpts)
		if err != nil {
			return nil, multierr.Combine(errors.Wrapf(err, "generating scene with noise %v", noise), g.Wait())
		}
		if i == 0 {
			if err := dumpScene(scene, opts); err != nil {
				return nil, multierr.Combine(err, g.Wait())
			}
		}

		for j, s := range opts.Strategies {
			cfg := opts.Base
			cfg.AlignmentStrategy = s
			if opts.DebugDir != "" {
				cfg.DebugExportDir = filepath.Join(opts.DebugDir, fmt.Sprintf("%s_noise%g", s, noise))
				cfg.DebugExportFormat = opts.DebugFormat
			}
			runLogger := logger.Sublogger(string(s))
			pipeline, err := depthcloud.NewPipeline(cfg, runLogger)
			if err != nil {
				return nil, multierr.Combine(err, g.Wait())
			}

			idx := i*len(opts.Strategies) + j
			s, noise := s, noise
			g.Go(func() error {
				rows[idx] = runOne(pipeline, scene, s, noise, runLogger)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// runOne reconstructs scene with pipeline. Scenes are only read, so runs on the
// same scene may proceed concurrently.
func runOne(
	pipeline *depthcloud.Pipeline,
	scene *synthetic.Scene,
	s depthalign.Strategy,
	noise float64,
	logger logging.Logger,
) ablationRow {
	row := ablationRow{Strategy: s, Noise: noise, Truth: scene.Alignment}
	in := depthcloud.Input{
		Depth:     scene.Depth,
		Image:     scene.Image,
		ImageName: synthetic.ImageName,
		Cam2World: scene.Cam2World,
		K:         scene.K,
	}
	res, err := pipeline.PointsFromDepth(in, scene.Reconstruction)
	if err != nil {
		logger.Warnw("alignment failed", "noise", noise, "error", err)
		row.Err = err
		return row
	}
	row.Params = res.Alignment
	row.Residuals = scene.DepthResiduals(res.Alignment)
	row.RMSE = scene.DepthRMSE(res.Alignment)
	row.Points = len(res.Points)
	logger.Debugw("ablation run", "noise", noise, "alignment", res.Alignment.String(), "rmse", row.RMSE)
	return row
}

// dumpScene writes the predicted depth and image of scene when requested.
func dumpScene(scene *synthetic.Scene, opts ablationOptions) (err error) {
	if opts.DumpDepth != "" {
		if err := scene.Depth.Depth.WriteToFile(opts.DumpDepth); err != nil {
			return err
		}
	}
	if opts.DumpImage == "" {
		return nil
	}
	//nolint:gosec
	f, err := os.Create(opts.DumpImage)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ppm.Encode(f, toRGBA(scene.Image))
}

// toRGBA copies img into an *image.RGBA, the only color model PPM encoding accepts.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

func renderAblation(rows []ablationRow) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Strategy", "Noise", "Scale", "Shift", "Scale Err", "Shift Err", "Depth RMSE", "Points"})
	for _, row := range rows {
		if row.Err != nil {
			t.AppendRow(table.Row{row.Strategy, row.Noise, "-", "-", "-", "-", row.Err.Error(), 0})
			continue
		}
		t.AppendRow(table.Row{
			row.Strategy,
			row.Noise,
			fmt.Sprintf("%.4f", row.Params.Scale),
			fmt.Sprintf("%.4f", row.Params.Shift),
			fmt.Sprintf("%.2e", math.Abs(row.Params.Scale-row.Truth.Scale)),
			fmt.Sprintf("%.2e", math.Abs(row.Params.Shift-row.Truth.Shift)),
			fmt.Sprintf("%.2e", row.RMSE),
			row.Points,
		})
	}
	return t.Render()
}

// renderHistograms prints the distribution of depth residuals of every
// successful run.
func renderHistograms(w io.Writer, rows []ablationRow, bins int) error {
	for _, row := range rows {
		if row.Err != nil || len(row.Residuals) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s noise=%g\n", row.Strategy, row.Noise); err != nil {
			return err
		}
		hist := histogram.Hist(bins, row.Residuals)
		if err := histogram.Fprint(w, hist, histogram.Linear(40)); err != nil {
			return err
		}
	}
	return nil
}

// plotAblation saves a chart of depth RMSE against noise, one line per strategy.
func plotAblation(rows []ablationRow, strategies []depthalign.Strategy, fn string) error {
	p := plot.New()
	p.Title.Text = "Depth alignment ablation"
	p.X.Label.Text = "noise fraction"
	p.Y.Label.Text = "depth RMSE"

	for i, s := range strategies {
		pts := make(plotter.XYs, 0, len(rows))
		for _, row := range rows {
			if row.Strategy != s || row.Err != nil {
				continue
			}
			pts = append(pts, plotter.XY{X: row.Noise, Y: row.RMSE})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "plotting %s", s)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(string(s), line)
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, fn)
}

// printConfigSchema writes the JSON schema of depthcloud.Config.
func printConfigSchema(w io.Writer) error {
	schema := jsonschema.Reflect(&depthcloud.Config{})
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
