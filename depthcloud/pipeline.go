// Package depthcloud turns a monocular depth prediction into a world-space
// point cloud by aligning it with the SfM points seen in the same image.
package depthcloud

import (
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/depthcloud/depthalign"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/transform"
	"go.viam.com/depthcloud/subsampling"
)

// Parser gives access to the SfM points observed in an image.
type Parser interface {
	ImagePoints(imageName string) ([]r3.Vector, error)
	ImageColors(imageName string) ([]color.NRGBA, error)
}

// Input is a single image to reconstruct.
type Input struct {
	Depth     rimage.PredictedDepth
	Image     image.Image
	ImageName string
	// Cam2World is the 4x4 camera to world transform.
	Cam2World mat.Matrix
	// K is the 3x3 camera intrinsics matrix.
	K mat.Matrix
}

// Result holds the reconstructed points of one image.
type Result struct {
	// Points are world points of selected pixels with valid depth.
	Points []r3.Vector
	// SubsamplingMask has one row-major entry per pixel.
	SubsamplingMask []bool
	// ValidityMask has one entry per selected pixel; len(Points) equals its
	// number of true entries.
	ValidityMask []bool
	Alignment    depthalign.Params
	// Excluded are world points of selected pixels with invalid depth.
	Excluded []r3.Vector
}

// Pipeline reconstructs point clouds from predicted depth.
type Pipeline struct {
	Subsampler subsampling.DepthSubsampler
	Aligner    depthalign.Estimator
	// Exporter receives debug point clouds when set.
	Exporter PointCloudExporter
	Logger   logging.Logger
}

// NewPipeline builds a Pipeline from cfg.
func NewPipeline(cfg Config, logger logging.Logger) (*Pipeline, error) {
	if err := cfg.Validate("depthcloud"); err != nil {
		return nil, err
	}
	aligner, err := cfg.AlignmentStrategy.Implementation(cfg.Robust)
	if err != nil {
		return nil, err
	}
	subsampler, err := subsampling.New(cfg.Subsampling)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		Subsampler: subsampler,
		Aligner:    aligner,
		Logger:     logger,
	}
	if cfg.DebugExportDir != "" {
		p.Exporter = NewFileExporter(cfg.DebugExportDir, cfg.DebugExportFormat)
	}
	return p, nil
}

func (p *Pipeline) logger() logging.Logger {
	if p.Logger == nil {
		return logging.Global()
	}
	return p.Logger
}

// PointsFromDepth aligns the predicted depth of in to the SfM points the parser
// reports for the image and back-projects the selected pixels into world space.
func (p *Pipeline) PointsFromDepth(in Input, parser Parser) (*Result, error) {
	logger := p.logger()
	if in.Depth.Depth == nil {
		return nil, errors.New("predicted depth has no depth map")
	}
	if in.Image != nil {
		w, h := rimage.ImageSize(in.Image)
		if w != in.Depth.Depth.Width() || h != in.Depth.Depth.Height() {
			return nil, errors.Errorf("image dimensions (%d,%d) don't match depth dimensions (%d,%d)",
				w, h, in.Depth.Depth.Width(), in.Depth.Depth.Height())
		}
	}
	mask, err := in.Depth.ValidityMask()
	if err != nil {
		return nil, err
	}
	cam, err := transform.NewCamera(in.K, in.Cam2World)
	if err != nil {
		return nil, errors.Wrapf(err, "image %q", in.ImageName)
	}
	sfmPoints, err := parser.ImagePoints(in.ImageName)
	if err != nil {
		return nil, errors.Wrapf(err, "looking up SfM points of image %q", in.ImageName)
	}

	depth := in.Depth.Depth
	if depth.AnyInf(mask) {
		logger.Warnw("encountered infinite depths in predicted depth map", "image", in.ImageName)
	}

	params, err := AlignDepth(cam, sfmPoints, depth, mask, p.Aligner, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "image %q", in.ImageName)
	}
	if !(params.Scale > 0) {
		logger.Warnw("depth alignment produced a non-positive scale", "image", in.ImageName, "alignment", params.String())
	}
	logger.Debugw("aligned depth", "image", in.ImageName, "scale", params.Scale, "shift", params.Shift)

	subsampler := p.Subsampler
	if subsampler == nil {
		subsampler = subsampling.Full{}
	}
	bp, err := BackProject(cam, in.Image, depth, mask, params, subsampler)
	if err != nil {
		return nil, errors.Wrapf(err, "image %q", in.ImageName)
	}

	if p.Exporter != nil {
		colors, err := parser.ImageColors(in.ImageName)
		if err != nil {
			return nil, errors.Wrapf(err, "looking up SfM colors of image %q", in.ImageName)
		}
		scene := &debugScene{
			cam:        cam,
			img:        in.Image,
			width:      depth.Width(),
			height:     depth.Height(),
			sfmPoints:  sfmPoints,
			sfmColors:  colors,
			projection: bp,
		}
		if err := scene.export(p.Exporter); err != nil {
			return nil, errors.Wrapf(err, "exporting debug point clouds of image %q", in.ImageName)
		}
	}

	return &Result{
		Points:          bp.Points,
		SubsamplingMask: bp.SubsamplingMask,
		ValidityMask:    bp.ValidityMask,
		Alignment:       params,
		Excluded:        bp.Excluded,
	}, nil
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
