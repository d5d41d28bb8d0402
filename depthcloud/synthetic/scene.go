// Package synthetic generates scenes with known depth alignment for testing
// and ablating the depth to point cloud pipeline.
package synthetic

import (
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"go.viam.com/depthcloud/depthalign"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/transform"
	"go.viam.com/depthcloud/sfm"
)

// ImageName is the name under which the scene's image is registered in its
// reconstruction.
const ImageName = "synthetic.png"

// Options describe a synthetic scene. Zero values take the defaults noted below.
type Options struct {
	// Width and Height default to 64x48.
	Width, Height int
	// Intrinsics defaults to a camera with a horizontal field of view of about 53 degrees
	// centred on the image.
	Intrinsics *transform.PinholeCameraIntrinsics
	// Cam2World defaults to a small yaw with an offset origin.
	Cam2World mat.Matrix
	// Alignment relates predicted to true depth: true = Scale*predicted + Shift.
	// Defaults to scale 2, shift 0.5.
	Alignment depthalign.Params
	// NumPoints is the number of SfM points, default 200.
	NumPoints int
	// NoiseFraction is the standard deviation of gaussian noise added to the
	// predicted depth, relative to its mean.
	NoiseFraction float64
	// OutlierFraction of the SfM points are pushed along their ray to a wrong depth.
	OutlierFraction float64
	// InvalidBorder marks a border of this many pixels invalid in the predictor mask.
	InvalidBorder int
	Seed          int64
}

// Scene is a generated image with predicted depth and a matching reconstruction.
type Scene struct {
	Camera         *transform.Camera
	K              *mat.Dense
	Cam2World      *mat.Dense
	Image          *image.NRGBA
	Depth          rimage.PredictedDepth
	TrueDepth      *rimage.DepthMap
	Reconstruction *sfm.Reconstruction
	Alignment      depthalign.Params
	// Outliers are the indices of the SfM points placed at a wrong depth.
	Outliers []int
}

func (opts Options) withDefaults() Options {
	if opts.Width == 0 {
		opts.Width = 64
	}
	if opts.Height == 0 {
		opts.Height = 48
	}
	if opts.Intrinsics == nil {
		opts.Intrinsics = &transform.PinholeCameraIntrinsics{
			Width:  opts.Width,
			Height: opts.Height,
			Fx:     float64(opts.Width),
			Fy:     float64(opts.Width),
			Ppx:    float64(opts.Width) / 2,
			Ppy:    float64(opts.Height) / 2,
		}
	}
	if opts.Cam2World == nil {
		opts.Cam2World = yaw(0.1, r3.Vector{X: 0.5, Y: -0.2, Z: 1})
	}
	if opts.Alignment == (depthalign.Params{}) {
		opts.Alignment = depthalign.Params{Scale: 2, Shift: 0.5}
	}
	if opts.NumPoints == 0 {
		opts.NumPoints = 200
	}
	return opts
}

// yaw returns a rigid transform rotating by theta about Y and translating by t.
func yaw(theta float64, t r3.Vector) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(4, 4, []float64{
		c, 0, s, t.X,
		0, 1, 0, t.Y,
		-s, 0, c, t.Z,
		0, 0, 0, 1,
	})
}

// trueDepth is a tilted, gently rippled surface between roughly 2.5 and 5 units away.
func trueDepth(u, v, width, height int) float64 {
	return 3 + 1.5*float64(v)/float64(height) + 0.5*math.Sin(2*math.Pi*float64(u)/float64(width))
}

// pixelColor is a gradient over the image.
func pixelColor(u, v, width, height int) color.NRGBA {
	return color.NRGBA{
		R: uint8(255 * u / width),
		G: uint8(255 * v / height),
		B: 128,
		A: 255,
	}
}

// NewScene generates a scene from opts.
func NewScene(opts Options) (*Scene, error) {
	opts = opts.withDefaults()
	if opts.Alignment.Scale <= 0 {
		return nil, errors.Errorf("alignment scale must be positive, got %v", opts.Alignment.Scale)
	}
	if opts.NoiseFraction < 0 || opts.OutlierFraction < 0 || opts.OutlierFraction > 1 {
		return nil, errors.Errorf("invalid noise (%v) or outlier (%v) fraction", opts.NoiseFraction, opts.OutlierFraction)
	}
	if 2*opts.InvalidBorder >= opts.Width || 2*opts.InvalidBorder >= opts.Height {
		return nil, errors.Errorf("invalid border %d leaves no valid pixels", opts.InvalidBorder)
	}
	if err := opts.Intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	k := opts.Intrinsics.GetCameraMatrix()
	cam, err := transform.NewCamera(k, opts.Cam2World)
	if err != nil {
		return nil, err
	}

	w, h := opts.Width, opts.Height
	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec

	truth := rimage.NewEmptyDepthMap(w, h)
	predicted := rimage.NewEmptyDepthMap(w, h)
	mask := rimage.NewMask(w, h, true)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for v := 0; v < h; v++ {
		for u := 0; u < w; u++ {
			z := trueDepth(u, v, w, h)
			truth.Set(u, v, z)
			predicted.Set(u, v, (z-opts.Alignment.Shift)/opts.Alignment.Scale)
			img.SetNRGBA(u, v, pixelColor(u, v, w, h))
			b := opts.InvalidBorder
			if u < b || v < b || u >= w-b || v >= h-b {
				mask.Set(u, v, false)
			}
		}
	}

	if opts.NoiseFraction > 0 {
		addNoise(predicted, opts.NoiseFraction, rng)
	}

	recon := &sfm.Reconstruction{
		Points:       make([]r3.Vector, opts.NumPoints),
		PointsRGB:    make([]color.NRGBA, opts.NumPoints),
		PointIndices: map[string][]int{ImageName: make([]int, opts.NumPoints)},
	}
	numOutliers := int(math.Round(opts.OutlierFraction * float64(opts.NumPoints)))
	outliers := rng.Perm(opts.NumPoints)[:numOutliers]
	isOutlier := make(map[int]bool, numOutliers)
	for _, i := range outliers {
		isOutlier[i] = true
	}
	for i := 0; i < opts.NumPoints; i++ {
		u, v := rng.Intn(w), rng.Intn(h)
		z := truth.GetDepth(u, v)
		if isOutlier[i] {
			z *= 1.5 + rng.Float64()
		}
		// integer pixel coordinates so the point reprojects exactly onto (u, v)
		recon.Points[i] = cam.Unproject(r3.Vector{X: float64(u) * z, Y: float64(v) * z, Z: z})
		recon.PointsRGB[i] = pixelColor(u, v, w, h)
		recon.PointIndices[ImageName][i] = i
	}

	return &Scene{
		Camera:         cam,
		K:              k,
		Cam2World:      cam.Cam2World(),
		Image:          img,
		Depth:          rimage.PredictedDepth{Depth: predicted, Mask: mask},
		TrueDepth:      truth,
		Reconstruction: recon,
		Alignment:      opts.Alignment,
		Outliers:       outliers,
	}, nil
}

// addNoise perturbs every pixel with zero mean gaussian noise whose standard
// deviation is fraction times the mean depth. Depths stay positive.
func addNoise(dm *rimage.DepthMap, fraction float64, rng *rand.Rand) {
	data := dm.Flat()
	dist := distuv.Normal{Mu: 0, Sigma: fraction * stat.Mean(data, nil)}
	minDepth, _ := dm.MinMax()
	for i, d := range data {
		data[i] = math.Max(d+dist.Quantile(openUnit(rng)), minDepth/10)
	}
}

// openUnit draws uniformly from (0, 1).
func openUnit(rng *rand.Rand) float64 {
	for {
		if p := rng.Float64(); p > 0 {
			return p
		}
	}
}

// Points returns the world points of the true surface at every valid pixel, in
// row-major order.
func (s *Scene) Points() []r3.Vector {
	w, h := s.TrueDepth.Width(), s.TrueDepth.Height()
	pts := make([]r3.Vector, 0, w*h)
	for v := 0; v < h; v++ {
		for u := 0; u < w; u++ {
			if s.Depth.Mask != nil && !s.Depth.Mask.At(u, v) {
				continue
			}
			pts = append(pts, s.Camera.Unproject(transform.PixelCenter(u, v, s.TrueDepth.GetDepth(u, v))))
		}
	}
	return pts
}

// DepthResiduals returns params applied to the predicted depth minus the true
// depth at every valid pixel, in row-major order.
func (s *Scene) DepthResiduals(params depthalign.Params) []float64 {
	pred := s.Depth.Depth.Flat()
	truth := s.TrueDepth.Flat()
	residuals := make([]float64, 0, len(pred))
	for i, d := range pred {
		if s.Depth.Mask != nil && !s.Depth.Mask.Flat()[i] {
			continue
		}
		residuals = append(residuals, params.Apply(d)-truth[i])
	}
	return residuals
}

// DepthRMSE returns the root mean squared depth residual over the valid pixels.
func (s *Scene) DepthRMSE(params depthalign.Params) float64 {
	residuals := s.DepthResiduals(params)
	if len(residuals) == 0 {
		return math.NaN()
	}
	return floats.Norm(residuals, 2) / math.Sqrt(float64(len(residuals)))
}
