package depthcloud

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/transform"
)

// Names of the debug clouds written for each image.
const (
	CameraPlaneCloud   = "camera_plane"
	SfMPlaneProjCloud  = "sfm_points_plane_proj"
	SfMWorldCloud      = "sfm_points_world"
	PointsWorldCloud   = "my_points_world"
	OutliersWorldCloud = "my_outliers_world"
)

// PointCloudExporter receives named debug point clouds.
type PointCloudExporter interface {
	Export(name string, cloud pointcloud.PointCloud) error
}

// FileExporter writes each cloud to Dir/<name>.<ext>.
type FileExporter struct {
	Dir    string
	Format ExportFormat
}

// NewFileExporter returns an exporter writing into dir. An empty format means PCD.
func NewFileExporter(dir string, format ExportFormat) *FileExporter {
	if format == "" {
		format = ExportPCD
	}
	return &FileExporter{Dir: dir, Format: format}
}

// Path returns the file a cloud with the given name is written to.
func (fe *FileExporter) Path(name string) string {
	ext := ".pcd"
	if fe.Format == ExportLAS {
		ext = ".las"
	}
	return filepath.Join(fe.Dir, name+ext)
}

// Export implements PointCloudExporter. LAS cannot hold an empty cloud, so
// empty clouds are not written in that format.
func (fe *FileExporter) Export(name string, cloud pointcloud.PointCloud) (err error) {
	var pcdType pointcloud.PCDType
	switch fe.Format {
	case ExportLAS:
		if cloud.Size() == 0 {
			return nil
		}
	case ExportPCD:
		pcdType = pointcloud.PCDAscii
	case ExportPCDBinary:
		pcdType = pointcloud.PCDBinary
	default:
		return errors.Errorf("unknown export format %q", fe.Format)
	}
	if err := os.MkdirAll(fe.Dir, 0o750); err != nil {
		return errors.Wrapf(err, "creating debug export directory %q", fe.Dir)
	}
	fn := fe.Path(name)
	if fe.Format == ExportLAS {
		return pointcloud.WriteLAS(cloud, fn)
	}

	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return pointcloud.ToPCD(cloud, f, pcdType)
}

// debugScene is everything needed to build the debug clouds of one image.
type debugScene struct {
	cam        *transform.Camera
	img        image.Image
	width      int
	height     int
	sfmPoints  []r3.Vector
	sfmColors  []color.NRGBA
	projection *BackProjection
}

// buildCloud builds a cloud from the finite entries of pts. dataAt may be nil
// or return nil for points without data.
func buildCloud(pts []r3.Vector, dataAt func(i int) pointcloud.Data) (pointcloud.PointCloud, error) {
	cloud := pointcloud.NewWithPrealloc(len(pts))
	for i, p := range pts {
		if !finiteVector(p) {
			continue
		}
		var d pointcloud.Data
		if dataAt != nil {
			d = dataAt(i)
		}
		if err := cloud.Set(p, d); err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
	}
	return cloud, nil
}

// colored adapts a color lookup to buildCloud.
func colored(colorAt func(i int) (color.NRGBA, bool)) func(i int) pointcloud.Data {
	return func(i int) pointcloud.Data {
		if c, ok := colorAt(i); ok {
			return pointcloud.NewColoredData(c)
		}
		return nil
	}
}

// pixelTagged sets the row-major index of pixels[i] as the value of each point
// so exported points map back to the image.
func pixelTagged(width int, pixels []image.Point, colorAt func(i int) (color.NRGBA, bool)) func(i int) pointcloud.Data {
	return func(i int) pointcloud.Data {
		idx := pixels[i].Y*width + pixels[i].X
		if c, ok := colorAt(i); ok {
			return pointcloud.NewColoredData(c).SetValue(idx)
		}
		return pointcloud.NewValueData(idx)
	}
}

func (s *debugScene) imageColor(p image.Point) (color.NRGBA, bool) {
	if s.img == nil || !p.In(s.img.Bounds().Sub(s.img.Bounds().Min)) {
		return color.NRGBA{}, false
	}
	return rimage.NRGBAAt(s.img, p.X, p.Y), true
}

func (s *debugScene) sfmColor(i int) (color.NRGBA, bool) {
	if i >= len(s.sfmColors) {
		return color.NRGBA{}, false
	}
	return s.sfmColors[i], true
}

// cameraPlane places every pixel corner on the z=1 plane in world space.
func (s *debugScene) cameraPlane() (pointcloud.PointCloud, error) {
	pts := make([]r3.Vector, 0, s.width*s.height)
	for v := 0; v < s.height; v++ {
		for u := 0; u < s.width; u++ {
			pts = append(pts, s.cam.Unproject(r3.Vector{X: float64(u), Y: float64(v), Z: 1}))
		}
	}
	return buildCloud(pts, colored(func(i int) (color.NRGBA, bool) {
		return s.imageColor(image.Point{i % s.width, i / s.width})
	}))
}

// sfmPlaneProjection moves every SfM point onto the z=1 plane along its ray.
func (s *debugScene) sfmPlaneProjection() (pointcloud.PointCloud, error) {
	p := s.cam.ProjectionMatrix()
	pts := make([]r3.Vector, len(s.sfmPoints))
	for i, pt := range s.sfmPoints {
		px, _ := transform.ProjectPoint(p, pt)
		pts[i] = s.cam.Unproject(r3.Vector{X: px.X, Y: px.Y, Z: 1})
	}
	return buildCloud(pts, colored(s.sfmColor))
}

func (s *debugScene) export(exporter PointCloudExporter) error {
	cloud, err := s.cameraPlane()
	if err != nil {
		return err
	}
	if err := exporter.Export(CameraPlaneCloud, cloud); err != nil {
		return err
	}

	if cloud, err = s.sfmPlaneProjection(); err != nil {
		return err
	}
	if err := exporter.Export(SfMPlaneProjCloud, cloud); err != nil {
		return err
	}

	if cloud, err = buildCloud(s.sfmPoints, colored(s.sfmColor)); err != nil {
		return err
	}
	if err := exporter.Export(SfMWorldCloud, cloud); err != nil {
		return err
	}

	bp := s.projection
	pointColor := func(i int) (color.NRGBA, bool) {
		return s.imageColor(bp.Pixels[i])
	}
	if s.img == nil {
		colors := depthColors(s.cam.Center(), bp.Points)
		pointColor = func(i int) (color.NRGBA, bool) {
			return colors[i], true
		}
	}
	if cloud, err = buildCloud(bp.Points, pixelTagged(s.width, bp.Pixels, pointColor)); err != nil {
		return err
	}
	if err := exporter.Export(PointsWorldCloud, cloud); err != nil {
		return err
	}

	if len(bp.Excluded) == 0 {
		return nil
	}
	red := func(int) (color.NRGBA, bool) { return rimage.Red, true }
	if cloud, err = buildCloud(bp.Excluded, pixelTagged(s.width, bp.ExcludedPixels, red)); err != nil {
		return err
	}
	return exporter.Export(OutliersWorldCloud, cloud)
}

// depthColors colors points by distance from center, from red for the nearest
// to blue for the farthest.
func depthColors(center r3.Vector, pts []r3.Vector) []color.NRGBA {
	dists := make([]float64, len(pts))
	nearest, farthest := math.Inf(1), math.Inf(-1)
	for i, p := range pts {
		dists[i] = p.Sub(center).Norm()
		if isFinite(dists[i]) {
			nearest = math.Min(nearest, dists[i])
			farthest = math.Max(farthest, dists[i])
		}
	}
	out := make([]color.NRGBA, len(pts))
	for i, d := range dists {
		var t float64
		if farthest > nearest && isFinite(d) {
			t = (d - nearest) / (farthest - nearest)
		}
		r, g, b := colorful.Hsv(240*t, 1, 1).Clamped().RGB255()
		out[i] = color.NRGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

func finiteVector(v r3.Vector) bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}
