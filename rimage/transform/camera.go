package transform

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// rotationTolerance is how far R*R^T may stray from identity for a cam2world
// transform to still count as rigid.
const rotationTolerance = 1e-6

// Camera is a calibrated pinhole camera placed in the world. K is the 3x3
// intrinsic matrix and Cam2World the 4x4 rigid camera-to-world transform.
type Camera struct {
	k         *mat.Dense
	cam2world *mat.Dense
	world2cam *mat.Dense
	proj      *mat.Dense

	// cached row-major copies used by the per-pixel hot paths
	kInv     [9]float64
	rotation [9]float64
	origin   r3.Vector
}

// NewCamera validates K and cam2world and precomputes the world-to-camera
// transform, the projection matrix and K^-1.
func NewCamera(k, cam2world mat.Matrix) (*Camera, error) {
	if k == nil || cam2world == nil {
		return nil, errors.New("camera needs both an intrinsic matrix and a cam2world transform")
	}
	if r, c := k.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("intrinsic matrix must be 3x3, got %dx%d", r, c)
	}
	if r, c := cam2world.Dims(); r != 4 || c != 4 {
		return nil, errors.Errorf("cam2world must be 4x4, got %dx%d", r, c)
	}
	if k.At(0, 0) == 0 || k.At(1, 1) == 0 {
		return nil, NewNoIntrinsicsError("zero focal length in intrinsic matrix")
	}
	if k.At(1, 0) != 0 || k.At(2, 0) != 0 || k.At(2, 1) != 0 || k.At(2, 2) == 0 {
		return nil, errors.New("intrinsic matrix must be upper triangular with a nonzero last entry")
	}
	if err := checkRigid(cam2world); err != nil {
		return nil, err
	}

	cam := &Camera{
		k:         mat.DenseCopyOf(k),
		cam2world: mat.DenseCopyOf(cam2world),
	}

	var kInv mat.Dense
	if err := kInv.Inverse(cam.k); err != nil {
		return nil, errors.Wrap(err, "intrinsic matrix is not invertible")
	}
	var w2c mat.Dense
	if err := w2c.Inverse(cam.cam2world); err != nil {
		return nil, errors.Wrap(err, "cam2world is not invertible")
	}
	cam.world2cam = &w2c

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			cam.kInv[3*i+j] = kInv.At(i, j)
			cam.rotation[3*i+j] = cam.cam2world.At(i, j)
		}
	}
	cam.origin = r3.Vector{X: cam.cam2world.At(0, 3), Y: cam.cam2world.At(1, 3), Z: cam.cam2world.At(2, 3)}
	cam.proj = projectionMatrix(cam.k, cam.world2cam)
	return cam, nil
}

// NewCameraFromIntrinsics builds a camera from pinhole intrinsics.
func NewCameraFromIntrinsics(params *PinholeCameraIntrinsics, cam2world mat.Matrix) (*Camera, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	return NewCamera(params.GetCameraMatrix(), cam2world)
}

func checkRigid(m mat.Matrix) error {
	if m.At(3, 0) != 0 || m.At(3, 1) != 0 || m.At(3, 2) != 0 || m.At(3, 3) != 1 {
		return errors.New("cam2world bottom row must be [0 0 0 1]")
	}
	rot := mat.DenseCopyOf(m).Slice(0, 3, 0, 3)
	var rrt mat.Dense
	rrt.Mul(rot, rot.T())
	if !mat.EqualApprox(&rrt, eye(3), rotationTolerance) {
		return errors.New("cam2world rotation block is not orthonormal")
	}
	return nil
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// projectionMatrix returns P = K * R * [I | -C] where R is the world-to-camera
// rotation and C = -R^T t the camera centre.
func projectionMatrix(k, world2cam *mat.Dense) *mat.Dense {
	rot := world2cam.Slice(0, 3, 0, 3)
	t := mat.NewVecDense(3, []float64{world2cam.At(0, 3), world2cam.At(1, 3), world2cam.At(2, 3)})

	var center mat.VecDense
	center.MulVec(rot.T(), t)
	center.ScaleVec(-1, &center)

	ic := mat.NewDense(3, 4, nil)
	for i := 0; i < 3; i++ {
		ic.Set(i, i, 1)
		ic.Set(i, 3, -center.AtVec(i))
	}

	var kr, p mat.Dense
	kr.Mul(k, rot)
	p.Mul(&kr, ic)
	return &p
}

// Cam2World returns a copy of the camera-to-world transform.
func (c *Camera) Cam2World() *mat.Dense {
	return mat.DenseCopyOf(c.cam2world)
}

// ProjectionMatrix returns a copy of the 3x4 projection matrix P.
func (c *Camera) ProjectionMatrix() *mat.Dense {
	return mat.DenseCopyOf(c.proj)
}

// Center returns the camera centre in world coordinates.
func (c *Camera) Center() r3.Vector {
	return c.origin
}

// ProjectPoint projects a world point through p. The returned depth is the
// homogeneous third coordinate before normalization; it is non-positive for
// points behind the camera.
func ProjectPoint(p mat.Matrix, pt r3.Vector) (r2.Point, float64) {
	x := p.At(0, 0)*pt.X + p.At(0, 1)*pt.Y + p.At(0, 2)*pt.Z + p.At(0, 3)
	y := p.At(1, 0)*pt.X + p.At(1, 1)*pt.Y + p.At(1, 2)*pt.Z + p.At(1, 3)
	z := p.At(2, 0)*pt.X + p.At(2, 1)*pt.Y + p.At(2, 2)*pt.Z + p.At(2, 3)
	return r2.Point{X: x / z, Y: y / z}, z
}

// Project projects world points through p and rounds them to pixel indices,
// half to even. Points that do not land on a finite pixel (zero depth) get
// (-1, -1) so any bounds check rejects them.
func Project(p mat.Matrix, pts []r3.Vector) ([]image.Point, []float64) {
	pixels := make([]image.Point, len(pts))
	depths := make([]float64, len(pts))
	for i, pt := range pts {
		px, z := ProjectPoint(p, pt)
		depths[i] = z
		u, v := math.RoundToEven(px.X), math.RoundToEven(px.Y)
		if !isFinite(u) || !isFinite(v) || math.Abs(u) > math.MaxInt32 || math.Abs(v) > math.MaxInt32 {
			pixels[i] = image.Point{-1, -1}
			continue
		}
		pixels[i] = image.Point{int(u), int(v)}
	}
	return pixels, depths
}

// PixelCenter returns the depth-scaled homogeneous coordinate of the centre of
// pixel (u, v) at depth z.
func PixelCenter(u, v int, z float64) r3.Vector {
	return r3.Vector{X: (float64(u) + 0.5) * z, Y: (float64(v) + 0.5) * z, Z: z}
}

// Unproject maps a depth-scaled homogeneous pixel (u*z, v*z, z) to world
// coordinates: cam2world * [K^-1 h; 1].
func (c *Camera) Unproject(h r3.Vector) r3.Vector {
	ki := &c.kInv
	cam := r3.Vector{
		X: ki[0]*h.X + ki[1]*h.Y + ki[2]*h.Z,
		Y: ki[3]*h.X + ki[4]*h.Y + ki[5]*h.Z,
		Z: ki[6]*h.X + ki[7]*h.Y + ki[8]*h.Z,
	}
	return c.CameraToWorld(cam)
}

// CameraToWorld maps a camera-frame point to world coordinates.
func (c *Camera) CameraToWorld(pt r3.Vector) r3.Vector {
	r := &c.rotation
	return r3.Vector{
		X: r[0]*pt.X + r[1]*pt.Y + r[2]*pt.Z,
		Y: r[3]*pt.X + r[4]*pt.Y + r[5]*pt.Z,
		Z: r[6]*pt.X + r[7]*pt.Y + r[8]*pt.Z,
	}.Add(c.origin)
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
