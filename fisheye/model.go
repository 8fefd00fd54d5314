// Package fisheye implements the four-coefficient equidistant (Kannala-Brandt)
// lens model used for wide-angle UVC cameras: projection, calibration from
// planar target observations, and undistortion lookup tables.
package fisheye

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Point2 is an image coordinate in pixels
type Point2 struct {
	X, Y float64
}

// Point3 is a reference point in the target's own coordinate frame
type Point3 struct {
	X, Y, Z float64
}

// View is one accepted calibration sample: the target's reference points and
// where they were detected in a single frame. Both slices have equal length.
type View struct {
	Object []Point3
	Image  []Point2
}

// Intrinsics holds the camera matrix terms and the distortion vector D
type Intrinsics struct {
	Fx, Fy float64
	Cx, Cy float64
	Alpha  float64 // skew, kept at zero when FixSkew is set
	D      [4]float64
}

// Pose is a rotation vector (axis * angle) plus translation, target to camera
type Pose struct {
	R [3]float64
	T [3]float64
}

// CameraMatrix returns K as a 3x3 matrix
func (in Intrinsics) CameraMatrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		in.Fx, in.Alpha * in.Fx, in.Cx,
		0, in.Fy, in.Cy,
		0, 0, 1,
	})
}

// DistCoeffs returns D as a 4x1 column
func (in Intrinsics) DistCoeffs() *mat.Dense {
	return mat.NewDense(4, 1, []float64{in.D[0], in.D[1], in.D[2], in.D[3]})
}

// Project maps a target point through pose and lens onto the image plane
func (in Intrinsics) Project(p Point3, pose Pose) Point2 {
	rot := rodrigues(pose.R)
	xc := apply(rot, [3]float64{p.X, p.Y, p.Z})
	xc[0] += pose.T[0]
	xc[1] += pose.T[1]
	xc[2] += pose.T[2]
	return in.projectCamera(xc)
}

// projectCamera projects a point already expressed in camera coordinates
func (in Intrinsics) projectCamera(xc [3]float64) Point2 {
	a := xc[0] / xc[2]
	b := xc[1] / xc[2]

	r := math.Sqrt(a*a + b*b)
	theta := math.Atan(r)
	thetaD := in.distortTheta(theta)

	scale := 1.0
	if r > 1e-8 {
		scale = thetaD / r
	}
	xd := a * scale
	yd := b * scale

	return Point2{
		X: in.Fx*(xd+in.Alpha*yd) + in.Cx,
		Y: in.Fy*yd + in.Cy,
	}
}

func (in Intrinsics) distortTheta(theta float64) float64 {
	t2 := theta * theta
	t4 := t2 * t2
	t6 := t4 * t2
	t8 := t4 * t4
	return theta * (1 + in.D[0]*t2 + in.D[1]*t4 + in.D[2]*t6 + in.D[3]*t8)
}

// undistortPoint inverts the lens for a pixel and returns the normalized
// pinhole coordinates (x/z, y/z) of the ray that produced it.
func (in Intrinsics) undistortPoint(p Point2) (float64, float64) {
	yd := (p.Y - in.Cy) / in.Fy
	xd := (p.X-in.Cx)/in.Fx - in.Alpha*yd

	thetaD := math.Sqrt(xd*xd + yd*yd)
	thetaD = math.Min(math.Max(thetaD, -math.Pi/2), math.Pi/2)
	if thetaD < 1e-8 {
		return xd, yd
	}

	// Newton on theta_d = theta * (1 + k1 t^2 + k2 t^4 + k3 t^6 + k4 t^8)
	theta := thetaD
	for i := 0; i < 10; i++ {
		t2 := theta * theta
		t4 := t2 * t2
		t6 := t4 * t2
		t8 := t4 * t4
		f := theta*(1+in.D[0]*t2+in.D[1]*t4+in.D[2]*t6+in.D[3]*t8) - thetaD
		fp := 1 + 3*in.D[0]*t2 + 5*in.D[1]*t4 + 7*in.D[2]*t6 + 9*in.D[3]*t8
		step := f / fp
		theta -= step
		if math.Abs(step) < 1e-12 {
			break
		}
	}

	scale := math.Tan(theta) / thetaD
	return xd * scale, yd * scale
}

// initialIntrinsics is the starting point used by Calibrate: an equidistant
// lens whose focal length maps a half-pi field to the larger image side.
func initialIntrinsics(width, height int) Intrinsics {
	f := math.Max(float64(width), float64(height)) / math.Pi
	return Intrinsics{
		Fx: f,
		Fy: f,
		Cx: float64(width)/2 - 0.5,
		Cy: float64(height)/2 - 0.5,
	}
}
