package fisheye

import (
	"fmt"
	"image"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Flags select the optimisation behaviour of Calibrate
type Flags int

const (
	// RecomputeExtrinsic re-refines every view's pose after each accepted
	// intrinsic update.
	RecomputeExtrinsic Flags = 1 << iota
	// CheckCond rejects views whose extrinsic Jacobian is ill-conditioned.
	CheckCond
	// FixSkew keeps the skew term of K at zero.
	FixSkew
)

// DefaultFlags is the flag set used by the interactive calibration command
const DefaultFlags = RecomputeExtrinsic | CheckCond | FixSkew

const (
	maxIterations       = 100
	maxRefineIterations = 20
	conditionThreshold  = 1e6
	convergenceEpsilon  = 1e-12
)

var (
	// ErrNoViews is returned when Calibrate receives no observations
	ErrNoViews = errors.New("no calibration views")
	// ErrMismatchedPoints is returned when a view's object and image point counts differ
	ErrMismatchedPoints = errors.New("object and image point counts differ")
	// ErrNonPlanar is returned when a view's reference points do not lie on a plane
	ErrNonPlanar = errors.New("reference points are not planar")
	// ErrDegenerate covers singular systems and non-finite estimates
	ErrDegenerate = errors.New("degenerate calibration input")
)

// IllConditionedError reports the view whose pose could not be estimated
// reliably when CheckCond is set.
type IllConditionedError struct {
	View      int
	Condition float64
}

func (e *IllConditionedError) Error() string {
	return fmt.Sprintf("ill-conditioned extrinsic system for view %d (condition number %.3g)", e.View, e.Condition)
}

// Result is the outcome of a successful calibration
type Result struct {
	Intrinsics Intrinsics
	Poses      []Pose
	RMS        float64
	ImageSize  image.Point
	Iterations int
	Flags      Flags
}

// CameraMatrix returns the fitted K
func (r *Result) CameraMatrix() *mat.Dense {
	return r.Intrinsics.CameraMatrix()
}

// DistCoeffs returns the fitted D as a 4x1 column
func (r *Result) DistCoeffs() *mat.Dense {
	return r.Intrinsics.DistCoeffs()
}

// Rvecs returns one rotation vector per row
func (r *Result) Rvecs() *mat.Dense {
	m := mat.NewDense(len(r.Poses), 3, nil)
	for i, p := range r.Poses {
		m.SetRow(i, p.R[:])
	}
	return m
}

// Tvecs returns one translation vector per row
func (r *Result) Tvecs() *mat.Dense {
	m := mat.NewDense(len(r.Poses), 3, nil)
	for i, p := range r.Poses {
		m.SetRow(i, p.T[:])
	}
	return m
}

// Quality classifies the result's reprojection error
func (r *Result) Quality() Tier {
	return Classify(r.RMS)
}

// Calibrate fits the fisheye model to the given views. imageSize is the
// frame size the image points were detected in.
func Calibrate(views []View, imageSize image.Point, flags Flags) (*Result, error) {
	if len(views) == 0 {
		return nil, ErrNoViews
	}
	if imageSize.X <= 0 || imageSize.Y <= 0 {
		return nil, errors.Errorf("invalid image size %dx%d", imageSize.X, imageSize.Y)
	}
	for i, v := range views {
		if len(v.Object) != len(v.Image) {
			return nil, errors.Wrapf(ErrMismatchedPoints, "view %d: %d object points, %d image points", i, len(v.Object), len(v.Image))
		}
		if len(v.Object) < 4 {
			return nil, errors.Wrapf(ErrDegenerate, "view %d has %d points, need at least 4", i, len(v.Object))
		}
	}

	p := &problem{
		views:     views,
		in:        initialIntrinsics(imageSize.X, imageSize.Y),
		fixSkew:   flags&FixSkew != 0,
		checkCond: flags&CheckCond != 0,
	}

	p.poses = make([]Pose, len(views))
	for i := range views {
		pose, err := p.initPose(i)
		if err != nil {
			return nil, err
		}
		p.poses[i] = pose
	}

	iterations, err := p.optimize(flags&RecomputeExtrinsic != 0)
	if err != nil {
		return nil, err
	}

	if !p.finite() {
		return nil, errors.Wrap(ErrDegenerate, "optimisation produced non-finite parameters")
	}

	points := 0
	for _, v := range views {
		points += len(v.Object)
	}

	log.WithFields(map[string]interface{}{
		"views":      len(views),
		"iterations": iterations,
	}).Debug("fisheye optimisation finished")

	return &Result{
		Intrinsics: p.in,
		Poses:      p.poses,
		RMS:        math.Sqrt(p.cost() / float64(points)),
		ImageSize:  imageSize,
		Iterations: iterations,
		Flags:      flags,
	}, nil
}

// problem carries the evolving estimate during Calibrate
type problem struct {
	views     []View
	in        Intrinsics
	poses     []Pose
	fixSkew   bool
	checkCond bool
}

func (p *problem) intrinsicCount() int {
	if p.fixSkew {
		return 8
	}
	return 9
}

func (p *problem) intrinsicVector(in Intrinsics) []float64 {
	x := []float64{in.Fx, in.Fy, in.Cx, in.Cy, in.D[0], in.D[1], in.D[2], in.D[3]}
	if !p.fixSkew {
		x = append(x, in.Alpha)
	}
	return x
}

func (p *problem) intrinsicsFrom(x []float64) Intrinsics {
	in := Intrinsics{
		Fx: x[0], Fy: x[1], Cx: x[2], Cy: x[3],
		D: [4]float64{x[4], x[5], x[6], x[7]},
	}
	if !p.fixSkew {
		in.Alpha = x[8]
	}
	return in
}

func poseVector(pose Pose) []float64 {
	return []float64{pose.R[0], pose.R[1], pose.R[2], pose.T[0], pose.T[1], pose.T[2]}
}

func poseFrom(x []float64) Pose {
	return Pose{
		R: [3]float64{x[0], x[1], x[2]},
		T: [3]float64{x[3], x[4], x[5]},
	}
}

// residuals writes projected minus detected coordinates, x then y per point
func residuals(in Intrinsics, pose Pose, v View, out []float64) {
	rot := rodrigues(pose.R)
	for i, obj := range v.Object {
		xc := apply(rot, [3]float64{obj.X, obj.Y, obj.Z})
		xc[0] += pose.T[0]
		xc[1] += pose.T[1]
		xc[2] += pose.T[2]
		q := in.projectCamera(xc)
		out[2*i] = q.X - v.Image[i].X
		out[2*i+1] = q.Y - v.Image[i].Y
	}
}

func sumSquares(r []float64) float64 {
	var s float64
	for _, x := range r {
		s += x * x
	}
	return s
}

func (p *problem) cost() float64 {
	var total float64
	for i, v := range p.views {
		r := make([]float64, 2*len(v.Object))
		residuals(p.in, p.poses[i], v, r)
		total += sumSquares(r)
	}
	return total
}

func (p *problem) finite() bool {
	for _, x := range p.intrinsicVector(p.in) {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	for _, pose := range p.poses {
		for _, x := range poseVector(pose) {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}

// numericJacobian differentiates f around x with central differences
func numericJacobian(f func(x, out []float64), x []float64, rows int) *mat.Dense {
	jac := mat.NewDense(rows, len(x), nil)
	plus := make([]float64, rows)
	minus := make([]float64, rows)

	for j := range x {
		orig := x[j]
		h := 1e-6 * math.Max(1, math.Abs(orig))
		x[j] = orig + h
		f(x, plus)
		x[j] = orig - h
		f(x, minus)
		x[j] = orig
		for i := 0; i < rows; i++ {
			jac.Set(i, j, (plus[i]-minus[i])/(2*h))
		}
	}
	return jac
}

// initPose estimates view i's pose from a planar homography on undistorted
// points and refines it with the current intrinsics.
func (p *problem) initPose(i int) (Pose, error) {
	v := p.views[i]
	n := len(v.Object)

	// Move the reference points into their own plane frame
	var mean [3]float64
	for _, o := range v.Object {
		mean[0] += o.X
		mean[1] += o.Y
		mean[2] += o.Z
	}
	for k := range mean {
		mean[k] /= float64(n)
	}

	cov := mat.NewDense(3, 3, nil)
	for _, o := range v.Object {
		d := [3]float64{o.X - mean[0], o.Y - mean[1], o.Z - mean[2]}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				cov.Set(r, c, cov.At(r, c)+d[r]*d[c])
			}
		}
	}
	var svd mat.SVD
	if ok := svd.Factorize(cov, mat.SVDFull); !ok {
		return Pose{}, errors.Wrapf(ErrDegenerate, "view %d: plane fit failed", i)
	}
	var u mat.Dense
	svd.UTo(&u)

	var plane [3][3]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			plane[r][c] = u.At(c, r)
		}
	}
	if det3(plane) < 0 {
		plane[2] = [3]float64{-plane[2][0], -plane[2][1], -plane[2][2]}
	}

	extent := math.Sqrt(svd.Values(nil)[0] / float64(n))
	src := make([][2]float64, n)
	dst := make([][2]float64, n)
	for k, o := range v.Object {
		q := apply(plane, [3]float64{o.X - mean[0], o.Y - mean[1], o.Z - mean[2]})
		if math.Abs(q[2]) > 1e-6*math.Max(1, extent) {
			return Pose{}, errors.Wrapf(ErrNonPlanar, "view %d", i)
		}
		src[k] = [2]float64{q[0], q[1]}
		x, y := p.in.undistortPoint(v.Image[k])
		dst[k] = [2]float64{x, y}
	}

	h, err := planarHomography(src, dst)
	if err != nil {
		return Pose{}, errors.Wrapf(err, "view %d", i)
	}

	h1 := [3]float64{h[0][0], h[1][0], h[2][0]}
	h2 := [3]float64{h[0][1], h[1][1], h[2][1]}
	h3 := [3]float64{h[0][2], h[1][2], h[2][2]}

	sc := 0.5 * (norm3(h1) + norm3(h2))
	if sc < 1e-12 {
		return Pose{}, errors.Wrapf(ErrDegenerate, "view %d: vanishing homography", i)
	}
	if h3[2] < 0 {
		sc = -sc
	}
	for k := 0; k < 3; k++ {
		h1[k] /= sc
		h2[k] /= sc
		h3[k] /= sc
	}

	// Gram-Schmidt on the first two columns
	n1 := norm3(h1)
	u1 := [3]float64{h1[0] / n1, h1[1] / n1, h1[2] / n1}
	dot := u1[0]*h2[0] + u1[1]*h2[1] + u1[2]*h2[2]
	u2 := [3]float64{h2[0] - dot*u1[0], h2[1] - dot*u1[1], h2[2] - dot*u1[2]}
	n2 := norm3(u2)
	if n2 < 1e-12 {
		return Pose{}, errors.Wrapf(ErrDegenerate, "view %d: collinear homography columns", i)
	}
	u2 = [3]float64{u2[0] / n2, u2[1] / n2, u2[2] / n2}
	u3 := cross(u1, u2)

	rh := [3][3]float64{
		{u1[0], u2[0], u3[0]},
		{u1[1], u2[1], u3[1]},
		{u1[2], u2[2], u3[2]},
	}

	rot := mul3(rh, plane)
	rm := apply(rot, mean)
	pose := Pose{
		R: rotationVector(rot),
		T: [3]float64{h3[0] - rm[0], h3[1] - rm[1], h3[2] - rm[2]},
	}

	return p.refinePose(i, p.in, pose)
}

// refinePose runs Gauss-Newton on one view's pose with intrinsics held fixed
func (p *problem) refinePose(i int, in Intrinsics, pose Pose) (Pose, error) {
	v := p.views[i]
	rows := 2 * len(v.Object)
	r := make([]float64, rows)
	x := poseVector(pose)

	for iter := 0; iter < maxRefineIterations; iter++ {
		residuals(in, poseFrom(x), v, r)
		jac := numericJacobian(func(q, out []float64) {
			residuals(in, poseFrom(q), v, out)
		}, x, rows)

		if p.checkCond {
			var svd mat.SVD
			if ok := svd.Factorize(jac, mat.SVDNone); !ok {
				return Pose{}, errors.Wrapf(ErrDegenerate, "view %d: extrinsic SVD did not converge", i)
			}
			values := svd.Values(nil)
			last := values[len(values)-1]
			if last <= 0 || values[0]/last > conditionThreshold {
				cond := math.Inf(1)
				if last > 0 {
					cond = values[0] / last
				}
				return Pose{}, &IllConditionedError{View: i, Condition: cond}
			}
		}

		var jtj mat.SymDense
		jtj.SymOuterK(1, jac.T())
		var g mat.VecDense
		g.MulVec(jac.T(), mat.NewVecDense(rows, r))

		var chol mat.Cholesky
		if ok := chol.Factorize(&jtj); !ok {
			return Pose{}, errors.Wrapf(ErrDegenerate, "view %d: singular extrinsic system", i)
		}
		var delta mat.VecDense
		if err := chol.SolveVecTo(&delta, &g); err != nil {
			return Pose{}, errors.Wrapf(ErrDegenerate, "view %d: %v", i, err)
		}

		var stepNorm, paramNorm float64
		for k := range x {
			d := delta.AtVec(k)
			x[k] -= d
			stepNorm += d * d
			paramNorm += x[k] * x[k]
		}
		if math.Sqrt(stepNorm) <= convergenceEpsilon*math.Max(math.Sqrt(paramNorm), 1) {
			break
		}
	}

	return poseFrom(x), nil
}

// optimize runs Levenberg-Marquardt over the intrinsics and every pose.
// It returns the number of iterations performed.
func (p *problem) optimize(recompute bool) (int, error) {
	nI := p.intrinsicCount()
	nParams := nI + 6*len(p.views)
	lambda := 1e-3
	cost := p.cost()

	iter := 0
	for ; iter < maxIterations; iter++ {
		if cost < 1e-24 {
			break
		}

		a := mat.NewSymDense(nParams, nil)
		g := mat.NewVecDense(nParams, nil)
		x := p.intrinsicVector(p.in)

		for vi, v := range p.views {
			rows := 2 * len(v.Object)
			pose := p.poses[vi]
			r := make([]float64, rows)
			residuals(p.in, pose, v, r)
			rv := mat.NewVecDense(rows, r)

			ji := numericJacobian(func(q, out []float64) {
				residuals(p.intrinsicsFrom(q), pose, v, out)
			}, x, rows)
			je := numericJacobian(func(q, out []float64) {
				residuals(p.in, poseFrom(q), v, out)
			}, poseVector(pose), rows)

			var ii, ie, ee mat.Dense
			ii.Mul(ji.T(), ji)
			ie.Mul(ji.T(), je)
			ee.Mul(je.T(), je)
			var gi, ge mat.VecDense
			gi.MulVec(ji.T(), rv)
			ge.MulVec(je.T(), rv)

			off := nI + 6*vi
			for r := 0; r < nI; r++ {
				for c := r; c < nI; c++ {
					a.SetSym(r, c, a.At(r, c)+ii.At(r, c))
				}
				for c := 0; c < 6; c++ {
					a.SetSym(r, off+c, ie.At(r, c))
				}
				g.SetVec(r, g.AtVec(r)+gi.AtVec(r))
			}
			for r := 0; r < 6; r++ {
				for c := r; c < 6; c++ {
					a.SetSym(off+r, off+c, ee.At(r, c))
				}
				g.SetVec(off+r, ge.AtVec(r))
			}
		}

		accepted := false
		var relative float64
		for attempt := 0; attempt < 10; attempt++ {
			damped := mat.NewSymDense(nParams, nil)
			damped.CopySym(a)
			for k := 0; k < nParams; k++ {
				d := a.At(k, k)
				damped.SetSym(k, k, d+lambda*math.Max(d, 1e-12))
			}

			var chol mat.Cholesky
			if ok := chol.Factorize(damped); !ok {
				lambda *= 10
				continue
			}
			var delta mat.VecDense
			if err := chol.SolveVecTo(&delta, g); err != nil {
				lambda *= 10
				continue
			}

			cand := p.stepped(&delta)
			candCost := cand.cost()
			if !math.IsNaN(candCost) && candCost < cost {
				relative = (cost - candCost) / cost
				p.in = cand.in
				p.poses = cand.poses
				cost = candCost
				lambda = math.Max(lambda/10, 1e-12)
				accepted = true
				break
			}
			lambda *= 10
		}

		if !accepted {
			break
		}

		if recompute {
			for vi := range p.views {
				pose, err := p.refinePose(vi, p.in, p.poses[vi])
				if err != nil {
					return iter + 1, err
				}
				p.poses[vi] = pose
			}
			cost = p.cost()
		}

		if relative < convergenceEpsilon {
			iter++
			break
		}
	}

	return iter, nil
}

// stepped returns a copy of p with delta subtracted from all parameters
func (p *problem) stepped(delta *mat.VecDense) *problem {
	nI := p.intrinsicCount()
	x := p.intrinsicVector(p.in)
	for k := range x {
		x[k] -= delta.AtVec(k)
	}

	out := &problem{
		views:     p.views,
		in:        p.intrinsicsFrom(x),
		poses:     make([]Pose, len(p.poses)),
		fixSkew:   p.fixSkew,
		checkCond: p.checkCond,
	}
	for vi, pose := range p.poses {
		pv := poseVector(pose)
		for k := range pv {
			pv[k] -= delta.AtVec(nI + 6*vi + k)
		}
		out.poses[vi] = poseFrom(pv)
	}
	return out
}
