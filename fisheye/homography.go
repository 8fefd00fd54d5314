package fisheye

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// planarHomography estimates H with dst ~ H * (src, 1) using the normalised
// direct linear transform.
func planarHomography(src, dst [][2]float64) ([3][3]float64, error) {
	var h [3][3]float64
	n := len(src)
	if n < 4 || len(dst) != n {
		return h, errors.Wrapf(ErrDegenerate, "homography needs at least 4 point pairs, got %d", n)
	}

	ts, err := normalization(src)
	if err != nil {
		return h, err
	}
	td, err := normalization(dst)
	if err != nil {
		return h, err
	}

	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		s := apply(ts, [3]float64{src[i][0], src[i][1], 1})
		d := apply(td, [3]float64{dst[i][0], dst[i][1], 1})
		x, y := s[0], s[1]
		u, v := d[0], d[1]

		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y, -u})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y, -v})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFullV); !ok {
		return h, errors.Wrap(ErrDegenerate, "homography SVD did not converge")
	}
	values := svd.Values(nil)
	if values[0] == 0 || values[7]/values[0] < 1e-12 {
		return h, errors.Wrap(ErrDegenerate, "homography system is rank deficient")
	}

	var right mat.Dense
	svd.VTo(&right)

	var hn [3][3]float64
	for i := 0; i < 9; i++ {
		hn[i/3][i%3] = right.At(i, 8)
	}

	tdInv, ok := invert3(td)
	if !ok {
		return h, errors.Wrap(ErrDegenerate, "singular normalisation")
	}
	h = mul3(tdInv, mul3(hn, ts))

	if math.Abs(h[2][2]) > 1e-15 {
		s := h[2][2]
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				h[i][j] /= s
			}
		}
	}
	return h, nil
}

// normalization returns the similarity that moves the centroid to the
// origin and scales the mean distance to sqrt(2).
func normalization(pts [][2]float64) ([3][3]float64, error) {
	var cx, cy float64
	for _, p := range pts {
		cx += p[0]
		cy += p[1]
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	var mean float64
	for _, p := range pts {
		mean += math.Hypot(p[0]-cx, p[1]-cy)
	}
	mean /= float64(len(pts))
	if mean < 1e-12 {
		return [3][3]float64{}, errors.Wrap(ErrDegenerate, "all points coincide")
	}

	s := math.Sqrt2 / mean
	return [3][3]float64{
		{s, 0, -s * cx},
		{0, s, -s * cy},
		{0, 0, 1},
	}, nil
}

func invert3(m [3][3]float64) ([3][3]float64, bool) {
	d := det3(m)
	if math.Abs(d) < 1e-300 {
		return [3][3]float64{}, false
	}
	var inv [3][3]float64
	inv[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) / d
	inv[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) / d
	inv[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) / d
	inv[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) / d
	inv[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) / d
	inv[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) / d
	inv[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) / d
	inv[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) / d
	inv[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) / d
	return inv, true
}
