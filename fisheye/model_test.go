package fisheye

import (
	"math"
	"testing"
)

func TestRodriguesRoundTrip(t *testing.T) {
	vectors := [][3]float64{
		{0, 0, 0},
		{1e-14, 0, 0},
		{0.1, -0.2, 0.3},
		{1.2, 0.4, -0.7},
		{0, 0, math.Pi - 1e-9},
		{math.Pi / math.Sqrt2, math.Pi / math.Sqrt2, 0},
	}
	for _, v := range vectors {
		m := rodrigues(v)
		if d := det3(m); math.Abs(d-1) > 1e-9 {
			t.Errorf("det(rodrigues(%v)) = %g", v, d)
		}
		back := rodrigues(rotationVector(m))
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				if math.Abs(back[i][j]-m[i][j]) > 1e-6 {
					t.Fatalf("round trip of %v differs at (%d,%d): %g vs %g", v, i, j, back[i][j], m[i][j])
				}
			}
		}
	}
}

func TestPlanarHomographyExact(t *testing.T) {
	want := [3][3]float64{
		{1.2, 0.1, 30},
		{-0.05, 0.9, 12},
		{0.001, 0.002, 1},
	}

	var src, dst [][2]float64
	for y := 0; y < 5; y++ {
		for x := 0; x < 6; x++ {
			p := apply(want, [3]float64{float64(x) * 10, float64(y) * 10, 1})
			src = append(src, [2]float64{float64(x) * 10, float64(y) * 10})
			dst = append(dst, [2]float64{p[0] / p[2], p[1] / p[2]})
		}
	}

	got, err := planarHomography(src, dst)
	if err != nil {
		t.Fatalf("planarHomography: %v", err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(got[i][j]-want[i][j]) > 1e-8 {
				t.Errorf("H[%d][%d] = %g, want %g", i, j, got[i][j], want[i][j])
			}
		}
	}
}

func TestUndistortPointInvertsProjection(t *testing.T) {
	rays := [][3]float64{{0, 0, 1}, {0.3, -0.2, 1}, {-0.8, 0.6, 1}, {1.5, 0.1, 1}}
	for _, ray := range rays {
		px := truth.projectCamera(ray)
		x, y := truth.undistortPoint(px)
		if math.Abs(x-ray[0]) > 1e-6 || math.Abs(y-ray[1]) > 1e-6 {
			t.Errorf("undistort(project(%v)) = (%g, %g)", ray, x, y)
		}
	}
}

func TestInitialIntrinsics(t *testing.T) {
	in := initialIntrinsics(640, 480)
	if math.Abs(in.Fx-640/math.Pi) > 1e-12 || in.Fx != in.Fy {
		t.Errorf("focal = %g/%g", in.Fx, in.Fy)
	}
	if in.Cx != 319.5 || in.Cy != 239.5 {
		t.Errorf("centre = (%g, %g)", in.Cx, in.Cy)
	}
}
