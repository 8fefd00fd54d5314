package capture

import (
	"image"
	"math"
	"testing"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"lensfocus/fisheye"
)

func square(x0, y0, x1, y1 float64) []fisheye.Point2 {
	return []fisheye.Point2{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func blank(size int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size, size, gocv.MatTypeCV8U)
}

func checker(size, cell int) gocv.Mat {
	m := blank(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				m.SetUCharAt(y, x, 255)
			}
		}
	}
	return m
}

func TestScoreSinglePeak(t *testing.T) {
	img := blank(5)
	img.SetUCharAt(2, 2, 10)
	frame := &MatFrame{Mat: img}
	defer frame.Close()

	got, err := NewSharpnessScorer().Score(frame, square(0, 0, 4.9, 4.9))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// Responses are -40 once, +10 four times, zero elsewhere
	if math.Abs(got-80) > 1e-6 {
		t.Errorf("Score = %g, want 80", got)
	}
}

func TestScoreIgnoresPixelsOutsideHull(t *testing.T) {
	img := blank(20)
	// Texture far from the scored square
	for x := 14; x < 20; x += 2 {
		img.SetUCharAt(17, x, 255)
	}
	frame := &MatFrame{Mat: img}
	defer frame.Close()

	got, err := NewSharpnessScorer().Score(frame, square(1, 1, 8, 8))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 0 {
		t.Errorf("Score = %g, want 0 for a flat region", got)
	}
}

func TestScorePrefersSharpImage(t *testing.T) {
	sharp := checker(64, 8)
	blurred := gocv.NewMat()
	gocv.Blur(sharp, &blurred, image.Pt(7, 7))

	sf, bf := &MatFrame{Mat: sharp}, &MatFrame{Mat: blurred}
	defer sf.Close()
	defer bf.Close()

	corners := square(2, 2, 61, 61)
	scorer := NewSharpnessScorer()
	s, err := scorer.Score(sf, corners)
	if err != nil {
		t.Fatal(err)
	}
	b, err := scorer.Score(bf, corners)
	if err != nil {
		t.Fatal(err)
	}
	if s < 0 || b < 0 {
		t.Fatalf("negative score: %g %g", s, b)
	}
	if s <= b {
		t.Errorf("sharp %g <= blurred %g", s, b)
	}
}

func TestScoreColourFrame(t *testing.T) {
	gray := checker(32, 4)
	defer gray.Close()
	colour := gocv.NewMat()
	gocv.CvtColor(gray, &colour, gocv.ColorGrayToBGR)

	gf := &MatFrame{Mat: gray.Clone()}
	cf := &MatFrame{Mat: colour}
	defer gf.Close()
	defer cf.Close()

	corners := square(1, 1, 30, 30)
	scorer := NewSharpnessScorer()
	g, err := scorer.Score(gf, corners)
	if err != nil {
		t.Fatal(err)
	}
	c, err := scorer.Score(cf, corners)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(g-c) > 1e-6 {
		t.Errorf("colour score %g differs from gray %g", c, g)
	}
}

func TestScoreErrors(t *testing.T) {
	frame := &MatFrame{Mat: blank(10)}
	defer frame.Close()
	scorer := NewSharpnessScorer()

	if _, err := scorer.Score(frame, square(1, 1, 5, 5)[:2]); !errors.Is(err, ErrNoRegion) {
		t.Errorf("two corners: err = %v", err)
	}
	if _, err := scorer.Score(frame, square(20, 20, 30, 30)); !errors.Is(err, ErrNoRegion) {
		t.Errorf("outside image: err = %v", err)
	}
	if _, err := scorer.Score(nil, square(1, 1, 5, 5)); err == nil {
		t.Error("nil frame accepted")
	}
}
