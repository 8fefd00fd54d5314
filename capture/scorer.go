package capture

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"lensfocus/fisheye"
	"lensfocus/session"
)

// ErrNoRegion is returned when the corners do not enclose any pixel
var ErrNoRegion = errors.New("corners do not enclose a scoring region")

var maskOn = color.RGBA{255, 255, 255, 255}

// SharpnessScorer rates focus as the variance of the Laplacian inside the
// convex hull of the detected corners.
type SharpnessScorer struct{}

// NewSharpnessScorer returns the Laplacian variance scorer
func NewSharpnessScorer() *SharpnessScorer {
	return &SharpnessScorer{}
}

// Score implements session.Scorer. Pixels outside the hull are zeroed before
// filtering and the variance is taken over hull pixels only.
func (s *SharpnessScorer) Score(f session.Frame, corners []fisheye.Point2) (float64, error) {
	frame, err := matOf(f)
	if err != nil {
		return 0, err
	}
	if len(corners) < 3 {
		return 0, errors.Wrapf(ErrNoRegion, "%d corners", len(corners))
	}

	gray := frame
	if frame.Channels() != 1 {
		gray = gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}

	mask, err := hullMask(corners, gray.Rows(), gray.Cols())
	if err != nil {
		return 0, err
	}
	defer mask.Close()
	if gocv.CountNonZero(mask) == 0 {
		return 0, ErrNoRegion
	}

	masked := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), gray.Rows(), gray.Cols(), gocv.MatTypeCV8U)
	defer masked.Close()
	gray.CopyToWithMask(&masked, mask)

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(masked, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	sq := gocv.NewMat()
	defer sq.Close()
	gocv.Multiply(lap, lap, &sq)

	mean := lap.MeanWithMask(mask).Val1
	variance := sq.MeanWithMask(mask).Val1 - mean*mean
	if variance < 0 {
		variance = 0
	}
	return variance, nil
}

// hullMask fills the convex hull of the integer-truncated corners
func hullMask(corners []fisheye.Point2, rows, cols int) (gocv.Mat, error) {
	pts := make([]image.Point, len(corners))
	for i, c := range corners {
		pts[i] = image.Pt(int(c.X), int(c.Y))
	}
	pv := gocv.NewPointVectorFromPoints(pts)
	defer pv.Close()

	hull := gocv.NewMat()
	defer hull.Close()
	gocv.ConvexHull(pv, &hull, false, true)

	data, err := hull.DataPtrInt32()
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "convex hull")
	}
	poly := make([]image.Point, len(data)/2)
	for i := range poly {
		poly[i] = image.Pt(int(data[2*i]), int(data[2*i+1]))
	}

	polys := gocv.NewPointsVectorFromPoints([][]image.Point{poly})
	defer polys.Close()

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8U)
	gocv.FillPoly(&mask, polys, maskOn)
	return mask, nil
}
