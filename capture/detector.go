package capture

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"lensfocus/fisheye"
	"lensfocus/session"
	"lensfocus/target"
)

// ChessboardDetector finds the inner corners of a checkerboard and refines
// them to sub-pixel accuracy.
type ChessboardDetector struct {
	Board    target.Board
	Window   image.Point
	Criteria gocv.TermCriteria
}

// NewChessboardDetector uses an 11x11 refinement window, 30 iterations and
// 0.001 epsilon.
func NewChessboardDetector(board target.Board) *ChessboardDetector {
	return &ChessboardDetector{
		Board:    board,
		Window:   image.Pt(11, 11),
		Criteria: gocv.NewTermCriteria(gocv.Count+gocv.EPS, 30, 0.001),
	}
}

// Detect implements session.Detector
func (d *ChessboardDetector) Detect(f session.Frame) (session.Detection, error) {
	frame, err := matOf(f)
	if err != nil {
		return session.Detection{}, err
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	corners := gocv.NewMat()
	defer corners.Close()
	flags := gocv.CalibCBAdaptiveThresh | gocv.CalibCBFastCheck | gocv.CalibCBNormalizeImage
	if !gocv.FindChessboardCorners(gray, image.Pt(d.Board.Cols, d.Board.Rows), &corners, flags) {
		return session.Detection{}, nil
	}

	gocv.CornerSubPix(gray, &corners, d.Window, image.Pt(-1, -1), d.Criteria)

	data, err := corners.DataPtrFloat32()
	if err != nil {
		return session.Detection{}, errors.Wrap(err, "corner data")
	}
	pts := make([]fisheye.Point2, len(data)/2)
	for i := range pts {
		pts[i] = fisheye.Point2{X: float64(data[2*i]), Y: float64(data[2*i+1])}
	}

	return session.Detection{Found: true, Corners: pts}, nil
}
