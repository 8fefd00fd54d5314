package capture

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"lensfocus/fisheye"
	"lensfocus/preview"
	"lensfocus/session"
)

// Imager writes and remaps frames with OpenCV
type Imager struct {
	Quality int
}

// NewImager uses the default preview quality for comparisons
func NewImager() *Imager {
	return &Imager{Quality: preview.DefaultQuality}
}

// Save encodes f to path; the format follows the extension
func (m *Imager) Save(f session.Frame, path string) error {
	img, err := matOf(f)
	if err != nil {
		return err
	}
	if !gocv.IMWrite(path, img) {
		return errors.Errorf("could not write %s", path)
	}
	return nil
}

// Undistort rectifies f with the fisheye model in, keeping K as the new
// camera matrix. Sampling is bilinear with a black border.
func (m *Imager) Undistort(f session.Frame, in fisheye.Intrinsics) (session.Frame, error) {
	src, err := matOf(f)
	if err != nil {
		return nil, err
	}

	k := cameraMatrix(in)
	defer k.Close()
	d := distCoeffs(in)
	defer d.Close()

	dst := gocv.NewMat()
	gocv.FisheyeUndistortImageWithParams(src, &dst, k, d, k, image.Pt(src.Cols(), src.Rows()))
	if dst.Empty() {
		dst.Close()
		return nil, errors.New("undistortion produced an empty image")
	}
	return &MatFrame{Mat: dst}, nil
}

// Compare writes original and undistorted side by side
func (m *Imager) Compare(original, undistorted session.Frame, path string, maxWidth int) error {
	left, err := matOf(original)
	if err != nil {
		return err
	}
	right, err := matOf(undistorted)
	if err != nil {
		return err
	}

	li, err := left.ToImage()
	if err != nil {
		return errors.Wrap(err, "convert original")
	}
	ri, err := right.ToImage()
	if err != nil {
		return errors.Wrap(err, "convert undistorted")
	}
	return preview.Save(preview.SideBySide(li, ri, maxWidth), path, m.Quality)
}

// cameraMatrix lays out K as a 3x3 CV_64F matrix
func cameraMatrix(in fisheye.Intrinsics) gocv.Mat {
	k := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 3, 3, gocv.MatTypeCV64F)
	k.SetDoubleAt(0, 0, in.Fx)
	k.SetDoubleAt(0, 1, in.Alpha*in.Fx)
	k.SetDoubleAt(0, 2, in.Cx)
	k.SetDoubleAt(1, 1, in.Fy)
	k.SetDoubleAt(1, 2, in.Cy)
	k.SetDoubleAt(2, 2, 1)
	return k
}

// distCoeffs lays out D as a 1x4 CV_64F matrix
func distCoeffs(in fisheye.Intrinsics) gocv.Mat {
	d := gocv.NewMatWithSize(1, 4, gocv.MatTypeCV64F)
	for i, v := range in.D {
		d.SetDoubleAt(0, i, v)
	}
	return d
}
