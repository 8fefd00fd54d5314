// Package capture adapts OpenCV devices, windows and image IO to the
// session interfaces.
package capture

import (
	"image"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"lensfocus/session"
)

var log = logrus.WithField("component", "capture")

var (
	// ErrDeviceUnavailable is returned when the camera cannot be opened
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrReadFailed is returned when the device stops producing frames
	ErrReadFailed = errors.New("frame read failed")
)

// MatFrame is a session.Frame backed by an OpenCV matrix
type MatFrame struct {
	Mat gocv.Mat
}

// Size returns the frame's width and height
func (f *MatFrame) Size() image.Point {
	return image.Pt(f.Mat.Cols(), f.Mat.Rows())
}

// Close releases the matrix
func (f *MatFrame) Close() error {
	return f.Mat.Close()
}

func matOf(f session.Frame) (gocv.Mat, error) {
	mf, ok := f.(*MatFrame)
	if !ok {
		return gocv.Mat{}, errors.Errorf("unsupported frame type %T", f)
	}
	return mf.Mat, nil
}

// Device reads frames from a numbered camera
type Device struct {
	id     int
	webcam *gocv.VideoCapture
}

// OpenDevice opens camera id
func OpenDevice(id int) (*Device, error) {
	webcam, err := gocv.VideoCaptureDevice(id)
	if err != nil {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "device %d: %v", id, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, errors.Wrapf(ErrDeviceUnavailable, "device %d not opened", id)
	}

	log.WithField("device", id).Info("camera opened")
	return &Device{id: id, webcam: webcam}, nil
}

// Read grabs the next frame
func (d *Device) Read() (session.Frame, error) {
	img := gocv.NewMat()
	if ok := d.webcam.Read(&img); !ok || img.Empty() {
		img.Close()
		return nil, errors.Wrapf(ErrReadFailed, "device %d", d.id)
	}
	return &MatFrame{Mat: img}, nil
}

// Close releases the camera
func (d *Device) Close() error {
	log.WithField("device", d.id).Debug("releasing camera")
	return d.webcam.Close()
}

// LoadImage reads a colour image from disk
func LoadImage(path string) (session.Frame, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return nil, errors.Errorf("could not read image %s", path)
	}
	return &MatFrame{Mat: img}, nil
}
