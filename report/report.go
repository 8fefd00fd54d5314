// Package report persists calibration results: a numpy archive for
// downstream tooling and a plain-text summary for the operator.
package report

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio/npz"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"lensfocus/fisheye"
)

var log = logrus.WithField("component", "report")

// Archive entry names
const (
	KeyCameraMatrix = "camera_matrix"
	KeyDistCoeffs   = "dist_coeffs"
	KeyRvecs        = "rvecs"
	KeyTvecs        = "tvecs"
	KeyRMS          = "rms"
	KeyImageSize    = "image_size"
)

// Paths names the two output files
type Paths struct {
	Dump string
	Text string
}

// DefaultPaths are the file names used in the working directory
var DefaultPaths = Paths{
	Dump: "fisheye_calibration.npz",
	Text: "fisheye_calibration.txt",
}

// Write stores res at both paths. Both files are staged next to their
// targets and renamed into place only after both were written, so a failed
// write leaves any earlier calibration untouched.
func Write(res *fisheye.Result, paths Paths) error {
	if res == nil {
		return errors.New("nil calibration result")
	}

	dump, err := stage(paths.Dump)
	if err != nil {
		return err
	}
	defer os.Remove(dump)
	if err := writeDump(res, dump); err != nil {
		return errors.Wrapf(err, "write %s", paths.Dump)
	}

	text, err := stage(paths.Text)
	if err != nil {
		return err
	}
	defer os.Remove(text)
	if err := writeTextFile(res, text); err != nil {
		return errors.Wrapf(err, "write %s", paths.Text)
	}

	if err := os.Rename(dump, paths.Dump); err != nil {
		return errors.Wrapf(err, "replace %s", paths.Dump)
	}
	if err := os.Rename(text, paths.Text); err != nil {
		return errors.Wrapf(err, "replace %s", paths.Text)
	}

	log.WithFields(logrus.Fields{
		"dump": paths.Dump,
		"text": paths.Text,
	}).Debug("calibration persisted")
	return nil
}

// stage reserves a temporary file in the directory of path
func stage(path string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", errors.Wrapf(err, "stage %s", path)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", errors.Wrapf(err, "stage %s", path)
	}
	if err := os.Chmod(name, 0644); err != nil {
		os.Remove(name)
		return "", errors.Wrapf(err, "stage %s", path)
	}
	return name, nil
}

func writeTextFile(res *fisheye.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = WriteText(f, res)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeDump(res *fisheye.Result, path string) error {
	w, err := npz.Create(path)
	if err != nil {
		return err
	}

	entries := []struct {
		name  string
		value interface{}
	}{
		{KeyCameraMatrix, res.CameraMatrix()},
		{KeyDistCoeffs, res.DistCoeffs()},
		{KeyRvecs, res.Rvecs()},
		{KeyTvecs, res.Tvecs()},
		{KeyRMS, res.RMS},
		{KeyImageSize, []int64{int64(res.ImageSize.X), int64(res.ImageSize.Y)}},
	}
	for _, e := range entries {
		if err := w.Write(e.name, e.value); err != nil {
			w.Close()
			return errors.Wrapf(err, "entry %s", e.name)
		}
	}
	return w.Close()
}

// WriteText renders the human-readable summary
func WriteText(w io.Writer, res *fisheye.Result) error {
	tier := res.Quality()
	_, err := fmt.Fprintf(w,
		"# Fisheye Camera Calibration Results\n\n"+
			"RMS Error: %v\n\n"+
			"Camera Matrix (K):\n%v\n\n"+
			"Distortion Coefficients (D):\n%v\n\n"+
			"Image Size: %dx%d\n"+
			"Views: %d\n"+
			"Quality: %s\n",
		res.RMS,
		mat.Formatted(res.CameraMatrix(), mat.Squeeze()),
		mat.Formatted(res.DistCoeffs(), mat.Squeeze()),
		res.ImageSize.X, res.ImageSize.Y,
		len(res.Poses),
		tier.Message(),
	)
	return err
}

// Load reads an archive written by Write
func Load(path string) (*fisheye.Result, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer r.Close()

	var k, d, rvecs, tvecs mat.Dense
	var rms float64
	var size []int64

	targets := []struct {
		name string
		ptr  interface{}
	}{
		{KeyCameraMatrix, &k},
		{KeyDistCoeffs, &d},
		{KeyRvecs, &rvecs},
		{KeyTvecs, &tvecs},
		{KeyRMS, &rms},
		{KeyImageSize, &size},
	}
	for _, t := range targets {
		if err := r.Read(t.name, t.ptr); err != nil {
			return nil, errors.Wrapf(err, "%s: read %s", path, t.name)
		}
	}

	if rows, cols := k.Dims(); rows != 3 || cols != 3 {
		return nil, errors.Errorf("%s: camera matrix is %dx%d", path, rows, cols)
	}
	if rows, cols := d.Dims(); rows*cols != 4 {
		return nil, errors.Errorf("%s: expected 4 distortion coefficients, got %d", path, rows*cols)
	}
	if len(size) != 2 {
		return nil, errors.Errorf("%s: malformed image size", path)
	}

	raw := d.RawMatrix()
	in := fisheye.Intrinsics{
		Fx: k.At(0, 0),
		Fy: k.At(1, 1),
		Cx: k.At(0, 2),
		Cy: k.At(1, 2),
	}
	if in.Fx != 0 {
		in.Alpha = k.At(0, 1) / in.Fx
	}
	for i := 0; i < 4; i++ {
		in.D[i] = raw.Data[i]
	}

	poses, err := loadPoses(&rvecs, &tvecs)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	return &fisheye.Result{
		Intrinsics: in,
		Poses:      poses,
		RMS:        rms,
		ImageSize:  image.Pt(int(size[0]), int(size[1])),
	}, nil
}

func loadPoses(rvecs, tvecs *mat.Dense) ([]fisheye.Pose, error) {
	rr, rc := rvecs.Dims()
	tr, tc := tvecs.Dims()
	if rr != tr || rc != 3 || tc != 3 {
		return nil, errors.Errorf("pose arrays are %dx%d and %dx%d", rr, rc, tr, tc)
	}
	poses := make([]fisheye.Pose, rr)
	for i := range poses {
		for j := 0; j < 3; j++ {
			poses[i].R[j] = rvecs.At(i, j)
			poses[i].T[j] = tvecs.At(i, j)
		}
	}
	return poses, nil
}
