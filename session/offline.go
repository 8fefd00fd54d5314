package session

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"lensfocus/fisheye"
	"lensfocus/target"
)

// Loader opens an archived image as a Frame
type Loader func(path string) (Frame, error)

// Offline calibrates from frames captured in an earlier session
type Offline struct {
	Load       Loader
	Detector   Detector
	Imager     Imager
	Calibrator *Calibrator
	Board      target.Board
	Outputs    Outputs
	Out        io.Writer
}

// Run detects the board in every path, fits the accepted views and writes
// the undistorted preview of the last usable image.
func (o *Offline) Run(paths []string) (*fisheye.Result, error) {
	var (
		views []fisheye.View
		size  image.Point
		last  Frame
	)
	defer func() {
		if last != nil {
			last.Close()
		}
	}()

	for _, p := range paths {
		f, err := o.Load(p)
		if err != nil {
			log.WithError(err).Warnf("skipping %s", p)
			fmt.Fprintf(o.Out, "⚠️  %s: could not be read\n", p)
			continue
		}
		if size == (image.Point{}) {
			size = f.Size()
		} else if f.Size() != size {
			fmt.Fprintf(o.Out, "⚠️  %s: size %v differs from %v, skipped\n", p, f.Size(), size)
			f.Close()
			continue
		}

		det, err := o.Detector.Detect(f)
		if err != nil || !det.Found {
			fmt.Fprintf(o.Out, "⚠️  %s: checkerboard not detected\n", p)
			f.Close()
			continue
		}
		view, err := o.Board.Observe(det.Corners)
		if err != nil {
			fmt.Fprintf(o.Out, "⚠️  %s: %v\n", p, err)
			f.Close()
			continue
		}

		views = append(views, view)
		fmt.Fprintf(o.Out, "✅ %s\n", p)
		if last != nil {
			last.Close()
		}
		last = f
	}

	fmt.Fprintf(o.Out, "\n🧮 Calculating fisheye camera calibration from %d of %d images...\n", len(views), len(paths))
	res, err := o.Calibrator.Run(views, size)
	if errors.Is(err, ErrInsufficientSamples) {
		fmt.Fprintf(o.Out, "Need at least %d images for calibration. Please capture more.\n", o.Calibrator.MinSamples)
		return nil, err
	}
	if err != nil {
		printFailure(o.Out, err)
		return nil, err
	}
	printResult(o.Out, res, o.Calibrator.Paths.Dump, o.Calibrator.Paths.Text)

	und, err := o.Imager.Undistort(last, res.Intrinsics)
	if err != nil {
		return res, errors.Wrap(err, "undistort preview")
	}
	defer und.Close()

	if err := o.Imager.Save(und, o.Outputs.Undistorted); err != nil {
		return res, err
	}
	fmt.Fprintf(o.Out, "💾 Saved undistorted test image to '%s'\n", o.Outputs.Undistorted)
	if o.Outputs.Comparison != "" {
		if err := o.Imager.Compare(last, und, o.Outputs.Comparison, o.Outputs.PreviewMaxWidth); err != nil {
			return res, err
		}
		fmt.Fprintf(o.Out, "💾 Saved side-by-side comparison to '%s'\n", o.Outputs.Comparison)
	}
	return res, nil
}

// CaptureFiles lists calib_<n>.jpg files in dir ordered by n
func CaptureFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", dir)
	}

	type numbered struct {
		n    int
		path string
	}
	var files []numbered
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "calib_") || !strings.HasSuffix(name, ".jpg") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "calib_"), ".jpg"))
		if err != nil {
			continue
		}
		files = append(files, numbered{n, filepath.Join(dir, name)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}
