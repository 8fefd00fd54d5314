package session

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"lensfocus/fisheye"
	"lensfocus/report"
	"lensfocus/target"
)

func TestCaptureFilesOrdering(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"calib_10.jpg", "calib_2.jpg", "calib_1.jpg", "notes.txt", "calib_x.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "calib_3.jpg"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := CaptureFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "calib_1.jpg"),
		filepath.Join(dir, "calib_2.jpg"),
		filepath.Join(dir, "calib_10.jpg"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CaptureFiles = %v, want %v", got, want)
	}

	if _, err := CaptureFiles(filepath.Join(dir, "absent")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func newOffline(found map[int]bool, fits *int) (*Offline, *fakeImager, *bytes.Buffer) {
	imager := &fakeImager{}
	out := &bytes.Buffer{}
	ids := map[string]int{}
	o := &Offline{
		Load: func(path string) (Frame, error) {
			if strings.Contains(path, "broken") {
				return nil, errors.New("corrupt jpeg")
			}
			if _, ok := ids[path]; !ok {
				ids[path] = len(ids) + 1
			}
			return &fakeFrame{id: ids[path], size: image.Pt(64, 64)}, nil
		},
		Detector: &fakeDetector{found: found},
		Imager:   imager,
		Calibrator: &Calibrator{
			MinSamples: 5,
			Paths:      report.Paths{Dump: "d.npz", Text: "d.txt"},
			Fit: func(views []fisheye.View, size image.Point, _ fisheye.Flags) (*fisheye.Result, error) {
				*fits++
				return &fisheye.Result{
					Intrinsics: fisheye.Intrinsics{Fx: 20, Fy: 20, Cx: 31.5, Cy: 31.5},
					RMS:        2.5,
					ImageSize:  size,
				}, nil
			},
			Persist: func(*fisheye.Result, report.Paths) error { return nil },
		},
		Board:   target.Default,
		Outputs: Outputs{Undistorted: "und.jpg", Comparison: "cmp.jpg"},
		Out:     out,
	}
	return o, imager, out
}

func TestOfflineRun(t *testing.T) {
	fits := 0
	found := map[int]bool{1: true, 2: true, 3: true, 5: true, 6: true}
	o, imager, out := newOffline(found, &fits)

	paths := []string{"a.jpg", "b.jpg", "c.jpg", "broken.jpg", "d.jpg", "e.jpg", "f.jpg"}
	res, err := o.Run(paths)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fits != 1 || res.ImageSize != image.Pt(64, 64) {
		t.Errorf("fits = %d, size = %v", fits, res.ImageSize)
	}
	if !reflect.DeepEqual(imager.saved, []string{"und.jpg"}) || len(imager.compared) != 1 {
		t.Errorf("saved = %v, compared = %v", imager.saved, imager.compared)
	}
	text := out.String()
	for _, want := range []string{"from 5 of 7 images", "broken.jpg: could not be read", "d.jpg: checkerboard not detected", "Acceptable calibration."} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestOfflineTooFewImages(t *testing.T) {
	fits := 0
	o, imager, _ := newOffline(map[int]bool{1: true, 2: true}, &fits)

	_, err := o.Run([]string{"a.jpg", "b.jpg", "c.jpg"})
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Fatalf("err = %v", err)
	}
	if fits != 0 || len(imager.saved) != 0 {
		t.Errorf("fits = %d, saved = %v", fits, imager.saved)
	}
}
