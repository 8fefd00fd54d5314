package preview

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func TestSideBySide(t *testing.T) {
	left := imaging.New(40, 30, color.NRGBA{255, 0, 0, 255})
	right := imaging.New(20, 50, color.NRGBA{0, 0, 255, 255})

	out := SideBySide(left, right, 0)
	if got := out.Bounds().Size(); got != image.Pt(60, 50) {
		t.Fatalf("size = %v, want 60x50", got)
	}
	if c := out.NRGBAAt(5, 5); c.R != 255 || c.B != 0 {
		t.Errorf("left pixel = %v", c)
	}
	if c := out.NRGBAAt(45, 45); c.B != 255 || c.R != 0 {
		t.Errorf("right pixel = %v", c)
	}
	if c := out.NRGBAAt(5, 45); c.R != 0 || c.A != 255 {
		t.Errorf("padding pixel = %v, want opaque black", c)
	}
}

func TestSideBySideScalesDown(t *testing.T) {
	img := imaging.New(640, 480, color.White)
	out := SideBySide(img, img, 640)
	if got := out.Bounds().Size(); got != image.Pt(640, 240) {
		t.Errorf("size = %v, want 640x240", got)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	img := imaging.New(16, 8, color.White)

	for _, name := range []string{"a.jpg", "b.png"} {
		path := filepath.Join(dir, name)
		if err := Save(img, path, DefaultQuality); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
		if st, err := os.Stat(path); err != nil || st.Size() == 0 {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	if err := Save(img, filepath.Join(dir, "missing", "c.jpg"), DefaultQuality); err == nil {
		t.Error("expected error for missing directory")
	}
}
