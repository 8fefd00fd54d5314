package session

import (
	"image"
	"time"

	"github.com/pkg/errors"

	"lensfocus/fisheye"
)

type fakeFrame struct {
	id     int
	size   image.Point
	closed int
}

func (f *fakeFrame) Size() image.Point { return f.size }
func (f *fakeFrame) Close() error {
	f.closed++
	return nil
}

type fakeSource struct {
	frames []*fakeFrame
	limit  int // reads after this many frames fail, 0 means never
	reads  int
	closed int
}

func (s *fakeSource) Read() (Frame, error) {
	if s.limit > 0 && s.reads >= s.limit {
		return nil, errors.New("device gone")
	}
	s.reads++
	f := &fakeFrame{id: s.reads, size: image.Pt(64, 64)}
	s.frames = append(s.frames, f)
	return f, nil
}

func (s *fakeSource) Close() error {
	s.closed++
	return nil
}

// fakeDetector reports the board in frames whose id is in found
type fakeDetector struct {
	found map[int]bool
	all   bool
	panic bool
}

func (d *fakeDetector) Detect(f Frame) (Detection, error) {
	if d.panic {
		panic("detector exploded")
	}
	id := f.(*fakeFrame).id
	if !d.all && !d.found[id] {
		return Detection{}, nil
	}
	return Detection{Found: true, Corners: boardCorners()}, nil
}

// fakeScorer scores every frame with score, or fails when err is set
type fakeScorer struct {
	score float64
	err   error
	calls int
}

func (s *fakeScorer) Score(f Frame, corners []fisheye.Point2) (float64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.score, nil
}

type fakeDisplay struct {
	keys     []int
	hideAt   int // Visible turns false on this poll, 0 means never
	polls    int
	statuses []Status
	results  int
	closed   int
}

func (d *fakeDisplay) Show(f Frame, st Status) error {
	d.statuses = append(d.statuses, st)
	return nil
}

func (d *fakeDisplay) ShowResult(f Frame) error {
	d.results++
	return nil
}

func (d *fakeDisplay) WaitKey(time.Duration) int {
	d.polls++
	if len(d.keys) == 0 {
		return -1
	}
	k := d.keys[0]
	d.keys = d.keys[1:]
	return k
}

func (d *fakeDisplay) Visible() bool {
	return d.hideAt == 0 || d.polls < d.hideAt
}

func (d *fakeDisplay) Close() error {
	d.closed++
	return nil
}

type fakeImager struct {
	saved       []string
	undistorted int
	intrinsics  fisheye.Intrinsics
	compared    []string
	failSave    bool
}

func (m *fakeImager) Save(f Frame, path string) error {
	if m.failSave {
		return errors.New("disk full")
	}
	m.saved = append(m.saved, path)
	return nil
}

func (m *fakeImager) Undistort(f Frame, in fisheye.Intrinsics) (Frame, error) {
	m.undistorted++
	m.intrinsics = in
	return &fakeFrame{size: f.Size()}, nil
}

func (m *fakeImager) Compare(original, undistorted Frame, path string, maxWidth int) error {
	m.compared = append(m.compared, path)
	return nil
}

func boardCorners() []fisheye.Point2 {
	pts := make([]fisheye.Point2, 0, 117)
	for r := 0; r < 9; r++ {
		for c := 0; c < 13; c++ {
			pts = append(pts, fisheye.Point2{X: 5 + 4*float64(c), Y: 5 + 4*float64(r)})
		}
	}
	return pts
}
