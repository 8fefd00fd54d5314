// Package session runs the interactive focus and calibration loop. Camera,
// window and image IO sit behind the interfaces below so the loop itself has
// no OpenCV dependency.
package session

import (
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"lensfocus/fisheye"
	"lensfocus/focus"
)

var log = logrus.WithField("component", "session")

// Frame is one captured image owned by the caller until Close
type Frame interface {
	Size() image.Point
	Close() error
}

// Source yields frames from a camera or file
type Source interface {
	Read() (Frame, error)
	Close() error
}

// Detection is the outcome of searching a frame for the board. Corners are
// only meaningful when Found is set.
type Detection struct {
	Found   bool
	Corners []fisheye.Point2
}

// Detector finds the calibration board in a frame
type Detector interface {
	Detect(f Frame) (Detection, error)
}

// Scorer rates the sharpness of f inside the area spanned by corners.
// Scores are never negative.
type Scorer interface {
	Score(f Frame, corners []fisheye.Point2) (float64, error)
}

// Status is what the HUD draws over the live frame
type Status struct {
	Detected bool
	Corners  []fisheye.Point2
	Score    float64
	Max      float64
	Optimal  bool
	Relative float64
	Level    focus.Level
	Trend    []float64
	Captures int
	SinceMax time.Duration
}

// Display is the operator's window pair
type Display interface {
	Show(f Frame, st Status) error
	ShowResult(f Frame) error
	// WaitKey polls for a key for at most d and returns -1 when none arrived
	WaitKey(d time.Duration) int
	Visible() bool
	Close() error
}

// Imager encodes and transforms frames
type Imager interface {
	Save(f Frame, path string) error
	Undistort(f Frame, in fisheye.Intrinsics) (Frame, error)
	Compare(original, undistorted Frame, path string, maxWidth int) error
}

// State is the controller's lifecycle position
type State int

const (
	Idle State = iota
	Streaming
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	default:
		return "terminated"
	}
}

// ExitReason tells why Run returned
type ExitReason int

const (
	ExitQuit ExitReason = iota
	ExitReadFailed
	ExitWindowClosed
	ExitInterrupted
	ExitSourceUnavailable
	ExitPanic
)

func (r ExitReason) String() string {
	switch r {
	case ExitQuit:
		return "quit"
	case ExitReadFailed:
		return "read failed"
	case ExitWindowClosed:
		return "window closed"
	case ExitInterrupted:
		return "interrupted"
	case ExitSourceUnavailable:
		return "source unavailable"
	default:
		return "panic"
	}
}
