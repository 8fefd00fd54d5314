package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"lensfocus/fisheye"
	"lensfocus/focus"
	"lensfocus/target"
)

// Keys understood by the loop
const (
	KeyQuit      = 'q'
	KeyEscape    = 27
	KeyReset     = 'r'
	KeyCapture   = 'c'
	KeyCalibrate = 'k'
)

// keyPoll bounds the wait for operator input each iteration
const keyPoll = time.Millisecond

// Outputs are the files written after a successful calibration
type Outputs struct {
	Undistorted     string
	Comparison      string
	PreviewMaxWidth int
}

// Controller owns all loop state: focus tracking, accepted views and the
// capture counter.
type Controller struct {
	Open       func() (Source, error)
	Detector   Detector
	Scorer     Scorer
	Display    Display
	Imager     Imager
	Calibrator *Calibrator
	Board      target.Board
	CaptureDir string
	Outputs    Outputs
	Out        io.Writer
	Now        func() time.Time

	state    State
	tracker  *focus.Tracker
	views    []fisheye.View
	captures int
}

// NewController returns a controller with the fixed board and stdout output
func NewController(open func() (Source, error), det Detector, scorer Scorer, disp Display, img Imager, cal *Calibrator, historySize int) *Controller {
	c := &Controller{
		Open:       open,
		Detector:   det,
		Scorer:     scorer,
		Display:    disp,
		Imager:     img,
		Calibrator: cal,
		Board:      target.Default,
		Out:        os.Stdout,
		Now:        time.Now,
	}
	c.tracker = focus.NewTracker(historySize, c.Now())
	return c
}

// State reports the lifecycle position
func (c *Controller) State() State {
	return c.state
}

// Views returns the accepted observations so far
func (c *Controller) Views() []fisheye.View {
	return c.views
}

// Captures is the number of frames archived
func (c *Controller) Captures() int {
	return c.captures
}

// Tracker exposes the focus tracker
func (c *Controller) Tracker() *focus.Tracker {
	return c.tracker
}

// Run drives the loop until quit, read failure, window close, context
// cancellation or panic. Resources are released exactly once on every path.
// The returned error is non-nil only when the source could not be opened or
// the loop panicked.
func (c *Controller) Run(ctx context.Context) (reason ExitReason, err error) {
	if c.tracker == nil {
		c.tracker = focus.NewTracker(focus.DefaultHistory, c.Now())
	}

	var (
		source  Source
		current Frame
		once    sync.Once
	)
	cleanup := func() {
		once.Do(func() {
			fmt.Fprintln(c.Out, "Cleaning up resources...")
			if current != nil {
				current.Close()
			}
			if source != nil {
				if cerr := source.Close(); cerr != nil {
					log.WithError(cerr).Warn("closing source")
				}
			}
			if cerr := c.Display.Close(); cerr != nil {
				log.WithError(cerr).Warn("closing display")
			}
			c.state = Terminated
			fmt.Fprintln(c.Out, "Exit successful!")
		})
	}
	defer cleanup()
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("loop aborted")
			fmt.Fprintf(c.Out, "Error: %v\n", r)
			reason = ExitPanic
			err = errors.Errorf("panic in session loop: %v", r)
		}
	}()

	fmt.Fprintln(c.Out, "Opening UVC fisheye camera...")
	source, err = c.Open()
	if err != nil {
		fmt.Fprintln(c.Out, "❌ Error: Could not open camera.")
		return ExitSourceUnavailable, err
	}

	if c.CaptureDir != "" {
		if err := os.MkdirAll(c.CaptureDir, 0755); err != nil {
			log.WithError(err).Warnf("could not create %s", c.CaptureDir)
		}
	}

	c.state = Streaming
	c.printBanner()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.Out, "Interrupted by user - exiting")
			return ExitInterrupted, nil
		default:
		}

		frame, rerr := source.Read()
		if rerr != nil {
			log.WithError(rerr).Warn("frame read failed")
			fmt.Fprintln(c.Out, "Failed to grab frame - exiting")
			return ExitReadFailed, nil
		}
		if current != nil {
			current.Close()
		}
		current = frame

		det := c.step(frame)

		key := c.Display.WaitKey(keyPoll)
		if key >= 0 {
			key &= 0xff
		}
		switch key {
		case KeyQuit, KeyEscape:
			fmt.Fprintln(c.Out, "Exiting program...")
			return ExitQuit, nil
		case KeyReset:
			c.tracker.Reset(c.Now())
			fmt.Fprintln(c.Out, "🔄 Reset maximum sharpness value")
		case KeyCapture:
			c.capture(frame, det)
		case KeyCalibrate:
			c.calibrate(frame)
		}

		if !c.Display.Visible() {
			fmt.Fprintln(c.Out, "Window closed - exiting")
			return ExitWindowClosed, nil
		}
	}
}

// step detects, scores and renders one frame
func (c *Controller) step(frame Frame) Detection {
	now := c.Now()

	det, err := c.Detector.Detect(frame)
	if err != nil {
		log.WithError(err).Debug("detection failed")
		det = Detection{}
	}

	st := Status{Captures: c.captures}
	if det.Found {
		score, serr := c.Scorer.Score(frame, det.Corners)
		if serr != nil {
			log.WithError(serr).Debug("sharpness not scored")
		} else {
			c.tracker.Update(score, now)
			st.Detected = true
			st.Corners = det.Corners
			st.Score = score
			st.Max = c.tracker.Max()
			st.Optimal = c.tracker.IsOptimal(score)
			st.Relative = c.tracker.Relative(score)
			st.Level = focus.LevelOf(st.Relative)
			st.Trend = c.tracker.History().Values()
		}
	}
	st.SinceMax = c.tracker.SinceMax(now)

	if err := c.Display.Show(frame, st); err != nil {
		log.WithError(err).Warn("display failed")
	}
	return det
}

// capture archives the frame and keeps the observation when the board was
// found in it
func (c *Controller) capture(frame Frame, det Detection) {
	n := c.captures + 1
	path := filepath.Join(c.CaptureDir, fmt.Sprintf("calib_%d.jpg", n))
	if err := c.Imager.Save(frame, path); err != nil {
		log.WithError(err).Error("capture not saved")
		fmt.Fprintf(c.Out, "❌ Could not save %s: %v\n", path, err)
		return
	}
	c.captures = n

	if !det.Found {
		fmt.Fprintln(c.Out, "⚠️  Checkerboard not detected - image saved but not used for calibration")
		return
	}
	view, err := c.Board.Observe(det.Corners)
	if err != nil {
		log.WithError(err).Warn("observation rejected")
		fmt.Fprintln(c.Out, "⚠️  Checkerboard incomplete - image saved but not used for calibration")
		return
	}
	c.views = append(c.views, view)
	fmt.Fprintf(c.Out, "📸 Captured fisheye calibration image %d\n", n)
}

// calibrate fits, reports and previews the undistortion on frame
func (c *Controller) calibrate(frame Frame) {
	if len(c.views) < c.Calibrator.MinSamples {
		fmt.Fprintf(c.Out, "Need at least %d images for calibration. Please capture more.\n", c.Calibrator.MinSamples)
		return
	}

	fmt.Fprintln(c.Out, "\n🧮 Calculating fisheye camera calibration...")
	res, err := c.Calibrator.Run(c.views, frame.Size())
	if err != nil {
		printFailure(c.Out, err)
		return
	}
	printResult(c.Out, res, c.Calibrator.Paths.Dump, c.Calibrator.Paths.Text)

	und, err := c.Imager.Undistort(frame, res.Intrinsics)
	if err != nil {
		log.WithError(err).Error("undistortion failed")
		fmt.Fprintf(c.Out, "❌ Could not undistort test image: %v\n", err)
		return
	}
	defer und.Close()

	if err := c.Imager.Save(und, c.Outputs.Undistorted); err != nil {
		fmt.Fprintf(c.Out, "❌ Could not save %s: %v\n", c.Outputs.Undistorted, err)
	} else {
		fmt.Fprintf(c.Out, "💾 Saved undistorted test image to '%s'\n", c.Outputs.Undistorted)
	}
	if c.Outputs.Comparison != "" {
		if err := c.Imager.Compare(frame, und, c.Outputs.Comparison, c.Outputs.PreviewMaxWidth); err != nil {
			log.WithError(err).Warn("comparison not written")
		} else {
			fmt.Fprintf(c.Out, "💾 Saved side-by-side comparison to '%s'\n", c.Outputs.Comparison)
		}
	}
	if err := c.Display.ShowResult(und); err != nil {
		log.WithError(err).Warn("result window failed")
	}
}

func (c *Controller) printBanner() {
	fmt.Fprintln(c.Out, "🎯 Fisheye Camera Focus Helper")
	fmt.Fprintln(c.Out, "---------------------------")
	fmt.Fprintln(c.Out, "- Manually adjust your lens while watching the sharpness value")
	fmt.Fprintln(c.Out, "- The focus bar will show relative sharpness (higher is better)")
	fmt.Fprintln(c.Out, "- Press 'r' to reset maximum sharpness")
	fmt.Fprintln(c.Out, "- Press 'c' to capture image for calibration")
	fmt.Fprintln(c.Out, "- Press 'k' to calculate FISHEYE calibration (after capturing several images)")
	fmt.Fprintln(c.Out, "- Press 'q' or ESC to quit")
}
