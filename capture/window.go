package capture

import (
	"time"

	"gocv.io/x/gocv"

	"lensfocus/overlay"
	"lensfocus/session"
)

// Window shows the live frame with the HUD, plus a lazily created window
// for the undistorted result.
type Window struct {
	main       *gocv.Window
	result     *gocv.Window
	resultName string
	renderer   *overlay.Renderer
}

// NewWindow opens the main window
func NewWindow(name, resultName string, renderer *overlay.Renderer) *Window {
	return &Window{
		main:       gocv.NewWindow(name),
		resultName: resultName,
		renderer:   renderer,
	}
}

// Show draws st over a copy of f and displays it
func (w *Window) Show(f session.Frame, st session.Status) error {
	frame, err := matOf(f)
	if err != nil {
		return err
	}
	display := frame.Clone()
	defer display.Close()

	w.renderer.Draw(&display, st)
	w.main.IMShow(display)
	return nil
}

// ShowResult displays f in the result window
func (w *Window) ShowResult(f session.Frame) error {
	frame, err := matOf(f)
	if err != nil {
		return err
	}
	if w.result == nil {
		w.result = gocv.NewWindow(w.resultName)
	}
	w.result.IMShow(frame)
	return nil
}

// WaitKey polls the event loop for at most d
func (w *Window) WaitKey(d time.Duration) int {
	ms := int(d / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	return w.main.WaitKey(ms)
}

// Visible reports false once the operator closed the main window
func (w *Window) Visible() bool {
	return w.main.GetWindowProperty(gocv.WindowPropertyVisible) >= 1
}

// Close destroys both windows
func (w *Window) Close() error {
	if w.result != nil {
		w.result.Close()
		w.result = nil
	}
	return w.main.Close()
}
