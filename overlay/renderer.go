// Package overlay draws the focus HUD over live frames.
package overlay

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"lensfocus/fisheye"
	"lensfocus/focus"
	"lensfocus/session"
)

var (
	white   = color.RGBA{255, 255, 255, 255}
	black   = color.RGBA{0, 0, 0, 255}
	grey    = color.RGBA{50, 50, 50, 255}
	red     = color.RGBA{255, 0, 0, 255}
	yellow  = color.RGBA{255, 255, 0, 255}
	green   = color.RGBA{0, 255, 0, 255}
	magenta = color.RGBA{255, 0, 255, 255}
	blue    = color.RGBA{0, 0, 255, 255}
)

// Bar and trend box geometry
const (
	barWidth    = 300
	barHeight   = 30
	barX        = 10
	barMarkers  = 10
	trendWidth  = 100
	trendHeight = 50
	trendInsetX = 120
	trendTop    = 150
)

// Renderer draws the HUD for one board size
type Renderer struct {
	board image.Point
}

// NewRenderer returns a renderer for a board of cols x rows inner corners
func NewRenderer(cols, rows int) *Renderer {
	return &Renderer{board: image.Pt(cols, rows)}
}

// Draw renders the full HUD for st onto img
func (r *Renderer) Draw(img *gocv.Mat, st session.Status) {
	w, h := img.Cols(), img.Rows()

	if st.Detected {
		r.DrawCorners(img, st.Corners)
		r.drawMetrics(img, st)
		r.drawFocusBar(img, st.Relative, st.Level)
		r.drawTrend(img, st.Trend)
	} else {
		gocv.PutText(img, "NO CHECKERBOARD DETECTED", image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, red, 2)
		gocv.PutText(img, fmt.Sprintf("Please place the %dx%d checkerboard in view", r.board.X, r.board.Y),
			image.Pt(10, 70), gocv.FontHersheySimplex, 0.6, red, 2)
	}

	gocv.PutText(img, fmt.Sprintf("CALIBRATION IMAGES: %d", st.Captures),
		image.Pt(10, h-80), gocv.FontHersheySimplex, 0.6, magenta, 2)
	gocv.PutText(img, "FISHEYE CAMERA MODE",
		image.Pt(w-250, h-80), gocv.FontHersheySimplex, 0.6, blue, 2)
	gocv.PutText(img, fmt.Sprintf("Time since max: %.1fs", st.SinceMax.Seconds()),
		image.Pt(w-200, 30), gocv.FontHersheySimplex, 0.5, white, 1)
	gocv.PutText(img, "q:quit  r:reset  c:capture  k:calibrate",
		image.Pt(10, h-10), gocv.FontHersheySimplex, 0.5, white, 1)
}

// DrawCorners marks the detected board corners
func (r *Renderer) DrawCorners(img *gocv.Mat, corners []fisheye.Point2) {
	if len(corners) != r.board.X*r.board.Y {
		for _, c := range corners {
			gocv.Circle(img, image.Pt(int(c.X), int(c.Y)), 3, green, 1)
		}
		return
	}

	buf := make([]byte, 8*len(corners))
	for i, c := range corners {
		binary.LittleEndian.PutUint32(buf[8*i:], math.Float32bits(float32(c.X)))
		binary.LittleEndian.PutUint32(buf[8*i+4:], math.Float32bits(float32(c.Y)))
	}
	view, err := gocv.NewMatFromBytes(len(corners), 1, gocv.MatTypeCV32FC2, buf)
	if err != nil {
		return
	}
	pts := view.Clone()
	view.Close()
	defer pts.Close()
	gocv.DrawChessboardCorners(img, r.board, pts, true)
}

func (r *Renderer) drawMetrics(img *gocv.Mat, st session.Status) {
	gocv.PutText(img, fmt.Sprintf("CURRENT SHARPNESS: %.2f", st.Score),
		image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, green, 2)
	gocv.PutText(img, fmt.Sprintf("MAX SHARPNESS: %.2f", st.Max),
		image.Pt(10, 70), gocv.FontHersheySimplex, 0.7, green, 2)
	if st.Optimal {
		gocv.PutText(img, "OPTIMAL FOCUS!", image.Pt(10, 110), gocv.FontHersheySimplex, 0.9, yellow, 2)
	}
}

func levelColor(l focus.Level) color.RGBA {
	switch l {
	case focus.LevelLow:
		return red
	case focus.LevelMedium:
		return yellow
	default:
		return green
	}
}

func (r *Renderer) drawFocusBar(img *gocv.Mat, relative float64, level focus.Level) {
	y := img.Rows() - 60
	frame := image.Rect(barX, y, barX+barWidth, y+barHeight)

	gocv.Rectangle(img, frame, grey, -1)

	fill := int(barWidth * math.Min(math.Max(relative, 0), 1))
	if fill > 0 {
		gocv.Rectangle(img, image.Rect(barX, y, barX+fill, y+barHeight), levelColor(level), -1)
	}
	gocv.Rectangle(img, frame, white, 1)

	for i := 1; i < barMarkers; i++ {
		x := barX + barWidth*i/barMarkers
		gocv.Line(img, image.Pt(x, y), image.Pt(x, y+5), white, 1)
	}
}

func (r *Renderer) drawTrend(img *gocv.Mat, values []float64) {
	if len(values) < 2 {
		return
	}
	x := img.Cols() - trendInsetX
	box := image.Rect(x, trendTop, x+trendWidth, trendTop+trendHeight)

	gocv.Rectangle(img, box, black, -1)
	pts := focus.TrendPoints(values, box)
	for i := 1; i < len(pts); i++ {
		gocv.Line(img, pts[i-1], pts[i], yellow, 1)
	}
	gocv.Rectangle(img, box, white, 1)
	gocv.PutText(img, "Trend", image.Pt(x, trendTop-5), gocv.FontHersheySimplex, 0.4, white, 1)
}
