package focus

import "image"

// TrendPoints lays out values as a polyline inside rect, scaled so the
// largest value touches the top edge. It returns nil when there is nothing
// to draw.
func TrendPoints(values []float64, rect image.Rectangle) []image.Point {
	if len(values) < 2 {
		return nil
	}

	top := values[0]
	for _, v := range values[1:] {
		if v > top {
			top = v
		}
	}
	if top <= 0 {
		return nil
	}

	w, h := rect.Dx(), rect.Dy()
	pts := make([]image.Point, len(values))
	for i, v := range values {
		scaled := v / top * float64(h)
		pts[i] = image.Pt(
			rect.Min.X+i*w/len(values),
			int(float64(rect.Min.Y)+float64(h)-scaled),
		)
	}
	return pts
}
