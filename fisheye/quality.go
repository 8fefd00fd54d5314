package fisheye

// Tier is a coarse rating of a calibration's RMS reprojection error
type Tier int

const (
	Excellent Tier = iota
	Good
	Acceptable
	Poor
)

// Classify maps an RMS error in pixels onto a Tier
func Classify(rms float64) Tier {
	switch {
	case rms < 1.0:
		return Excellent
	case rms < 2.0:
		return Good
	case rms < 3.0:
		return Acceptable
	default:
		return Poor
	}
}

func (t Tier) String() string {
	switch t {
	case Excellent:
		return "excellent"
	case Good:
		return "good"
	case Acceptable:
		return "acceptable"
	default:
		return "poor"
	}
}

// Message is the operator-facing verdict printed after calibration
func (t Tier) Message() string {
	switch t {
	case Excellent:
		return "Excellent calibration! (RMS < 1.0)"
	case Good:
		return "Good calibration. (RMS < 2.0)"
	case Acceptable:
		return "Acceptable calibration. (RMS < 3.0)"
	default:
		return "Poor calibration. Consider recapturing images. (RMS >= 3.0)"
	}
}
