// Package focus tracks the best sharpness score seen while the operator
// turns the focus ring, along with the recent history for the trend line.
package focus

import "time"

const (
	// OptimalRatio is the fraction of the best score counted as in focus
	OptimalRatio = 0.95
	// DefaultHistory is the number of samples kept for the trend line
	DefaultHistory = 30
)

// Level buckets the relative sharpness for the focus bar colour
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
)

// LevelOf maps a relative sharpness onto the bar's colour tiers
func LevelOf(relative float64) Level {
	switch {
	case relative < 0.7:
		return LevelLow
	case relative < 0.9:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Tracker follows the running maximum score and the recent history
type Tracker struct {
	max     float64
	maxAt   time.Time
	history *History
}

// NewTracker starts a tracker whose maximum is stamped at now
func NewTracker(capacity int, now time.Time) *Tracker {
	return &Tracker{
		maxAt:   now,
		history: NewHistory(capacity),
	}
}

// Update records a score and raises the maximum when it is exceeded
func (t *Tracker) Update(score float64, now time.Time) {
	t.history.Add(score)
	if score > t.max {
		t.max = score
		t.maxAt = now
	}
}

// Reset zeroes the maximum and restamps it. History is kept.
func (t *Tracker) Reset(now time.Time) {
	t.max = 0
	t.maxAt = now
}

// Max returns the best score since the last reset
func (t *Tracker) Max() float64 {
	return t.max
}

// SinceMax is the time elapsed since the maximum last changed or was reset
func (t *Tracker) SinceMax(now time.Time) time.Duration {
	return now.Sub(t.maxAt)
}

// IsOptimal reports whether score is within the optimal band of the maximum
func (t *Tracker) IsOptimal(score float64) bool {
	return score > t.max*OptimalRatio
}

// Relative returns score as a fraction of the maximum, or 0 with no maximum
func (t *Tracker) Relative(score float64) float64 {
	if t.max <= 0 {
		return 0
	}
	return score / t.max
}

// History exposes the sample ring
func (t *Tracker) History() *History {
	return t.history
}
