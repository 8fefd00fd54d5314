package focus

import (
	"image"
	"reflect"
	"testing"
	"time"
)

func TestHistoryKeepsNewestInOrder(t *testing.T) {
	h := NewHistory(DefaultHistory)
	if got := h.Values(); len(got) != 0 {
		t.Fatalf("empty history returned %v", got)
	}

	for i := 0; i < 5; i++ {
		h.Add(float64(i))
	}
	if got, want := h.Values(), []float64{0, 1, 2, 3, 4}; !reflect.DeepEqual(got, want) {
		t.Fatalf("partial history = %v, want %v", got, want)
	}

	for i := 5; i < 35; i++ {
		h.Add(float64(i))
	}
	got := h.Values()
	if len(got) != 30 || h.Len() != 30 {
		t.Fatalf("len = %d/%d, want 30", len(got), h.Len())
	}
	for i, v := range got {
		if v != float64(i+5) {
			t.Fatalf("values[%d] = %g, want %d", i, v, i+5)
		}
	}
}

func TestTracker(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(DefaultHistory, start)

	if tr.Relative(10) != 0 {
		t.Error("relative with no maximum should be 0")
	}

	tr.Update(100, start.Add(time.Second))
	tr.Update(80, start.Add(2*time.Second))
	if tr.Max() != 100 {
		t.Errorf("max = %g", tr.Max())
	}
	if d := tr.SinceMax(start.Add(3 * time.Second)); d != 2*time.Second {
		t.Errorf("since max = %v", d)
	}
	if !tr.IsOptimal(96) || tr.IsOptimal(94) {
		t.Error("optimal band is wrong")
	}
	if r := tr.Relative(80); r != 0.8 {
		t.Errorf("relative = %g", r)
	}

	tr.Reset(start.Add(5 * time.Second))
	if tr.Max() != 0 {
		t.Errorf("max after reset = %g", tr.Max())
	}
	if tr.History().Len() != 2 {
		t.Errorf("reset cleared history: len = %d", tr.History().Len())
	}
	if d := tr.SinceMax(start.Add(5 * time.Second)); d != 0 {
		t.Errorf("reset did not restamp: %v", d)
	}
}

func TestLevelOf(t *testing.T) {
	tests := []struct {
		rel  float64
		want Level
	}{
		{0, LevelLow},
		{0.69, LevelLow},
		{0.7, LevelMedium},
		{0.89, LevelMedium},
		{0.9, LevelHigh},
		{1, LevelHigh},
	}
	for _, tt := range tests {
		if got := LevelOf(tt.rel); got != tt.want {
			t.Errorf("LevelOf(%g) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestTrendPoints(t *testing.T) {
	rect := image.Rect(10, 150, 110, 200)

	if TrendPoints([]float64{5}, rect) != nil {
		t.Error("single value should not produce a line")
	}
	if TrendPoints([]float64{0, 0}, rect) != nil {
		t.Error("all-zero values should not produce a line")
	}

	got := TrendPoints([]float64{0, 50, 100}, rect)
	want := []image.Point{{10, 200}, {43, 175}, {76, 150}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TrendPoints = %v, want %v", got, want)
	}
}
