package focus

import "sync"

// History keeps the most recent sharpness samples in a fixed-size ring
type History struct {
	values   []float64
	capacity int
	index    int
	full     bool
	mutex    sync.RWMutex
}

// NewHistory creates a ring holding at most capacity samples
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		values:   make([]float64, capacity),
		capacity: capacity,
	}
}

// Add stores a sample, evicting the oldest once the ring is full
func (h *History) Add(v float64) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.values[h.index] = v
	h.index = (h.index + 1) % h.capacity
	if h.index == 0 {
		h.full = true
	}
}

// Len returns the number of stored samples
func (h *History) Len() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.full {
		return h.capacity
	}
	return h.index
}

// Cap returns the ring capacity
func (h *History) Cap() int {
	return h.capacity
}

// Values returns the stored samples, oldest first
func (h *History) Values() []float64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if !h.full {
		return append([]float64(nil), h.values[:h.index]...)
	}

	// Full ring: the slot at index is the oldest
	out := make([]float64, 0, h.capacity)
	out = append(out, h.values[h.index:]...)
	return append(out, h.values[:h.index]...)
}
