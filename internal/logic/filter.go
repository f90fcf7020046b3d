package logic

import "github.com/montanaflynn/stats"

// MapRange linearly remaps value from [oldMin, oldMax] onto [newMin, newMax].
// The bounds may be inverted (oldMax < oldMin) to flip orientation.
// A degenerate source range returns value unchanged.
func MapRange(value, oldMax, oldMin, newMax, newMin float64) float64 {
	oldRange := oldMax - oldMin
	if oldRange == 0 {
		return value
	}
	return newMin + (value-oldMin)*(newMax-newMin)/oldRange
}

// RollingAverage is a fixed-size FIFO moving average with a validity gate.
// Values outside (Lower, Upper) are dropped rather than smoothed.
// Not safe for concurrent use; each reader owns its filters.
type RollingAverage struct {
	size   int
	lower  float64
	upper  float64
	window []float64
}

// NewRollingAverage creates a filter keeping at most size admitted values.
// A size below 1 is treated as 1.
func NewRollingAverage(size int, lower, upper float64) *RollingAverage {
	if size < 1 {
		size = 1
	}
	return &RollingAverage{
		size:   size,
		lower:  lower,
		upper:  upper,
		window: make([]float64, 0, size+1),
	}
}

// Update offers v to the filter and returns the current average.
// An absent v returns absent without touching the window. A rejected v leaves
// the window alone and the previous average is returned.
func (r *RollingAverage) Update(v Value) Value {
	f, ok := v.Get()
	if !ok {
		return None
	}
	if r.lower < f && f < r.upper {
		r.window = append(r.window, f)
		if len(r.window) > r.size {
			// evict oldest
			copy(r.window, r.window[1:])
			r.window = r.window[:r.size]
		}
	}
	return Some(r.Average())
}

// Average returns the mean of the window, or NullValue when it is empty.
func (r *RollingAverage) Average() float64 {
	mean, err := stats.Mean(r.window)
	if err != nil {
		return NullValue
	}
	return mean
}

// Len returns the number of values in the window.
func (r *RollingAverage) Len() int {
	return len(r.window)
}

// Size returns the window capacity.
func (r *RollingAverage) Size() int {
	return r.size
}

// Bounds returns the exclusive validity bounds.
func (r *RollingAverage) Bounds() (lower, upper float64) {
	return r.lower, r.upper
}

// Window returns a copy of the admitted values, oldest first.
func (r *RollingAverage) Window() []float64 {
	out := make([]float64, len(r.window))
	copy(out, r.window)
	return out
}
