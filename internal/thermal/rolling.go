package thermal

// RollingAverage keeps the most recent samples in a fixed-size ring and a
// running sum of the held elements.
type RollingAverage struct {
	values []int
	index  int
	count  int
	sum    int
}

// NewRollingAverage returns an empty window. A capacity below 1 is treated as 1.
func NewRollingAverage(capacity int) *RollingAverage {
	if capacity < 1 {
		capacity = 1
	}

	return &RollingAverage{values: make([]int, capacity)}
}

// Push adds a sample, evicting the oldest one once the window is full.
func (r *RollingAverage) Push(value int) {
	if r.count < len(r.values) {
		r.sum += value
		r.values[r.count] = value
		r.count++
	} else {
		r.sum += value - r.values[r.index]
		r.values[r.index] = value
	}

	r.index = (r.index + 1) % len(r.values)
}

// Mean returns the truncated integer mean of the held samples, or 0 when
// the window is empty.
func (r *RollingAverage) Mean() int {
	if r.count == 0 {
		return 0
	}

	return r.sum / r.count
}

func (r *RollingAverage) Len() int {
	return r.count
}

func (r *RollingAverage) Cap() int {
	return len(r.values)
}

func (r *RollingAverage) Sum() int {
	return r.sum
}
