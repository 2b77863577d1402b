// Package thermal reduces drive and CPU readings to the single system
// temperature the controller works on.
package thermal

// CPUOffset is how much hotter than the drives the CPU is allowed to run.
const CPUOffset = 20

// Reading is the outcome of one aggregation.
type Reading struct {
	System     int
	DriveMax   int
	CPUAverage int
	// CPUValid is false when no CPU sample was taken on this tick.
	CPUValid bool
}

// Aggregator owns the CPU rolling window. It is not safe for concurrent use.
type Aggregator struct {
	cpu *RollingAverage
}

func NewAggregator(window int) *Aggregator {
	return &Aggregator{cpu: NewRollingAverage(window)}
}

// Aggregate pushes cpuTemp into the window and returns the larger of the
// hottest drive and the CPU average less CPUOffset. An empty drive list
// counts as 0.
func (a *Aggregator) Aggregate(driveTemps []int, cpuTemp int) Reading {
	a.cpu.Push(cpuTemp)

	r := Reading{
		DriveMax:   maxOf(driveTemps),
		CPUAverage: a.cpu.Mean(),
		CPUValid:   true,
	}
	r.System = max(r.DriveMax, r.CPUAverage-CPUOffset)

	return r
}

// AggregateDrives is used when the CPU could not be read: the window is
// left alone and only the drives count.
func (a *Aggregator) AggregateDrives(driveTemps []int) Reading {
	r := Reading{
		DriveMax:   maxOf(driveTemps),
		CPUAverage: a.cpu.Mean(),
	}
	r.System = r.DriveMax

	return r
}

// CPUAverage returns the current mean of the CPU window.
func (a *Aggregator) CPUAverage() int {
	return a.cpu.Mean()
}

func (a *Aggregator) Window() *RollingAverage {
	return a.cpu
}

func maxOf(values []int) int {
	if len(values) == 0 {
		return 0
	}

	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}

	return m
}
