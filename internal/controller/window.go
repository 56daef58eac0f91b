package controller

// Sample is one averaged reading across all sensors.
type Sample struct {
	Temperature float64
	Humidity    float64
}

// Window is a bounded FIFO of samples; pushing past capacity evicts the
// oldest sample. It is not safe for concurrent use.
type Window struct {
	capacity int
	samples  []Sample
}

// WindowCapacity sizes the window so it spans one display period.
func WindowCapacity(displayEvery, measureEvery float64) int {
	if measureEvery <= 0 {
		return 1
	}
	n := int(displayEvery / measureEvery)
	if n < 1 {
		return 1
	}
	return n
}

func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{capacity: capacity, samples: make([]Sample, 0, capacity)}
}

// Push appends s, evicting the oldest samples over capacity, and returns the
// new average.
func (w *Window) Push(s Sample) Sample {
	if len(w.samples) == w.capacity {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:len(w.samples)-1]
	}
	w.samples = append(w.samples, s)
	return w.Average()
}

// Average is the mean of the held samples, or zero when empty.
func (w *Window) Average() Sample {
	if len(w.samples) == 0 {
		return Sample{}
	}
	var sum Sample
	for _, s := range w.samples {
		sum.Temperature += s.Temperature
		sum.Humidity += s.Humidity
	}
	n := float64(len(w.samples))
	return Sample{Temperature: sum.Temperature / n, Humidity: sum.Humidity / n}
}

func (w *Window) Len() int      { return len(w.samples) }
func (w *Window) Capacity() int { return w.capacity }
