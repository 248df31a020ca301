package metrics

import (
	"math"
	"sort"
	"sync"
)

// Histogram tracks the distribution of values across predefined buckets.
// The bench command uses it to summarize primitive and simulation latencies.
// Safe for concurrent use.
type Histogram struct {
	mu      sync.RWMutex
	buckets []float64 // upper bounds, ascending
	counts  []uint64  // one extra overflow bucket
	sum     float64
	count   uint64
	min     float64
	max     float64
}

// NewHistogram creates a histogram with the given bucket upper bounds.
func NewHistogram(buckets []float64) *Histogram {
	b := make([]float64, len(buckets))
	copy(b, buckets)
	sort.Float64s(b)

	return &Histogram{
		buckets: b,
		counts:  make([]uint64, len(b)+1),
		min:     math.MaxFloat64,
		max:     -math.MaxFloat64,
	}
}

// DefaultLatencyBuckets covers sub-millisecond primitives through
// multi-second batch runs, in milliseconds.
func DefaultLatencyBuckets() []float64 {
	return []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000}
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := sort.SearchFloat64s(h.buckets, v)
	h.counts[idx]++

	h.sum += v
	h.count++
	if v < h.min {
		h.min = v
	}
	if v > h.max {
		h.max = v
	}
}

// HistogramSummary is a point-in-time summary of a histogram.
type HistogramSummary struct {
	Count   uint64    `json:"count"`
	Sum     float64   `json:"sum"`
	Mean    float64   `json:"mean"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Buckets []float64 `json:"buckets"`
	Counts  []uint64  `json:"counts"`
}

// Summary returns a consistent snapshot of the histogram.
func (h *Histogram) Summary() HistogramSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := HistogramSummary{
		Count:   h.count,
		Sum:     h.sum,
		Buckets: append([]float64(nil), h.buckets...),
		Counts:  append([]uint64(nil), h.counts...),
	}
	if h.count > 0 {
		s.Mean = h.sum / float64(h.count)
		s.Min = h.min
		s.Max = h.max
	}
	return s
}

// Quantile estimates the q-quantile (0 < q <= 1) by linear interpolation
// within the containing bucket. Returns 0 for an empty histogram.
func (h *Histogram) Quantile(q float64) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 || q <= 0 {
		return 0
	}
	if q > 1 {
		q = 1
	}

	target := q * float64(h.count)
	var cumulative float64
	lower := 0.0
	for i, c := range h.counts {
		next := cumulative + float64(c)
		if next >= target {
			var upper float64
			if i < len(h.buckets) {
				upper = h.buckets[i]
			} else {
				upper = h.max
			}
			if c == 0 {
				return upper
			}
			frac := (target - cumulative) / float64(c)
			return lower + frac*(upper-lower)
		}
		cumulative = next
		if i < len(h.buckets) {
			lower = h.buckets[i]
		}
	}
	return h.max
}

// Reset clears all observations.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.counts {
		h.counts[i] = 0
	}
	h.sum = 0
	h.count = 0
	h.min = math.MaxFloat64
	h.max = -math.MaxFloat64
}
