package analysis

import (
	"math"

	"github.com/san-kum/kinetic/internal/storage"
)

// Metric accumulates one statistic over a stream of samples.
type Metric interface {
	Name() string
	Observe(s storage.Sample)
	Value() float64
	Reset()
}

// Mean is the average reported tension.
type Mean struct {
	sum     float64
	samples int
}

func NewMean() *Mean { return &Mean{} }

func (m *Mean) Name() string { return "mean" }

func (m *Mean) Observe(s storage.Sample) {
	m.sum += s.Tension
	m.samples++
}

func (m *Mean) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *Mean) Reset() { *m = Mean{} }

// Saturation is the fraction of reports within margin of either end of the
// range, i.e. fully open or fully clenched.
type Saturation struct {
	margin    float64
	saturated int
	samples   int
}

func NewSaturation(margin float64) *Saturation {
	return &Saturation{margin: margin}
}

func (s *Saturation) Name() string { return "saturation" }

func (s *Saturation) Observe(x storage.Sample) {
	s.samples++
	if x.Tension <= s.margin || x.Tension >= 1-s.margin {
		s.saturated++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.saturated) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.saturated = 0
	s.samples = 0
}

// Activity is the mean absolute change between consecutive reports.
type Activity struct {
	sum     float64
	prev    float64
	samples int
}

func NewActivity() *Activity { return &Activity{} }

func (a *Activity) Name() string { return "activity" }

func (a *Activity) Observe(s storage.Sample) {
	if a.samples > 0 {
		a.sum += math.Abs(s.Tension - a.prev)
	}
	a.prev = s.Tension
	a.samples++
}

func (a *Activity) Value() float64 {
	if a.samples < 2 {
		return 0
	}
	return a.sum / float64(a.samples-1)
}

func (a *Activity) Reset() { *a = Activity{} }

// Rate is reports per second over the covered time span.
type Rate struct {
	first, last float64
	samples     int
}

func NewRate() *Rate { return &Rate{} }

func (r *Rate) Name() string { return "rate_hz" }

func (r *Rate) Observe(s storage.Sample) {
	if r.samples == 0 {
		r.first = s.Time
	}
	r.last = s.Time
	r.samples++
}

func (r *Rate) Value() float64 {
	span := r.last - r.first
	if r.samples < 2 || span <= 0 {
		return 0
	}
	return float64(r.samples-1) / span
}

func (r *Rate) Reset() { *r = Rate{} }

// DefaultMetrics is the metric set recorded with every run.
func DefaultMetrics() []Metric {
	return []Metric{NewMean(), NewSaturation(0.05), NewActivity(), NewRate()}
}

// Summarize runs DefaultMetrics over samples.
func Summarize(samples []storage.Sample) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range DefaultMetrics() {
		for _, s := range samples {
			m.Observe(s)
		}
		out[m.Name()] = m.Value()
	}
	return out
}
