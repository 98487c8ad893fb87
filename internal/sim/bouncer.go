package sim

import "sort"

// LoadSample is one tick's worth of the observables a Bouncer needs:
// how many services were active, and the normalised level of every
// pool/resource pair. The engine appends one LoadSample per tick to the
// trace it hands to the bouncer on the next tick's Admit phase.
type LoadSample struct {
	ActiveServices int
	// Resources maps pool identifier -> resource name -> normalised level.
	Resources map[string]map[string]float64
}

// meanNormalizedUtilization returns the mean normalised level across
// every pool/resource pair, and the pair count.
func (s LoadSample) meanNormalizedUtilization() (float64, int) {
	var sum float64
	var n int
	for _, resources := range s.Resources {
		for _, level := range resources {
			sum += level
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

// load is the spec.md 4.7 step 2 instantaneous load: mean normalised
// utilisation scaled by the active-service count.
func (s LoadSample) load() float64 {
	mean, n := s.meanNormalizedUtilization()
	if n == 0 {
		return 0
	}
	return float64(s.ActiveServices) * mean
}

// BouncerTraceEntry is one line of the bouncer trace file (section 6):
// "tick basevalue tendency newJobs derivative quota".
type BouncerTraceEntry struct {
	Tick       int
	BaseValue  float64
	Tendency   float64
	NewJobs    int
	Derivative float64
	Quota      float64
}

// Bouncer is the admission-control capability: given this tick's newly
// generated jobs and the load trace accumulated so far, it partitions
// the jobs into accepted and declined sets. Every implementation must
// append exactly one BouncerTraceEntry per call, even when jobs is
// empty, so the tendency/derivative series stay aligned with ticks.
type Bouncer interface {
	Name() string
	FilterJobs(jobs []*JobInstance, loadTrace []LoadSample) (accepted, declined []*JobInstance)
	Reset()
	TraceEntries() []BouncerTraceEntry
}

// sortedByID returns jobs ordered by identifier ascending.
func sortedByID(jobs []*JobInstance) []*JobInstance {
	out := make([]*JobInstance, len(jobs))
	copy(out, jobs)
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// NullBouncer never declines a job; it records the base value (computed
// as TendencyBouncer computes it) and its own unweighted tendency, with
// no derivative or quota, so that a no-admission-control run can still
// be compared against one, per
// spec.md section 9 ("a variant with two implementations: null
// observer-only bouncer and the tendency bouncer").
type NullBouncer struct {
	Horizon int
	trace   []BouncerTraceEntry
}

// NewNullBouncer creates an observer-only bouncer with the given
// horizon (defaults to 50 when non-positive, matching the reference
// implementation's Empty bouncer).
func NewNullBouncer(horizon int) *NullBouncer {
	if horizon <= 0 {
		horizon = 50
	}
	return &NullBouncer{Horizon: horizon}
}

func (b *NullBouncer) Name() string { return "Null" }

func (b *NullBouncer) Reset() { b.trace = nil }

func (b *NullBouncer) TraceEntries() []BouncerTraceEntry { return b.trace }

func (b *NullBouncer) FilterJobs(jobs []*JobInstance, loadTrace []LoadSample) (accepted, declined []*JobInstance) {
	tick := len(loadTrace)
	if len(loadTrace) < 2 {
		b.trace = append(b.trace, BouncerTraceEntry{Tick: tick, NewJobs: len(jobs)})
		return jobs, nil
	}

	horizon := b.Horizon
	if len(loadTrace) < horizon+1 {
		horizon = len(loadTrace) - 1
	}
	last := len(loadTrace) - 1

	base := loadTrace[last].load()
	var deltas []float64
	for offset := 1; offset < horizon; offset++ {
		deltas = append(deltas, loadTrace[last].load()-loadTrace[last-offset].load())
	}
	var tendency float64
	if len(deltas) > 0 {
		var sum float64
		for _, d := range deltas {
			sum += d
		}
		tendency = sum / float64(len(deltas))
	}
	tendency -= base

	b.trace = append(b.trace, BouncerTraceEntry{Tick: tick, BaseValue: base, Tendency: tendency, NewJobs: len(jobs)})
	return jobs, nil
}

// TendencyBouncer implements the full admission-control algorithm of
// spec.md 4.7: a weighted load tendency, smoothed in place, whose
// derivative (via an adaptive-finite-difference linear-fit slope)
// drives how many of this tick's new jobs are declined.
type TendencyBouncer struct {
	Horizon        int
	DebugAcceptAll bool

	tendency   []float64
	derivative []float64
	trace      []BouncerTraceEntry
}

// NewTendencyBouncer creates a bouncer with the spec's default horizon
// of 20 ticks.
func NewTendencyBouncer() *TendencyBouncer {
	return &TendencyBouncer{Horizon: 20}
}

func (b *TendencyBouncer) Name() string { return "Tendency" }

func (b *TendencyBouncer) Reset() {
	b.tendency = nil
	b.derivative = nil
	b.trace = nil
}

func (b *TendencyBouncer) TraceEntries() []BouncerTraceEntry { return b.trace }

func (b *TendencyBouncer) FilterJobs(jobs []*JobInstance, loadTrace []LoadSample) (accepted, declined []*JobInstance) {
	tick := len(loadTrace)

	if len(loadTrace) < 2 {
		b.tendency = append(b.tendency, 0.0)
		b.trace = append(b.trace, BouncerTraceEntry{Tick: tick, NewJobs: len(jobs)})
		return jobs, nil
	}

	last := len(loadTrace) - 1
	base := loadTrace[last].load()

	h := b.Horizon
	if len(loadTrace)-1 < h {
		h = len(loadTrace) - 1
	}
	b.tendency = append(b.tendency, b.weightedTendency(loadTrace, last, h))
	b.smoothLastTendency()
	tendency := b.tendency[len(b.tendency)-1]

	derivative := b.deriveCurrent()
	b.derivative = append(b.derivative, derivative)

	if len(jobs) == 0 {
		b.trace = append(b.trace, BouncerTraceEntry{
			Tick: tick, BaseValue: base, Tendency: tendency, NewJobs: 0, Derivative: derivative,
		})
		return jobs, nil
	}

	ordered := sortedByID(jobs)

	maxD := b.maxDerivativeInHorizon()
	var pivot int
	var quota float64
	if derivative <= 0 || maxD <= 0 {
		pivot = len(ordered)
		quota = 1
	} else {
		quota = 1 - derivative/maxD
		if quota < 0 {
			quota = 0
		}
		pivot = int(quota * float64(len(ordered)))
	}

	b.trace = append(b.trace, BouncerTraceEntry{
		Tick: tick, BaseValue: base, Tendency: tendency, NewJobs: len(jobs), Derivative: derivative, Quota: quota,
	})

	if b.DebugAcceptAll {
		return ordered, nil
	}
	return ordered[:pivot], ordered[pivot:]
}

// weightedTendency implements spec.md 4.7 step 3.
func (b *TendencyBouncer) weightedTendency(loadTrace []LoadSample, last, h int) float64 {
	if h < 2 {
		return 0
	}
	var sum float64
	for k := 1; k < h; k++ {
		sum += (loadTrace[last].load() - loadTrace[last-k].load()) / float64(k)
	}
	return sum / float64(h)
}

// smoothLastTendency implements spec.md 4.7 step 4: average the
// just-appended value together with the preceding min(Horizon,
// len-1) values, in place.
func (b *TendencyBouncer) smoothLastTendency() {
	n := len(b.tendency)
	m := b.Horizon
	if n-1 < m {
		m = n - 1
	}
	var sum float64
	for i := 0; i <= m; i++ {
		sum += b.tendency[n-1-i]
	}
	b.tendency[n-1] = sum / float64(m+1)
}

// deriveCurrent implements spec.md 4.7 step 5: fit a degree-1 polynomial
// to the last hist tendency points (the hist points ending just before
// the most recent one) against their tick indices, then evaluate its
// slope via adaptive finite differences, halving the step from 1e-3
// until successive estimates agree within 1e-8.
func (b *TendencyBouncer) deriveCurrent() float64 {
	n := len(b.tendency)
	hist := b.Horizon
	if n-1 < hist {
		hist = n - 1
	}
	if hist < 1 {
		return 0
	}

	x := make([]float64, hist)
	y := make([]float64, hist)
	for i := 0; i < hist; i++ {
		idx := (n - 1) - (hist - i)
		x[i] = float64(idx)
		y[i] = b.tendency[idx]
	}

	slope, intercept := linearFit(x, y)
	eval := func(w float64) float64 { return slope*w + intercept }

	at := b.tendency[n-1]
	h := 1e-3
	const eps = 1e-8
	const maxSteps = 64
	ref := (eval(at+h) - eval(at)) / h
	for i := 0; i < maxSteps; i++ {
		h /= 2.0
		next := (eval(at+h) - eval(at)) / h
		diff := next - ref
		if diff < 0 {
			diff = -diff
		}
		ref = next
		if diff < eps {
			break
		}
	}
	return ref
}

func (b *TendencyBouncer) maxDerivativeInHorizon() float64 {
	n := len(b.derivative)
	if n == 0 {
		return 0
	}
	start := n - b.Horizon
	if start < 0 {
		start = 0
	}
	max := b.derivative[start]
	for _, d := range b.derivative[start:] {
		if d > max {
			max = d
		}
	}
	return max
}

// linearFit returns the slope and intercept of the least-squares line
// through the given points (degree-1 polynomial fit).
func linearFit(x, y []float64) (slope, intercept float64) {
	n := float64(len(x))
	if n == 0 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumXX += x[i] * x[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
