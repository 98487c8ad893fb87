package sim

import (
	"math/rand"
	"sort"

	"github.com/snsim/snsim/pkg/logger"
)

// TraceEntry is one tick's worth of scenario observables, matching the
// per-tick trace file contract of spec.md section 6.
type TraceEntry struct {
	Tick           int
	ActiveJobs     int
	ActiveServices int
	GeneratedJobs  int
	AbortedJobs    int // cumulative
	DeclinedJobs   int // cumulative
	AccRevenue     float64
	AccPenalty     float64
	// Resources maps pool identifier -> resource name -> normalised level.
	Resources   map[string]map[string]float64
	ResourceAvg float64
}

// ScheduleKey identifies one (job, stage, service template) scheduling
// attempt, for tests and external inspection of when a service started.
type ScheduleKey struct {
	JobID      int
	Stage      int
	TemplateID string
}

// ScheduleRecord is when a scheduled service started and for how long it
// was expected to run.
type ScheduleRecord struct {
	Tick  int
	Ticks int
}

// Engine is the Scenario/Engine component (C10): it owns every loaded
// entity, wires the generator/bouncer/policy together, and drives the
// six-phase per-tick pipeline of spec.md 4.8.
type Engine struct {
	Pools      map[string]*ResourcePool
	Services   map[string]*ServiceTemplate
	Jobs       map[string]*JobTemplate
	Customers  []*Customer
	GoldWeight float64
	Seed       int64
	// JobCount, when positive, seeds the active set with that many
	// synthetic jobs at Start, ahead of the per-tick generator.
	JobCount int

	Policy  Policy
	Bouncer Bouncer

	// Log receives run-time diagnostics (e.g. a missing policy aborting
	// Start). A caller that doesn't set it gets a default stdout logger
	// tagged with the "engine" component rather than silent behavior.
	Log *logger.Logger

	generator *JobGenerator
	rng       *rand.Rand

	active       []*JobInstance
	abortedJobs  int
	declinedJobs int
	accRevenue   float64
	accPenalty   float64

	Trace       []TraceEntry
	loadTrace   []LoadSample
	ScheduleLog map[ScheduleKey]ScheduleRecord
	AbortTicks  map[int]int // job identifier -> tick aborted
}

// NewEngine wires an engine from a fully-loaded scenario's catalogues.
// policy may be nil, in which case Start logs and returns without
// running; bouncer may be nil (no admission control).
func NewEngine(pools map[string]*ResourcePool, services map[string]*ServiceTemplate, jobs map[string]*JobTemplate, customers []*Customer, goldWeight float64, seed int64, jobCount int, policy Policy, bouncer Bouncer) *Engine {
	return &Engine{
		Pools:      pools,
		Services:   services,
		Jobs:       jobs,
		Customers:  customers,
		GoldWeight: goldWeight,
		Seed:       seed,
		JobCount:   jobCount,
		Policy:     policy,
		Bouncer:    bouncer,
	}
}

// templatesSlice returns the engine's job templates as a stable-order
// slice for the generator to sample uniformly over.
func (e *Engine) templatesSlice() []*JobTemplate {
	out := make([]*JobTemplate, 0, len(e.Jobs))
	for _, t := range e.Jobs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// reset restores every sub-component to its load-time state: pool
// ledgers, the generator's identifier counter, the bouncer's history,
// and the engine's own accumulators and trace.
func (e *Engine) reset() {
	for _, p := range e.Pools {
		p.Reset()
	}
	e.rng = rand.New(rand.NewSource(e.Seed))
	if e.generator == nil {
		e.generator = NewJobGenerator(e.templatesSlice(), e.Customers, e.Services, e.rng)
	} else {
		e.generator.SetSource(e.rng)
	}
	e.generator.Reset()
	if e.Bouncer != nil {
		e.Bouncer.Reset()
	}

	e.active = nil
	e.abortedJobs = 0
	e.declinedJobs = 0
	e.accRevenue = 0
	e.accPenalty = 0
	e.Trace = nil
	e.loadTrace = nil
	e.ScheduleLog = make(map[ScheduleKey]ScheduleRecord)
	e.AbortTicks = make(map[int]int)

	if e.JobCount > 0 {
		e.active = append(e.active, e.generator.InitialJobs(e.JobCount)...)
	}
}

// Reset restores the engine to its load-time state so a subsequent
// Start with the same parameters reproduces the same trace.
func (e *Engine) Reset() { e.reset() }

// Start resets the engine, then runs up to maxTicks iterations of the
// per-tick pipeline (generate, admit, prioritise, schedule, advance,
// record). If Policy is nil, Start logs and returns without running.
// Returns the recorded trace.
func (e *Engine) Start(maxTicks int) []TraceEntry {
	e.reset()
	if e.Policy == nil {
		if e.Log == nil {
			e.Log = logger.NewDefault("engine")
		}
		e.Log.Warn("start: no policy configured, returning without running")
		return e.Trace
	}
	for t := 0; t < maxTicks; t++ {
		e.tick(t)
	}
	return e.Trace
}

func (e *Engine) tick(t int) {
	newJobs := e.generator.NewJobs(t)

	var accepted []*JobInstance
	if e.Bouncer != nil {
		var declined []*JobInstance
		accepted, declined = e.Bouncer.FilterJobs(newJobs, e.loadTrace)
		e.declinedJobs += len(declined)
	} else {
		accepted = newJobs
	}
	e.active = append(e.active, accepted...)

	ordered := e.Policy.Prioritize(e.active)
	numServices := len(ordered)
	numJobs := len(e.active)

	for _, s := range ordered {
		err := s.Job.StartService(s)
		switch {
		case err == nil:
			e.ScheduleLog[ScheduleKey{JobID: s.Job.Identifier, Stage: s.StageIndex(), TemplateID: s.Template.Identifier}] =
				ScheduleRecord{Tick: t, Ticks: s.Template.Ticks}
		case Is(err, ErrResourceCapacityExceeded):
			// swallowed: service stays pending, retried next tick.
		case Is(err, ErrMaxAttemptsReached), Is(err, ErrServiceNotPending):
			s.Job.Abort()
			e.AbortTicks[s.Job.Identifier] = t
		}
	}

	remaining := e.active[:0]
	for _, job := range e.active {
		job.Step()
		if !job.IsFinished {
			remaining = append(remaining, job)
			continue
		}
		if job.WasAborted {
			e.abortedJobs++
			e.accPenalty += job.Template.Penalty
		} else {
			e.accRevenue += job.Template.Revenue
		}
	}
	e.active = remaining

	resources := make(map[string]map[string]float64, len(e.Pools))
	var sum float64
	var n int
	for id, pool := range e.Pools {
		levels := make(map[string]float64, len(pool.Resources()))
		for _, name := range pool.Resources() {
			lvl := pool.NormalizedLevel(name)
			levels[name] = lvl
			sum += lvl
			n++
		}
		resources[id] = levels
	}
	var avg float64
	if n > 0 {
		avg = sum / float64(n)
	}

	entry := TraceEntry{
		Tick:           t,
		ActiveJobs:     numJobs,
		ActiveServices: numServices,
		GeneratedJobs:  len(newJobs),
		AbortedJobs:    e.abortedJobs,
		DeclinedJobs:   e.declinedJobs,
		AccRevenue:     e.accRevenue,
		AccPenalty:     e.accPenalty,
		Resources:      resources,
		ResourceAvg:    avg,
	}
	e.Trace = append(e.Trace, entry)
	e.loadTrace = append(e.loadTrace, LoadSample{ActiveServices: numServices, Resources: resources})
}
