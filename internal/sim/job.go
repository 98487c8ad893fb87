package sim

import "fmt"

// Stage is an unordered set of service-template identifiers that must
// all complete before the job's next stage begins.
type Stage []string

// JobTemplate is the signature of a job: an ordered sequence of stages,
// plus the revenue and penalty due on completion or abort.
type JobTemplate struct {
	Identifier string
	Signature  []Stage
	Revenue    float64
	Penalty    float64
}

func (t *JobTemplate) String() string { return t.Identifier }

// serviceCount returns the total number of services across every stage.
func (t *JobTemplate) serviceCount() int {
	n := 0
	for _, stage := range t.Signature {
		n += len(stage)
	}
	return n
}

// JobInstance tracks one running job's progress through its template's
// signature: the current stage and that stage's pending/running/finished
// service partition.
type JobInstance struct {
	Identifier   int
	Template     *JobTemplate
	Customer     *Customer
	CurrentStage int // -1 means "not started"

	pendingServices  map[*ServiceInstance]struct{}
	runningServices  map[*ServiceInstance]struct{}
	finishedServices map[*ServiceInstance]struct{}

	serviceCount int
	IsFinished   bool
	WasAborted   bool

	templates map[string]*ServiceTemplate
}

// newJobInstance creates a job on the given template/customer, populated
// against the given service-template catalogue (used to spawn each
// stage's ServiceInstances), and immediately advances it into stage 0.
func newJobInstance(id int, template *JobTemplate, customer *Customer, templates map[string]*ServiceTemplate) *JobInstance {
	j := &JobInstance{
		Identifier:   id,
		Template:     template,
		Customer:     customer,
		CurrentStage: -1,
		serviceCount: template.serviceCount(),
		templates:    templates,
	}
	j.reset()
	return j
}

// reset clears all per-run state and re-enters stage 0. Called by
// newJobInstance; Engine.Reset discards its jobs rather than resetting them.
func (j *JobInstance) reset() {
	j.IsFinished = false
	j.WasAborted = false
	j.CurrentStage = -1
	j.pendingServices = make(map[*ServiceInstance]struct{})
	j.runningServices = make(map[*ServiceInstance]struct{})
	j.finishedServices = make(map[*ServiceInstance]struct{})
	j.advance()
}

// PendingServices returns the job's current-stage pending services.
func (j *JobInstance) PendingServices() []*ServiceInstance {
	out := make([]*ServiceInstance, 0, len(j.pendingServices))
	for s := range j.pendingServices {
		out = append(out, s)
	}
	return out
}

// StartService moves s from pending to running by invoking its state
// machine's Start. A ResourceCapacityExceeded or MaxAttemptsReached
// error is propagated unchanged; the job itself is never aborted here
// (that decision belongs to the engine).
func (j *JobInstance) StartService(s *ServiceInstance) error {
	if _, ok := j.pendingServices[s]; !ok {
		return newErr(ErrServiceNotPending,
			fmt.Sprintf("job %d: service %s is not pending", j.Identifier, s.Identity()))
	}
	if err := s.Start(); err != nil {
		return err
	}
	delete(j.pendingServices, s)
	j.runningServices[s] = struct{}{}
	return nil
}

// Step advances every running service one tick, retires those that
// finish into the finished set, then checks whether the stage (and
// possibly the job) is complete.
func (j *JobInstance) Step() {
	if j.IsFinished {
		return
	}
	for s := range j.runningServices {
		s.Step()
		if !s.IsRunning() {
			delete(j.runningServices, s)
			j.finishedServices[s] = struct{}{}
		}
	}
	j.advance()
}

// advance checks whether the current stage is complete (no running
// services, and every pending service has in fact finished) and, if so,
// moves to the next stage, or marks the job finished if none remains.
func (j *JobInstance) advance() {
	if len(j.runningServices) != 0 {
		return
	}
	for s := range j.pendingServices {
		if _, done := j.finishedServices[s]; !done {
			return
		}
	}

	j.CurrentStage++
	j.runningServices = make(map[*ServiceInstance]struct{})
	j.pendingServices = make(map[*ServiceInstance]struct{})
	j.finishedServices = make(map[*ServiceInstance]struct{})

	if j.CurrentStage >= len(j.Template.Signature) {
		j.IsFinished = true
		return
	}
	for _, serviceID := range j.Template.Signature[j.CurrentStage] {
		template := j.templates[serviceID]
		j.pendingServices[newServiceInstance(template, j, j.CurrentStage)] = struct{}{}
	}
}

// GetProgress returns the fraction of the job's total service count that
// has finished: 1.0 once the job is finished, otherwise the count of
// fully-completed stages plus the current stage's finished services,
// divided by the job's total service count.
func (j *JobInstance) GetProgress() float64 {
	if j.IsFinished {
		return 1.0
	}
	finished := 0
	for i, stage := range j.Template.Signature {
		if i < j.CurrentStage {
			finished += len(stage)
		}
		if i == j.CurrentStage {
			finished += len(j.finishedServices)
		}
	}
	if j.serviceCount == 0 {
		return 0
	}
	return float64(finished) / float64(j.serviceCount)
}

// Abort terminates the job immediately: every running service is
// aborted and the job is marked finished with WasAborted set.
func (j *JobInstance) Abort() {
	j.IsFinished = true
	j.WasAborted = true
	for s := range j.runningServices {
		s.Abort()
	}
}
