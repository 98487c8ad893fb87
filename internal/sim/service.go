package sim

import "fmt"

// ServiceTemplate holds the immutable, load-time parameters for one kind
// of service: which pool it draws from, how much of each resource it
// demands, how long it runs, and its financial outcome.
type ServiceTemplate struct {
	Identifier  string
	Pool        *ResourcePool
	Demand      map[string]float64
	Ticks       int
	Revenue     float64
	Penalty     float64
	MaxAttempts int
}

func (t *ServiceTemplate) String() string { return t.Identifier }

// Allocate grants every demanded resource to requester. On the first
// failure, every resource already granted to requester by this call is
// rolled back and the failure is returned.
func (t *ServiceTemplate) Allocate(requesterKey string) error {
	granted := make([]string, 0, len(t.Demand))
	for name, amount := range t.Demand {
		if err := t.Pool.Allocate(requesterKey, name, amount); err != nil {
			for _, doneName := range granted {
				_ = t.Pool.Deallocate(requesterKey, doneName, t.Demand[doneName])
			}
			return err
		}
		granted = append(granted, name)
	}
	return nil
}

// Deallocate releases every demanded resource held by requester. Under-run
// failures for individual resources are swallowed (best-effort release).
func (t *ServiceTemplate) Deallocate(requesterKey string) {
	for name, amount := range t.Demand {
		_ = t.Pool.Deallocate(requesterKey, name, amount)
	}
}

// ServiceState is one of the four states a ServiceInstance moves through.
type ServiceState int

const (
	ServicePending ServiceState = iota
	ServiceRunning
	ServiceFinished
	ServiceAborted
)

func (s ServiceState) String() string {
	switch s {
	case ServicePending:
		return "pending"
	case ServiceRunning:
		return "running"
	case ServiceFinished:
		return "finished"
	case ServiceAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ServiceInstance is the per-run state of one service within a job's
// current stage: its template, its owning job, its state, and its
// attempt/tick bookkeeping.
type ServiceInstance struct {
	Template  *ServiceTemplate
	Job       *JobInstance
	State     ServiceState
	Attempts  int
	TicksLeft int

	stageIndex int
}

// newServiceInstance creates a Pending service for the given job at its
// current stage, with a fresh tick budget from the template.
func newServiceInstance(template *ServiceTemplate, job *JobInstance, stageIndex int) *ServiceInstance {
	return &ServiceInstance{
		Template:   template,
		Job:        job,
		State:      ServicePending,
		TicksLeft:  template.Ticks,
		stageIndex: stageIndex,
	}
}

// Identity is the ordering key named in spec.md 4.3: job identifier,
// current stage index, template identifier. It also serves as the
// resource-pool requester key, so every stage of a re-run job gets a
// distinct ledger identity.
func (s *ServiceInstance) Identity() string {
	return fmt.Sprintf("%d:%d:%s", s.Job.Identifier, s.stageIndex, s.Template.Identifier)
}

// IsRunning reports whether the service is currently Running.
func (s *ServiceInstance) IsRunning() bool { return s.State == ServiceRunning }

// StageIndex returns the job stage this service instance belongs to.
func (s *ServiceInstance) StageIndex() int { return s.stageIndex }

// Start attempts to move a Pending service to Running by allocating its
// template's demand. See the state table in spec.md 4.3.
func (s *ServiceInstance) Start() error {
	if s.State != ServicePending {
		return nil
	}
	if s.Attempts >= s.Template.MaxAttempts {
		return newErr(ErrMaxAttemptsReached,
			fmt.Sprintf("service %s: attempts %d >= maxAttempts %d", s.Identity(), s.Attempts, s.Template.MaxAttempts))
	}
	if err := s.Template.Allocate(s.Identity()); err != nil {
		s.Attempts++
		return err
	}
	s.State = ServiceRunning
	return nil
}

// Step advances a Running service by one tick, finishing it (and
// releasing its resources) once its tick budget is exhausted. A no-op
// for services that are not Running.
func (s *ServiceInstance) Step() {
	if s.State != ServiceRunning {
		return
	}
	s.TicksLeft--
	if s.TicksLeft <= 0 {
		s.TicksLeft = 0
		s.Template.Deallocate(s.Identity())
		s.State = ServiceFinished
	}
}

// Abort terminates the service immediately, releasing resources if it
// was Running. A no-op for services already Finished or Aborted.
func (s *ServiceInstance) Abort() {
	if s.State == ServiceFinished || s.State == ServiceAborted {
		return
	}
	if s.State == ServiceRunning {
		s.Template.Deallocate(s.Identity())
	}
	s.TicksLeft = 0
	s.State = ServiceAborted
}
