package sim

import (
	"fmt"
	"sort"
)

// Policy orders the union of every active job's pending services into a
// single priority-ordered sequence for the scheduler to attempt in turn.
type Policy interface {
	// Name identifies the policy for logs and trace file headers.
	Name() string
	// Prioritize returns a deterministic, total ordering over the union
	// of jobs' pending services.
	Prioritize(jobs []*JobInstance) []*ServiceInstance
}

// sortByTieBreak sorts entries descending by the spec.md 4.5 tie-break
// string "%012.2f %04d %s" (key, job id, service identity) alone, so
// priority keys are compared at two-decimal precision and keys equal to
// two decimals are ordered by job id, then service identity, descending.
// FCFS does not use this helper: it sorts ascending on its own key.
func sortByTieBreak(entries []prioritized) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].tieBreak > entries[j].tieBreak
	})
}

type prioritized struct {
	service  *ServiceInstance
	key      float64
	tieBreak string
}

type pendingPair struct {
	job     *JobInstance
	service *ServiceInstance
}

func pendingUnion(jobs []*JobInstance) []pendingPair {
	var out []pendingPair
	for _, job := range jobs {
		for _, s := range job.PendingServices() {
			out = append(out, pendingPair{job, s})
		}
	}
	return out
}

func tieBreak(key float64, job *JobInstance, service *ServiceInstance) string {
	return sprintfTieBreak(key, job.Identifier, service.Identity())
}

// FCFSPolicy orders pending services ascending by
// "%04d%s" (job id, service template id) — first-come-first-serve.
type FCFSPolicy struct{}

func (FCFSPolicy) Name() string { return "FCFS" }

func (FCFSPolicy) Prioritize(jobs []*JobInstance) []*ServiceInstance {
	pairs := pendingUnion(jobs)
	keys := make([]string, len(pairs))
	for i, p := range pairs {
		keys[i] = fcfsKey(p.job.Identifier, p.service.Template.Identifier)
	}
	idx := make([]int, len(pairs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })

	out := make([]*ServiceInstance, len(pairs))
	for i, id := range idx {
		out[i] = pairs[id].service
	}
	return out
}

// RatioBasedPolicy prioritizes services whose resource demand occupies
// the largest mean share of their pool's capacity; resources with no or
// zero capacity are left out of the mean.
type RatioBasedPolicy struct{}

func (RatioBasedPolicy) Name() string { return "RatioBased" }

func (RatioBasedPolicy) Prioritize(jobs []*JobInstance) []*ServiceInstance {
	pairs := pendingUnion(jobs)
	entries := make([]prioritized, 0, len(pairs))
	for _, p := range pairs {
		var sum float64
		var n int
		for name, amount := range p.service.Template.Demand {
			if capacity, ok := p.service.Template.Pool.Capacity(name); ok && capacity != 0 {
				sum += amount / capacity
				n++
			}
		}
		var key float64
		if n > 0 {
			key = sum / float64(n)
		}
		entries = append(entries, prioritized{p.service, key, tieBreak(key, p.job, p.service)})
	}
	return finalize(entries)
}

// RevenueBasedPolicy prioritizes services by their job's expected
// revenue, weighted up by how far along the job already is.
type RevenueBasedPolicy struct{}

func (RevenueBasedPolicy) Name() string { return "RevenueBased" }

func (RevenueBasedPolicy) Prioritize(jobs []*JobInstance) []*ServiceInstance {
	pairs := pendingUnion(jobs)
	entries := make([]prioritized, 0, len(pairs))
	for _, p := range pairs {
		key := p.job.Template.Revenue * (1 + p.job.GetProgress())
		entries = append(entries, prioritized{p.service, key, tieBreak(key, p.job, p.service)})
	}
	return finalize(entries)
}

// PenaltyBasedPolicy prioritizes services by their job's combined
// revenue and penalty exposure, weighted up by progress.
type PenaltyBasedPolicy struct{}

func (PenaltyBasedPolicy) Name() string { return "PenaltyBased" }

func (PenaltyBasedPolicy) Prioritize(jobs []*JobInstance) []*ServiceInstance {
	pairs := pendingUnion(jobs)
	entries := make([]prioritized, 0, len(pairs))
	for _, p := range pairs {
		key := penaltyKey(p.job)
		entries = append(entries, prioritized{p.service, key, tieBreak(key, p.job, p.service)})
	}
	return finalize(entries)
}

// ClassifiedPenaltyBasedPolicy is PenaltyBasedPolicy further scaled by
// GoldWeight for gold customers' jobs.
type ClassifiedPenaltyBasedPolicy struct{}

func (ClassifiedPenaltyBasedPolicy) Name() string { return "ClassifiedPenaltyBased" }

func (ClassifiedPenaltyBasedPolicy) Prioritize(jobs []*JobInstance) []*ServiceInstance {
	pairs := pendingUnion(jobs)
	entries := make([]prioritized, 0, len(pairs))
	for _, p := range pairs {
		key := penaltyKey(p.job)
		if p.job.Customer != nil && p.job.Customer.IsGold {
			key *= p.job.Customer.GoldWeight
		}
		entries = append(entries, prioritized{p.service, key, tieBreak(key, p.job, p.service)})
	}
	return finalize(entries)
}

// FailedAttemptsBasedPolicy prioritizes services that are closest to
// exhausting their MaxAttempts, to avoid losing progress to aborts.
type FailedAttemptsBasedPolicy struct{}

func (FailedAttemptsBasedPolicy) Name() string { return "FailedAttemptsBased" }

func (FailedAttemptsBasedPolicy) Prioritize(jobs []*JobInstance) []*ServiceInstance {
	pairs := pendingUnion(jobs)
	entries := make([]prioritized, 0, len(pairs))
	for _, p := range pairs {
		remaining := p.service.Template.MaxAttempts - p.service.Attempts
		key := 1.0
		if remaining < 1 {
			remaining = 1
		}
		key /= float64(remaining)
		entries = append(entries, prioritized{p.service, key, tieBreak(key, p.job, p.service)})
	}
	return finalize(entries)
}

func penaltyKey(job *JobInstance) float64 {
	base := job.Template.Revenue + job.Template.Penalty
	return base * (1 + job.GetProgress())
}

func finalize(entries []prioritized) []*ServiceInstance {
	sortByTieBreak(entries)
	out := make([]*ServiceInstance, len(entries))
	for i, e := range entries {
		out[i] = e.service
	}
	return out
}

func fcfsKey(jobID int, templateID string) string {
	return fmt.Sprintf("%04d%s", jobID, templateID)
}

func sprintfTieBreak(key float64, jobID int, serviceIdentity string) string {
	return fmt.Sprintf("%012.2f %04d %s", key, jobID, serviceIdentity)
}
