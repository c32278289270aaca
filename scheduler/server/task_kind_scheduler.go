package server

import (
	log "github.com/sirupsen/logrus"

	"github.com/capshare/scheduler/scheduler/domain"
)

// taskKindScheduler implements §4.E for one task kind (map or reduce),
// sharing the two-pass queue walk between both per the design notes'
// "one function parameterized by respect-user-limit and may-reserve"
// guidance.
type taskKindScheduler struct {
	kind        domain.TaskKind
	memoryAware bool
	numTrackers int
}

// assignOne is the entry point from §4.E: given a worker with free
// slots, either honor its existing reservation, walk queues in the
// caller-supplied fill-ratio order, or report nothing found.
func (s *taskKindScheduler) assignOne(worker *domain.Worker, queues []*Queue, assignOffSwitchAllowed bool) domain.TaskLookupResult {
	availableSlots := worker.AvailableSlots(s.kind)

	if res := worker.GetReservation(s.kind); res != nil {
		if availableSlots >= res.Job.SlotsPerTask(s.kind) {
			worker.UnreserveSlots(s.kind)
			if s.kind == domain.Map {
				res.Job.SetIgnoreLocality(true)
			}
			return s.obtainNewTask(worker, res.Job, true)
		}
		worker.ReserveSlots(s.kind, res.Job, availableSlots)
		return domain.MemoryFailure()
	}

	for _, q := range queues {
		ks := q.kind(s.kind)
		if ks.capacitySlots <= 0 {
			continue
		}
		result := s.getTaskFromQueue(worker, availableSlots, q, assignOffSwitchAllowed)
		switch result.Tag {
		case domain.LocalTaskFound, domain.OffSwitchTaskFound, domain.TaskFailingMemoryRequirement:
			return result
		}
	}
	return domain.NoTask()
}

// getTaskFromQueue implements the two-pass queue walk: pass 1 respects
// user limits and may create a reservation; pass 2 ignores user limits
// (so a queue with one remaining user is never starved) and never
// reserves.
func (s *taskKindScheduler) getTaskFromQueue(worker *domain.Worker, availableSlots int, q *Queue, assignOffSwitchAllowed bool) domain.TaskLookupResult {
	jobs := q.RunnableJobs()

	// Pass 1: respect user limits, may reserve.
	for _, job := range jobs {
		slotsRequired := job.SlotsPerTask(s.kind)
		if q.kind(s.kind).overMaxCapacity(slotsRequired) {
			continue
		}
		if overUserLimit(q, job, s.kind) {
			continue
		}
		if memoryMatches(job, s.kind, availableSlots, s.memoryAware) {
			if result := s.obtainNewTask(worker, job, assignOffSwitchAllowed); result.Found() {
				return result
			}
			continue
		}
		if job.PendingTasks(s.kind) > 0 && reservedLessThanPending(worker, job, s.kind) {
			worker.ReserveSlots(s.kind, job, availableSlots)
			log.WithFields(log.Fields{"queue": q.Config.Name, "job": job.ID, "kind": s.kind, "worker": worker.ID}).
				Info("reserving worker slots for high-memory job")
			return domain.MemoryFailure()
		}
	}

	// Pass 2: ignore user limits, never reserve.
	for _, job := range jobs {
		slotsRequired := job.SlotsPerTask(s.kind)
		if q.kind(s.kind).overMaxCapacity(slotsRequired) {
			continue
		}
		if memoryMatches(job, s.kind, availableSlots, s.memoryAware) {
			if result := s.obtainNewTask(worker, job, assignOffSwitchAllowed); result.Found() {
				return result
			}
			continue
		}
		if job.PendingTasks(s.kind) > 0 || job.HasSpeculativeTask(worker) {
			return domain.MemoryFailure()
		}
	}

	return domain.NoTask()
}

// reservedLessThanPending reports whether this worker's reservation for
// job (if any) still leaves pending tasks unaccounted for, i.e. it's
// worth holding/extending a reservation rather than giving up on job
// for this worker.
func reservedLessThanPending(worker *domain.Worker, job *domain.Job, kind domain.TaskKind) bool {
	res := worker.GetReservation(kind)
	if res == nil || res.Job != job {
		return true
	}
	return res.SlotsReserved < job.PendingTasks(kind)
}

// obtainNewTask implements §4.E's per-kind task acquisition and the
// Locality Gate (§4.H) for maps.
func (s *taskKindScheduler) obtainNewTask(worker *domain.Worker, job *domain.Job, assignOffSwitch bool) domain.TaskLookupResult {
	if s.kind == domain.Reduce {
		if t, ok := job.ObtainNewReduceTask(); ok {
			return domain.LocalFound(domain.Task{JobID: job.ID, Def: t, WorkerID: worker.ID}, job)
		}
		return domain.NoTask()
	}

	if job.IgnoreLocality() {
		if t, ok := job.ObtainNewNonLocalMapTask(); ok {
			job.SetIgnoreLocality(false)
			return domain.LocalFound(domain.Task{JobID: job.ID, Def: t, WorkerID: worker.ID}, job)
		}
		return domain.NoTask()
	}

	if t, ok := job.ObtainNewLocalMapTask(worker.Host); ok {
		return domain.LocalFound(domain.Task{JobID: job.ID, Def: t, WorkerID: worker.ID}, job)
	}

	wantsOffSwitch := job.SlotsPerMap > 1 || (assignOffSwitch && job.ScheduleOffSwitch(s.numTrackers))
	if !wantsOffSwitch {
		return domain.NoTask()
	}
	if t, ok := job.ObtainNewNonLocalMapTask(); ok {
		return domain.OffSwitchFound(domain.Task{JobID: job.ID, Def: t, WorkerID: worker.ID}, job)
	}
	return domain.NoTask()
}
