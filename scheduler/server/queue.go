package server

import (
	"math"

	"github.com/capshare/scheduler/scheduler/domain"
)

// QueueConfig is a queue's static, operator-supplied configuration. A nil
// CapacityPercent means "split the residual evenly among unconfigured
// queues"; a nil MaxCapacityPercent means "unbounded".
type QueueConfig struct {
	Name                    string
	CapacityPercent         *float64
	MaxCapacityPercent      *float64
	MinimumUserLimitPercent int
	SupportsPriorities      bool
}

// kindState is the per-queue-per-task-kind counters from §3 (TSI):
// capacity derived from cluster size, and live occupancy rebuilt every
// heartbeat from the running job list.
type kindState struct {
	capacitySlots    int
	maxCapacitySlots int // -1 means unbounded
	hasMaxCapacity   bool

	numRunningTasks      int
	numSlotsOccupied     int
	numSlotsOccupiedByUser map[string]int
}

func newKindState() *kindState {
	return &kindState{numSlotsOccupiedByUser: make(map[string]int)}
}

// reset zeros the live occupancy counters ahead of a full rebuild from
// the running job list. Capacity fields are left untouched — they're
// only recomputed when cluster size changes (see recomputeCapacities).
func (k *kindState) reset() {
	k.numRunningTasks = 0
	k.numSlotsOccupied = 0
	k.numSlotsOccupiedByUser = make(map[string]int)
}

// fillRatio implements §4.C: occupied/capacity, with capacity==0 read as
// a full (1.0) queue so empty-capacity queues sort after every queue
// still under its capacity.
func (k *kindState) fillRatio() float64 {
	if k.capacitySlots <= 0 {
		return 1.0
	}
	return float64(k.numSlotsOccupied) / float64(k.capacitySlots)
}

// overMaxCapacity reports whether admitting a task of the given slot
// cost would push this queue/kind over its configured ceiling.
func (k *kindState) overMaxCapacity(slotsRequired int) bool {
	if !k.hasMaxCapacity {
		return false
	}
	return k.numSlotsOccupied+slotsRequired > k.maxCapacitySlots
}

// Queue is a named share of cluster capacity: its configuration, its
// per-kind TSI, the distinct-user job counts (QSI), and the jobs
// currently assigned to it.
type Queue struct {
	Config QueueConfig

	perKind [2]*kindState // indexed by domain.TaskKind

	// numJobsByUser is the QSI: distinct queued-or-running job count per
	// user, used by the User-Limit Evaluator to find activeUsers(Q).
	numJobsByUser map[string]int

	// Jobs is every job currently owned by this queue, in submission
	// order; Running jobs with pending tasks are walked by the task-kind
	// scheduler (see RunnableJobs), and JobCompleted removes a job.
	Jobs []*domain.Job
}

func NewQueue(cfg QueueConfig) *Queue {
	return &Queue{
		Config:        cfg,
		perKind:       [2]*kindState{newKindState(), newKindState()},
		numJobsByUser: make(map[string]int),
	}
}

func (q *Queue) kind(k domain.TaskKind) *kindState { return q.perKind[k] }

// ActiveUsers returns the users with at least one queued or running job
// in this queue, per §4.D's activeUsers(Q).
func (q *Queue) ActiveUsers() int {
	n := 0
	for _, count := range q.numJobsByUser {
		if count > 0 {
			n++
		}
	}
	return n
}

// RunnableJobs returns this queue's jobs still eligible for scheduling,
// in the queue's own submission order (§4.E pass ordering).
func (q *Queue) RunnableJobs() []*domain.Job {
	runnable := make([]*domain.Job, 0, len(q.Jobs))
	for _, j := range q.Jobs {
		if j.Runnable() {
			runnable = append(runnable, j)
		}
	}
	return runnable
}

// WaitingJobs counts jobs still in the NotStarted state.
func (q *Queue) WaitingJobs() int {
	n := 0
	for _, j := range q.Jobs {
		if j.Status == domain.NotStarted {
			n++
		}
	}
	return n
}

// deriveCapacity computes capacitySlots/maxCapacitySlots from this
// queue's percentages and the current cluster capacity for kind,
// per §3's floor(percent * clusterCapacity / 100).
func (q *Queue) deriveCapacity(k domain.TaskKind, capacityPercent, maxCapacityPercent float64, hasMax bool, clusterCapacity int) {
	ks := q.kind(k)
	ks.capacitySlots = int(math.Floor(capacityPercent * float64(clusterCapacity) / 100.0))
	ks.hasMaxCapacity = hasMax
	if hasMax {
		ks.maxCapacitySlots = int(math.Floor(maxCapacityPercent * float64(clusterCapacity) / 100.0))
	} else {
		ks.maxCapacitySlots = -1
	}
}
