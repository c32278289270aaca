// Package domain defines the data the scheduler reasons about: jobs,
// tasks, queues, workers, and the tagged result of a single scheduling
// decision.
package domain

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// TaskKind is the two task kinds the scheduler partitions slots by.
type TaskKind int

const (
	Map TaskKind = iota
	Reduce
)

func (k TaskKind) String() string {
	if k == Map {
		return "map"
	}
	return "reduce"
}

// Status is the run state of a Job or Task.
type Status int

const (
	NotStarted Status = iota
	Running
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// TaskDefinition is one unit of work within a Job. SlotsRequired is how
// many of a worker's same-kind slots this task occupies while running
// (>1 for a high-memory task).
type TaskDefinition struct {
	TaskID        string
	Kind          TaskKind
	SlotsRequired int
	PreferredHost string // for maps: the host holding the task's input data, if any
}

// JobDefinition is what a client submits.
type JobDefinition struct {
	Queue     string
	Requestor string
	Tasks     []TaskDefinition
}

func (jd *JobDefinition) String() string {
	return fmt.Sprintf("queue:%s, requestor:%s, tasks:%d", jd.Queue, jd.Requestor, len(jd.Tasks))
}

// Job is a submitted JobDefinition plus the live bookkeeping the
// scheduler needs to make per-heartbeat decisions: how many tasks of
// each kind are pending vs. running, how many slots each one needs, and
// whether off-switch (non-local) map placement is still being rationed
// for this job.
type Job struct {
	ID     string
	Def    JobDefinition
	Status Status

	SlotsPerMap    int
	SlotsPerReduce int

	PendingMaps    int
	RunningMaps    int
	PendingReduces int
	RunningReduces int

	pendingMapTasks    []TaskDefinition
	pendingReduceTasks []TaskDefinition

	// ignoreLocality is set once a worker's reservation for this job is
	// finally honored, so the freed task is placed regardless of data
	// locality rather than risk losing the reservation a second time.
	ignoreLocality bool

	// offSwitchBudget counts the ScheduleOffSwitch calls since this job
	// was last allowed a non-local map task.
	offSwitchBudget int
}

// NewJob builds a Job from a definition, splitting its tasks into the
// map/reduce pending queues that ObtainNew*Task draws from.
func NewJob(id string, def JobDefinition, slotsPerMap, slotsPerReduce int) *Job {
	j := &Job{
		ID:             id,
		Def:            def,
		Status:         NotStarted,
		SlotsPerMap:    slotsPerMap,
		SlotsPerReduce: slotsPerReduce,
	}
	for _, t := range def.Tasks {
		if t.Kind == Map {
			j.pendingMapTasks = append(j.pendingMapTasks, t)
		} else {
			j.pendingReduceTasks = append(j.pendingReduceTasks, t)
		}
	}
	j.PendingMaps = len(j.pendingMapTasks)
	j.PendingReduces = len(j.pendingReduceTasks)
	return j
}

// String dumps a job's full internal state for diagnostic logging, so
// an invariant violation can be traced back to the exact pending-task
// bookkeeping that produced it.
func (j *Job) String() string {
	return fmt.Sprintf("{id:%s queue:%s user:%s status:%v pendingMaps:%d pendingReduces:%d runningMaps:%d runningReduces:%d def:%s}",
		j.ID, j.Queue(), j.User(), j.Status, j.PendingMaps, j.PendingReduces, j.RunningMaps, j.RunningReduces, spew.Sdump(j.Def))
}

// ObtainNewLocalMapTask returns a pending map task whose preferred host
// matches workerHost, if one exists (§6 outbound interface).
func (j *Job) ObtainNewLocalMapTask(workerHost string) (TaskDefinition, bool) {
	for i, t := range j.pendingMapTasks {
		if t.PreferredHost != "" && t.PreferredHost == workerHost {
			return j.takeMapTaskAt(i), true
		}
	}
	return TaskDefinition{}, false
}

// ObtainNewNonLocalMapTask returns any pending map task, ignoring
// locality.
func (j *Job) ObtainNewNonLocalMapTask() (TaskDefinition, bool) {
	if len(j.pendingMapTasks) == 0 {
		return TaskDefinition{}, false
	}
	return j.takeMapTaskAt(0), true
}

// ObtainNewReduceTask returns any pending reduce task; reduces have no
// locality preference.
func (j *Job) ObtainNewReduceTask() (TaskDefinition, bool) {
	if len(j.pendingReduceTasks) == 0 {
		return TaskDefinition{}, false
	}
	t := j.pendingReduceTasks[0]
	j.pendingReduceTasks = j.pendingReduceTasks[1:]
	j.PendingReduces--
	j.RunningReduces++
	return t, true
}

func (j *Job) takeMapTaskAt(i int) TaskDefinition {
	t := j.pendingMapTasks[i]
	j.pendingMapTasks = append(j.pendingMapTasks[:i:i], j.pendingMapTasks[i+1:]...)
	j.PendingMaps--
	j.RunningMaps++
	return t
}

// HasSpeculativeTask is the side-effect-free speculative-execution probe
// from the design notes. This port doesn't model per-task run history,
// so it conservatively always reports no eligible speculative task
// rather than guessing at an unspecified heuristic.
func (j *Job) HasSpeculativeTask(worker *Worker) bool {
	return false
}

func (j *Job) User() string { return j.Def.Requestor }

func (j *Job) Queue() string { return j.Def.Queue }

// SlotsPerTask returns the worker-slot cost of one task of the given kind
// for this job.
func (j *Job) SlotsPerTask(kind TaskKind) int {
	if kind == Map {
		return j.SlotsPerMap
	}
	return j.SlotsPerReduce
}

// PendingTasks returns the number of not-yet-running tasks of kind.
func (j *Job) PendingTasks(kind TaskKind) int {
	if kind == Map {
		return j.PendingMaps
	}
	return j.PendingReduces
}

// RunningTasks returns the number of currently-running tasks of kind.
func (j *Job) RunningTasks(kind TaskKind) int {
	if kind == Map {
		return j.RunningMaps
	}
	return j.RunningReduces
}

// Runnable reports whether this job still has work of either kind
// outstanding.
func (j *Job) Runnable() bool {
	return j.Status == Running && (j.PendingMaps > 0 || j.PendingReduces > 0)
}

// ScheduleOffSwitch is the job-owned opportunity throttle from §6: it
// decides, given the current cluster size, whether this job should be
// offered a non-local map task right now. A job rations its own
// off-switch opportunities so that a job with many pending maps doesn't
// claim every off-switch slot the dispatcher is willing to hand out.
func (j *Job) ScheduleOffSwitch(numTrackers int) bool {
	if numTrackers <= 0 {
		return false
	}
	// Grant one off-switch opportunity per numTrackers calls, matching the original's "don't flood the cluster with
	// remote reads" intent, without requiring per-task data-locality
	// bookkeeping this port doesn't model.
	j.offSwitchBudget++
	if j.offSwitchBudget >= numTrackers {
		j.offSwitchBudget = 0
		return true
	}
	return false
}

// IgnoreLocality reports whether this job's next map task should skip
// the locality gate, per §4.E step 1 (a reservation being honored).
func (j *Job) IgnoreLocality() bool { return j.ignoreLocality }

func (j *Job) SetIgnoreLocality(v bool) { j.ignoreLocality = v }

// Task is a TaskDefinition bound to the Job and Worker it was dispatched
// to, returned to the JobTracker by the dispatcher.
type Task struct {
	JobID    string
	Def      TaskDefinition
	WorkerID string
	OffSwitch bool
}

// TaskLookupResultTag is the discriminant of TaskLookupResult; Go has no
// sum types, so every call site must switch on this field and the
// compiler enforces nothing — tests assert every tag is exercised, and
// TaskLookupResult's constructors set exactly the fields that belong
// with each tag.
type TaskLookupResultTag int

const (
	NoTaskFound TaskLookupResultTag = iota
	LocalTaskFound
	OffSwitchTaskFound
	TaskFailingMemoryRequirement
)

// TaskLookupResult is the tagged result of one scheduling attempt
// (§4.E). Use the constructors below rather than building one by hand:
// they guarantee Task/Job are only set on the two FOUND tags.
type TaskLookupResult struct {
	Tag  TaskLookupResultTag
	Task Task
	Job  *Job
}

func NoTask() TaskLookupResult {
	return TaskLookupResult{Tag: NoTaskFound}
}

func MemoryFailure() TaskLookupResult {
	return TaskLookupResult{Tag: TaskFailingMemoryRequirement}
}

func LocalFound(task Task, job *Job) TaskLookupResult {
	return TaskLookupResult{Tag: LocalTaskFound, Task: task, Job: job}
}

func OffSwitchFound(task Task, job *Job) TaskLookupResult {
	task.OffSwitch = true
	return TaskLookupResult{Tag: OffSwitchTaskFound, Task: task, Job: job}
}

// Found reports whether this result carries a dispatchable task.
func (r TaskLookupResult) Found() bool {
	return r.Tag == LocalTaskFound || r.Tag == OffSwitchTaskFound
}

// Worker is the scheduler's view of a task tracker: its slot capacity,
// current occupancy, and at most one reservation per kind.
type Worker struct {
	ID            string
	Host          string
	MaxMapSlots   int
	MaxReduceSlots int

	OccupiedMapSlots    int
	OccupiedReduceSlots int

	reservations [2]*Reservation // indexed by TaskKind
}

// Reservation holds a worker's slots for a high-memory job until enough
// become free to actually run one of its tasks (§4.F).
type Reservation struct {
	Job           *Job
	Kind          TaskKind
	SlotsReserved int
}

func (w *Worker) MaxSlots(kind TaskKind) int {
	if kind == Map {
		return w.MaxMapSlots
	}
	return w.MaxReduceSlots
}

func (w *Worker) OccupiedSlots(kind TaskKind) int {
	if kind == Map {
		return w.OccupiedMapSlots
	}
	return w.OccupiedReduceSlots
}

// AvailableSlots returns the worker's free slots of kind, counting
// running tasks only. A slot held by this worker's own reservation is
// still available: it belongs to the reserved job, not to some other
// job, and the reservation-honor check (assignOne) is what decides
// whether that job can finally claim it.
func (w *Worker) AvailableSlots(kind TaskKind) int {
	free := w.MaxSlots(kind) - w.OccupiedSlots(kind)
	if free < 0 {
		return 0
	}
	return free
}

// GetReservation returns the worker's current reservation for kind, or nil.
func (w *Worker) GetReservation(kind TaskKind) *Reservation {
	return w.reservations[kind]
}

// ReserveSlots holds n of the worker's kind slots for job, replacing any
// existing reservation for the same kind.
func (w *Worker) ReserveSlots(kind TaskKind, job *Job, n int) {
	w.reservations[kind] = &Reservation{Job: job, Kind: kind, SlotsReserved: n}
}

// UnreserveSlots releases the worker's reservation for kind, if any.
func (w *Worker) UnreserveSlots(kind TaskKind) {
	w.reservations[kind] = nil
}

// OfflineWorkerReq and ReinstateWorkerReq are the operator-facing
// supplement described in SPEC_FULL §12: administratively blacklisting
// or restoring a task tracker, distinct from the scheduler's own
// lost/flaky bookkeeping.
type OfflineWorkerReq struct {
	ID        string
	Requestor string
}

type ReinstateWorkerReq struct {
	ID        string
	Requestor string
}

// ValidateJob mirrors the teacher's own shape for request validation: a
// plain error, checked at the boundary before a job enters scheduling.
func ValidateJob(jd JobDefinition) error {
	if jd.Queue == "" {
		return fmt.Errorf("invalid job: queue must not be empty")
	}
	if len(jd.Tasks) == 0 {
		return fmt.Errorf("invalid job: must have at least 1 task; was empty")
	}
	for _, task := range jd.Tasks {
		if task.TaskID == "" {
			return fmt.Errorf("invalid task id \"\"")
		}
		if task.SlotsRequired <= 0 {
			return fmt.Errorf("invalid task %q: SlotsRequired must be positive", task.TaskID)
		}
	}
	return nil
}
