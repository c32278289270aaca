package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/capshare/scheduler/common"
	"github.com/capshare/scheduler/scheduler/domain"
)

// clusterStatusProvider is the narrow outbound interface (§6) the
// Dispatcher needs from ClusterStatus; defined here so the Dispatcher
// can be tested against a fake without standing up a real cluster
// subscription.
type clusterStatusProvider interface {
	GetMaxMapTasks() int
	GetMaxReduceTasks() int
	GetTaskTrackers() []*domain.Worker
	GetNumberOfUniqueHosts() int
}

// Dispatcher is the scheduler's top-level entry point (§4.G): on every
// worker heartbeat it recomputes queue capacities if the cluster size
// changed, rebuilds per-queue occupancy from the live job list, and
// runs the map and reduce schedulers in fill-ratio order.
type Dispatcher struct {
	mu sync.Mutex

	queues     map[string]*Queue
	queueOrder []string
	jobs       map[string]*domain.Job

	cluster clusterStatusProvider

	mapSched    *taskKindScheduler
	reduceSched *taskKindScheduler

	prevMaxMap    int
	prevMaxReduce int

	throttle int // -1 unlimited, 0 closed, >0 capped

	started bool

	persistor Persistor

	interner *userInterner

	pollerTicker *time.Ticker
	pollerDone   chan struct{}
}

// NewDispatcher builds an unstarted Dispatcher over the given queue
// configurations. Call Start before the first AssignTasks.
func NewDispatcher(cluster clusterStatusProvider, queueConfigs []QueueConfig, memoryAware bool, persistor Persistor) (*Dispatcher, error) {
	if len(queueConfigs) == 0 {
		return nil, fmt.Errorf("invalid configuration: at least one queue must be defined")
	}
	if err := validateQueueConfigs(queueConfigs); err != nil {
		return nil, err
	}
	if persistor == nil {
		persistor = &nopPersistor{}
	}

	queues := make(map[string]*Queue, len(queueConfigs))
	queueOrder := make([]string, 0, len(queueConfigs))
	for _, cfg := range queueConfigs {
		queues[cfg.Name] = NewQueue(cfg)
		queueOrder = append(queueOrder, cfg.Name)
	}

	return &Dispatcher{
		queues:        queues,
		queueOrder:    queueOrder,
		jobs:          make(map[string]*domain.Job),
		cluster:       cluster,
		mapSched:      &taskKindScheduler{kind: domain.Map, memoryAware: memoryAware},
		reduceSched:   &taskKindScheduler{kind: domain.Reduce, memoryAware: memoryAware},
		throttle:      -1,
		prevMaxMap:    -1,
		prevMaxReduce: -1,
		persistor:     persistor,
		interner:      newUserInterner(1024),
	}, nil
}

// validateQueueConfigs implements the §6 start-time validation: capacity
// percentages must not sum over 100, and a queue's capacity must not
// exceed its own maxCapacity when both are set.
func validateQueueConfigs(cfgs []QueueConfig) error {
	sum := 0.0
	for _, c := range cfgs {
		if c.CapacityPercent != nil {
			sum += *c.CapacityPercent
		}
		if c.CapacityPercent != nil && c.MaxCapacityPercent != nil && *c.CapacityPercent > *c.MaxCapacityPercent {
			return fmt.Errorf("queue %q: capacity %.2f exceeds maximum-capacity %.2f", c.Name, *c.CapacityPercent, *c.MaxCapacityPercent)
		}
	}
	if sum > 100.0 {
		return fmt.Errorf("invalid configuration: queue capacities sum to %.2f, exceeds 100", sum)
	}
	return nil
}

// Start loads any persisted settings, marks the dispatcher ready to
// serve AssignTasks and starts the initialization poller (§4.I). Queue
// configuration is validated by NewDispatcher, not here.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	d.loadSettingsLocked()
	d.started = true
	d.pollerTicker = time.NewTicker(common.DefaultPollerInterval)
	d.pollerDone = make(chan struct{})
	d.mu.Unlock()

	go d.runInitPoller()
	log.Info("dispatcher started")
	return nil
}

// Terminate marks the dispatcher no longer accepting heartbeats and
// stops the initialization poller (§4.I's "stop poller").
func (d *Dispatcher) Terminate() {
	d.mu.Lock()
	d.started = false
	ticker, done := d.pollerTicker, d.pollerDone
	d.pollerTicker, d.pollerDone = nil, nil
	d.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
	}
	if done != nil {
		close(done)
	}
	log.Info("dispatcher terminated")
}

// runInitPoller is the §4.I/§5 "initialization poller": on a dedicated
// cooperative thread, it periodically promotes any job still sitting at
// NotStarted to Running. JobAdded already promotes a job the moment
// it's added, since this scheduler implements no per-queue admission
// throttling policy (left to an external collaborator per §1); this
// tick is the safety net guaranteeing the poller's contract — a
// waiting job is eventually made runnable — holds regardless.
func (d *Dispatcher) runInitPoller() {
	d.mu.Lock()
	ticker, done := d.pollerTicker, d.pollerDone
	d.mu.Unlock()
	if ticker == nil {
		return
	}
	for {
		select {
		case <-ticker.C:
			d.promoteWaitingJobs()
		case <-done:
			return
		}
	}
}

// promoteWaitingJobs marks every NotStarted job as Running, interacting
// with dispatcher state only through the main lock, as §5 requires.
func (d *Dispatcher) promoteWaitingJobs() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, job := range d.jobs {
		if job.Status == domain.NotStarted {
			job.Status = domain.Running
		}
	}
}

// SetThrottle caps the total slots the dispatcher will hand out per
// heartbeat, independent of queue capacity math: -1 unlimited, 0 fully
// closed, >0 a ceiling (used operationally to drain a cluster). The
// remaining budget is checked before each assignment, so the last task
// of a heartbeat can take it past n when it needs more than one slot.
func (d *Dispatcher) SetThrottle(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.throttle = n
}

func (d *Dispatcher) GetThrottle() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.throttle
}

// JobAdded implements §4.I's jobAdded hook.
func (d *Dispatcher) JobAdded(job *domain.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[job.Queue()]
	if !ok {
		log.WithField("job", job.String()).Error("invariant violation: job references unknown queue")
		return fmt.Errorf("invariant violation: job %s references unknown queue %q", job.ID, job.Queue())
	}
	q.Jobs = append(q.Jobs, job)
	q.numJobsByUser[d.interner.Intern(job.User())]++
	d.jobs[job.ID] = job
	// No per-queue admission throttling policy is implemented (left to
	// an external collaborator per §1); a job is runnable as soon as
	// it's added rather than waiting on the initialization poller's
	// next tick. promoteWaitingJobs is a safety net for any job that
	// reaches the queue still NotStarted some other way.
	job.Status = domain.Running
	return nil
}

// JobCompleted implements §4.I's jobCompleted hook.
func (d *Dispatcher) JobCompleted(jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.jobs[jobID]
	if !ok {
		return
	}
	delete(d.jobs, jobID)
	q, ok := d.queues[job.Queue()]
	if !ok {
		return
	}
	for i, j := range q.Jobs {
		if j.ID == jobID {
			q.Jobs = append(q.Jobs[:i:i], q.Jobs[i+1:]...)
			break
		}
	}
	q.numJobsByUser[job.User()]--
	if q.numJobsByUser[job.User()] <= 0 {
		delete(q.numJobsByUser, job.User())
	}
}

// GetJobs implements the §6 inbound `getJobs(queueName)`: running jobs
// first, then waiting (not-yet-started) jobs.
func (d *Dispatcher) GetJobs(queueName string) []*domain.Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[queueName]
	if !ok {
		return nil
	}
	var running, waiting []*domain.Job
	for _, j := range q.Jobs {
		if j.Status == domain.Running {
			running = append(running, j)
		} else if j.Status == domain.NotStarted {
			waiting = append(waiting, j)
		}
	}
	return append(running, waiting...)
}

// GetQueues implements the §6 QueueManager.getQueues() outbound call.
func (d *Dispatcher) GetQueues() []*Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	queues := make([]*Queue, 0, len(d.queueOrder))
	for _, name := range d.queueOrder {
		queues = append(queues, d.queues[name])
	}
	return queues
}

// StatusReport renders the human-readable per-queue report described
// in §6's "Displayed status": no bit-exact format is required, so this
// mirrors the teacher's plain-text stats dump style.
func (d *Dispatcher) StatusReport() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "throttle: %d\n", d.throttle)
	for _, name := range d.queueOrder {
		q := d.queues[name]
		capacityPercent := "residual"
		if q.Config.CapacityPercent != nil {
			capacityPercent = fmt.Sprintf("%.2f", *q.Config.CapacityPercent)
		}
		fmt.Fprintf(&b, "queue %s: capacityPercent=%s waitingJobs=%d activeUsers=%d\n",
			q.Config.Name, capacityPercent, q.WaitingJobs(), q.ActiveUsers())
		for _, kind := range []domain.TaskKind{domain.Map, domain.Reduce} {
			ks := q.kind(kind)
			fmt.Fprintf(&b, "  %s: capacity=%d occupied=%d running=%d byUser=%v\n",
				kind, ks.capacitySlots, ks.numSlotsOccupied, ks.numRunningTasks, ks.numSlotsOccupiedByUser)
		}
	}
	return b.String()
}

// AssignTasks is the §4.G heartbeat entry point: given a worker that
// just reported in, decide which tasks (if any) to hand it.
func (d *Dispatcher) AssignTasks(worker *domain.Worker) []domain.Task {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}

	maxMap := d.cluster.GetMaxMapTasks()
	maxReduce := d.cluster.GetMaxReduceTasks()
	numTrackers := len(d.cluster.GetTaskTrackers())
	d.mapSched.numTrackers = numTrackers
	d.reduceSched.numTrackers = numTrackers

	d.recomputeCapacities(maxMap, maxReduce)
	d.resetAndRebuild()

	var tasks []domain.Task
	handedOut := 0
	throttled := func(available int) int {
		if d.throttle >= 0 && d.throttle-handedOut < available {
			return d.throttle - handedOut
		}
		return available
	}

	// Map phase: multi-assign loop.
	assignOffSwitch := true
	for {
		available := throttled(worker.AvailableSlots(domain.Map))
		if available <= 0 {
			break
		}
		queues := sortQueuesByFillRatio(d.queuesSlice(), domain.Map)
		result := d.mapSched.assignOne(worker, queues, assignOffSwitch)
		if !result.Found() {
			break
		}
		tasks = append(tasks, result.Task)
		d.applyTSIDelta(result.Job, domain.Map, result.Task.Def.SlotsRequired)
		worker.OccupiedMapSlots += result.Task.Def.SlotsRequired
		handedOut += result.Task.Def.SlotsRequired
		if result.Tag == domain.OffSwitchTaskFound {
			assignOffSwitch = false
		}
	}

	// Reduce phase: single assign.
	available := throttled(worker.AvailableSlots(domain.Reduce))
	if available > 0 {
		queues := sortQueuesByFillRatio(d.queuesSlice(), domain.Reduce)
		result := d.reduceSched.assignOne(worker, queues, false)
		if result.Tag == domain.LocalTaskFound {
			tasks = append(tasks, result.Task)
			d.applyTSIDelta(result.Job, domain.Reduce, result.Task.Def.SlotsRequired)
			worker.OccupiedReduceSlots += result.Task.Def.SlotsRequired
		}
	}

	return tasks
}

// queuesSlice returns the dispatcher's queues in configuration order, so
// that sortQueuesByFillRatio's stable tie-break (§4.C) is deterministic
// across heartbeats rather than shuffling with Go's randomized map
// iteration.
func (d *Dispatcher) queuesSlice() []*Queue {
	queues := make([]*Queue, 0, len(d.queueOrder))
	for _, name := range d.queueOrder {
		queues = append(queues, d.queues[name])
	}
	return queues
}

// recomputeCapacities implements §4.G step 2: capacity/maxCapacity are
// only recomputed when the cluster's slot capacity actually changed
// since the last heartbeat.
func (d *Dispatcher) recomputeCapacities(maxMap, maxReduce int) {
	if maxMap == d.prevMaxMap && maxReduce == d.prevMaxReduce {
		return
	}
	d.prevMaxMap = maxMap
	d.prevMaxReduce = maxReduce

	residualPercent, residualCount := d.residualShare()

	for _, q := range d.queues {
		capPercent := residualPercent
		if q.Config.CapacityPercent != nil {
			capPercent = *q.Config.CapacityPercent
		} else if residualCount > 0 {
			capPercent = residualPercent / float64(residualCount)
		}
		hasMax := q.Config.MaxCapacityPercent != nil
		maxPercent := 0.0
		if hasMax {
			maxPercent = *q.Config.MaxCapacityPercent
		}
		q.deriveCapacity(domain.Map, capPercent, maxPercent, hasMax, maxMap)
		q.deriveCapacity(domain.Reduce, capPercent, maxPercent, hasMax, maxReduce)
	}
}

// residualShare returns the total unconfigured percentage and the count
// of queues without an explicit capacity, for even residual split.
func (d *Dispatcher) residualShare() (float64, int) {
	configured := 0.0
	unconfigured := 0
	for _, q := range d.queues {
		if q.Config.CapacityPercent != nil {
			configured += *q.Config.CapacityPercent
		} else {
			unconfigured++
		}
	}
	residual := 100.0 - configured
	if residual < 0 {
		residual = 0
	}
	return residual, unconfigured
}

// resetAndRebuild implements §4.G steps 2-3: zero every queue's TSI and
// rebuild it from the currently running jobs, rather than tracking
// incremental deltas across heartbeats — this makes the scheduler
// self-healing against any bookkeeping drift from a failed or killed
// job.
func (d *Dispatcher) resetAndRebuild() {
	for _, q := range d.queues {
		q.kind(domain.Map).reset()
		q.kind(domain.Reduce).reset()
		for _, job := range q.Jobs {
			if job.Status != domain.Running {
				continue
			}
			d.addRunningTasks(job, domain.Map, job.RunningMaps, job.SlotsPerMap)
			d.addRunningTasks(job, domain.Reduce, job.RunningReduces, job.SlotsPerReduce)
		}
	}
}

// addRunningTasks folds numTasks already-running tasks of kind, each
// costing slotsPerTask, into job's queue TSI — used by the full
// rebuild to account for a job's entire running set in one step.
func (d *Dispatcher) addRunningTasks(job *domain.Job, kind domain.TaskKind, numTasks, slotsPerTask int) {
	if numTasks <= 0 || slotsPerTask <= 0 {
		return
	}
	q, ok := d.queues[job.Queue()]
	if !ok {
		return
	}
	ks := q.kind(kind)
	ks.numRunningTasks += numTasks
	ks.numSlotsOccupied += numTasks * slotsPerTask
	ks.numSlotsOccupiedByUser[d.interner.Intern(job.User())] += numTasks * slotsPerTask
}

// applyTSIDelta folds one newly-committed task of kind for job into its
// queue's TSI — used for the intra-heartbeat delta §4.G step 5 requires
// after each dispatch, so subsequent fill-ratio comparisons in the same
// heartbeat see the task just handed out.
func (d *Dispatcher) applyTSIDelta(job *domain.Job, kind domain.TaskKind, slots int) {
	if slots <= 0 {
		return
	}
	q, ok := d.queues[job.Queue()]
	if !ok {
		return
	}
	ks := q.kind(kind)
	ks.numRunningTasks++
	ks.numSlotsOccupied += slots
	ks.numSlotsOccupiedByUser[d.interner.Intern(job.User())] += slots
}
