package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capshare/scheduler/scheduler/domain"
)

type fakeCluster struct {
	maxMap, maxReduce, trackers, hosts int
}

func (f *fakeCluster) GetMaxMapTasks() int    { return f.maxMap }
func (f *fakeCluster) GetMaxReduceTasks() int { return f.maxReduce }
func (f *fakeCluster) GetTaskTrackers() []*domain.Worker {
	workers := make([]*domain.Worker, f.trackers)
	for i := range workers {
		workers[i] = &domain.Worker{ID: "w"}
	}
	return workers
}
func (f *fakeCluster) GetNumberOfUniqueHosts() int { return f.hosts }

func newTestDispatcher(t *testing.T, cfgs []QueueConfig) (*Dispatcher, *fakeCluster) {
	cluster := &fakeCluster{maxMap: 10, maxReduce: 10, trackers: 1, hosts: 1}
	d, err := NewDispatcher(cluster, cfgs, false, nil)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	return d, cluster
}

func TestNewDispatcherRejectsOverCommittedCapacity(t *testing.T) {
	a, b := 70.0, 40.0
	_, err := NewDispatcher(&fakeCluster{}, []QueueConfig{
		{Name: "a", CapacityPercent: &a},
		{Name: "b", CapacityPercent: &b},
	}, false, nil)
	assert.Error(t, err)
}

func TestNewDispatcherRejectsCapacityOverMax(t *testing.T) {
	cap, max := 50.0, 30.0
	_, err := NewDispatcher(&fakeCluster{}, []QueueConfig{
		{Name: "a", CapacityPercent: &cap, MaxCapacityPercent: &max},
	}, false, nil)
	assert.Error(t, err)
}

func TestNewDispatcherRejectsEmptyQueues(t *testing.T) {
	_, err := NewDispatcher(&fakeCluster{}, nil, false, nil)
	assert.Error(t, err)
}

func TestAssignTasksRefusesBeforeStart(t *testing.T) {
	cfg := 100.0
	d, err := NewDispatcher(&fakeCluster{maxMap: 10, maxReduce: 10}, []QueueConfig{{Name: "default", CapacityPercent: &cfg}}, false, nil)
	require.NoError(t, err)
	worker := &domain.Worker{ID: "w1", MaxMapSlots: 2, MaxReduceSlots: 2}
	assert.Nil(t, d.AssignTasks(worker))
}

func TestAssignTasksDispatchesMapThenReduce(t *testing.T) {
	cfg := 100.0
	d, _ := newTestDispatcher(t, []QueueConfig{{Name: "default", CapacityPercent: &cfg}})

	job := domain.NewJob("j1", domain.JobDefinition{
		Queue: "default", Requestor: "alice",
		Tasks: []domain.TaskDefinition{
			{TaskID: "m1", Kind: domain.Map, SlotsRequired: 1},
			{TaskID: "r1", Kind: domain.Reduce, SlotsRequired: 1},
		},
	}, 1, 1)
	require.NoError(t, d.JobAdded(job))

	worker := &domain.Worker{ID: "w1", Host: "h1", MaxMapSlots: 1, MaxReduceSlots: 1}
	tasks := d.AssignTasks(worker)
	require.Len(t, tasks, 2)

	kinds := map[domain.TaskKind]bool{}
	for _, task := range tasks {
		kinds[task.Def.Kind] = true
	}
	assert.True(t, kinds[domain.Map])
	assert.True(t, kinds[domain.Reduce])
}

func TestAssignTasksMultiAssignsMapsUntilWorkerFull(t *testing.T) {
	cfg := 100.0
	d, _ := newTestDispatcher(t, []QueueConfig{{Name: "default", CapacityPercent: &cfg}})

	job := domain.NewJob("j1", domain.JobDefinition{
		Queue: "default", Requestor: "alice",
		Tasks: []domain.TaskDefinition{
			{TaskID: "m1", Kind: domain.Map, SlotsRequired: 1, PreferredHost: "h1"},
			{TaskID: "m2", Kind: domain.Map, SlotsRequired: 1, PreferredHost: "h1"},
			{TaskID: "m3", Kind: domain.Map, SlotsRequired: 1, PreferredHost: "h1"},
		},
	}, 1, 1)
	require.NoError(t, d.JobAdded(job))

	worker := &domain.Worker{ID: "w1", Host: "h1", MaxMapSlots: 2}
	tasks := d.AssignTasks(worker)
	assert.Len(t, tasks, 2, "worker only has 2 map slots")
}

func TestAssignTasksRespectsThrottle(t *testing.T) {
	cfg := 100.0
	d, _ := newTestDispatcher(t, []QueueConfig{{Name: "default", CapacityPercent: &cfg}})
	d.SetThrottle(0)

	job := domain.NewJob("j1", domain.JobDefinition{
		Queue: "default", Requestor: "alice",
		Tasks: []domain.TaskDefinition{{TaskID: "m1", Kind: domain.Map, SlotsRequired: 1}},
	}, 1, 1)
	require.NoError(t, d.JobAdded(job))

	worker := &domain.Worker{ID: "w1", Host: "h1", MaxMapSlots: 2}
	assert.Empty(t, d.AssignTasks(worker))
}

func TestJobCompletedRemovesJobFromQueue(t *testing.T) {
	cfg := 100.0
	d, _ := newTestDispatcher(t, []QueueConfig{{Name: "default", CapacityPercent: &cfg}})

	job := domain.NewJob("j1", domain.JobDefinition{
		Queue: "default", Requestor: "alice",
		Tasks: []domain.TaskDefinition{{TaskID: "m1", Kind: domain.Map, SlotsRequired: 1}},
	}, 1, 1)
	require.NoError(t, d.JobAdded(job))
	d.JobCompleted("j1")

	queues := d.GetQueues()
	require.Len(t, queues, 1)
	assert.Empty(t, queues[0].Jobs)
	assert.Equal(t, 0, queues[0].ActiveUsers())
}

func TestGetJobsOrdersRunningBeforeWaiting(t *testing.T) {
	cfg := 100.0
	d, _ := newTestDispatcher(t, []QueueConfig{{Name: "default", CapacityPercent: &cfg}})

	waiting := domain.NewJob("waiting", domain.JobDefinition{
		Queue: "default", Requestor: "bob",
		Tasks: []domain.TaskDefinition{{TaskID: "m1", Kind: domain.Map, SlotsRequired: 1}},
	}, 1, 1)
	waiting.Status = domain.NotStarted
	require.NoError(t, d.JobAdded(waiting))
	waiting.Status = domain.NotStarted // JobAdded forces Running; restore for this test

	running := domain.NewJob("running", domain.JobDefinition{
		Queue: "default", Requestor: "alice",
		Tasks: []domain.TaskDefinition{{TaskID: "m2", Kind: domain.Map, SlotsRequired: 1}},
	}, 1, 1)
	require.NoError(t, d.JobAdded(running))

	jobs := d.GetJobs("default")
	require.Len(t, jobs, 2)
	assert.Equal(t, "running", jobs[0].ID)
	assert.Equal(t, "waiting", jobs[1].ID)
}

func TestStartBeginsInitPollerAndTerminateStopsIt(t *testing.T) {
	cfg := 100.0
	d, _ := newTestDispatcher(t, []QueueConfig{{Name: "default", CapacityPercent: &cfg}})

	d.mu.Lock()
	assert.True(t, d.started)
	assert.NotNil(t, d.pollerTicker)
	assert.NotNil(t, d.pollerDone)
	d.mu.Unlock()

	d.Terminate()

	d.mu.Lock()
	assert.False(t, d.started)
	assert.Nil(t, d.pollerTicker)
	assert.Nil(t, d.pollerDone)
	d.mu.Unlock()
}

func TestPromoteWaitingJobsRunsNotStartedJobs(t *testing.T) {
	cfg := 100.0
	d, _ := newTestDispatcher(t, []QueueConfig{{Name: "default", CapacityPercent: &cfg}})

	job := domain.NewJob("waiting", domain.JobDefinition{
		Queue: "default", Requestor: "bob",
		Tasks: []domain.TaskDefinition{{TaskID: "m1", Kind: domain.Map, SlotsRequired: 1}},
	}, 1, 1)
	require.NoError(t, d.JobAdded(job))
	job.Status = domain.NotStarted

	d.promoteWaitingJobs()

	assert.Equal(t, domain.Running, job.Status)
}

func TestAssignTasksHonorsHighMemoryReservationAcrossHeartbeats(t *testing.T) {
	cfg := 100.0
	d, _ := newTestDispatcher(t, []QueueConfig{{Name: "default", CapacityPercent: &cfg}})

	job := domain.NewJob("j1", domain.JobDefinition{
		Queue: "default", Requestor: "alice",
		Tasks: []domain.TaskDefinition{{TaskID: "m1", Kind: domain.Map, SlotsRequired: 2}},
	}, 2, 1)
	require.NoError(t, d.JobAdded(job))

	// Heartbeat 1: only 1 of the worker's 2 map slots is free. The job
	// needs 2, so this must reserve the free slot rather than give up on
	// the job for good.
	worker := &domain.Worker{ID: "w1", Host: "h1", MaxMapSlots: 2, OccupiedMapSlots: 1}
	tasks := d.AssignTasks(worker)
	assert.Empty(t, tasks)
	reservation := worker.GetReservation(domain.Map)
	require.NotNil(t, reservation, "high-memory job must be reserved, not dropped")
	assert.Equal(t, 1, reservation.SlotsReserved)

	// Heartbeat 2: the other task finished, freeing both slots. The
	// reservation must now be honored since 2 slots satisfy SlotsPerMap=2.
	worker.OccupiedMapSlots = 0
	tasks = d.AssignTasks(worker)
	require.Len(t, tasks, 1, "2 free slots must satisfy the reserved job's SlotsPerMap=2")
	assert.Equal(t, "j1", tasks[0].JobID)
	assert.Nil(t, worker.GetReservation(domain.Map), "reservation released once honored")
}

func TestQueuesSliceIsStableInConfigOrder(t *testing.T) {
	d, _ := newTestDispatcher(t, []QueueConfig{
		{Name: "c"}, {Name: "a"}, {Name: "b"},
	})
	want := []string{"c", "a", "b"}
	for attempt := 0; attempt < 5; attempt++ {
		queues := d.queuesSlice()
		require.Len(t, queues, 3)
		for i, q := range queues {
			assert.Equal(t, want[i], q.Config.Name)
		}
	}
}

func TestRecomputeCapacitiesSplitsResidualEvenly(t *testing.T) {
	configured := 20.0
	d, _ := newTestDispatcher(t, []QueueConfig{
		{Name: "configured", CapacityPercent: &configured},
		{Name: "r1"},
		{Name: "r2"},
	})
	worker := &domain.Worker{ID: "w1", Host: "h1"}
	d.AssignTasks(worker) // forces recomputeCapacities via the cluster capacity read

	queues := map[string]*Queue{}
	for _, q := range d.GetQueues() {
		queues[q.Config.Name] = q
	}
	assert.Equal(t, 2, queues["configured"].kind(domain.Map).capacitySlots) // floor(20*10/100)
	assert.Equal(t, 4, queues["r1"].kind(domain.Map).capacitySlots)         // floor(40*10/100)
	assert.Equal(t, 4, queues["r2"].kind(domain.Map).capacitySlots)
}
