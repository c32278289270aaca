package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateJob(t *testing.T) {
	tests := []struct {
		name    string
		jd      JobDefinition
		wantErr bool
	}{
		{"valid", JobDefinition{Queue: "q1", Tasks: []TaskDefinition{{TaskID: "t1", SlotsRequired: 1}}}, false},
		{"no queue", JobDefinition{Tasks: []TaskDefinition{{TaskID: "t1", SlotsRequired: 1}}}, true},
		{"no tasks", JobDefinition{Queue: "q1"}, true},
		{"empty task id", JobDefinition{Queue: "q1", Tasks: []TaskDefinition{{SlotsRequired: 1}}}, true},
		{"zero slots", JobDefinition{Queue: "q1", Tasks: []TaskDefinition{{TaskID: "t1"}}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateJob(tc.jd)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJobSlotsAndPending(t *testing.T) {
	j := &Job{
		Def:            JobDefinition{Queue: "q1", Requestor: "alice"},
		Status:         Running,
		SlotsPerMap:    2,
		SlotsPerReduce: 1,
		PendingMaps:    3,
		RunningMaps:    1,
	}
	assert.Equal(t, 2, j.SlotsPerTask(Map))
	assert.Equal(t, 1, j.SlotsPerTask(Reduce))
	assert.Equal(t, 3, j.PendingTasks(Map))
	assert.Equal(t, 1, j.RunningTasks(Map))
	assert.True(t, j.Runnable())

	j.PendingMaps = 0
	j.PendingReduces = 0
	assert.False(t, j.Runnable())
}

func TestTaskLookupResultTags(t *testing.T) {
	job := &Job{ID: "j1"}
	task := Task{JobID: "j1", Def: TaskDefinition{TaskID: "t1"}}

	noTask := NoTask()
	assert.Equal(t, NoTaskFound, noTask.Tag)
	assert.False(t, noTask.Found())

	mem := MemoryFailure()
	assert.Equal(t, TaskFailingMemoryRequirement, mem.Tag)
	assert.False(t, mem.Found())

	local := LocalFound(task, job)
	assert.Equal(t, LocalTaskFound, local.Tag)
	assert.True(t, local.Found())
	assert.False(t, local.Task.OffSwitch)

	offSwitch := OffSwitchFound(task, job)
	assert.Equal(t, OffSwitchTaskFound, offSwitch.Tag)
	assert.True(t, offSwitch.Found())
	assert.True(t, offSwitch.Task.OffSwitch)
}

func TestNewJobObtainTasks(t *testing.T) {
	def := JobDefinition{
		Queue:     "q1",
		Requestor: "alice",
		Tasks: []TaskDefinition{
			{TaskID: "m1", Kind: Map, SlotsRequired: 1, PreferredHost: "host1"},
			{TaskID: "m2", Kind: Map, SlotsRequired: 1},
			{TaskID: "r1", Kind: Reduce, SlotsRequired: 1},
		},
	}
	j := NewJob("j1", def, 1, 1)
	assert.Equal(t, 2, j.PendingMaps)
	assert.Equal(t, 1, j.PendingReduces)

	_, ok := j.ObtainNewLocalMapTask("host2")
	assert.False(t, ok, "no pending map task prefers host2")

	task, ok := j.ObtainNewLocalMapTask("host1")
	assert.True(t, ok)
	assert.Equal(t, "m1", task.TaskID)
	assert.Equal(t, 1, j.PendingMaps)
	assert.Equal(t, 1, j.RunningMaps)

	task, ok = j.ObtainNewNonLocalMapTask()
	assert.True(t, ok)
	assert.Equal(t, "m2", task.TaskID)
	assert.Equal(t, 0, j.PendingMaps)

	_, ok = j.ObtainNewNonLocalMapTask()
	assert.False(t, ok)

	rtask, ok := j.ObtainNewReduceTask()
	assert.True(t, ok)
	assert.Equal(t, "r1", rtask.TaskID)
	assert.Equal(t, 0, j.PendingReduces)
	assert.Equal(t, 1, j.RunningReduces)

	assert.False(t, j.HasSpeculativeTask(&Worker{ID: "w1"}))
}

func TestWorkerAvailableSlotsIgnoresOwnReservation(t *testing.T) {
	w := &Worker{ID: "w1", MaxMapSlots: 4, OccupiedMapSlots: 1}
	assert.Equal(t, 3, w.AvailableSlots(Map))

	job := &Job{ID: "j1"}
	w.ReserveSlots(Map, job, 2)
	assert.Equal(t, 3, w.AvailableSlots(Map), "a worker's own reservation is still available to the reserved job")
	assert.Equal(t, job, w.GetReservation(Map).Job)

	w.UnreserveSlots(Map)
	assert.Nil(t, w.GetReservation(Map))
	assert.Equal(t, 3, w.AvailableSlots(Map))
}
