// Package server provides the main job scheduling interface.
package server

import (
	log "github.com/sirupsen/logrus"

	"github.com/capshare/scheduler/common"
	"github.com/capshare/scheduler/scheduler/domain"
)

// Scheduler is the inbound interface a JobTracker drives (§6): submit
// and kill jobs, manage worker availability, and throttle the overall
// slot budget.
type Scheduler interface {
	ScheduleJob(jobDef domain.JobDefinition) (string, error)

	KillJob(jobID string) error

	OfflineWorker(req domain.OfflineWorkerReq) error

	ReinstateWorker(req domain.ReinstateWorkerReq) error

	SetSchedulerStatus(maxTasks int) error

	GetSchedulerStatus() (int, int)
}

// capacityScheduler wires the Dispatcher and ClusterStatus together
// behind the Scheduler interface, assigning every incoming job a slot
// cost from the cluster's configured per-task memory sizing.
type capacityScheduler struct {
	dispatcher *Dispatcher
	cluster    *ClusterStatus

	slotsPerMap    int
	slotsPerReduce int
}

// NewScheduler builds a Scheduler over an already-started Dispatcher
// and ClusterStatus. slotsPerMap/slotsPerReduce implement §4.I's
// "compute slotsPerMap/slotsPerReduce from memory requirements" for
// every job admitted through ScheduleJob.
func NewScheduler(dispatcher *Dispatcher, cluster *ClusterStatus, slotsPerMap, slotsPerReduce int) Scheduler {
	if slotsPerMap <= 0 {
		slotsPerMap = 1
	}
	if slotsPerReduce <= 0 {
		slotsPerReduce = 1
	}
	return &capacityScheduler{
		dispatcher:     dispatcher,
		cluster:        cluster,
		slotsPerMap:    slotsPerMap,
		slotsPerReduce: slotsPerReduce,
	}
}

func (s *capacityScheduler) ScheduleJob(jobDef domain.JobDefinition) (string, error) {
	if err := domain.ValidateJob(jobDef); err != nil {
		return "", err
	}
	jobID := common.GenUUID()

	job := domain.NewJob(jobID, jobDef, s.slotsPerMap, s.slotsPerReduce)
	if err := s.dispatcher.JobAdded(job); err != nil {
		return "", err
	}
	log.WithFields(log.Fields{"jobID": jobID, "queue": jobDef.Queue, "requestor": jobDef.Requestor}).Info("job scheduled")
	return jobID, nil
}

func (s *capacityScheduler) KillJob(jobID string) error {
	s.dispatcher.JobCompleted(jobID)
	log.WithFields(log.Fields{"jobID": jobID}).Info("job killed")
	return nil
}

func (s *capacityScheduler) OfflineWorker(req domain.OfflineWorkerReq) error {
	return s.cluster.OfflineWorker(req)
}

func (s *capacityScheduler) ReinstateWorker(req domain.ReinstateWorkerReq) error {
	return s.cluster.ReinstateWorker(req)
}

// SetSchedulerStatus sets the dispatcher-wide throttle: maxTasks < 0
// means unlimited, matching the teacher's SetSchedulerStatus contract.
func (s *capacityScheduler) SetSchedulerStatus(maxTasks int) error {
	s.dispatcher.SetThrottle(maxTasks)
	return s.dispatcher.PersistSettings()
}

// GetSchedulerStatus returns (numRunningTasks, throttle): the first
// value is a coarse count of currently running tasks across every
// queue, the second is the configured throttle.
func (s *capacityScheduler) GetSchedulerStatus() (int, int) {
	running := 0
	for _, q := range s.dispatcher.GetQueues() {
		for _, j := range q.Jobs {
			running += j.RunningTasks(domain.Map) + j.RunningTasks(domain.Reduce)
		}
	}
	return running, s.dispatcher.GetThrottle()
}
