package server

import (
	"math"

	"github.com/capshare/scheduler/scheduler/domain"
)

// overUserLimit implements §4.D: a job is over its user's dynamic share
// of the queue's current capacity when that user already occupies at
// least userLimit slots of this kind.
func overUserLimit(q *Queue, job *domain.Job, kind domain.TaskKind) bool {
	ks := q.kind(kind)
	slotsPerTask := job.SlotsPerTask(kind)

	currentCapacity := ks.capacitySlots
	if ks.numSlotsOccupied >= ks.capacitySlots {
		currentCapacity = ks.numSlotsOccupied + slotsPerTask
	}

	activeUsers := q.ActiveUsers()
	if activeUsers == 0 {
		activeUsers = 1
	}

	byUserCount := int(math.Ceil(float64(currentCapacity) / float64(activeUsers)))
	byMinPercent := int(math.Ceil(float64(q.Config.MinimumUserLimitPercent) * float64(currentCapacity) / 100.0))

	userLimit := byUserCount
	if byMinPercent > userLimit {
		userLimit = byMinPercent
	}

	return ks.numSlotsOccupiedByUser[job.User()] >= userLimit
}
