package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capshare/scheduler/scheduler/domain"
)

func TestOverUserLimitByUserCount(t *testing.T) {
	q := NewQueue(QueueConfig{Name: "default", MinimumUserLimitPercent: 0})
	q.kind(domain.Map).capacitySlots = 10
	q.numJobsByUser["alice"] = 1
	q.numJobsByUser["bob"] = 1

	alice := &domain.Job{Def: domain.JobDefinition{Requestor: "alice"}, SlotsPerMap: 1}
	q.kind(domain.Map).numSlotsOccupiedByUser["alice"] = 5

	// 2 active users -> userLimit = ceil(10/2) = 5; alice already at 5.
	assert.True(t, overUserLimit(q, alice, domain.Map))

	q.kind(domain.Map).numSlotsOccupiedByUser["alice"] = 4
	assert.False(t, overUserLimit(q, alice, domain.Map))
}

func TestOverUserLimitByMinimumPercentFloor(t *testing.T) {
	q := NewQueue(QueueConfig{Name: "default", MinimumUserLimitPercent: 80})
	q.kind(domain.Map).capacitySlots = 10
	q.numJobsByUser["alice"] = 1
	q.numJobsByUser["bob"] = 1
	q.numJobsByUser["carol"] = 1

	alice := &domain.Job{Def: domain.JobDefinition{Requestor: "alice"}, SlotsPerMap: 1}
	// byUserCount = ceil(10/3) = 4; byMinPercent = ceil(80*10/100) = 8.
	// The floor should win: alice can occupy up to 8, not just 4.
	q.kind(domain.Map).numSlotsOccupiedByUser["alice"] = 6
	assert.False(t, overUserLimit(q, alice, domain.Map))

	q.kind(domain.Map).numSlotsOccupiedByUser["alice"] = 8
	assert.True(t, overUserLimit(q, alice, domain.Map))
}

func TestOverUserLimitGrowsCapacityWhenQueueFull(t *testing.T) {
	q := NewQueue(QueueConfig{Name: "default"})
	q.kind(domain.Map).capacitySlots = 10
	q.kind(domain.Map).numSlotsOccupied = 10
	q.numJobsByUser["alice"] = 1

	alice := &domain.Job{Def: domain.JobDefinition{Requestor: "alice"}, SlotsPerMap: 1}
	q.kind(domain.Map).numSlotsOccupiedByUser["alice"] = 10
	// currentCapacity grows to numSlotsOccupied + slotsPerTask = 11 since queue is full;
	// with 1 active user, userLimit = 11, so alice at 10 is not yet over.
	assert.False(t, overUserLimit(q, alice, domain.Map))
}
