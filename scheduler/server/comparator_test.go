package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capshare/scheduler/scheduler/domain"
)

func TestSortQueuesByFillRatio(t *testing.T) {
	full := NewQueue(QueueConfig{Name: "full"})
	full.kind(domain.Map).capacitySlots = 10
	full.kind(domain.Map).numSlotsOccupied = 10

	empty := NewQueue(QueueConfig{Name: "empty"})
	empty.kind(domain.Map).capacitySlots = 10
	empty.kind(domain.Map).numSlotsOccupied = 0

	half := NewQueue(QueueConfig{Name: "half"})
	half.kind(domain.Map).capacitySlots = 10
	half.kind(domain.Map).numSlotsOccupied = 5

	sorted := sortQueuesByFillRatio([]*Queue{full, half, empty}, domain.Map)
	assert.Equal(t, []string{"empty", "half", "full"}, names(sorted))
}

func TestSortQueuesByFillRatioStableOnTies(t *testing.T) {
	a := NewQueue(QueueConfig{Name: "a"})
	b := NewQueue(QueueConfig{Name: "b"})
	sorted := sortQueuesByFillRatio([]*Queue{a, b}, domain.Map)
	assert.Equal(t, []string{"a", "b"}, names(sorted))
}

func names(queues []*Queue) []string {
	out := make([]string, len(queues))
	for i, q := range queues {
		out[i] = q.Config.Name
	}
	return out
}
