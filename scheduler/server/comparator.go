package server

import (
	"sort"

	"github.com/capshare/scheduler/scheduler/domain"
)

// sortQueuesByFillRatio implements §4.C: queues consulted in ascending
// order of occupied/capacity for the given kind, ties broken by a
// stable sort that preserves the caller's original ordering.
func sortQueuesByFillRatio(queues []*Queue, kind domain.TaskKind) []*Queue {
	sorted := make([]*Queue, len(queues))
	copy(sorted, queues)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].kind(kind).fillRatio() < sorted[j].kind(kind).fillRatio()
	})
	return sorted
}
