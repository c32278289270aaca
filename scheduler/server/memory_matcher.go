package server

import (
	"github.com/capshare/scheduler/scheduler/domain"
)

// memoryMatches implements §4.B. Worker memory headroom isn't modeled as
// a separate resource here — per §3, a job's SlotsPerMap/SlotsPerReduce
// already IS the memory requirement translated into slot units by the
// Lifecycle Hooks (§4.I) at job-admission time, so "enough memory
// headroom for one task" and "enough free slots for one task" are the
// same check in this port.
// memoryAware is accepted for parity with the original two-mode config
// knob but does not branch here: this port's slot/memory equivalence
// (DESIGN.md, memory_matcher.go section) means both modes reduce to the same headroom check
// rather than one of them being a distinct, separately-maintained path.
func memoryMatches(job *domain.Job, kind domain.TaskKind, availableSlots int, memoryAware bool) bool {
	need := job.SlotsPerTask(kind)
	if need <= 0 {
		return false
	}
	return availableSlots >= need
}
