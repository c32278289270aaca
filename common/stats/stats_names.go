package stats

/*
This file names the scheduler's metrics; no package records a stat under
these names at present. As new metrics are
added please follow this pattern: one named constant per stat, with a short
comment describing what it measures.
*/
const (
	/************************* Dispatcher metrics **************************/
	/*
		number of heartbeats processed by assignTasks
	*/
	SchedHeartbeatsCounter = "schedHeartbeatsCounter"

	/*
		wall time spent inside a single assignTasks call
	*/
	SchedHeartbeatLatency_ms = "schedHeartbeatLatency_ms"

	/*
		number of map tasks dispatched across all heartbeats
	*/
	SchedMapTasksDispatchedCounter = "schedMapTasksDispatchedCounter"

	/*
		number of off-switch (non-local) map tasks dispatched
	*/
	SchedOffSwitchMapTasksDispatchedCounter = "schedOffSwitchMapTasksDispatchedCounter"

	/*
		number of reduce tasks dispatched across all heartbeats
	*/
	SchedReduceTasksDispatchedCounter = "schedReduceTasksDispatchedCounter"

	/*
		number of heartbeats where the map or reduce scheduler returned
		TASK_FAILING_MEMORY_REQUIREMENT
	*/
	SchedMemoryBlockedCounter = "schedMemoryBlockedCounter"

	/*
		number of times a scheduler invariant violation was logged and the
		current heartbeat aborted
	*/
	SchedInvariantViolationCounter = "schedInvariantViolationCounter"

	/*
		current value of the scheduler-wide slot throttle (-1 unlimited, 0 closed, >0 capped)
	*/
	SchedThrottleGauge = "schedThrottleGauge"

	/************************* Queue metrics **************************/
	/*
		per-queue, per-kind fill ratio (occupied/capacity) at the moment it was consulted
	*/
	QueueFillRatioGauge = "queueFillRatioGauge"

	/*
		per-queue, per-kind number of occupied slots
	*/
	QueueOccupiedSlotsGauge = "queueOccupiedSlotsGauge"

	/*
		per-queue count of distinct users with at least one queued job
	*/
	QueueActiveUsersGauge = "queueActiveUsersGauge"

	/*
		per-queue count of waiting (not yet running) jobs
	*/
	QueueWaitingJobsGauge = "queueWaitingJobsGauge"

	/*
		number of times a user was skipped in pass 1 of getTaskFromQueue for being over their user limit
	*/
	QueueUserLimitSkipCounter = "queueUserLimitSkipCounter"

	/************************* Reservation metrics **************************/
	/*
		number of worker slots currently held by reservations, summed across all workers
	*/
	ReservationActiveGauge = "reservationActiveGauge"

	/*
		number of reservations created
	*/
	ReservationCreatedCounter = "reservationCreatedCounter"

	/*
		number of reservations released (for any reason)
	*/
	ReservationReleasedCounter = "reservationReleasedCounter"

	/************************* Lifecycle metrics **************************/
	/*
		number of jobs currently tracked by jobAdded/jobCompleted bookkeeping
	*/
	LifecycleActiveJobsGauge = "lifecycleActiveJobsGauge"

	/*
		uptime of the scheduler process since start(), in milliseconds
	*/
	SchedUptimeGauge_ms = "schedUptimeGauge_ms"

	/*
		recorded once at process start; spikes to 1 then decays back to 0, used to
		detect restarts in a dashboard without a separate deploy event stream
	*/
	SchedServerStartedGauge = "schedServerStartedGauge"
)
