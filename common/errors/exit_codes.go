package errors

type ExitCode int

const (
	// ConfigValidationFailureExitCode is returned when Config.Validate
	// rejects the loaded config (capacity oversubscription, missing queues, ...).
	ConfigValidationFailureExitCode ExitCode = 64

	// ConfigLoadFailureExitCode is returned when viper cannot read or parse
	// the config file at all.
	ConfigLoadFailureExitCode = 65

	// SchedulerStartFailureExitCode is returned when building the
	// dispatcher or its Start() fails after config validation passes.
	SchedulerStartFailureExitCode = 70
)
