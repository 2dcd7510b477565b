package fallback

import "errors"

// ErrInvalidConfig indicates an invalid fallback configuration.
var ErrInvalidConfig = errors.New("invalid fallback config")

// Refusal reasons reported in Result.Reason when a fallback is not executed.
const (
	ReasonMaxRetriesExceeded = "max retries exceeded"
	ReasonNotInitialized     = "coordinator not initialized"
)

// ReasonDisabled is logged when a requested fallback is skipped because
// Config.Enabled is false.
const ReasonDisabled = "fallback disabled"

