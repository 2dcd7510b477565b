package fallback

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/gotestctl/internal/target"
)

// TriggerKind tags the trigger variant.
type TriggerKind string

const (
	TriggerAllFailed              TriggerKind = "all_failed"
	TriggerErrorThresholdExceeded TriggerKind = "error_threshold_exceeded"
	TriggerTimeoutExceeded        TriggerKind = "timeout_exceeded"
	TriggerFirstErrorDetected     TriggerKind = "first_error_detected"
)

// Trigger is the signal that caused a fallback to be requested.
type Trigger interface {
	Kind() TriggerKind
	String() string

	isTrigger()
}

// AllFailed fires when every executed target failed.
type AllFailed struct {
	TotalPackages int `json:"total_packages"`
}

// ErrorThresholdExceeded fires when the failure rate passed the threshold.
type ErrorThresholdExceeded struct {
	ErrorRate float64 `json:"error_rate"`
	Threshold float64 `json:"threshold"`
}

// TimeoutExceeded fires when a unit ran out of time.
type TimeoutExceeded struct {
	Duration time.Duration `json:"duration"`
	Limit    time.Duration `json:"limit"`
}

// FirstErrorDetected fires on the first failing target.
type FirstErrorDetected struct {
	Target target.Target `json:"target"`
}

func (AllFailed) Kind() TriggerKind              { return TriggerAllFailed }
func (ErrorThresholdExceeded) Kind() TriggerKind { return TriggerErrorThresholdExceeded }
func (TimeoutExceeded) Kind() TriggerKind        { return TriggerTimeoutExceeded }
func (FirstErrorDetected) Kind() TriggerKind     { return TriggerFirstErrorDetected }

func (AllFailed) isTrigger()              {}
func (ErrorThresholdExceeded) isTrigger() {}
func (TimeoutExceeded) isTrigger()        {}
func (FirstErrorDetected) isTrigger()     {}

func (t AllFailed) String() string {
	return fmt.Sprintf("all %d targets failed", t.TotalPackages)
}

func (t ErrorThresholdExceeded) String() string {
	return fmt.Sprintf("error rate %.0f%% exceeded %.0f%%", t.ErrorRate*100, t.Threshold*100)
}

func (t TimeoutExceeded) String() string {
	if t.Limit <= 0 {
		return fmt.Sprintf("timed out after %s", t.Duration)
	}
	return fmt.Sprintf("timed out after %s (limit %s)", t.Duration, t.Limit)
}

func (t FirstErrorDetected) String() string {
	if t.Target == nil {
		return "first error detected"
	}
	return fmt.Sprintf("first error detected in %s", t.Target)
}
