package enums

import "fmt"

// OutboxStatus is the lifecycle state of an outbox event.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxProcessing OutboxStatus = "PROCESSING"
	OutboxDone       OutboxStatus = "DONE"
	OutboxFailed     OutboxStatus = "FAILED"
)

var validOutboxStatuses = []OutboxStatus{
	OutboxPending,
	OutboxProcessing,
	OutboxDone,
	OutboxFailed,
}

// IsValid reports whether the value is a known outbox status.
func (s OutboxStatus) IsValid() bool {
	for _, candidate := range validOutboxStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends the event's lifecycle. FAILED is
// terminal; a producer must re-enqueue if the work should run again.
func (s OutboxStatus) Terminal() bool {
	return s == OutboxDone || s == OutboxFailed
}

// ParseOutboxStatus converts raw input into OutboxStatus.
func ParseOutboxStatus(value string) (OutboxStatus, error) {
	for _, candidate := range validOutboxStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox status %q", value)
}
