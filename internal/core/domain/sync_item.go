package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// OperationType identifies the kind of client mutation queued for replay.
type OperationType string

const (
	OpDeadlineUpdate OperationType = "deadline-update"
	OpContextUpdate  OperationType = "context-update"
	OpHabitCheckin   OperationType = "habit-checkin"
	OpGoalCheckin    OperationType = "goal-checkin"
	OpScheduleUpdate OperationType = "schedule-update"
)

// SyncItemStatus is the lifecycle state of a queued mutation.
type SyncItemStatus string

const (
	SyncItemStatusPending   SyncItemStatus = "pending"
	SyncItemStatusCompleted SyncItemStatus = "completed"
	SyncItemStatusFailed    SyncItemStatus = "failed"
)

// SyncItem is a durable client-originated mutation waiting to be replayed
// against the domain stores. Completed and failed items are terminal.
type SyncItem struct {
	ID            string          `json:"id"`
	OperationType OperationType   `json:"operation_type"`
	Payload       json.RawMessage `json:"payload"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
	Status        SyncItemStatus  `json:"status"`
	LastError     string          `json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TempIDPrefix marks client-generated ids for records that do not exist on
// the server yet. An item carrying such an id is a create, not an update.
const TempIDPrefix = "temp-"

// IsTempID reports whether id was generated client-side before commit.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}
