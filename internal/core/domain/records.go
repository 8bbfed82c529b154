package domain

import "time"

// Deadline is an upcoming commitment (assignment, bill, review) tracked for
// the user.
type Deadline struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	DueAt     time.Time `json:"due_at"`
	Completed bool      `json:"completed"`
	Notes     string    `json:"notes,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScheduleEntry is one block on the user's calendar.
type ScheduleEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Location  string    `json:"location,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContextEntry is a free-form journal/context note.
type ContextEntry struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HabitCheckin records one completion of a recurring habit on a given day.
// A habit can be checked in at most once per day, so (HabitID, Date) is the
// natural key and re-applying a checkin is a no-op.
type HabitCheckin struct {
	HabitID string `json:"habit_id"`
	Date    string `json:"date"` // YYYY-MM-DD
	Done    bool   `json:"done"`
	Note    string `json:"note,omitempty"`
}

// GoalCheckin records the user's reported progress on a goal for a day.
// Progress is an absolute value, not a delta, so replays are idempotent.
type GoalCheckin struct {
	GoalID   string  `json:"goal_id"`
	Date     string  `json:"date"` // YYYY-MM-DD
	Progress float64 `json:"progress"`
	Note     string  `json:"note,omitempty"`
}
