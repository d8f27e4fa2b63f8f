package types

import "time"

// Worklog is a time entry against an issue. HoursLogged is always
// positive and rounded to two decimals before it reaches the store.
type Worklog struct {
	ID          int       `json:"worklog_id" db:"id"`
	IssueID     int       `json:"issue_id" db:"issue_id"`
	UserID      *int      `json:"user_id" db:"user_id"`
	HoursLogged float64   `json:"hours_logged" db:"hours_logged"`
	WorkDate    time.Time `json:"work_date" db:"work_date"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	// LoggerUsername is joined from the users table.
	LoggerUsername string `json:"logger_username,omitempty" db:"logger_username"`
}

// WorklogPatch is a partial update for a worklog entry.
type WorklogPatch struct {
	HoursLogged *float64   `json:"hours_logged"`
	WorkDate    *time.Time `json:"work_date"`
	Description *string    `json:"description"`
}

// UserHours is one row of the per-project hours-by-user report.
type UserHours struct {
	UserID     int     `json:"user_id" db:"user_id"`
	Username   string  `json:"username" db:"username"`
	TotalHours float64 `json:"total_user_hours" db:"total_user_hours"`
}
