package types

import "time"

// Sprint statuses accepted by the API and enforced by the schema.
const (
	SprintStatusFuture    = "future"
	SprintStatusActive    = "active"
	SprintStatusCompleted = "completed"
)

// Sprint is a time-boxed iteration within a project. Deleting a sprint
// detaches its issues (sprint_id set to null) rather than deleting them.
type Sprint struct {
	ID         int        `json:"sprint_id" db:"id"`
	ProjectID  int        `json:"project_id" db:"project_id"`
	SprintName string     `json:"sprint_name" db:"sprint_name"`
	Goal       string     `json:"goal" db:"goal"`
	StartDate  *time.Time `json:"start_date" db:"start_date"`
	EndDate    *time.Time `json:"end_date" db:"end_date"`
	Status     string     `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// SprintPatch is a partial update. project_id is not movable.
type SprintPatch struct {
	SprintName *string    `json:"sprint_name"`
	Goal       *string    `json:"goal"`
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	Status     *string    `json:"status"`
}
