package types

import "time"

// Project statuses accepted by the API and enforced by the schema.
const (
	ProjectStatusPlanning  = "planning"
	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"
	ProjectStatusArchived  = "archived"
)

// Project is the top of the resource chain: sprints and issues belong to
// a project, and the project owner is the sole non-admin authority over
// everything beneath it.
type Project struct {
	ID          int        `json:"project_id" db:"id"`
	ProjectKey  string     `json:"project_key" db:"project_key"`
	ProjectName string     `json:"project_name" db:"project_name"`
	Description string     `json:"description" db:"description"`
	StartDate   *time.Time `json:"start_date" db:"start_date"`
	EndDate     *time.Time `json:"end_date" db:"end_date"`
	Status      string     `json:"status" db:"status"`

	// OwnerID references the owning user. Zero when the owner row was
	// removed (FK is SET NULL).
	OwnerID int `json:"owner_id" db:"owner_id"`

	// OwnerUsername is joined from the users table for list/detail views.
	OwnerUsername string `json:"owner_username,omitempty" db:"owner_username"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectPatch is a partial update. Nil fields are left untouched; the
// field set is the allow-list (project_key is deliberately immutable).
type ProjectPatch struct {
	ProjectName *string    `json:"project_name"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Status      *string    `json:"status"`
	OwnerID     *int       `json:"owner_id"`
}
