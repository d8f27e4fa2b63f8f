package types

import "time"

// Issue types, priorities, and statuses enforced by the schema.
const (
	IssueTypeTask  = "Task"
	IssueTypeBug   = "Bug"
	IssueTypeStory = "Story"
	IssueTypeEpic  = "Epic"

	PriorityHighest = "Highest"
	PriorityHigh    = "High"
	PriorityMedium  = "Medium"
	PriorityLow     = "Low"
	PriorityLowest  = "Lowest"

	StatusToDo       = "To Do"
	StatusInProgress = "In Progress"
	StatusInReview   = "In Review"
	StatusDone       = "Done"
	StatusBlocked    = "Blocked"
)

// Issue represents a unit of work inside a project.
type Issue struct {
	// ID is the unique identifier of the issue.
	ID int `json:"issue_id" db:"id"`

	// ProjectID is the project this issue belongs to. Every issue must
	// reference an existing project.
	ProjectID int `json:"project_id" db:"project_id"`

	// SprintID optionally places the issue in a sprint. Nil means the
	// issue sits in the backlog.
	SprintID *int `json:"sprint_id" db:"sprint_id"`

	// Description is the main text of the issue; never empty.
	Description string `json:"description" db:"description"`

	// IssueType is one of Task, Bug, Story, Epic.
	IssueType string `json:"issue_type" db:"issue_type"`

	// Priority is one of Highest, High, Medium, Low, Lowest.
	Priority string `json:"priority" db:"priority"`

	// Status is the board column: To Do, In Progress, In Review, Done,
	// Blocked. Transitions are validated by the issue service.
	Status string `json:"status" db:"status"`

	// ReporterID is set at creation to the creating user.
	ReporterID *int `json:"reporter_id" db:"reporter_id"`

	// AssigneeID is the user currently assigned, if any.
	AssigneeID *int `json:"assignee_id" db:"assignee_id"`

	// StoryPoints is an optional non-negative estimate.
	StoryPoints *int `json:"story_points" db:"story_points"`

	// DueDate is an optional deadline.
	DueDate *time.Time `json:"due_date" db:"due_date"`

	// ParentIssueID links a subtask to its parent issue.
	ParentIssueID *int `json:"parent_issue_id" db:"parent_issue_id"`

	// CreatedDate is set at insert time. UpdatedDate advances whenever
	// the issue changes or a comment/worklog is added to it.
	CreatedDate time.Time `json:"created_date" db:"created_date"`
	UpdatedDate time.Time `json:"updated_date" db:"updated_date"`

	// Joined display fields, populated by repository queries.
	ProjectKey       string `json:"project_key,omitempty" db:"project_key"`
	SprintName       string `json:"sprint_name,omitempty" db:"sprint_name"`
	ReporterUsername string `json:"reporter_username,omitempty" db:"reporter_username"`
	AssigneeUsername string `json:"assignee_username,omitempty" db:"assignee_username"`
}

// IssuePatch is a partial general-purpose update. Status, assignee, and
// sprint have dedicated operations and are excluded from the allow-list.
type IssuePatch struct {
	Description   *string    `json:"description"`
	IssueType     *string    `json:"issue_type"`
	Priority      *string    `json:"priority"`
	DueDate       *time.Time `json:"due_date"`
	StoryPoints   *int       `json:"story_points"`
	ParentIssueID *int       `json:"parent_issue_id"`
}

// IssueDetails is the full view of a single issue: the issue row plus
// all related comments, worklogs, attachments, and the live total of
// hours logged (never stored, always summed).
type IssueDetails struct {
	Issue
	Comments         []Comment    `json:"comments"`
	Worklogs         []Worklog    `json:"worklogs"`
	Attachments      []Attachment `json:"attachments"`
	TotalHoursLogged float64      `json:"total_hours_logged"`
}
