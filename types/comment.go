package types

import "time"

// Comment is a discussion entry on an issue. Creating or editing one
// advances the parent issue's updated_date; deleting one does not.
type Comment struct {
	ID          int        `json:"comment_id" db:"id"`
	IssueID     int        `json:"issue_id" db:"issue_id"`
	UserID      *int       `json:"user_id" db:"user_id"`
	CommentText string     `json:"comment_text" db:"comment_text"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at" db:"updated_at"`

	// AuthorUsername is joined from the users table.
	AuthorUsername string `json:"author_username,omitempty" db:"author_username"`
}
