package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sprintdesk/apiserver/types"
)

// IssueRepository handles persistence for issues.
type IssueRepository struct {
	db *sql.DB
}

func NewIssueRepository(db *sql.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

const issueColumns = `
	i.id, i.project_id, i.sprint_id, i.description, i.issue_type,
	i.priority, i.status, i.reporter_id, i.assignee_id, i.story_points,
	i.due_date, i.parent_issue_id, i.created_date, i.updated_date,
	p.project_key,
	COALESCE(s.sprint_name, ''),
	COALESCE(reporter.username, ''),
	COALESCE(assignee.username, '')`

const issueJoins = `
	FROM issues i
	JOIN projects p ON i.project_id = p.id
	LEFT JOIN sprints s ON i.sprint_id = s.id
	LEFT JOIN users reporter ON i.reporter_id = reporter.id
	LEFT JOIN users assignee ON i.assignee_id = assignee.id`

func scanIssue(row interface{ Scan(...any) error }) (types.Issue, error) {
	var issue types.Issue
	err := row.Scan(
		&issue.ID,
		&issue.ProjectID,
		&issue.SprintID,
		&issue.Description,
		&issue.IssueType,
		&issue.Priority,
		&issue.Status,
		&issue.ReporterID,
		&issue.AssigneeID,
		&issue.StoryPoints,
		&issue.DueDate,
		&issue.ParentIssueID,
		&issue.CreatedDate,
		&issue.UpdatedDate,
		&issue.ProjectKey,
		&issue.SprintName,
		&issue.ReporterUsername,
		&issue.AssigneeUsername,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Issue{}, ErrNotFound
		}
		return types.Issue{}, err
	}
	return issue, nil
}

func (r *IssueRepository) GetByID(ctx context.Context, id int) (types.Issue, error) {
	const query = `SELECT` + issueColumns + issueJoins + ` WHERE i.id = $1`
	return scanIssue(r.db.QueryRowContext(ctx, query, id))
}

func (r *IssueRepository) ListByProject(ctx context.Context, projectID, offset, limit int) ([]types.Issue, error) {
	const query = `SELECT` + issueColumns + issueJoins + `
		WHERE i.project_id = $1
		ORDER BY i.created_date DESC
		OFFSET $2 LIMIT $3`
	return r.list(ctx, query, projectID, offset, limit)
}

// ListBySprint orders by priority rank, most urgent first. The
// priority column is text, so the rank has to be spelled out.
func (r *IssueRepository) ListBySprint(ctx context.Context, sprintID, offset, limit int) ([]types.Issue, error) {
	const query = `SELECT` + issueColumns + issueJoins + `
		WHERE i.sprint_id = $1
		ORDER BY CASE i.priority
			WHEN 'Highest' THEN 0
			WHEN 'High' THEN 1
			WHEN 'Medium' THEN 2
			WHEN 'Low' THEN 3
			WHEN 'Lowest' THEN 4
			ELSE 5
		END, i.created_date DESC
		OFFSET $2 LIMIT $3`
	return r.list(ctx, query, sprintID, offset, limit)
}

func (r *IssueRepository) list(ctx context.Context, query string, args ...any) ([]types.Issue, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := make([]types.Issue, 0)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// Create inserts the issue and fetches the generated id in one
// transaction. A missing project surfaces as ErrValidation via the
// foreign key, not a generic failure.
func (r *IssueRepository) Create(ctx context.Context, issue types.Issue) (types.Issue, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Issue{}, err
	}
	defer tx.Rollback()

	now := time.Now()
	const insert = `
		INSERT INTO issues (project_id, sprint_id, description, issue_type, priority, status,
			reporter_id, assignee_id, story_points, due_date, parent_issue_id, created_date, updated_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	var id int
	if err := tx.QueryRowContext(
		ctx,
		insert,
		issue.ProjectID,
		issue.SprintID,
		issue.Description,
		issue.IssueType,
		issue.Priority,
		issue.Status,
		issue.ReporterID,
		issue.AssigneeID,
		issue.StoryPoints,
		issue.DueDate,
		issue.ParentIssueID,
		now,
		now,
	).Scan(&id); err != nil {
		return types.Issue{}, translate(err)
	}
	if err := tx.Commit(); err != nil {
		return types.Issue{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *IssueRepository) Update(ctx context.Context, id int, patch types.IssuePatch) (types.Issue, error) {
	var set setBuilder
	if patch.Description != nil {
		set.add("description", *patch.Description)
	}
	if patch.IssueType != nil {
		set.add("issue_type", *patch.IssueType)
	}
	if patch.Priority != nil {
		set.add("priority", *patch.Priority)
	}
	if patch.DueDate != nil {
		set.add("due_date", *patch.DueDate)
	}
	if patch.StoryPoints != nil {
		set.add("story_points", *patch.StoryPoints)
	}
	if patch.ParentIssueID != nil {
		set.add("parent_issue_id", *patch.ParentIssueID)
	}
	if set.empty() {
		return r.GetByID(ctx, id)
	}
	set.add("updated_date", time.Now())

	clause, next := set.clause()
	query := `UPDATE issues SET ` + clause + ` WHERE id = $` + itoa(next)
	result, err := r.db.ExecContext(ctx, query, append(set.args, id)...)
	if err != nil {
		return types.Issue{}, translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Issue{}, err
	}
	if affected == 0 {
		return types.Issue{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// UpdateStatus sets just the status column. Transition legality is
// checked by the issue service before this is called.
func (r *IssueRepository) UpdateStatus(ctx context.Context, id int, status string) (types.Issue, error) {
	return r.setColumn(ctx, id, "status", status)
}

// AssignUser sets or clears the assignee.
func (r *IssueRepository) AssignUser(ctx context.Context, id int, assigneeID *int) (types.Issue, error) {
	return r.setColumn(ctx, id, "assignee_id", assigneeID)
}

// AssignSprint attaches the issue to a sprint, or detaches it when
// sprintID is nil. Sprint/project agreement is checked by the service.
func (r *IssueRepository) AssignSprint(ctx context.Context, id int, sprintID *int) (types.Issue, error) {
	return r.setColumn(ctx, id, "sprint_id", sprintID)
}

func (r *IssueRepository) setColumn(ctx context.Context, id int, column string, value any) (types.Issue, error) {
	query := `UPDATE issues SET ` + column + ` = $1, updated_date = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, value, time.Now(), id)
	if err != nil {
		return types.Issue{}, translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Issue{}, err
	}
	if affected == 0 {
		return types.Issue{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *IssueRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM issues WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
