package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sprintdesk/apiserver/types"
)

// WorklogRepository handles persistence for worklogs and the hour
// aggregates derived from them.
type WorklogRepository struct {
	db *sql.DB
}

func NewWorklogRepository(db *sql.DB) *WorklogRepository {
	return &WorklogRepository{db: db}
}

const worklogColumns = `
	w.id, w.issue_id, w.user_id, w.hours_logged, w.work_date,
	COALESCE(w.description, ''), w.created_at, COALESCE(u.username, '')`

const worklogJoin = ` FROM worklogs w LEFT JOIN users u ON w.user_id = u.id`

func scanWorklog(row interface{ Scan(...any) error }) (types.Worklog, error) {
	var worklog types.Worklog
	err := row.Scan(
		&worklog.ID,
		&worklog.IssueID,
		&worklog.UserID,
		&worklog.HoursLogged,
		&worklog.WorkDate,
		&worklog.Description,
		&worklog.CreatedAt,
		&worklog.LoggerUsername,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Worklog{}, ErrNotFound
		}
		return types.Worklog{}, err
	}
	return worklog, nil
}

func (r *WorklogRepository) GetByID(ctx context.Context, id int) (types.Worklog, error) {
	const query = `SELECT` + worklogColumns + worklogJoin + ` WHERE w.id = $1`
	return scanWorklog(r.db.QueryRowContext(ctx, query, id))
}

func (r *WorklogRepository) ListByIssue(ctx context.Context, issueID, offset, limit int) ([]types.Worklog, error) {
	const query = `SELECT` + worklogColumns + worklogJoin + `
		WHERE w.issue_id = $1
		ORDER BY w.work_date DESC, w.created_at DESC
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, issueID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	worklogs := make([]types.Worklog, 0)
	for rows.Next() {
		worklog, err := scanWorklog(rows)
		if err != nil {
			return nil, err
		}
		worklogs = append(worklogs, worklog)
	}
	return worklogs, rows.Err()
}

// Create inserts the worklog and advances the parent issue's
// updated_date in the same transaction.
func (r *WorklogRepository) Create(ctx context.Context, worklog types.Worklog) (types.Worklog, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Worklog{}, err
	}
	defer tx.Rollback()

	now := time.Now()
	const insert = `
		INSERT INTO worklogs (issue_id, user_id, hours_logged, work_date, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	var id int
	if err := tx.QueryRowContext(
		ctx,
		insert,
		worklog.IssueID,
		worklog.UserID,
		worklog.HoursLogged,
		worklog.WorkDate,
		worklog.Description,
		now,
	).Scan(&id); err != nil {
		return types.Worklog{}, translate(err)
	}

	if err := touchIssue(ctx, tx, worklog.IssueID, now); err != nil {
		return types.Worklog{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Worklog{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *WorklogRepository) Update(ctx context.Context, id int, patch types.WorklogPatch) (types.Worklog, error) {
	var set setBuilder
	if patch.HoursLogged != nil {
		set.add("hours_logged", *patch.HoursLogged)
	}
	if patch.WorkDate != nil {
		set.add("work_date", *patch.WorkDate)
	}
	if patch.Description != nil {
		set.add("description", *patch.Description)
	}
	if set.empty() {
		return r.GetByID(ctx, id)
	}

	clause, next := set.clause()
	query := `UPDATE worklogs SET ` + clause + ` WHERE id = $` + itoa(next)
	result, err := r.db.ExecContext(ctx, query, append(set.args, id)...)
	if err != nil {
		return types.Worklog{}, translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Worklog{}, err
	}
	if affected == 0 {
		return types.Worklog{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *WorklogRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM worklogs WHERE id = $1`
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

// TotalHoursForIssue is the live sum over existing worklog rows; zero
// when there are none. The total is never stored.
func (r *WorklogRepository) TotalHoursForIssue(ctx context.Context, issueID int) (float64, error) {
	const query = `SELECT COALESCE(SUM(hours_logged), 0) FROM worklogs WHERE issue_id = $1`
	var total float64
	if err := r.db.QueryRowContext(ctx, query, issueID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// TotalHoursForProject sums hours across every issue in the project.
func (r *WorklogRepository) TotalHoursForProject(ctx context.Context, projectID int) (float64, error) {
	const query = `
		SELECT COALESCE(SUM(w.hours_logged), 0)
		FROM worklogs w
		JOIN issues i ON w.issue_id = i.id
		WHERE i.project_id = $1`
	var total float64
	if err := r.db.QueryRowContext(ctx, query, projectID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// HoursByUserForProject reports logged hours grouped by user, busiest
// first.
func (r *WorklogRepository) HoursByUserForProject(ctx context.Context, projectID int) ([]types.UserHours, error) {
	const query = `
		SELECT w.user_id, u.username, SUM(w.hours_logged) AS total_user_hours
		FROM worklogs w
		JOIN users u ON w.user_id = u.id
		JOIN issues i ON w.issue_id = i.id
		WHERE i.project_id = $1
		GROUP BY w.user_id, u.username
		ORDER BY total_user_hours DESC`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	report := make([]types.UserHours, 0)
	for rows.Next() {
		var row types.UserHours
		if err := rows.Scan(&row.UserID, &row.Username, &row.TotalHours); err != nil {
			return nil, err
		}
		report = append(report, row)
	}
	return report, rows.Err()
}
