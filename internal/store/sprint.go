package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sprintdesk/apiserver/types"
)

// SprintRepository handles persistence for sprints.
type SprintRepository struct {
	db *sql.DB
}

func NewSprintRepository(db *sql.DB) *SprintRepository {
	return &SprintRepository{db: db}
}

const sprintColumns = `
	id, project_id, sprint_name, COALESCE(goal, ''),
	start_date, end_date, status, created_at, updated_at`

func scanSprint(row interface{ Scan(...any) error }) (types.Sprint, error) {
	var sprint types.Sprint
	err := row.Scan(
		&sprint.ID,
		&sprint.ProjectID,
		&sprint.SprintName,
		&sprint.Goal,
		&sprint.StartDate,
		&sprint.EndDate,
		&sprint.Status,
		&sprint.CreatedAt,
		&sprint.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Sprint{}, ErrNotFound
		}
		return types.Sprint{}, err
	}
	return sprint, nil
}

func (r *SprintRepository) GetByID(ctx context.Context, id int) (types.Sprint, error) {
	const query = `SELECT` + sprintColumns + ` FROM sprints WHERE id = $1`
	return scanSprint(r.db.QueryRowContext(ctx, query, id))
}

func (r *SprintRepository) ListByProject(ctx context.Context, projectID, offset, limit int) ([]types.Sprint, error) {
	const query = `SELECT` + sprintColumns + `
		FROM sprints
		WHERE project_id = $1
		ORDER BY start_date DESC NULLS LAST, created_at DESC
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, projectID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sprints := make([]types.Sprint, 0, limit)
	for rows.Next() {
		sprint, err := scanSprint(rows)
		if err != nil {
			return nil, err
		}
		sprints = append(sprints, sprint)
	}
	return sprints, rows.Err()
}

func (r *SprintRepository) Create(ctx context.Context, sprint types.Sprint) (types.Sprint, error) {
	now := time.Now()
	sprint.CreatedAt = now
	sprint.UpdatedAt = now

	const query = `
		INSERT INTO sprints (project_id, sprint_name, goal, start_date, end_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		sprint.ProjectID,
		sprint.SprintName,
		sprint.Goal,
		sprint.StartDate,
		sprint.EndDate,
		sprint.Status,
		sprint.CreatedAt,
		sprint.UpdatedAt,
	).Scan(&sprint.ID); err != nil {
		return types.Sprint{}, translate(err)
	}
	return sprint, nil
}

func (r *SprintRepository) Update(ctx context.Context, id int, patch types.SprintPatch) (types.Sprint, error) {
	var set setBuilder
	if patch.SprintName != nil {
		set.add("sprint_name", *patch.SprintName)
	}
	if patch.Goal != nil {
		set.add("goal", *patch.Goal)
	}
	if patch.StartDate != nil {
		set.add("start_date", *patch.StartDate)
	}
	if patch.EndDate != nil {
		set.add("end_date", *patch.EndDate)
	}
	if patch.Status != nil {
		set.add("status", *patch.Status)
	}
	if set.empty() {
		return r.GetByID(ctx, id)
	}
	set.add("updated_at", time.Now())

	clause, next := set.clause()
	query := `UPDATE sprints SET ` + clause + ` WHERE id = $` + itoa(next)
	result, err := r.db.ExecContext(ctx, query, append(set.args, id)...)
	if err != nil {
		return types.Sprint{}, translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Sprint{}, err
	}
	if affected == 0 {
		return types.Sprint{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes the sprint. Issues in it are detached, not deleted
// (ON DELETE SET NULL on issues.sprint_id).
func (r *SprintRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM sprints WHERE id = $1`
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
