package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sprintdesk/apiserver/types"
)

// ProjectRepository handles persistence for projects.
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `
	p.id, p.project_key, p.project_name, COALESCE(p.description, ''),
	p.start_date, p.end_date, p.status, COALESCE(p.owner_id, 0),
	COALESCE(u.username, ''), p.created_at, p.updated_at`

const projectJoin = ` FROM projects p LEFT JOIN users u ON p.owner_id = u.id`

func scanProject(row interface{ Scan(...any) error }) (types.Project, error) {
	var project types.Project
	err := row.Scan(
		&project.ID,
		&project.ProjectKey,
		&project.ProjectName,
		&project.Description,
		&project.StartDate,
		&project.EndDate,
		&project.Status,
		&project.OwnerID,
		&project.OwnerUsername,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}
	return project, nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int) (types.Project, error) {
	const query = `SELECT` + projectColumns + projectJoin + ` WHERE p.id = $1`
	return scanProject(r.db.QueryRowContext(ctx, query, id))
}

func (r *ProjectRepository) GetByKey(ctx context.Context, key string) (types.Project, error) {
	const query = `SELECT` + projectColumns + projectJoin + ` WHERE p.project_key = $1`
	return scanProject(r.db.QueryRowContext(ctx, query, key))
}

func (r *ProjectRepository) List(ctx context.Context, offset, limit int) ([]types.Project, error) {
	const query = `SELECT` + projectColumns + projectJoin + `
		ORDER BY p.created_at DESC
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]types.Project, 0, limit)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// Create inserts the project and reloads the joined row in one
// transaction so the generated id and owner username come back together.
func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Project{}, err
	}
	defer tx.Rollback()

	now := time.Now()
	const insert = `
		INSERT INTO projects (project_key, project_name, description, start_date, end_date, status, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	var id int
	if err := tx.QueryRowContext(
		ctx,
		insert,
		project.ProjectKey,
		project.ProjectName,
		project.Description,
		project.StartDate,
		project.EndDate,
		project.Status,
		project.OwnerID,
		now,
		now,
	).Scan(&id); err != nil {
		return types.Project{}, translate(err)
	}

	const reload = `SELECT` + projectColumns + projectJoin + ` WHERE p.id = $1`
	created, err := scanProject(tx.QueryRowContext(ctx, reload, id))
	if err != nil {
		return types.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Project{}, err
	}
	return created, nil
}

func (r *ProjectRepository) Update(ctx context.Context, id int, patch types.ProjectPatch) (types.Project, error) {
	var set setBuilder
	if patch.ProjectName != nil {
		set.add("project_name", *patch.ProjectName)
	}
	if patch.Description != nil {
		set.add("description", *patch.Description)
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
	if patch.OwnerID != nil {
		set.add("owner_id", *patch.OwnerID)
	}
	if set.empty() {
		return r.GetByID(ctx, id)
	}
	set.add("updated_at", time.Now())

	clause, next := set.clause()
	query := `UPDATE projects SET ` + clause + ` WHERE id = $` + itoa(next)
	result, err := r.db.ExecContext(ctx, query, append(set.args, id)...)
	if err != nil {
		return types.Project{}, translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Project{}, err
	}
	if affected == 0 {
		return types.Project{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes the project. Sprints and issues beneath it go with it
// via ON DELETE CASCADE.
func (r *ProjectRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM projects WHERE id = $1`
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
