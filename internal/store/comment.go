package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sprintdesk/apiserver/types"
)

// CommentRepository handles persistence for comments.
type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

const commentColumns = `
	c.id, c.issue_id, c.user_id, c.comment_text,
	c.created_at, c.updated_at, COALESCE(u.username, '')`

const commentJoin = ` FROM comments c LEFT JOIN users u ON c.user_id = u.id`

func scanComment(row interface{ Scan(...any) error }) (types.Comment, error) {
	var comment types.Comment
	err := row.Scan(
		&comment.ID,
		&comment.IssueID,
		&comment.UserID,
		&comment.CommentText,
		&comment.CreatedAt,
		&comment.UpdatedAt,
		&comment.AuthorUsername,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Comment{}, ErrNotFound
		}
		return types.Comment{}, err
	}
	return comment, nil
}

func (r *CommentRepository) GetByID(ctx context.Context, id int) (types.Comment, error) {
	const query = `SELECT` + commentColumns + commentJoin + ` WHERE c.id = $1`
	return scanComment(r.db.QueryRowContext(ctx, query, id))
}

func (r *CommentRepository) ListByIssue(ctx context.Context, issueID, offset, limit int) ([]types.Comment, error) {
	const query = `SELECT` + commentColumns + commentJoin + `
		WHERE c.issue_id = $1
		ORDER BY c.created_at ASC
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, issueID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]types.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// Create inserts the comment and advances the parent issue's
// updated_date in the same transaction. A missing issue surfaces as
// ErrValidation via the foreign key.
func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Comment{}, err
	}
	defer tx.Rollback()

	now := time.Now()
	const insert = `
		INSERT INTO comments (issue_id, user_id, comment_text, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	var id int
	if err := tx.QueryRowContext(ctx, insert, comment.IssueID, comment.UserID, comment.CommentText, now).Scan(&id); err != nil {
		return types.Comment{}, translate(err)
	}

	if err := touchIssue(ctx, tx, comment.IssueID, now); err != nil {
		return types.Comment{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Comment{}, err
	}
	return r.GetByID(ctx, id)
}

// Update edits the comment text, stamps its updated_at, and advances the
// parent issue's updated_date, all in one transaction.
func (r *CommentRepository) Update(ctx context.Context, id int, text string) (types.Comment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Comment{}, err
	}
	defer tx.Rollback()

	now := time.Now()
	const update = `
		UPDATE comments SET comment_text = $1, updated_at = $2
		WHERE id = $3
		RETURNING issue_id`
	var issueID int
	if err := tx.QueryRowContext(ctx, update, text, now, id).Scan(&issueID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Comment{}, ErrNotFound
		}
		return types.Comment{}, translate(err)
	}

	if err := touchIssue(ctx, tx, issueID, now); err != nil {
		return types.Comment{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Comment{}, err
	}
	return r.GetByID(ctx, id)
}

// Delete removes the comment. Deliberately no updated_date bump: a
// deletion is not an edit of the issue.
func (r *CommentRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM comments WHERE id = $1`
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

// touchIssue advances an issue's updated_date inside a caller-owned
// transaction. Replaces the AFTER INSERT triggers of the old schema.
func touchIssue(ctx context.Context, tx *sql.Tx, issueID int, now time.Time) error {
	const query = `UPDATE issues SET updated_date = $1 WHERE id = $2`
	result, err := tx.ExecContext(ctx, query, now, issueID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInconsistent
	}
	return nil
}
