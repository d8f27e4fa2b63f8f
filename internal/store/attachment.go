package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sprintdesk/apiserver/types"
)

// AttachmentRepository handles persistence for attachment metadata.
// The blobs themselves live behind internal/storage.
type AttachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

const attachmentColumns = `
	a.id, a.issue_id, a.user_id, a.file_name, a.file_path,
	COALESCE(a.file_type, ''), COALESCE(a.file_size_bytes, 0),
	a.uploaded_at, COALESCE(u.username, '')`

const attachmentJoin = ` FROM attachments a LEFT JOIN users u ON a.user_id = u.id`

func scanAttachment(row interface{ Scan(...any) error }) (types.Attachment, error) {
	var attachment types.Attachment
	err := row.Scan(
		&attachment.ID,
		&attachment.IssueID,
		&attachment.UserID,
		&attachment.FileName,
		&attachment.FilePath,
		&attachment.FileType,
		&attachment.FileSizeBytes,
		&attachment.UploadedAt,
		&attachment.UploaderUsername,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Attachment{}, ErrNotFound
		}
		return types.Attachment{}, err
	}
	return attachment, nil
}

func (r *AttachmentRepository) GetByID(ctx context.Context, id int) (types.Attachment, error) {
	const query = `SELECT` + attachmentColumns + attachmentJoin + ` WHERE a.id = $1`
	return scanAttachment(r.db.QueryRowContext(ctx, query, id))
}

func (r *AttachmentRepository) ListByIssue(ctx context.Context, issueID, offset, limit int) ([]types.Attachment, error) {
	const query = `SELECT` + attachmentColumns + attachmentJoin + `
		WHERE a.issue_id = $1
		ORDER BY a.uploaded_at DESC
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, issueID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := make([]types.Attachment, 0)
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	return attachments, rows.Err()
}

func (r *AttachmentRepository) Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error) {
	attachment.UploadedAt = time.Now()

	const query = `
		INSERT INTO attachments (issue_id, user_id, file_name, file_path, file_type, file_size_bytes, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		attachment.IssueID,
		attachment.UserID,
		attachment.FileName,
		attachment.FilePath,
		attachment.FileType,
		attachment.FileSizeBytes,
		attachment.UploadedAt,
	).Scan(&attachment.ID); err != nil {
		return types.Attachment{}, translate(err)
	}
	return attachment, nil
}

// Delete removes only the metadata row. The attachment service is
// responsible for the best-effort blob removal that follows.
func (r *AttachmentRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM attachments WHERE id = $1`
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
