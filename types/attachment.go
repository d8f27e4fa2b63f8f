package types

import "time"

// Attachment is file metadata for a blob stored outside the database.
// FilePath is the generated storage key, never the client-supplied name.
type Attachment struct {
	ID            int       `json:"attachment_id" db:"id"`
	IssueID       int       `json:"issue_id" db:"issue_id"`
	UserID        *int      `json:"user_id" db:"user_id"`
	FileName      string    `json:"file_name" db:"file_name"`
	FilePath      string    `json:"file_path" db:"file_path"`
	FileType      string    `json:"file_type" db:"file_type"`
	FileSizeBytes int64     `json:"file_size_bytes" db:"file_size_bytes"`
	UploadedAt    time.Time `json:"uploaded_at" db:"uploaded_at"`

	// DownloadURL is derived per response, not persisted.
	DownloadURL string `json:"download_url,omitempty" db:"-"`

	// UploaderUsername is joined from the users table.
	UploaderUsername string `json:"uploader_username,omitempty" db:"uploader_username"`
}
