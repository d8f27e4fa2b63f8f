package services

import (
	"context"
	"io"
	"log"
	"strings"

	"github.com/sprintdesk/apiserver/internal/storage"
	"github.com/sprintdesk/apiserver/types"
)

// AttachmentRepo is the persistence surface for attachment metadata.
type AttachmentRepo interface {
	GetByID(ctx context.Context, id int) (types.Attachment, error)
	ListByIssue(ctx context.Context, issueID, offset, limit int) ([]types.Attachment, error)
	Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error)
	Delete(ctx context.Context, id int) error
}

// AttachmentService coordinates blob storage with metadata rows. The
// ordering rules keep the database authoritative: a row never points
// at a blob that was not written, and a row never survives its blob's
// intended deletion.
type AttachmentService struct {
	attachments AttachmentRepo
	blobs       *storage.Storage
}

func NewAttachmentService(attachments AttachmentRepo, blobs *storage.Storage) *AttachmentService {
	return &AttachmentService{
		attachments: attachments,
		blobs:       blobs,
	}
}

// Upload stores the blob first and the metadata row second. If the
// insert fails, the fresh blob is removed so storage does not leak.
func (s *AttachmentService) Upload(ctx context.Context, issueID, userID int, fileName, contentType string, size int64, r io.Reader) (types.Attachment, error) {
	if strings.TrimSpace(fileName) == "" {
		return types.Attachment{}, invalidf("file name is required")
	}

	key := storage.NewKey(fileName)
	if err := s.blobs.Put(ctx, key, r, size, contentType); err != nil {
		return types.Attachment{}, err
	}

	attachment := types.Attachment{
		IssueID:       issueID,
		UserID:        &userID,
		FileName:      fileName,
		FilePath:      key,
		FileType:      contentType,
		FileSizeBytes: size,
	}
	created, err := s.attachments.Create(ctx, attachment)
	if err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			log.Printf("attachment: orphaned blob %s left behind: %v", key, delErr)
		}
		return types.Attachment{}, err
	}
	return created, nil
}

func (s *AttachmentService) Get(ctx context.Context, id int) (types.Attachment, error) {
	return s.attachments.GetByID(ctx, id)
}

func (s *AttachmentService) ListByIssue(ctx context.Context, issueID, offset, limit int) ([]types.Attachment, error) {
	return s.attachments.ListByIssue(ctx, issueID, offset, limit)
}

// Open returns the attachment metadata and a reader over its blob.
// The caller owns closing the reader.
func (s *AttachmentService) Open(ctx context.Context, id int) (types.Attachment, io.ReadCloser, error) {
	attachment, err := s.attachments.GetByID(ctx, id)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	rc, err := s.blobs.Get(ctx, attachment.FilePath)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	return attachment, rc, nil
}

// Delete removes the metadata row first, then the blob best-effort.
// A blob that refuses to go is logged, never surfaced: the record is
// already gone and the client's delete has succeeded.
func (s *AttachmentService) Delete(ctx context.Context, id int) error {
	attachment, err := s.attachments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.attachments.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, attachment.FilePath); err != nil {
		log.Printf("attachment: removing blob %s: %v", attachment.FilePath, err)
	}
	return nil
}
