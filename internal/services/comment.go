package services

import (
	"context"
	"strings"

	"github.com/sprintdesk/apiserver/types"
)

// CommentRepo is the persistence surface the comment service needs.
type CommentRepo interface {
	GetByID(ctx context.Context, id int) (types.Comment, error)
	ListByIssue(ctx context.Context, issueID, offset, limit int) ([]types.Comment, error)
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
	Update(ctx context.Context, id int, text string) (types.Comment, error)
	Delete(ctx context.Context, id int) error
}

// CommentService validates and persists issue comments.
type CommentService struct {
	comments CommentRepo
}

func NewCommentService(comments CommentRepo) *CommentService {
	return &CommentService{comments: comments}
}

func (s *CommentService) Create(ctx context.Context, issueID, authorID int, text string) (types.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return types.Comment{}, invalidf("comment_text is required")
	}
	comment := types.Comment{
		IssueID:     issueID,
		UserID:      &authorID,
		CommentText: text,
	}
	return s.comments.Create(ctx, comment)
}

func (s *CommentService) Get(ctx context.Context, id int) (types.Comment, error) {
	return s.comments.GetByID(ctx, id)
}

func (s *CommentService) ListByIssue(ctx context.Context, issueID, offset, limit int) ([]types.Comment, error) {
	return s.comments.ListByIssue(ctx, issueID, offset, limit)
}

// Update replaces the comment text. The parent issue's updated_date
// advances with it.
func (s *CommentService) Update(ctx context.Context, id int, text string) (types.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return types.Comment{}, invalidf("comment_text is required")
	}
	return s.comments.Update(ctx, id, text)
}

func (s *CommentService) Delete(ctx context.Context, id int) error {
	return s.comments.Delete(ctx, id)
}
