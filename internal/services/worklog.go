package services

import (
	"context"
	"math"
	"time"

	"github.com/sprintdesk/apiserver/types"
)

// WorklogRepo is the persistence surface the worklog service needs.
type WorklogRepo interface {
	GetByID(ctx context.Context, id int) (types.Worklog, error)
	ListByIssue(ctx context.Context, issueID, offset, limit int) ([]types.Worklog, error)
	Create(ctx context.Context, worklog types.Worklog) (types.Worklog, error)
	Update(ctx context.Context, id int, patch types.WorklogPatch) (types.Worklog, error)
	Delete(ctx context.Context, id int) error
	TotalHoursForIssue(ctx context.Context, issueID int) (float64, error)
	TotalHoursForProject(ctx context.Context, projectID int) (float64, error)
	HoursByUserForProject(ctx context.Context, projectID int) ([]types.UserHours, error)
}

// WorklogService validates and persists time entries.
type WorklogService struct {
	worklogs WorklogRepo
}

func NewWorklogService(worklogs WorklogRepo) *WorklogService {
	return &WorklogService{worklogs: worklogs}
}

// roundHours normalizes logged hours to two decimal places so sums
// stay stable across backends.
func roundHours(hours float64) float64 {
	return math.Round(hours*100) / 100
}

// CreateWorklogInput is the payload for logging time on an issue.
type CreateWorklogInput struct {
	HoursLogged float64   `json:"hours_logged"`
	WorkDate    time.Time `json:"work_date"`
	Description string    `json:"description"`
}

func (s *WorklogService) Create(ctx context.Context, issueID, userID int, in CreateWorklogInput) (types.Worklog, error) {
	if in.HoursLogged <= 0 {
		return types.Worklog{}, invalidf("hours_logged must be positive")
	}
	if in.WorkDate.IsZero() {
		return types.Worklog{}, invalidf("work_date is required")
	}

	worklog := types.Worklog{
		IssueID:     issueID,
		UserID:      &userID,
		HoursLogged: roundHours(in.HoursLogged),
		WorkDate:    in.WorkDate,
		Description: in.Description,
	}
	return s.worklogs.Create(ctx, worklog)
}

func (s *WorklogService) Get(ctx context.Context, id int) (types.Worklog, error) {
	return s.worklogs.GetByID(ctx, id)
}

func (s *WorklogService) ListByIssue(ctx context.Context, issueID, offset, limit int) ([]types.Worklog, error) {
	return s.worklogs.ListByIssue(ctx, issueID, offset, limit)
}

func (s *WorklogService) Update(ctx context.Context, id int, patch types.WorklogPatch) (types.Worklog, error) {
	if patch.HoursLogged != nil {
		if *patch.HoursLogged <= 0 {
			return types.Worklog{}, invalidf("hours_logged must be positive")
		}
		rounded := roundHours(*patch.HoursLogged)
		patch.HoursLogged = &rounded
	}
	if patch.WorkDate != nil && patch.WorkDate.IsZero() {
		return types.Worklog{}, invalidf("work_date cannot be empty")
	}
	return s.worklogs.Update(ctx, id, patch)
}

func (s *WorklogService) Delete(ctx context.Context, id int) error {
	return s.worklogs.Delete(ctx, id)
}

func (s *WorklogService) TotalHoursForIssue(ctx context.Context, issueID int) (float64, error) {
	return s.worklogs.TotalHoursForIssue(ctx, issueID)
}

func (s *WorklogService) TotalHoursForProject(ctx context.Context, projectID int) (float64, error) {
	return s.worklogs.TotalHoursForProject(ctx, projectID)
}

func (s *WorklogService) HoursByUserForProject(ctx context.Context, projectID int) ([]types.UserHours, error) {
	return s.worklogs.HoursByUserForProject(ctx, projectID)
}
