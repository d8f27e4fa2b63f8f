package services

import (
	"context"
	"strings"
	"time"

	"github.com/sprintdesk/apiserver/types"
)

// SprintRepo is the persistence surface the sprint service needs.
type SprintRepo interface {
	GetByID(ctx context.Context, id int) (types.Sprint, error)
	ListByProject(ctx context.Context, projectID, offset, limit int) ([]types.Sprint, error)
	Create(ctx context.Context, sprint types.Sprint) (types.Sprint, error)
	Update(ctx context.Context, id int, patch types.SprintPatch) (types.Sprint, error)
	Delete(ctx context.Context, id int) error
}

var sprintStatuses = map[string]bool{
	types.SprintStatusFuture:    true,
	types.SprintStatusActive:    true,
	types.SprintStatusCompleted: true,
}

// SprintService validates and persists sprints.
type SprintService struct {
	sprints SprintRepo
}

func NewSprintService(sprints SprintRepo) *SprintService {
	return &SprintService{sprints: sprints}
}

// CreateSprintInput is the payload for creating a sprint inside a
// project. The project comes from the URL, not the body.
type CreateSprintInput struct {
	SprintName string     `json:"sprint_name"`
	Goal       string     `json:"goal"`
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	Status     string     `json:"status"`
}

func (s *SprintService) Create(ctx context.Context, projectID int, in CreateSprintInput) (types.Sprint, error) {
	if strings.TrimSpace(in.SprintName) == "" {
		return types.Sprint{}, invalidf("sprint_name is required")
	}
	status := in.Status
	if status == "" {
		status = types.SprintStatusFuture
	}
	if !sprintStatuses[status] {
		return types.Sprint{}, invalidf("unknown sprint status %q", status)
	}

	sprint := types.Sprint{
		ProjectID:  projectID,
		SprintName: strings.TrimSpace(in.SprintName),
		Goal:       in.Goal,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		Status:     status,
	}
	return s.sprints.Create(ctx, sprint)
}

func (s *SprintService) Get(ctx context.Context, id int) (types.Sprint, error) {
	return s.sprints.GetByID(ctx, id)
}

func (s *SprintService) ListByProject(ctx context.Context, projectID, offset, limit int) ([]types.Sprint, error) {
	return s.sprints.ListByProject(ctx, projectID, offset, limit)
}

func (s *SprintService) Update(ctx context.Context, id int, patch types.SprintPatch) (types.Sprint, error) {
	if patch.SprintName != nil && strings.TrimSpace(*patch.SprintName) == "" {
		return types.Sprint{}, invalidf("sprint_name cannot be empty")
	}
	if patch.Status != nil && !sprintStatuses[*patch.Status] {
		return types.Sprint{}, invalidf("unknown sprint status %q", *patch.Status)
	}
	return s.sprints.Update(ctx, id, patch)
}

// Delete removes the sprint. Issues in it are detached back to the
// backlog by the schema, not deleted.
func (s *SprintService) Delete(ctx context.Context, id int) error {
	return s.sprints.Delete(ctx, id)
}
