package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/sprintdesk/apiserver/types"
)

// ProjectRepo is the persistence surface the project service needs.
type ProjectRepo interface {
	GetByID(ctx context.Context, id int) (types.Project, error)
	GetByKey(ctx context.Context, key string) (types.Project, error)
	List(ctx context.Context, offset, limit int) ([]types.Project, error)
	Create(ctx context.Context, project types.Project) (types.Project, error)
	Update(ctx context.Context, id int, patch types.ProjectPatch) (types.Project, error)
	Delete(ctx context.Context, id int) error
}

// projectKeyPattern is the shape of a project key: short, upper-case
// alphanumeric, immutable once created.
var projectKeyPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

var projectStatuses = map[string]bool{
	types.ProjectStatusPlanning:  true,
	types.ProjectStatusActive:    true,
	types.ProjectStatusCompleted: true,
	types.ProjectStatusArchived:  true,
}

// ProjectService validates and persists projects. Authorization is the
// guard's business, not this service's.
type ProjectService struct {
	projects ProjectRepo
}

func NewProjectService(projects ProjectRepo) *ProjectService {
	return &ProjectService{projects: projects}
}

// CreateProjectInput is the payload for creating a project. The owner
// is always the calling user, never part of the payload.
type CreateProjectInput struct {
	ProjectKey  string     `json:"project_key"`
	ProjectName string     `json:"project_name"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Status      string     `json:"status"`
}

func (s *ProjectService) Create(ctx context.Context, ownerID int, in CreateProjectInput) (types.Project, error) {
	key := strings.TrimSpace(in.ProjectKey)
	if !projectKeyPattern.MatchString(key) {
		return types.Project{}, invalidf("project_key must be 1-10 upper-case letters or digits")
	}
	if strings.TrimSpace(in.ProjectName) == "" {
		return types.Project{}, invalidf("project_name is required")
	}
	status := in.Status
	if status == "" {
		status = types.ProjectStatusPlanning
	}
	if !projectStatuses[status] {
		return types.Project{}, invalidf("unknown project status %q", status)
	}

	project := types.Project{
		ProjectKey:  key,
		ProjectName: strings.TrimSpace(in.ProjectName),
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      status,
		OwnerID:     ownerID,
	}
	return s.projects.Create(ctx, project)
}

func (s *ProjectService) Get(ctx context.Context, id int) (types.Project, error) {
	return s.projects.GetByID(ctx, id)
}

func (s *ProjectService) List(ctx context.Context, offset, limit int) ([]types.Project, error) {
	return s.projects.List(ctx, offset, limit)
}

// Update applies a partial update. The project key is immutable, so it
// is absent from the patch allow-list.
func (s *ProjectService) Update(ctx context.Context, id int, patch types.ProjectPatch) (types.Project, error) {
	if patch.ProjectName != nil && strings.TrimSpace(*patch.ProjectName) == "" {
		return types.Project{}, invalidf("project_name cannot be empty")
	}
	if patch.Status != nil && !projectStatuses[*patch.Status] {
		return types.Project{}, invalidf("unknown project status %q", *patch.Status)
	}
	return s.projects.Update(ctx, id, patch)
}

// Delete removes the project; sprints, issues, and everything under
// them go with it through database cascades.
func (s *ProjectService) Delete(ctx context.Context, id int) error {
	return s.projects.Delete(ctx, id)
}
