package services

import (
	"context"
	"time"

	"github.com/sprintdesk/apiserver/types"
)

// IssueRepo is the persistence surface the issue service needs.
type IssueRepo interface {
	GetByID(ctx context.Context, id int) (types.Issue, error)
	ListByProject(ctx context.Context, projectID, offset, limit int) ([]types.Issue, error)
	ListBySprint(ctx context.Context, sprintID, offset, limit int) ([]types.Issue, error)
	Create(ctx context.Context, issue types.Issue) (types.Issue, error)
	Update(ctx context.Context, id int, patch types.IssuePatch) (types.Issue, error)
	UpdateStatus(ctx context.Context, id int, status string) (types.Issue, error)
	AssignUser(ctx context.Context, id int, assigneeID *int) (types.Issue, error)
	AssignSprint(ctx context.Context, id int, sprintID *int) (types.Issue, error)
	Delete(ctx context.Context, id int) error
}

var issueTypes = map[string]bool{
	types.IssueTypeTask:  true,
	types.IssueTypeBug:   true,
	types.IssueTypeStory: true,
	types.IssueTypeEpic:  true,
}

var issuePriorities = map[string]bool{
	types.PriorityHighest: true,
	types.PriorityHigh:    true,
	types.PriorityMedium:  true,
	types.PriorityLow:     true,
	types.PriorityLowest:  true,
}

// boardOrder indexes the linear board columns. Blocked sits outside
// the line and is reachable from (and back to) every status.
var boardOrder = map[string]int{
	types.StatusToDo:       0,
	types.StatusInProgress: 1,
	types.StatusInReview:   2,
	types.StatusDone:       3,
}

// transitionAllowed reports whether an issue may move from one status
// to another: one column at a time along the board in either
// direction, with Blocked as a wildcard. Same-status moves are no-ops.
func transitionAllowed(from, to string) bool {
	if from == to {
		return true
	}
	if from == types.StatusBlocked || to == types.StatusBlocked {
		return true
	}
	fi, fromOK := boardOrder[from]
	ti, toOK := boardOrder[to]
	if !fromOK || !toOK {
		return false
	}
	return ti-fi == 1 || ti-fi == -1
}

// IssueService validates and persists issues, and assembles the full
// detail view from the related repositories.
type IssueService struct {
	issues      IssueRepo
	sprints     SprintRepo
	users       UserRepo
	comments    CommentRepo
	worklogs    WorklogRepo
	attachments AttachmentRepo
}

func NewIssueService(
	issues IssueRepo,
	sprints SprintRepo,
	users UserRepo,
	comments CommentRepo,
	worklogs WorklogRepo,
	attachments AttachmentRepo,
) *IssueService {
	return &IssueService{
		issues:      issues,
		sprints:     sprints,
		users:       users,
		comments:    comments,
		worklogs:    worklogs,
		attachments: attachments,
	}
}

// CreateIssueInput is the payload for creating an issue. The reporter
// is always the calling user.
type CreateIssueInput struct {
	ProjectID     int        `json:"project_id"`
	SprintID      *int       `json:"sprint_id"`
	Description   string     `json:"description"`
	IssueType     string     `json:"issue_type"`
	Priority      string     `json:"priority"`
	AssigneeID    *int       `json:"assignee_id"`
	StoryPoints   *int       `json:"story_points"`
	DueDate       *time.Time `json:"due_date"`
	ParentIssueID *int       `json:"parent_issue_id"`
}

func (s *IssueService) Create(ctx context.Context, reporterID int, in CreateIssueInput) (types.Issue, error) {
	if in.ProjectID == 0 {
		return types.Issue{}, invalidf("project_id is required")
	}
	if in.Description == "" {
		return types.Issue{}, invalidf("description is required")
	}
	issueType := in.IssueType
	if issueType == "" {
		issueType = types.IssueTypeTask
	}
	if !issueTypes[issueType] {
		return types.Issue{}, invalidf("unknown issue type %q", issueType)
	}
	priority := in.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}
	if !issuePriorities[priority] {
		return types.Issue{}, invalidf("unknown priority %q", priority)
	}
	if in.StoryPoints != nil && *in.StoryPoints < 0 {
		return types.Issue{}, invalidf("story_points cannot be negative")
	}
	if in.SprintID != nil {
		if err := s.checkSprintInProject(ctx, *in.SprintID, in.ProjectID); err != nil {
			return types.Issue{}, err
		}
	}
	if in.ParentIssueID != nil {
		parent, err := s.issues.GetByID(ctx, *in.ParentIssueID)
		if err != nil {
			return types.Issue{}, invalidf("parent issue %d does not exist", *in.ParentIssueID)
		}
		if parent.ProjectID != in.ProjectID {
			return types.Issue{}, invalidf("parent issue belongs to a different project")
		}
	}

	issue := types.Issue{
		ProjectID:     in.ProjectID,
		SprintID:      in.SprintID,
		Description:   in.Description,
		IssueType:     issueType,
		Priority:      priority,
		Status:        types.StatusToDo,
		ReporterID:    &reporterID,
		AssigneeID:    in.AssigneeID,
		StoryPoints:   in.StoryPoints,
		DueDate:       in.DueDate,
		ParentIssueID: in.ParentIssueID,
	}
	return s.issues.Create(ctx, issue)
}

func (s *IssueService) Get(ctx context.Context, id int) (types.Issue, error) {
	return s.issues.GetByID(ctx, id)
}

// List returns issues filtered by project or sprint. One of the two
// filters is mandatory; there is no unscoped issue listing.
func (s *IssueService) List(ctx context.Context, projectID, sprintID *int, offset, limit int) ([]types.Issue, error) {
	switch {
	case projectID != nil:
		return s.issues.ListByProject(ctx, *projectID, offset, limit)
	case sprintID != nil:
		return s.issues.ListBySprint(ctx, *sprintID, offset, limit)
	default:
		return nil, invalidf("either project_id or sprint_id is required")
	}
}

// Details assembles the issue together with its comments, worklogs,
// attachments, and the live hours total.
func (s *IssueService) Details(ctx context.Context, id int) (types.IssueDetails, error) {
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return types.IssueDetails{}, err
	}

	const relatedLimit = 1000
	comments, err := s.comments.ListByIssue(ctx, id, 0, relatedLimit)
	if err != nil {
		return types.IssueDetails{}, err
	}
	worklogs, err := s.worklogs.ListByIssue(ctx, id, 0, relatedLimit)
	if err != nil {
		return types.IssueDetails{}, err
	}
	attachments, err := s.attachments.ListByIssue(ctx, id, 0, relatedLimit)
	if err != nil {
		return types.IssueDetails{}, err
	}
	total, err := s.worklogs.TotalHoursForIssue(ctx, id)
	if err != nil {
		return types.IssueDetails{}, err
	}

	return types.IssueDetails{
		Issue:            issue,
		Comments:         comments,
		Worklogs:         worklogs,
		Attachments:      attachments,
		TotalHoursLogged: total,
	}, nil
}

func (s *IssueService) Update(ctx context.Context, id int, patch types.IssuePatch) (types.Issue, error) {
	if patch.Description != nil && *patch.Description == "" {
		return types.Issue{}, invalidf("description cannot be empty")
	}
	if patch.IssueType != nil && !issueTypes[*patch.IssueType] {
		return types.Issue{}, invalidf("unknown issue type %q", *patch.IssueType)
	}
	if patch.Priority != nil && !issuePriorities[*patch.Priority] {
		return types.Issue{}, invalidf("unknown priority %q", *patch.Priority)
	}
	if patch.StoryPoints != nil && *patch.StoryPoints < 0 {
		return types.Issue{}, invalidf("story_points cannot be negative")
	}
	if patch.ParentIssueID != nil {
		issue, err := s.issues.GetByID(ctx, id)
		if err != nil {
			return types.Issue{}, err
		}
		if *patch.ParentIssueID == id {
			return types.Issue{}, invalidf("issue cannot be its own parent")
		}
		parent, err := s.issues.GetByID(ctx, *patch.ParentIssueID)
		if err != nil {
			return types.Issue{}, invalidf("parent issue %d does not exist", *patch.ParentIssueID)
		}
		if parent.ProjectID != issue.ProjectID {
			return types.Issue{}, invalidf("parent issue belongs to a different project")
		}
	}
	return s.issues.Update(ctx, id, patch)
}

// ChangeStatus moves the issue along the board, enforcing the
// transition rules.
func (s *IssueService) ChangeStatus(ctx context.Context, id int, status string) (types.Issue, error) {
	if status != types.StatusBlocked {
		if _, ok := boardOrder[status]; !ok {
			return types.Issue{}, invalidf("unknown status %q", status)
		}
	}
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return types.Issue{}, err
	}
	if issue.Status == status {
		return issue, nil
	}
	if !transitionAllowed(issue.Status, status) {
		return types.Issue{}, invalidf("cannot move issue from %q to %q", issue.Status, status)
	}
	return s.issues.UpdateStatus(ctx, id, status)
}

// AssignUser sets or clears the assignee. A non-nil assignee must be
// an existing user.
func (s *IssueService) AssignUser(ctx context.Context, id int, assigneeID *int) (types.Issue, error) {
	if assigneeID != nil {
		if _, err := s.users.GetByID(ctx, *assigneeID); err != nil {
			return types.Issue{}, invalidf("user %d does not exist", *assigneeID)
		}
	}
	return s.issues.AssignUser(ctx, id, assigneeID)
}

// AssignSprint moves the issue into a sprint, or back to the backlog
// when sprintID is nil. The sprint must belong to the issue's project.
func (s *IssueService) AssignSprint(ctx context.Context, id int, sprintID *int) (types.Issue, error) {
	if sprintID != nil {
		issue, err := s.issues.GetByID(ctx, id)
		if err != nil {
			return types.Issue{}, err
		}
		if err := s.checkSprintInProject(ctx, *sprintID, issue.ProjectID); err != nil {
			return types.Issue{}, err
		}
	}
	return s.issues.AssignSprint(ctx, id, sprintID)
}

func (s *IssueService) Delete(ctx context.Context, id int) error {
	return s.issues.Delete(ctx, id)
}

func (s *IssueService) checkSprintInProject(ctx context.Context, sprintID, projectID int) error {
	sprint, err := s.sprints.GetByID(ctx, sprintID)
	if err != nil {
		return invalidf("sprint %d does not exist", sprintID)
	}
	if sprint.ProjectID != projectID {
		return invalidf("sprint %d belongs to a different project", sprintID)
	}
	return nil
}
