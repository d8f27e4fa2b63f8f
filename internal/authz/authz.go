// Package authz decides whether a user may act on a resource. Every
// decision resolves the resource's ownership chain up to its project
// and checks the caller against the allowed principals for the action.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/sprintdesk/apiserver/internal/store"
	"github.com/sprintdesk/apiserver/types"
)

// ErrForbidden is returned when an authenticated user is not allowed
// to perform the requested action.
var ErrForbidden = errors.New("permission denied")

// Action names what the caller is trying to do.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ProjectGetter and IssueGetter resolve the ownership chain.
type ProjectGetter interface {
	GetByID(ctx context.Context, id int) (types.Project, error)
}

type IssueGetter interface {
	GetByID(ctx context.Context, id int) (types.Issue, error)
}

// Guard evaluates access rules. Admins bypass every check; everyone
// else is measured against the project owner and, where the rules say
// so, the resource's own principals.
type Guard struct {
	projects ProjectGetter
	issues   IssueGetter
}

func NewGuard(projects ProjectGetter, issues IssueGetter) *Guard {
	return &Guard{projects: projects, issues: issues}
}

// Project allows only the owner (any action). Listing projects is not
// guarded; reading or changing a specific one is.
func (g *Guard) Project(ctx context.Context, user types.User, projectID int, action Action) error {
	if user.IsAdmin() {
		return nil
	}
	ownerID, err := g.projectOwner(ctx, projectID)
	if err != nil {
		return err
	}
	if ownerID == user.ID {
		return nil
	}
	return ErrForbidden
}

// Sprint defers entirely to project ownership. Sprints have no author
// of their own.
func (g *Guard) Sprint(ctx context.Context, user types.User, sprint types.Sprint, action Action) error {
	return g.Project(ctx, user, sprint.ProjectID, action)
}

// Issue allows the project owner for everything. The issue's reporter
// and assignee may additionally write (update, delete), but writing
// authority does not extend to reads.
func (g *Guard) Issue(ctx context.Context, user types.User, issue types.Issue, action Action) error {
	if user.IsAdmin() {
		return nil
	}
	if action == ActionUpdate || action == ActionDelete {
		if issue.ReporterID != nil && *issue.ReporterID == user.ID {
			return nil
		}
		if issue.AssigneeID != nil && *issue.AssigneeID == user.ID {
			return nil
		}
	}
	ownerID, err := g.projectOwner(ctx, issue.ProjectID)
	if err != nil {
		return err
	}
	if ownerID == user.ID {
		return nil
	}
	return ErrForbidden
}

// IssueItem guards comments, worklogs, and attachments. Creating and
// reading follows project ownership; updating and deleting is open to
// the item's author as well. authorID is the item's user reference,
// nil when the author account was deleted.
func (g *Guard) IssueItem(ctx context.Context, user types.User, issueID int, authorID *int, action Action) error {
	if user.IsAdmin() {
		return nil
	}
	if action == ActionUpdate || action == ActionDelete {
		if authorID != nil && *authorID == user.ID {
			return nil
		}
	}

	issue, err := g.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: issue %d is referenced but missing", store.ErrInconsistent, issueID)
		}
		return err
	}
	ownerID, err := g.projectOwner(ctx, issue.ProjectID)
	if err != nil {
		return err
	}
	if ownerID == user.ID {
		return nil
	}
	return ErrForbidden
}

// projectOwner resolves a project's owner. A dangling project
// reference in the chain is a data inconsistency, not a not-found.
func (g *Guard) projectOwner(ctx context.Context, projectID int) (int, error) {
	project, err := g.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("%w: project %d is referenced but missing", store.ErrInconsistent, projectID)
		}
		return 0, err
	}
	return project.OwnerID, nil
}
