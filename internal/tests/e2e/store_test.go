//go:build e2e

package e2e

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/sprintdesk/apiserver/config"
	"github.com/sprintdesk/apiserver/internal/store"
	"github.com/sprintdesk/apiserver/types"
)

// These tests exercise the behavior that lives in the schema and the
// repository SQL rather than in Go code: cascade rules, sprint detach,
// and the updated_date bumps done inside repository transactions. They
// need a reachable Postgres configured through the usual DB_* env vars.

var testDB *sql.DB

func TestMain(m *testing.M) {
	cfg := config.LoadConfig()
	dsn := postgresURL(cfg)

	migrator, err := migrate.New("file://../../db/migrations", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open migrator: %v\n", err)
		os.Exit(1)
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintf(os.Stderr, "run migrations: %v\n", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not reachable: %v\n", err)
		os.Exit(1)
	}
	testDB = db

	code := m.Run()
	_ = db.Close()
	os.Exit(code)
}

func postgresURL(cfg config.Config) string {
	sslMode := "disable"
	if cfg.Database.UseSSL {
		sslMode = "require"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
		sslMode,
	)
}

func createUser(t *testing.T) types.User {
	t.Helper()
	name := fmt.Sprintf("e2e_%d", time.Now().UnixNano())
	user, err := store.NewUserRepository(testDB).Create(context.Background(), types.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         types.RoleUser,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func createProject(t *testing.T, ownerID int) types.Project {
	t.Helper()
	key := fmt.Sprintf("E%d", time.Now().UnixNano()%1_000_000_000)
	project, err := store.NewProjectRepository(testDB).Create(context.Background(), types.Project{
		ProjectKey:  key,
		ProjectName: "E2E " + key,
		Status:      types.ProjectStatusPlanning,
		OwnerID:     ownerID,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return project
}

func createSprint(t *testing.T, projectID int) types.Sprint {
	t.Helper()
	sprint, err := store.NewSprintRepository(testDB).Create(context.Background(), types.Sprint{
		ProjectID:  projectID,
		SprintName: "Sprint",
		Status:     types.SprintStatusFuture,
	})
	if err != nil {
		t.Fatalf("create sprint: %v", err)
	}
	return sprint
}

func createIssue(t *testing.T, projectID int, sprintID *int, reporterID int, priority string) types.Issue {
	t.Helper()
	issue, err := store.NewIssueRepository(testDB).Create(context.Background(), types.Issue{
		ProjectID:   projectID,
		SprintID:    sprintID,
		Description: "something to do",
		IssueType:   types.IssueTypeTask,
		Priority:    priority,
		Status:      types.StatusToDo,
		ReporterID:  &reporterID,
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	return issue
}

func TestProjectDeleteCascades(t *testing.T) {
	ctx := context.Background()
	user := createUser(t)
	project := createProject(t, user.ID)
	sprint := createSprint(t, project.ID)
	issue := createIssue(t, project.ID, &sprint.ID, user.ID, types.PriorityMedium)

	if err := store.NewProjectRepository(testDB).Delete(ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	if _, err := store.NewSprintRepository(testDB).GetByID(ctx, sprint.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("sprint after cascade: err = %v, want ErrNotFound", err)
	}
	if _, err := store.NewIssueRepository(testDB).GetByID(ctx, issue.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("issue after cascade: err = %v, want ErrNotFound", err)
	}
}

func TestSprintDeleteDetachesIssues(t *testing.T) {
	ctx := context.Background()
	user := createUser(t)
	project := createProject(t, user.ID)
	sprint := createSprint(t, project.ID)
	issue := createIssue(t, project.ID, &sprint.ID, user.ID, types.PriorityMedium)

	if err := store.NewSprintRepository(testDB).Delete(ctx, sprint.ID); err != nil {
		t.Fatalf("delete sprint: %v", err)
	}

	detached, err := store.NewIssueRepository(testDB).GetByID(ctx, issue.ID)
	if err != nil {
		t.Fatalf("issue after sprint delete: %v", err)
	}
	if detached.SprintID != nil {
		t.Fatalf("sprint_id = %v, want nil", *detached.SprintID)
	}
}

func TestCommentAndWorklogAdvanceIssueUpdatedDate(t *testing.T) {
	ctx := context.Background()
	user := createUser(t)
	project := createProject(t, user.ID)
	issue := createIssue(t, project.ID, nil, user.ID, types.PriorityMedium)

	issues := store.NewIssueRepository(testDB)
	comments := store.NewCommentRepository(testDB)
	worklogs := store.NewWorklogRepository(testDB)

	time.Sleep(10 * time.Millisecond)
	comment, err := comments.Create(ctx, types.Comment{
		IssueID:     issue.ID,
		UserID:      &user.ID,
		CommentText: "first",
	})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	afterComment, _ := issues.GetByID(ctx, issue.ID)
	if !afterComment.UpdatedDate.After(issue.UpdatedDate) {
		t.Fatalf("updated_date did not advance on comment: %v -> %v", issue.UpdatedDate, afterComment.UpdatedDate)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := worklogs.Create(ctx, types.Worklog{
		IssueID:     issue.ID,
		UserID:      &user.ID,
		HoursLogged: 1.5,
		WorkDate:    time.Now(),
	}); err != nil {
		t.Fatalf("create worklog: %v", err)
	}
	afterWorklog, _ := issues.GetByID(ctx, issue.ID)
	if !afterWorklog.UpdatedDate.After(afterComment.UpdatedDate) {
		t.Fatalf("updated_date did not advance on worklog: %v -> %v", afterComment.UpdatedDate, afterWorklog.UpdatedDate)
	}

	// Deleting a comment is not an edit of the issue.
	time.Sleep(10 * time.Millisecond)
	if err := comments.Delete(ctx, comment.ID); err != nil {
		t.Fatalf("delete comment: %v", err)
	}
	afterDelete, _ := issues.GetByID(ctx, issue.ID)
	if !afterDelete.UpdatedDate.Equal(afterWorklog.UpdatedDate) {
		t.Fatalf("updated_date moved on comment delete: %v -> %v", afterWorklog.UpdatedDate, afterDelete.UpdatedDate)
	}
}

func TestSprintIssuesOrderedByPriorityRank(t *testing.T) {
	ctx := context.Background()
	user := createUser(t)
	project := createProject(t, user.ID)
	sprint := createSprint(t, project.ID)

	// Insertion order deliberately disagrees with both alphabetical and
	// rank order.
	createIssue(t, project.ID, &sprint.ID, user.ID, types.PriorityLow)
	createIssue(t, project.ID, &sprint.ID, user.ID, types.PriorityHighest)
	createIssue(t, project.ID, &sprint.ID, user.ID, types.PriorityMedium)

	listed, err := store.NewIssueRepository(testDB).ListBySprint(ctx, sprint.ID, 0, 10)
	if err != nil {
		t.Fatalf("list by sprint: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("listed = %d issues, want 3", len(listed))
	}
	want := []string{types.PriorityHighest, types.PriorityMedium, types.PriorityLow}
	for i, issue := range listed {
		if issue.Priority != want[i] {
			t.Fatalf("position %d priority = %q, want %q", i, issue.Priority, want[i])
		}
	}
}
