package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/tasktracker/core"
	"github.com/trezcool/tasktracker/core/school"
	logsvc "github.com/trezcool/tasktracker/services/logger"
	"github.com/trezcool/tasktracker/storage/database"
)

// SchoolStore is implemented by the sqlx and the in-memory school repositories.
type SchoolStore interface {
	school.Repository

	CreateUser(ctx context.Context, usr school.User) (school.User, error)
	CreateClass(ctx context.Context, class school.Class) (school.Class, error)
	Enroll(ctx context.Context, classID string, studentIDs ...string) error
	Unenroll(ctx context.Context, classID string, studentIDs ...string) error
	CreateTask(ctx context.Context, task school.Task) (school.Task, error)
	CreateSubmission(ctx context.Context, sub school.Submission) (school.Submission, error)
}

// NewConfig returns the configuration used by tests.
func NewConfig() *core.Config {
	conf := &core.Config{
		AppName:         "Masomo",
		Env:             "TEST",
		Build:           "test",
		TestMode:        true,
		SecretKey:       "test-secret-key",
		FrontendBaseURL: "http://masomo.test",
		Database: core.DatabaseConfig{
			Engine:     database.EngineSQLite,
			SQLitePath: ":memory:",
		},
		Server: core.ServerConfig{
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
		},
		Mail: core.MailConfig{Transport: "console"},
		Notification: core.NotificationConfig{
			BatchSize:         50,
			ListLimit:         50,
			DedupWindow:       48 * time.Hour,
			ReminderLookahead: 24 * time.Hour,
			SendTimeout:       time.Second,
			TimeZone:          "UTC",
		},
	}
	conf.SetDefaultFromEmail("noreply@masomo.test")
	return conf
}

// NewLogger returns a logger that discards everything.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// PrepareDB returns a migrated in-memory SQLite database closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	goose.SetLogger(goose.NopLogger())
	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(t *testing.T, repo SchoolStore, name, email, role string) school.User {
	t.Helper()

	usr, err := repo.CreateUser(context.Background(), school.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateClass(t *testing.T, repo SchoolStore, name string, teacher school.User, students ...school.User) school.Class {
	t.Helper()

	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	class, err := repo.CreateClass(context.Background(), school.Class{
		ID:         uuid.NewString(),
		Name:       name,
		TeacherID:  teacher.ID,
		StudentIDs: ids,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return class
}

func CreateTask(t *testing.T, repo SchoolStore, class school.Class, title string, start, end time.Time) school.Task {
	t.Helper()

	task, err := repo.CreateTask(context.Background(), school.Task{
		ID:          uuid.NewString(),
		ClassID:     class.ID,
		Title:       title,
		Description: "Read the chapter and answer the questions.",
		Start:       start,
		End:         end,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	return task
}

// CreateSubmission stores a submission; a nil grade means not graded yet.
func CreateSubmission(t *testing.T, repo SchoolStore, task school.Task, student school.User, grade *int) school.Submission {
	t.Helper()

	sub, err := repo.CreateSubmission(context.Background(), school.Submission{
		ID:          uuid.NewString(),
		TaskID:      task.ID,
		StudentID:   student.ID,
		FilePath:    "submissions/" + task.ID + "/" + student.ID + ".pdf",
		Grade:       grade,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	return sub
}

func IntPtr(i int) *int { return &i }
