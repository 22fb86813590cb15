package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tasktracker/core"
	"github.com/trezcool/tasktracker/core/notification"
	"github.com/trezcool/tasktracker/core/school"
	emailsvc "github.com/trezcool/tasktracker/services/email"
	sqlxrepos "github.com/trezcool/tasktracker/storage/database/sqlx"
	"github.com/trezcool/tasktracker/tests"
)

type env struct {
	cli        *commandLine
	out        *bytes.Buffer
	svc        *notification.Service
	repo       notification.Repository
	schoolRepo testutil.SchoolStore
	mailer     *emailsvc.ServiceMock
}

func setup(t *testing.T) *env {
	t.Helper()

	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	validate := core.NewValidate(core.NewTranslator())

	// set up DB & repos
	db := testutil.PrepareDB(t)
	e := &env{
		out:        new(bytes.Buffer),
		repo:       sqlxrepos.NewNotificationRepository(db),
		schoolRepo: sqlxrepos.NewSchoolRepository(db),
		mailer:     emailsvc.NewServiceMock(),
	}

	renderer, err := notification.NewRenderer(validate, conf.Notification.Location(), conf.FrontendBaseURL)
	require.NoError(t, err)
	dispatcher := notification.NewDispatcher(e.repo, e.schoolRepo, e.mailer, logger, conf)
	e.svc = notification.NewService(
		e.repo, e.schoolRepo,
		notification.NewWindowPolicy(e.repo, conf.Notification.DedupWindow),
		renderer, dispatcher, logger, conf,
	)

	// start CLI
	e.cli = &commandLine{
		db:         db,
		dispatcher: dispatcher,
		finder:     notification.NewReminderFinder(e.schoolRepo, e.svc, dispatcher, logger, conf),
		out:        e.out,
	}
	return e
}

// world creates a class of 2 students with a task due in 5 hours.
func (e *env) world(t *testing.T) (school.Task, []school.User) {
	t.Helper()

	teacher := testutil.CreateUser(t, e.schoolRepo, "Mme Kabila", "kabila@test.cd", school.RoleTeacher)
	students := []school.User{
		testutil.CreateUser(t, e.schoolRepo, "Zawadi", "zawadi@test.cd", school.RoleStudent),
		testutil.CreateUser(t, e.schoolRepo, "Neema", "neema@test.cd", school.RoleStudent),
	}
	class := testutil.CreateClass(t, e.schoolRepo, "Biology 6C", teacher, students...)
	now := time.Now()
	task := testutil.CreateTask(t, e.schoolRepo, class, "Photosynthesis", now.Add(-time.Hour), now.Add(5*time.Hour))
	return task, students
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (e *env) run(t *testing.T, tt cliTest) {
	t.Helper()

	err := e.cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	e := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.out.Reset()
			e.run(t, tt)
			assert.Contains(t, e.out.String(), "release-stale -older-than DURATION")
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	e := setup(t)

	orig := runMigrationsFunc
	t.Cleanup(func() { runMigrationsFunc = orig })
	runMigrationsFunc = func(ctx context.Context, db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "rubric", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.run(t, tt)
		})
	}
}

func Test_commandLine_migrate_embedded(t *testing.T) {
	e := setup(t)

	// PrepareDB already applied every migration
	e.run(t, cliTest{args: []string{"migrate", "up"}})
	e.run(t, cliTest{args: []string{"migrate", "status"}})
}

func Test_commandLine_flush(t *testing.T) {
	e := setup(t)
	task, students := e.world(t)

	// deadline events queue without sending
	out, err := e.svc.OnTaskDeadline(context.Background(), notification.DeadlineEvent{
		TaskID:     task.ID,
		StudentIDs: []string{students[0].ID, students[1].ID},
	})
	require.NoError(t, err)
	require.Equal(t, 2, out.Created)
	require.Empty(t, e.mailer.SentMessages())

	e.run(t, cliTest{args: []string{"flush"}})
	var res notification.FlushResult
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &res))
	assert.Equal(t, notification.FlushResult{Claimed: 2, Sent: 2}, res)
	assert.Len(t, e.mailer.SentMessages(), 2)

	e.out.Reset()
	e.run(t, cliTest{args: []string{"flush"}})
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &res))
	assert.Equal(t, notification.FlushResult{}, res)
}

func Test_commandLine_remind(t *testing.T) {
	e := setup(t)
	task, students := e.world(t)
	testutil.CreateSubmission(t, e.schoolRepo, task, students[0], testutil.IntPtr(17))

	e.run(t, cliTest{args: []string{"remind"}})
	var res notification.ScanResult
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &res))
	assert.Equal(t, 1, res.Tasks)
	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, notification.FlushResult{Claimed: 1, Sent: 1}, res.Flush)

	sent := e.mailer.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, students[1].Email, sent[0].To[0].Address)

	// already reminded within the dedup window
	e.out.Reset()
	e.run(t, cliTest{args: []string{"remind"}})
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &res))
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Skipped)
}

func Test_commandLine_releaseStale(t *testing.T) {
	e := setup(t)
	task, students := e.world(t)
	ctx := context.Background()

	_, err := e.svc.OnTaskDeadline(ctx, notification.DeadlineEvent{TaskID: task.ID, StudentIDs: []string{students[0].ID}})
	require.NoError(t, err)
	// a dispatcher that crashed two hours ago
	claimed, err := e.repo.ClaimPending(ctx, 10, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	tests := []cliTest{
		{name: "no flag", args: []string{"release-stale"}, wantErr: errHelp},
		{name: "negative", args: []string{"release-stale", "-older-than", "-1h"}, wantErr: errHelp},
		{name: "bad duration", args: []string{"release-stale", "-older-than", "lol"}, wantErrStr: `invalid value "lol" for flag -older-than: parse error`},
		{name: "too recent", args: []string{"release-stale", "-older-than", "3h"}},
		{name: "stale", args: []string{"release-stale", "-older-than", "1h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.run(t, tt)
		})
	}
	assert.Contains(t, e.out.String(), "released 0 notification(s)")
	assert.Contains(t, e.out.String(), "released 1 notification(s)")

	// back in the queue
	res, err := e.cli.dispatcher.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, notification.FlushResult{Claimed: 1, Sent: 1}, res)
}
