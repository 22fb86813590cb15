package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tasktracker/core"
	"github.com/trezcool/tasktracker/core/notification"
	"github.com/trezcool/tasktracker/core/school"
	"github.com/trezcool/tasktracker/tests"
)

// blockingMailer never delivers; it waits for the context to be done.
type blockingMailer struct{}

func (blockingMailer) Send(ctx context.Context, _ *core.EmailMessage) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcher_Flush_batches(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	room := e.classroom(t, "Math", 1)
	student := room.students[0]
	task := testutil.CreateTask(t, e.schoolRepo, room.class, "Algebra", baseTime, baseTime.Add(48*time.Hour))
	e.pending(t, 120, student, task)

	tests := []struct {
		want        notification.FlushResult
		wantPending int
		wantSent    int
	}{
		{want: notification.FlushResult{Claimed: 50, Sent: 50}, wantPending: 70, wantSent: 50},
		{want: notification.FlushResult{Claimed: 50, Sent: 50}, wantPending: 20, wantSent: 100},
		{want: notification.FlushResult{Claimed: 20, Sent: 20}, wantPending: 0, wantSent: 120},
		{want: notification.FlushResult{}, wantPending: 0, wantSent: 120},
	}
	for i, tt := range tests {
		res, err := e.dispatcher.Flush(ctx)
		require.NoError(t, err)
		assert.Equal(t, tt.want, res, "flush #%d", i+1)

		counts := e.countByStatus(t, student.ID)
		assert.Equal(t, tt.wantPending, counts[notification.StatusPending], "flush #%d", i+1)
		assert.Equal(t, tt.wantSent, counts[notification.StatusSent], "flush #%d", i+1)
		assert.Zero(t, counts[notification.StatusSending], "flush #%d", i+1)
	}
	assert.Len(t, e.mailer.SentMessages(), 120)
}

func TestDispatcher_Flush_oldestFirst(t *testing.T) {
	e := setup(t)
	room := e.classroom(t, "Chemistry", 1)
	student := room.students[0]
	task := testutil.CreateTask(t, e.schoolRepo, room.class, "Titration", baseTime, baseTime.Add(48*time.Hour))

	e.conf.Notification.BatchSize = 3
	dispatcher := notification.NewDispatcher(e.repo, e.schoolRepo, e.mailer, testutil.NewLogger(e.conf), e.conf).WithClock(e.clock.Now)

	created := e.pending(t, 5, student, task)
	res, err := dispatcher.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)

	for i, n := range created {
		want := notification.StatusSent
		if i >= 3 {
			want = notification.StatusPending
		}
		assert.Equal(t, want, e.get(t, n.ID).Status, "notification #%d", i)
	}
}

func TestDispatcher_Flush_failures(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	room := e.classroom(t, "Physics", 2)
	ok, unlucky := room.students[0], room.students[1]
	task := testutil.CreateTask(t, e.schoolRepo, room.class, "Pendulum", baseTime, baseTime.Add(48*time.Hour))
	ghost := school.User{ID: "ghost"}

	okNotifs := e.pending(t, 2, ok, task)
	unluckyNotifs := e.pending(t, 2, unlucky, task)
	ghostNotifs := e.pending(t, 1, ghost, task)
	e.mailer.FailFor(unlucky.Email)

	res, err := e.dispatcher.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, notification.FlushResult{Claimed: 5, Sent: 2, Failed: 3}, res)

	for _, n := range okNotifs {
		got := e.get(t, n.ID)
		assert.Equal(t, notification.StatusSent, got.Status)
		require.NotNil(t, got.SentAt)
		assert.True(t, got.SentAt.Equal(e.clock.Now()))
	}
	for _, n := range unluckyNotifs {
		got := e.get(t, n.ID)
		assert.Equal(t, notification.StatusFailed, got.Status)
		assert.Equal(t, "email delivery failed", got.ErrorMessage)
		assert.Nil(t, got.SentAt)
	}
	got := e.get(t, ghostNotifs[0].ID)
	assert.Equal(t, notification.StatusFailed, got.Status)
	assert.Equal(t, "recipient not found", got.ErrorMessage)

	t.Run("terminal records are never retried", func(t *testing.T) {
		attempts := e.mailer.Attempts()
		e.mailer.Reset()

		res, err := e.dispatcher.Flush(ctx)
		require.NoError(t, err)
		assert.Equal(t, notification.FlushResult{}, res)
		assert.Zero(t, e.mailer.Attempts())
		assert.Equal(t, 4, attempts)

		for _, n := range unluckyNotifs {
			assert.Equal(t, notification.StatusFailed, e.get(t, n.ID).Status)
		}
	})
}

func TestDispatcher_Flush_sendTimeout(t *testing.T) {
	e := setup(t)
	room := e.classroom(t, "Music", 1)
	task := testutil.CreateTask(t, e.schoolRepo, room.class, "Scales", baseTime, baseTime.Add(48*time.Hour))
	created := e.pending(t, 2, room.students[0], task)

	e.conf.Notification.SendTimeout = 20 * time.Millisecond
	dispatcher := notification.NewDispatcher(e.repo, e.schoolRepo, blockingMailer{}, testutil.NewLogger(e.conf), e.conf).WithClock(e.clock.Now)

	start := time.Now()
	res, err := dispatcher.Flush(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, notification.FlushResult{Claimed: 2, Failed: 2}, res)

	for _, n := range created {
		got := e.get(t, n.ID)
		assert.Equal(t, notification.StatusFailed, got.Status)
		assert.Equal(t, "email delivery failed", got.ErrorMessage)
	}
}

func TestDispatcher_ReleaseStale(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	room := e.classroom(t, "Art", 1)
	task := testutil.CreateTask(t, e.schoolRepo, room.class, "Sketch", baseTime, baseTime.Add(48*time.Hour))
	created := e.pending(t, 3, room.students[0], task)

	// simulate a dispatcher that crashed after claiming
	claimed, err := e.repo.ClaimPending(ctx, 2, e.clock.Now())
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	_, err = e.dispatcher.ReleaseStale(ctx, 0)
	assert.Error(t, err)

	e.clock.Add(5 * time.Minute)
	n, err := e.dispatcher.ReleaseStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	e.clock.Add(10 * time.Minute)
	n, err = e.dispatcher.ReleaseStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, c := range created {
		got := e.get(t, c.ID)
		assert.Equal(t, notification.StatusPending, got.Status)
		assert.Nil(t, got.ClaimedAt)
	}

	res, err := e.dispatcher.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, notification.FlushResult{Claimed: 3, Sent: 3}, res)
}
