package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tasktracker/core/notification"
	"github.com/trezcool/tasktracker/tests"
)

func TestWindowPolicy_Allow(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	room := e.classroom(t, "Geography", 2)
	task := testutil.CreateTask(t, e.schoolRepo, room.class, "Rivers", baseTime, baseTime.Add(24*time.Hour))
	student := room.students[0]

	_, err := e.repo.CreateNotification(ctx, notification.Notification{
		ID:          "reminder-1",
		Type:        notification.KindTaskDeadline,
		RecipientID: student.ID,
		TaskID:      task.ID,
		ClassID:     room.class.ID,
		Subject:     "Deadline Reminder: Rivers (Geography)",
		Message:     "<p>Rivers</p>",
		Status:      notification.StatusSent,
		CreatedAt:   baseTime,
	})
	require.NoError(t, err)

	policy := notification.NewWindowPolicy(e.repo, 48*time.Hour)
	candidate := func(kind notification.Kind, recipientID string, now time.Time) notification.Candidate {
		return notification.Candidate{Type: kind, RecipientID: recipientID, TaskID: task.ID, ClassID: room.class.ID, Now: now}
	}

	tests := []struct {
		name string
		c    notification.Candidate
		want bool
	}{
		{name: "deadline within window", c: candidate(notification.KindTaskDeadline, student.ID, baseTime.Add(time.Hour)), want: false},
		{name: "deadline at window end", c: candidate(notification.KindTaskDeadline, student.ID, baseTime.Add(48*time.Hour)), want: false},
		{name: "deadline past window", c: candidate(notification.KindTaskDeadline, student.ID, baseTime.Add(48*time.Hour+time.Second)), want: true},
		{name: "deadline for another student", c: candidate(notification.KindTaskDeadline, room.students[1].ID, baseTime.Add(time.Hour)), want: true},
		{name: "task created is never vetoed", c: candidate(notification.KindTaskCreated, student.ID, baseTime), want: true},
		{name: "task updated is never vetoed", c: candidate(notification.KindTaskUpdated, student.ID, baseTime), want: true},
		{name: "grade sent is never vetoed", c: candidate(notification.KindGradeSent, student.ID, baseTime), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.Allow(ctx, tt.c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
