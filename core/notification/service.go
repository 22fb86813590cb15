package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/tasktracker/core"
	"github.com/trezcool/tasktracker/core/school"
)

type Service struct {
	repo       Repository
	schoolRepo school.Repository
	dedup      DedupPolicy
	renderer   *Renderer
	dispatcher *Dispatcher
	logger     core.Logger
	listLimit  int
	now        func() time.Time
}

func NewService(
	repo Repository,
	schoolRepo school.Repository,
	dedup DedupPolicy,
	renderer *Renderer,
	dispatcher *Dispatcher,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:       repo,
		schoolRepo: schoolRepo,
		dedup:      dedup,
		renderer:   renderer,
		dispatcher: dispatcher,
		logger:     logger,
		listLimit:  conf.Notification.ListLimit,
		now:        time.Now,
	}
}

// WithClock replaces time.Now.
func (svc *Service) WithClock(now func() time.Time) *Service {
	svc.now = now
	return svc
}

// eventContext is resolved once per event and shared by all its recipients.
type eventContext struct {
	task    school.Task
	class   school.Class
	teacher school.User
}

func (svc *Service) resolve(ctx context.Context, taskID, classID, teacherID string) (eventContext, error) {
	var ectx eventContext
	var err error

	if ectx.task, err = svc.schoolRepo.GetTask(ctx, taskID); err != nil {
		return ectx, errors.Wrapf(ErrLookup, "task %q: %v", taskID, err)
	}
	if classID == "" {
		classID = ectx.task.ClassID
	} else if classID != ectx.task.ClassID {
		return ectx, errors.Wrapf(ErrInvalidPayload, "task %q does not belong to class %q", taskID, classID)
	}
	if ectx.class, err = svc.schoolRepo.GetClass(ctx, classID); err != nil {
		return ectx, errors.Wrapf(ErrLookup, "class %q: %v", classID, err)
	}
	if teacherID == "" {
		teacherID = ectx.class.TeacherID
	} else if teacherID != ectx.class.TeacherID {
		return ectx, errors.Wrapf(ErrInvalidPayload, "teacher %q does not teach class %q", teacherID, classID)
	}
	if ectx.teacher, err = svc.schoolRepo.GetUser(ctx, teacherID); err != nil {
		return ectx, errors.Wrapf(ErrLookup, "teacher %q: %v", teacherID, err)
	}
	return ectx, nil
}

// OnTaskCreated notifies every student enrolled in the class, then flushes the queue.
func (svc *Service) OnTaskCreated(ctx context.Context, ev TaskEvent) (Outcome, error) {
	return svc.onTaskEvent(ctx, TaskCreated{}, ev)
}

// OnTaskUpdated notifies every student enrolled in the class, then flushes the queue.
func (svc *Service) OnTaskUpdated(ctx context.Context, ev TaskEvent) (Outcome, error) {
	return svc.onTaskEvent(ctx, TaskUpdated{}, ev)
}

func (svc *Service) onTaskEvent(ctx context.Context, event Event, ev TaskEvent) (Outcome, error) {
	ectx, err := svc.resolve(ctx, ev.TaskID, ev.ClassID, ev.TeacherID)
	if err != nil {
		return Outcome{}, err
	}
	out := svc.notifyAll(ctx, event, ectx, ectx.class.StudentIDs)
	out.Flush = svc.flush(ctx)
	return out, nil
}

// OnGradeSent notifies the graded student, then flushes the queue.
func (svc *Service) OnGradeSent(ctx context.Context, ev GradeEvent) (Outcome, error) {
	if ev.Grade < 0 || ev.Grade > 100 {
		return Outcome{}, errors.Wrapf(ErrInvalidPayload, "grade %d out of range", ev.Grade)
	}
	ectx, err := svc.resolve(ctx, ev.TaskID, ev.ClassID, ev.TeacherID)
	if err != nil {
		return Outcome{}, err
	}
	if !ectx.class.HasStudent(ev.StudentID) {
		return Outcome{}, errors.Wrapf(ErrInvalidPayload, "student %q is not enrolled in class %q", ev.StudentID, ectx.class.ID)
	}
	out := svc.notifyAll(ctx, GradeSent{Grade: ev.Grade}, ectx, []string{ev.StudentID})
	out.Flush = svc.flush(ctx)
	return out, nil
}

// OnTaskDeadline queues reminders for the given students. It does not flush.
func (svc *Service) OnTaskDeadline(ctx context.Context, ev DeadlineEvent) (Outcome, error) {
	ectx, err := svc.resolve(ctx, ev.TaskID, "", "")
	if err != nil {
		return Outcome{}, err
	}
	return svc.notifyAll(ctx, TaskDeadline{}, ectx, ev.StudentIDs), nil
}

func (svc *Service) notifyAll(ctx context.Context, event Event, ectx eventContext, recipientIDs []string) Outcome {
	var out Outcome
	seen := make(map[string]bool, len(recipientIDs))
	for _, id := range core.CleanStrings(recipientIDs) {
		if seen[id] {
			continue
		}
		seen[id] = true

		created, err := svc.notify(ctx, event, ectx, id)
		switch {
		case err != nil:
			out.Failed++
			svc.logger.Error(fmt.Sprintf("creating %s notification for %s: %v", event.Kind(), id, err), err)
		case created:
			out.Created++
		default:
			out.Skipped++
		}
	}
	return out
}

// notify creates one pending notification. It returns false when the DedupPolicy vetoes it.
func (svc *Service) notify(ctx context.Context, event Event, ectx eventContext, recipientID string) (bool, error) {
	now := svc.now().UTC()
	allowed, err := svc.dedup.Allow(ctx, Candidate{
		Type:        event.Kind(),
		RecipientID: recipientID,
		TaskID:      ectx.task.ID,
		ClassID:     ectx.class.ID,
		Now:         now,
	})
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, nil
	}

	recipient, err := svc.schoolRepo.GetUser(ctx, recipientID)
	if err != nil {
		return false, errors.Wrapf(ErrLookup, "recipient %q: %v", recipientID, err)
	}

	rendered, err := svc.renderer.Render(event, Payload{
		TaskID:          ectx.task.ID,
		TaskTitle:       ectx.task.Title,
		TaskDescription: ectx.task.Description,
		TaskStart:       ectx.task.Start,
		TaskEnd:         ectx.task.End,
		ClassID:         ectx.class.ID,
		ClassName:       ectx.class.Name,
		TeacherName:     ectx.teacher.DisplayName(),
		RecipientName:   recipient.DisplayName(),
		Now:             now,
	})
	if err != nil {
		return false, errors.Wrap(err, "rendering")
	}

	_, err = svc.repo.CreateNotification(ctx, Notification{
		ID:          uuid.NewString(),
		Type:        event.Kind(),
		RecipientID: recipientID,
		TaskID:      ectx.task.ID,
		ClassID:     ectx.class.ID,
		Subject:     rendered.Subject,
		Message:     rendered.Body,
		Status:      StatusPending,
		CreatedAt:   now,
	})
	if err != nil {
		return false, errors.Wrap(err, "saving")
	}
	return true, nil
}

func (svc *Service) flush(ctx context.Context) FlushResult {
	res, err := svc.dispatcher.Flush(ctx)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("flushing notifications: %v", err), err)
	}
	return res
}

// Inbox

// List returns the recipient's latest notifications, newest first. classID is optional.
func (svc *Service) List(ctx context.Context, recipientID, classID string) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, QueryFilter{
		RecipientID: recipientID,
		ClassID:     core.CleanString(classID),
		Limit:       svc.listLimit,
	})
}

func (svc *Service) MarkAllRead(ctx context.Context, recipientID, classID string) (int, error) {
	return svc.repo.MarkAllRead(ctx, recipientID, core.CleanString(classID))
}

func (svc *Service) UnreadCount(ctx context.Context, recipientID, classID string) (int, error) {
	return svc.repo.CountUnread(ctx, recipientID, core.CleanString(classID))
}

// Delete removes one of the recipient's notifications.
// A notification owned by someone else is reported as ErrNotFound.
func (svc *Service) Delete(ctx context.Context, id, recipientID string) error {
	n, err := svc.repo.DeleteNotifications(ctx, recipientID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes the given notifications owned by the recipient and ignores the others.
func (svc *Service) DeleteMany(ctx context.Context, ids []string, recipientID string) (int, error) {
	ids = core.CleanStrings(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	return svc.repo.DeleteNotifications(ctx, recipientID, ids...)
}
