package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tasktracker/core"
	"github.com/trezcool/tasktracker/core/school"
)

// ReminderFinder queues deadline reminders for students who still have work
// due soon. It is run periodically by an external scheduler.
type ReminderFinder struct {
	schoolRepo school.Repository
	svc        *Service
	dispatcher *Dispatcher
	logger     core.Logger
	lookahead  time.Duration
	now        func() time.Time
}

func NewReminderFinder(
	schoolRepo school.Repository,
	svc *Service,
	dispatcher *Dispatcher,
	logger core.Logger,
	conf *core.Config,
) *ReminderFinder {
	return &ReminderFinder{
		schoolRepo: schoolRepo,
		svc:        svc,
		dispatcher: dispatcher,
		logger:     logger,
		lookahead:  conf.Notification.ReminderLookahead,
		now:        time.Now,
	}
}

// WithClock replaces time.Now.
func (f *ReminderFinder) WithClock(now func() time.Time) *ReminderFinder {
	f.now = now
	return f
}

// Run scans the tasks due in (now, now+lookahead] and flushes the queue once.
func (f *ReminderFinder) Run(ctx context.Context) (ScanResult, error) {
	var res ScanResult

	now := f.now().UTC()
	tasks, err := f.schoolRepo.QueryTasksDueBetween(ctx, now, now.Add(f.lookahead))
	if err != nil {
		return res, errors.Wrap(err, "querying tasks due soon")
	}
	res.Tasks = len(tasks)

	for _, task := range tasks {
		students, err := f.schoolRepo.QueryStudentsAtRisk(ctx, task)
		if err != nil {
			f.logger.Error(fmt.Sprintf("querying students at risk for task %s: %v", task.ID, err), err)
			continue
		}
		if len(students) == 0 {
			continue
		}

		ids := make([]string, 0, len(students))
		for _, s := range students {
			ids = append(ids, s.ID)
		}
		res.Candidates += len(ids)

		out, err := f.svc.OnTaskDeadline(ctx, DeadlineEvent{TaskID: task.ID, StudentIDs: ids})
		if err != nil {
			res.Failed += len(ids)
			f.logger.Error(fmt.Sprintf("queueing reminders for task %s: %v", task.ID, err), err)
			continue
		}
		res.Created += out.Created
		res.Skipped += out.Skipped
		res.Failed += out.Failed
	}

	if res.Flush, err = f.dispatcher.Flush(ctx); err != nil {
		return res, errors.Wrap(err, "flushing reminders")
	}
	return res, nil
}
