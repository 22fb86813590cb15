package notification_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/tasktracker/core"
	"github.com/trezcool/tasktracker/core/notification"
	"github.com/trezcool/tasktracker/core/school"
	emailsvc "github.com/trezcool/tasktracker/services/email"
	dummydb "github.com/trezcool/tasktracker/storage/database/dummy"
	"github.com/trezcool/tasktracker/tests"
)

var baseTime = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	conf       *core.Config
	clock      *clock
	schoolRepo testutil.SchoolStore
	repo       notification.Repository
	mailer     *emailsvc.ServiceMock
	renderer   *notification.Renderer
	dispatcher *notification.Dispatcher
	svc        *notification.Service
	finder     *notification.ReminderFinder
}

func setup(t *testing.T, mailer ...core.EmailService) *env {
	t.Helper()

	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	db := dummydb.Open()

	e := &env{
		conf:       conf,
		clock:      &clock{now: baseTime},
		schoolRepo: dummydb.NewSchoolRepository(db),
		repo:       dummydb.NewNotificationRepository(db),
		mailer:     emailsvc.NewServiceMock(),
	}
	var transport core.EmailService = e.mailer
	if len(mailer) > 0 {
		transport = mailer[0]
	}

	renderer, err := notification.NewRenderer(core.NewValidate(core.NewTranslator()), conf.Notification.Location(), conf.FrontendBaseURL)
	if err != nil {
		t.Fatalf("NewRenderer() failed: %v", err)
	}
	e.renderer = renderer
	e.dispatcher = notification.NewDispatcher(e.repo, e.schoolRepo, transport, logger, conf).WithClock(e.clock.Now)
	e.svc = notification.NewService(
		e.repo, e.schoolRepo,
		notification.NewWindowPolicy(e.repo, conf.Notification.DedupWindow),
		renderer, e.dispatcher, logger, conf,
	).WithClock(e.clock.Now)
	e.finder = notification.NewReminderFinder(e.schoolRepo, e.svc, e.dispatcher, logger, conf).WithClock(e.clock.Now)
	return e
}

// school fixture: a teacher, a class and its students.
type classroom struct {
	teacher  school.User
	students []school.User
	class    school.Class
}

func (e *env) classroom(t *testing.T, name string, nStudents int) classroom {
	t.Helper()

	teacher := testutil.CreateUser(t, e.schoolRepo, "Mr "+name, "teacher-"+uuid.NewString()+"@test.cd", school.RoleTeacher)
	students := make([]school.User, 0, nStudents)
	for i := 0; i < nStudents; i++ {
		students = append(students, testutil.CreateUser(t, e.schoolRepo, "Student", uuid.NewString()+"@test.cd", school.RoleStudent))
	}
	return classroom{
		teacher:  teacher,
		students: students,
		class:    testutil.CreateClass(t, e.schoolRepo, name, teacher, students...),
	}
}

// pending inserts n pending notifications for recipient, one second apart.
func (e *env) pending(t *testing.T, n int, recipient school.User, task school.Task) []notification.Notification {
	t.Helper()

	notifs := make([]notification.Notification, 0, n)
	for i := 0; i < n; i++ {
		created, err := e.repo.CreateNotification(context.Background(), notification.Notification{
			ID:          uuid.NewString(),
			Type:        notification.KindTaskCreated,
			RecipientID: recipient.ID,
			TaskID:      task.ID,
			ClassID:     task.ClassID,
			Subject:     "New Task: " + task.Title,
			Message:     "<p>" + task.Title + "</p>",
			Status:      notification.StatusPending,
			CreatedAt:   e.clock.Now(),
		})
		if err != nil {
			t.Fatalf("CreateNotification() failed: %v", err)
		}
		notifs = append(notifs, created)
		e.clock.Add(time.Second)
	}
	return notifs
}

func (e *env) get(t *testing.T, id string) notification.Notification {
	t.Helper()

	n, err := e.repo.GetNotification(context.Background(), id)
	if err != nil {
		t.Fatalf("GetNotification() failed: %v", err)
	}
	return n
}

func (e *env) countByStatus(t *testing.T, recipientID string) map[notification.Status]int {
	t.Helper()

	notifs, err := e.repo.QueryNotifications(context.Background(), notification.QueryFilter{RecipientID: recipientID})
	if err != nil {
		t.Fatalf("QueryNotifications() failed: %v", err)
	}
	counts := make(map[notification.Status]int)
	for _, n := range notifs {
		counts[n.Status]++
	}
	return counts
}
