package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tasktracker/core"
	"github.com/trezcool/tasktracker/core/school"
)

const (
	userColumns = `id, name, email, role, created_at`
	taskColumns = `id, class_id, title, description, start_datetime, end_datetime, created_at`
)

type schoolRepository struct {
	db core.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

// NewSchoolRepository returns the read side used by notifications along with
// the writes used to seed school data.
func NewSchoolRepository(db core.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) GetUser(ctx context.Context, id string) (school.User, error) {
	var usr school.User
	q := repo.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &usr, q, id); err != nil {
		if err == sql.ErrNoRows {
			return school.User{}, school.ErrUserNotFound
		}
		return school.User{}, errors.Wrap(err, "getting user")
	}
	usr.CreatedAt = usr.CreatedAt.UTC()
	return usr, nil
}

func (repo *schoolRepository) GetClass(ctx context.Context, id string) (school.Class, error) {
	var class school.Class
	q := repo.db.Rebind(`SELECT id, name, teacher_id, created_at FROM classes WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &class, q, id); err != nil {
		if err == sql.ErrNoRows {
			return school.Class{}, school.ErrClassNotFound
		}
		return school.Class{}, errors.Wrap(err, "getting class")
	}
	class.CreatedAt = class.CreatedAt.UTC()

	q = repo.db.Rebind(`SELECT student_id FROM enrollments WHERE class_id = ? ORDER BY enrolled_at ASC, student_id ASC`)
	if err := repo.db.SelectContext(ctx, &class.StudentIDs, q, id); err != nil {
		return school.Class{}, errors.Wrap(err, "querying enrollments")
	}
	return class, nil
}

func (repo *schoolRepository) GetTask(ctx context.Context, id string) (school.Task, error) {
	var task school.Task
	q := repo.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &task, q, id); err != nil {
		if err == sql.ErrNoRows {
			return school.Task{}, school.ErrTaskNotFound
		}
		return school.Task{}, errors.Wrap(err, "getting task")
	}
	return utcTask(task), nil
}

func (repo *schoolRepository) QueryTasksDueBetween(ctx context.Context, from, to time.Time) ([]school.Task, error) {
	var tasks []school.Task
	q := repo.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks
		WHERE end_datetime > ? AND end_datetime <= ?
		ORDER BY end_datetime ASC, id ASC`)
	if err := repo.db.SelectContext(ctx, &tasks, q, from.UTC(), to.UTC()); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	for i := range tasks {
		tasks[i] = utcTask(tasks[i])
	}
	return tasks, nil
}

func (repo *schoolRepository) QueryStudentsAtRisk(ctx context.Context, task school.Task) ([]school.User, error) {
	var users []school.User
	q := repo.db.Rebind(`SELECT u.id, u.name, u.email, u.role, u.created_at
		FROM enrollments e
		JOIN users u ON u.id = e.student_id
		LEFT JOIN submissions s ON s.task_id = ? AND s.student_id = e.student_id
		WHERE e.class_id = ? AND (s.id IS NULL OR s.grade IS NULL)
		ORDER BY e.enrolled_at ASC, u.id ASC`)
	if err := repo.db.SelectContext(ctx, &users, q, task.ID, task.ClassID); err != nil {
		return nil, errors.Wrap(err, "querying students at risk")
	}
	return users, nil
}

// Writes

func (repo *schoolRepository) CreateUser(ctx context.Context, usr school.User) (school.User, error) {
	usr.CreatedAt = usr.CreatedAt.UTC()
	q := repo.db.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?)`)
	if _, err := repo.db.ExecContext(ctx, q, usr.ID, usr.Name, usr.Email, usr.Role, usr.CreatedAt); err != nil {
		return school.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *schoolRepository) CreateClass(ctx context.Context, class school.Class) (school.Class, error) {
	class.CreatedAt = class.CreatedAt.UTC()
	q := repo.db.Rebind(`INSERT INTO classes (id, name, teacher_id, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := repo.db.ExecContext(ctx, q, class.ID, class.Name, class.TeacherID, class.CreatedAt); err != nil {
		return school.Class{}, errors.Wrap(err, "inserting class")
	}
	if len(class.StudentIDs) > 0 {
		if err := repo.Enroll(ctx, class.ID, class.StudentIDs...); err != nil {
			return school.Class{}, err
		}
	}
	return class, nil
}

// Enroll adds the students to the class in a single transaction.
func (repo *schoolRepository) Enroll(ctx context.Context, classID string, studentIDs ...string) (err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	q := tx.Rebind(`INSERT INTO enrollments (class_id, student_id, enrolled_at) VALUES (?, ?, ?)`)
	for i, sid := range studentIDs {
		// keep insertion order stable for equal clocks
		at := now.Add(time.Duration(i) * time.Microsecond)
		if _, err = tx.ExecContext(ctx, q, classID, sid, at); err != nil {
			return errors.Wrapf(err, "enrolling %s", sid)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing enrollments")
	}
	return nil
}

// Unenroll removes the students from the class.
func (repo *schoolRepository) Unenroll(ctx context.Context, classID string, studentIDs ...string) error {
	for _, sid := range studentIDs {
		q := repo.db.Rebind(`DELETE FROM enrollments WHERE class_id = ? AND student_id = ?`)
		if _, err := repo.db.ExecContext(ctx, q, classID, sid); err != nil {
			return errors.Wrapf(err, "unenrolling %s", sid)
		}
	}
	return nil
}

func (repo *schoolRepository) CreateTask(ctx context.Context, task school.Task) (school.Task, error) {
	task = utcTask(task)
	q := repo.db.Rebind(`INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q,
		task.ID, task.ClassID, task.Title, task.Description, task.Start, task.End, task.CreatedAt)
	if err != nil {
		return school.Task{}, errors.Wrap(err, "inserting task")
	}
	return task, nil
}

func (repo *schoolRepository) CreateSubmission(ctx context.Context, sub school.Submission) (school.Submission, error) {
	sub.SubmittedAt = sub.SubmittedAt.UTC()
	q := repo.db.Rebind(`INSERT INTO submissions (id, task_id, student_id, file_path, grade, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q, sub.ID, sub.TaskID, sub.StudentID, sub.FilePath, sub.Grade, sub.SubmittedAt)
	if err != nil {
		return school.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func utcTask(t school.Task) school.Task {
	t.Start = t.Start.UTC()
	t.End = t.End.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return t
}
