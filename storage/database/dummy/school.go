package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/tasktracker/core/school"
)

type schoolRepository struct {
	db *schoolTables
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db.school}
}

func submissionKey(taskID, studentID string) string { return taskID + "/" + studentID }

func (repo *schoolRepository) GetUser(_ context.Context, id string) (school.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return *usr, nil
	}
	return school.User{}, school.ErrUserNotFound
}

func (repo *schoolRepository) GetClass(_ context.Context, id string) (school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if class, ok := repo.db.classes[id]; ok {
		c := *class
		c.StudentIDs = append([]string(nil), class.StudentIDs...)
		return c, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *schoolRepository) GetTask(_ context.Context, id string) (school.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if task, ok := repo.db.tasks[id]; ok {
		return *task, nil
	}
	return school.Task{}, school.ErrTaskNotFound
}

func (repo *schoolRepository) QueryTasksDueBetween(_ context.Context, from, to time.Time) ([]school.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tasks := make([]school.Task, 0)
	for _, task := range repo.db.tasks {
		if task.End.After(from) && !task.End.After(to) {
			tasks = append(tasks, *task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].End.Equal(tasks[j].End) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].End.Before(tasks[j].End)
	})
	return tasks, nil
}

func (repo *schoolRepository) QueryStudentsAtRisk(_ context.Context, task school.Task) ([]school.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	class, ok := repo.db.classes[task.ClassID]
	if !ok {
		return nil, nil
	}
	users := make([]school.User, 0, len(class.StudentIDs))
	for _, sid := range class.StudentIDs {
		if sub, ok := repo.db.submissions[submissionKey(task.ID, sid)]; ok && sub.Grade != nil {
			continue
		}
		if usr, ok := repo.db.users[sid]; ok {
			users = append(users, *usr)
		}
	}
	return users, nil
}

// Writes

func (repo *schoolRepository) CreateUser(_ context.Context, usr school.User) (school.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr.CreatedAt = usr.CreatedAt.UTC()
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *schoolRepository) CreateClass(_ context.Context, class school.Class) (school.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	class.CreatedAt = class.CreatedAt.UTC()
	c := class
	c.StudentIDs = append([]string(nil), class.StudentIDs...)
	repo.db.classes[class.ID] = &c
	return class, nil
}

func (repo *schoolRepository) Enroll(_ context.Context, classID string, studentIDs ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if class, ok := repo.db.classes[classID]; ok {
		for _, sid := range studentIDs {
			if !class.HasStudent(sid) {
				class.StudentIDs = append(class.StudentIDs, sid)
			}
		}
		return nil
	}
	return school.ErrClassNotFound
}

func (repo *schoolRepository) Unenroll(_ context.Context, classID string, studentIDs ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	class, ok := repo.db.classes[classID]
	if !ok {
		return school.ErrClassNotFound
	}
	drop := make(map[string]bool, len(studentIDs))
	for _, sid := range studentIDs {
		drop[sid] = true
	}
	kept := class.StudentIDs[:0]
	for _, sid := range class.StudentIDs {
		if !drop[sid] {
			kept = append(kept, sid)
		}
	}
	class.StudentIDs = kept
	return nil
}

func (repo *schoolRepository) CreateTask(_ context.Context, task school.Task) (school.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	task.Start = task.Start.UTC()
	task.End = task.End.UTC()
	task.CreatedAt = task.CreatedAt.UTC()
	repo.db.tasks[task.ID] = &task
	return task, nil
}

func (repo *schoolRepository) CreateSubmission(_ context.Context, sub school.Submission) (school.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sub.SubmittedAt = sub.SubmittedAt.UTC()
	repo.db.submissions[submissionKey(sub.TaskID, sub.StudentID)] = &sub
	return sub, nil
}
