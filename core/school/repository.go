package school

import (
	"context"
	"errors"
	"time"
)

var (
	// errors
	ErrUserNotFound  = errors.New("user not found")
	ErrClassNotFound = errors.New("class not found")
	ErrTaskNotFound  = errors.New("task not found")
)

// Repository gives read access to the school data notifications are built from.
// Classes, tasks, enrollments and submissions are managed elsewhere.
type Repository interface {
	GetUser(ctx context.Context, id string) (User, error)
	GetClass(ctx context.Context, id string) (Class, error)
	GetTask(ctx context.Context, id string) (Task, error)
	// QueryTasksDueBetween returns tasks whose end falls in (from, to], soonest first.
	QueryTasksDueBetween(ctx context.Context, from, to time.Time) ([]Task, error)
	// QueryStudentsAtRisk returns the students enrolled in the task's class who
	// have not submitted yet or whose submission is not graded yet.
	QueryStudentsAtRisk(ctx context.Context, task Task) ([]User, error)
}
