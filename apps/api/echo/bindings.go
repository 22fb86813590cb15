package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tasktracker/core"
	"github.com/trezcool/tasktracker/core/notification"
)

var errInvalidTeacher = errors.New("teachers can only raise their own events")

type (
	TokenResponse struct {
		Token string `json:"token"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}

	// EventResponse is returned by the event hooks. Error is set when the event
	// itself could not be processed; the caller's action is never rejected for it.
	EventResponse struct {
		Outcome notification.Outcome `json:"outcome"`
		Error   string               `json:"error,omitempty"`
	}

	InboxFilter struct {
		ClassID string `query:"class_id" json:"class_id"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}

	TaskEventRequest struct {
		TaskID    string `json:"task_id" validate:"required"`
		ClassID   string `json:"class_id" validate:"required"`
		TeacherID string `json:"teacher_id"`
	}

	GradeEventRequest struct {
		StudentID string `json:"student_id" validate:"required"`
		TaskID    string `json:"task_id" validate:"required"`
		ClassID   string `json:"class_id" validate:"required"`
		TeacherID string `json:"teacher_id"`
		Grade     *int   `json:"grade" validate:"required,min=0,max=100"`
	}
)

func (f *InboxFilter) Bind(ctx echo.Context) {
	f.ClassID = core.CleanString(ctx.QueryParam("class_id"))
}

// Validate cleans the request. A teacher raising an event is the event's teacher.
func (r *TaskEventRequest) Validate(validate *validator.Validate, claims Claims) error {
	r.TaskID = core.CleanString(r.TaskID)
	r.ClassID = core.CleanString(r.ClassID)
	teacherID, err := eventTeacherID(r.TeacherID, claims)
	if err != nil {
		return err
	}
	r.TeacherID = teacherID
	return validate.Struct(r)
}

// eventTeacherID returns the teacher an event is raised by: a teacher always raises their own events.
func eventTeacherID(teacherID string, claims Claims) (string, error) {
	teacherID = core.CleanString(teacherID)
	if !claims.IsTeacher {
		return teacherID, nil
	}
	if teacherID != "" && teacherID != claims.Subject {
		return "", core.NewValidationError(errInvalidTeacher, core.FieldError{Field: "teacher_id", Error: errInvalidTeacher.Error()})
	}
	return claims.Subject, nil
}

func (r TaskEventRequest) Event() notification.TaskEvent {
	return notification.TaskEvent{TaskID: r.TaskID, ClassID: r.ClassID, TeacherID: r.TeacherID}
}

func (r *GradeEventRequest) Validate(validate *validator.Validate, claims Claims) error {
	r.StudentID = core.CleanString(r.StudentID)
	r.TaskID = core.CleanString(r.TaskID)
	r.ClassID = core.CleanString(r.ClassID)
	teacherID, err := eventTeacherID(r.TeacherID, claims)
	if err != nil {
		return err
	}
	r.TeacherID = teacherID
	return validate.Struct(r)
}

func (r GradeEventRequest) Event() notification.GradeEvent {
	return notification.GradeEvent{StudentID: r.StudentID, TaskID: r.TaskID, ClassID: r.ClassID, TeacherID: r.TeacherID, Grade: *r.Grade}
}
