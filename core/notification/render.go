package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	appfs "github.com/trezcool/tasktracker/fs"
)

const dateLayout = "02/01/2006 15:04"

var labels = map[Kind]string{
	KindTaskCreated:  "New Task",
	KindTaskUpdated:  "Task Updated",
	KindGradeSent:    "Grade Received",
	KindTaskDeadline: "Deadline Reminder",
}

// Payload is everything a notification is rendered from.
type Payload struct {
	TaskID          string    `json:"task_id" validate:"required"`
	TaskTitle       string    `json:"task_title" validate:"notblank"`
	TaskDescription string    `json:"task_description"`
	TaskStart       time.Time `json:"task_start"`
	TaskEnd         time.Time `json:"task_end" validate:"required"`
	ClassID         string    `json:"class_id" validate:"required"`
	ClassName       string    `json:"class_name" validate:"notblank"`
	TeacherName     string    `json:"teacher_name" validate:"notblank"`
	RecipientName   string    `json:"recipient_name" validate:"notblank"`
	Now             time.Time `json:"now" validate:"required"`
}

type Rendered struct {
	Subject string
	Body    string // HTML
}

type tmplData struct {
	Label           string
	RecipientName   string
	TeacherName     string
	TaskTitle       string
	TaskDescription string
	ClassName       string
	Start           string
	End             string
	Link            string
	HoursLeft       string
	Grade           int
}

// Renderer turns an Event and its Payload into a subject and an HTML body.
type Renderer struct {
	templates       map[Kind]*template.Template
	validate        *validator.Validate
	loc             *time.Location
	frontendBaseURL string
}

// NewRenderer parses the embedded notification templates.
func NewRenderer(validate *validator.Validate, loc *time.Location, frontendBaseURL string) (*Renderer, error) {
	if loc == nil {
		loc = time.UTC
	}
	r := &Renderer{
		templates:       make(map[Kind]*template.Template, len(AllKinds)),
		validate:        validate,
		loc:             loc,
		frontendBaseURL: frontendBaseURL,
	}
	for _, kind := range AllKinds {
		tmpl, err := template.New("_base.gohtml").
			Option("missingkey=error").
			ParseFS(appfs.FS, "templates/notification/_base.gohtml", "templates/notification/"+string(kind)+".gohtml")
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s template", kind)
		}
		r.templates[kind] = tmpl
	}
	return r, nil
}

// Render is pure: the only error it returns wraps ErrInvalidPayload (or a template failure).
func (r *Renderer) Render(ev Event, p Payload) (Rendered, error) {
	if ev == nil {
		return Rendered{}, errors.Wrap(ErrInvalidPayload, "nil event")
	}
	if err := r.validate.Struct(p); err != nil {
		return Rendered{}, errors.Wrap(ErrInvalidPayload, err.Error())
	}

	data := tmplData{
		Label:           labels[ev.Kind()],
		RecipientName:   p.RecipientName,
		TeacherName:     p.TeacherName,
		TaskTitle:       p.TaskTitle,
		TaskDescription: p.TaskDescription,
		ClassName:       p.ClassName,
		Start:           r.formatDate(p.TaskStart),
		End:             r.formatDate(p.TaskEnd),
		Link:            TaskLink(r.frontendBaseURL, p.ClassID, p.TaskID),
	}

	switch e := ev.(type) {
	case TaskCreated, TaskUpdated:
	case GradeSent:
		if err := r.validate.Struct(e); err != nil {
			return Rendered{}, errors.Wrap(ErrInvalidPayload, err.Error())
		}
		data.Grade = e.Grade
	case TaskDeadline:
		data.HoursLeft = strconv.FormatFloat(HoursLeft(p.TaskEnd, p.Now), 'f', -1, 64)
	default:
		return Rendered{}, errors.Wrapf(ErrInvalidPayload, "unknown event %T", ev)
	}

	var buff bytes.Buffer
	if err := r.templates[ev.Kind()].Execute(&buff, data); err != nil {
		return Rendered{}, errors.Wrapf(err, "executing %s template", ev.Kind())
	}
	return Rendered{
		Subject: fmt.Sprintf("%s: %s (%s)", data.Label, p.TaskTitle, p.ClassName),
		Body:    buff.String(),
	}, nil
}

func (r *Renderer) formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(r.loc).Format(dateLayout)
}

// HoursLeft returns the hours between now and due, rounded to one decimal.
func HoursLeft(due, now time.Time) float64 {
	return math.Round(due.Sub(now).Hours()*10) / 10
}

// TaskLink is the frontend page of a task.
func TaskLink(baseURL, classID, taskID string) string {
	return fmt.Sprintf("%s/classes/%s/tasks/%s", baseURL, classID, taskID)
}
