package notification

import (
	"time"
)

// Kind is the persisted notification type.
type Kind string

const (
	KindTaskCreated  Kind = "task_created"
	KindTaskUpdated  Kind = "task_updated"
	KindTaskDeadline Kind = "task_deadline"
	KindGradeSent    Kind = "grade_sent"
)

var AllKinds = []Kind{KindTaskCreated, KindTaskUpdated, KindTaskDeadline, KindGradeSent}

// Status is the delivery status of a Notification.
// pending -> sending -> sent | failed; sent and failed are terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

func (s Status) IsTerminal() bool { return s == StatusSent || s == StatusFailed }

// Event is one of TaskCreated, TaskUpdated, GradeSent or TaskDeadline.
type Event interface {
	Kind() Kind
	isEvent()
}

type (
	TaskCreated  struct{}
	TaskUpdated  struct{}
	TaskDeadline struct{}
	GradeSent    struct {
		Grade int `json:"grade" validate:"min=0,max=100"`
	}
)

func (TaskCreated) Kind() Kind  { return KindTaskCreated }
func (TaskUpdated) Kind() Kind  { return KindTaskUpdated }
func (TaskDeadline) Kind() Kind { return KindTaskDeadline }
func (GradeSent) Kind() Kind    { return KindGradeSent }

func (TaskCreated) isEvent()  {}
func (TaskUpdated) isEvent()  {}
func (TaskDeadline) isEvent() {}
func (GradeSent) isEvent()    {}

type Notification struct {
	ID           string     `json:"id"`
	Type         Kind       `json:"type"`
	RecipientID  string     `json:"recipient_id"`
	TaskID       string     `json:"task_id,omitempty"`
	ClassID      string     `json:"class_id,omitempty"`
	Subject      string     `json:"subject"`
	Message      string     `json:"message"`
	Status       Status     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	IsRead       bool       `json:"is_read"`
	CreatedAt    time.Time  `json:"created_at"`           // UTC
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"` // UTC
	SentAt       *time.Time `json:"sent_at,omitempty"`    // UTC
}

// Candidate is a notification about to be created, as seen by a DedupPolicy.
type Candidate struct {
	Type        Kind
	RecipientID string
	TaskID      string
	ClassID     string
	Now         time.Time
}

// TaskEvent is raised when a teacher creates or updates a task.
type TaskEvent struct {
	TaskID    string `json:"task_id" validate:"required"`
	ClassID   string `json:"class_id" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
}

// GradeEvent is raised when a teacher grades a submission.
type GradeEvent struct {
	StudentID string `json:"student_id" validate:"required"`
	TaskID    string `json:"task_id" validate:"required"`
	ClassID   string `json:"class_id" validate:"required"`
	TeacherID string `json:"teacher_id"` // optional, must teach the class
	Grade     int    `json:"grade" validate:"min=0,max=100"`
}

// DeadlineEvent carries the students of a task who still need a reminder.
type DeadlineEvent struct {
	TaskID     string
	StudentIDs []string
}

// Outcome summarises what an event produced.
type Outcome struct {
	Created int         `json:"created"`
	Skipped int         `json:"skipped"` // vetoed by the DedupPolicy
	Failed  int         `json:"failed"`  // lookup or render failures
	Flush   FlushResult `json:"flush"`
}

type FlushResult struct {
	Claimed int `json:"claimed"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

type ScanResult struct {
	Tasks      int         `json:"tasks"`
	Candidates int         `json:"candidates"`
	Created    int         `json:"created"`
	Skipped    int         `json:"skipped"`
	Failed     int         `json:"failed"`
	Flush      FlushResult `json:"flush"`
}

// QueryFilter selects inbox notifications. ClassID is optional.
type QueryFilter struct {
	RecipientID string
	ClassID     string
	Limit       int
}
