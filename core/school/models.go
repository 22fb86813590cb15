package school

import (
	"net/mail"
	"strings"
	"time"
)

// Roles
const (
	RoleAdmin   = "admin:"
	RoleTeacher = "teacher:"
	RoleStudent = "student:"
)

var AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent}

type (
	User struct {
		ID        string    `json:"id" db:"id"`
		Name      string    `json:"name" db:"name"`
		Email     string    `json:"email" db:"email"`
		Role      string    `json:"role" db:"role"`
		CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	}

	Class struct {
		ID         string    `json:"id" db:"id"`
		Name       string    `json:"name" db:"name"`
		TeacherID  string    `json:"teacher_id" db:"teacher_id"`
		StudentIDs []string  `json:"student_ids" db:"-"` // current enrollments
		CreatedAt  time.Time `json:"created_at" db:"created_at"` // UTC
	}

	Task struct {
		ID          string    `json:"id" db:"id"`
		ClassID     string    `json:"class_id" db:"class_id"`
		Title       string    `json:"title" db:"title"`
		Description string    `json:"description" db:"description"`
		Start       time.Time `json:"start_datetime" db:"start_datetime"` // UTC
		End         time.Time `json:"end_datetime" db:"end_datetime"`     // UTC
		CreatedAt   time.Time `json:"created_at" db:"created_at"`         // UTC
	}

	Submission struct {
		ID          string    `json:"id" db:"id"`
		TaskID      string    `json:"task_id" db:"task_id"`
		StudentID   string    `json:"student_id" db:"student_id"`
		FilePath    string    `json:"file_path" db:"file_path"`
		Grade       *int      `json:"grade" db:"grade"`
		SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"` // UTC
	}
)

func (u *User) IsAdmin() bool   { return strings.HasPrefix(u.Role, RoleAdmin) }
func (u *User) IsTeacher() bool { return strings.HasPrefix(u.Role, RoleTeacher) }
func (u *User) IsStudent() bool { return strings.HasPrefix(u.Role, RoleStudent) }

// DisplayName falls back to the email when the user has no name.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	return u.Email
}

func (u *User) Address() mail.Address {
	return mail.Address{Name: u.Name, Address: u.Email}
}

func (c *Class) HasStudent(id string) bool {
	for _, sid := range c.StudentIDs {
		if sid == id {
			return true
		}
	}
	return false
}
