package dummydb

import (
	"sync"

	"github.com/trezcool/tasktracker/core/notification"
	"github.com/trezcool/tasktracker/core/school"
)

type (
	// DB is an in-memory store used by tests and local experiments.
	DB struct {
		school       *schoolTables
		notification *notificationTable
	}

	schoolTables struct {
		sync.RWMutex
		users       map[string]*school.User
		classes     map[string]*school.Class
		tasks       map[string]*school.Task
		submissions map[string]*school.Submission // {taskID/studentID: submission}
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}
)

func Open() *DB {
	return &DB{
		school: &schoolTables{
			users:       make(map[string]*school.User),
			classes:     make(map[string]*school.Class),
			tasks:       make(map[string]*school.Task),
			submissions: make(map[string]*school.Submission),
		},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
	}
}
