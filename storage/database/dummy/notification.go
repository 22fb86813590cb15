package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/tasktracker/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification}
}

// query returns copies sorted oldest first.
func (repo *notificationRepository) query(keep func(n *notification.Notification) bool) []notification.Notification {
	notifs := make([]notification.Notification, 0)
	for _, n := range repo.db.table {
		if keep(n) {
			notifs = append(notifs, *n)
		}
	}
	sort.Slice(notifs, func(i, j int) bool {
		if notifs[i].CreatedAt.Equal(notifs[j].CreatedAt) {
			return notifs[i].ID < notifs[j].ID
		}
		return notifs[i].CreatedAt.Before(notifs[j].CreatedAt)
	})
	return notifs
}

func inClass(n *notification.Notification, classID string) bool {
	return classID == "" || n.ClassID == classID
}

func (repo *notificationRepository) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n.CreatedAt = n.CreatedAt.UTC()
	stored := n
	repo.db.table[n.ID] = &stored
	return n, nil
}

func (repo *notificationRepository) ExistsSince(_ context.Context, kind notification.Kind, recipientID, taskID string, since time.Time) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, n := range repo.db.table {
		if n.Type == kind && n.RecipientID == recipientID && n.TaskID == taskID && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *notificationRepository) ClaimPending(_ context.Context, limit int, now time.Time) ([]notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	pending := repo.query(func(n *notification.Notification) bool { return n.Status == notification.StatusPending })
	if limit >= 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	claimedAt := now.UTC()
	for i := range pending {
		stored := repo.db.table[pending[i].ID]
		stored.Status = notification.StatusSending
		stored.ClaimedAt = &claimedAt
		pending[i] = *stored
	}
	return pending, nil
}

func (repo *notificationRepository) finish(id string, update func(n *notification.Notification)) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	n, ok := repo.db.table[id]
	if !ok || n.Status != notification.StatusSending {
		return notification.ErrNotFound
	}
	update(n)
	return nil
}

func (repo *notificationRepository) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	return repo.finish(id, func(n *notification.Notification) {
		t := sentAt.UTC()
		n.Status = notification.StatusSent
		n.SentAt = &t
		n.ErrorMessage = ""
	})
}

func (repo *notificationRepository) MarkFailed(_ context.Context, id string, reason string) error {
	return repo.finish(id, func(n *notification.Notification) {
		n.Status = notification.StatusFailed
		n.ErrorMessage = reason
	})
}

func (repo *notificationRepository) ReleaseStaleClaims(_ context.Context, cutoff time.Time) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var count int
	for _, n := range repo.db.table {
		if n.Status == notification.StatusSending && n.ClaimedAt != nil && n.ClaimedAt.Before(cutoff) {
			n.Status = notification.StatusPending
			n.ClaimedAt = nil
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	notifs := repo.query(func(n *notification.Notification) bool {
		return n.RecipientID == filter.RecipientID && inClass(n, filter.ClassID)
	})
	// newest first
	for i, j := 0, len(notifs)-1; i < j; i, j = i+1, j-1 {
		notifs[i], notifs[j] = notifs[j], notifs[i]
	}
	if filter.Limit > 0 && len(notifs) > filter.Limit {
		notifs = notifs[:filter.Limit]
	}
	return notifs, nil
}

func (repo *notificationRepository) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) MarkAllRead(_ context.Context, recipientID, classID string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var count int
	for _, n := range repo.db.table {
		if n.RecipientID == recipientID && !n.IsRead && inClass(n, classID) {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) DeleteNotifications(_ context.Context, recipientID string, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var count int
	for _, id := range ids {
		if n, ok := repo.db.table[id]; ok && n.RecipientID == recipientID {
			delete(repo.db.table, id)
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) CountUnread(_ context.Context, recipientID, classID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, n := range repo.db.table {
		if n.RecipientID == recipientID && !n.IsRead && inClass(n, classID) {
			count++
		}
	}
	return count, nil
}
