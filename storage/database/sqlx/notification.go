package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasktracker/core"
	"github.com/trezcool/tasktracker/core/notification"
)

const notificationColumns = `id, type, recipient_id, task_id, class_id, subject, message, status,
	error_message, is_read, created_at, claimed_at, sent_at`

type notificationRow struct {
	ID           string      `db:"id"`
	Type         string      `db:"type"`
	RecipientID  string      `db:"recipient_id"`
	TaskID       null.String `db:"task_id"`
	ClassID      null.String `db:"class_id"`
	Subject      string      `db:"subject"`
	Message      string      `db:"message"`
	Status       string      `db:"status"`
	ErrorMessage null.String `db:"error_message"`
	IsRead       bool        `db:"is_read"`
	CreatedAt    time.Time   `db:"created_at"`
	ClaimedAt    null.Time   `db:"claimed_at"`
	SentAt       null.Time   `db:"sent_at"`
}

func newNotificationRow(n notification.Notification) notificationRow {
	row := notificationRow{
		ID:           n.ID,
		Type:         string(n.Type),
		RecipientID:  n.RecipientID,
		TaskID:       null.NewString(n.TaskID, n.TaskID != ""),
		ClassID:      null.NewString(n.ClassID, n.ClassID != ""),
		Subject:      n.Subject,
		Message:      n.Message,
		Status:       string(n.Status),
		ErrorMessage: null.NewString(n.ErrorMessage, n.ErrorMessage != ""),
		IsRead:       n.IsRead,
		CreatedAt:    n.CreatedAt.UTC(),
	}
	if n.ClaimedAt != nil {
		row.ClaimedAt = null.TimeFrom(n.ClaimedAt.UTC())
	}
	if n.SentAt != nil {
		row.SentAt = null.TimeFrom(n.SentAt.UTC())
	}
	return row
}

func (r notificationRow) toNotification() notification.Notification {
	n := notification.Notification{
		ID:           r.ID,
		Type:         notification.Kind(r.Type),
		RecipientID:  r.RecipientID,
		TaskID:       r.TaskID.String,
		ClassID:      r.ClassID.String,
		Subject:      r.Subject,
		Message:      r.Message,
		Status:       notification.Status(r.Status),
		ErrorMessage: r.ErrorMessage.String,
		IsRead:       r.IsRead,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.ClaimedAt.Valid {
		t := r.ClaimedAt.Time.UTC()
		n.ClaimedAt = &t
	}
	if r.SentAt.Valid {
		t := r.SentAt.Time.UTC()
		n.SentAt = &t
	}
	return n
}

func toNotifications(rows []notificationRow) []notification.Notification {
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, r.toNotification())
	}
	return notifs
}

type notificationRepository struct {
	db core.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db core.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	q := `INSERT INTO notifications (` + notificationColumns + `)
		VALUES (:id, :type, :recipient_id, :task_id, :class_id, :subject, :message, :status,
			:error_message, :is_read, :created_at, :claimed_at, :sent_at)`
	row := newNotificationRow(n)
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, row); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return row.toNotification(), nil
}

func (repo *notificationRepository) ExistsSince(ctx context.Context, kind notification.Kind, recipientID, taskID string, since time.Time) (bool, error) {
	q := repo.db.Rebind(`SELECT EXISTS (
		SELECT 1 FROM notifications
		WHERE type = ? AND recipient_id = ? AND task_id = ? AND created_at >= ?
	)`)
	var found bool
	if err := repo.db.GetContext(ctx, &found, q, string(kind), recipientID, taskID, since.UTC()); err != nil {
		return false, errors.Wrap(err, "checking notifications")
	}
	return found, nil
}

func (repo *notificationRepository) ClaimPending(ctx context.Context, limit int, now time.Time) ([]notification.Notification, error) {
	q := repo.db.Rebind(`UPDATE notifications SET status = ?, claimed_at = ?
		WHERE status = ? AND id IN (
			SELECT id FROM notifications WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT ?
		)
		RETURNING id`)

	var ids []string
	err := repo.db.SelectContext(ctx, &ids, q,
		string(notification.StatusSending), now.UTC(),
		string(notification.StatusPending), string(notification.StatusPending), limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "claiming notifications")
	}
	if len(ids) == 0 {
		return []notification.Notification{}, nil
	}

	// claimed rows are only ever touched by their claimer, so re-reading them is safe
	q, args, err := sqlx.In(`SELECT `+notificationColumns+` FROM notifications
		WHERE id IN (?) ORDER BY created_at ASC, id ASC`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building claimed query")
	}
	var rows []notificationRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "reading claimed notifications")
	}
	return toNotifications(rows), nil
}

func (repo *notificationRepository) finish(ctx context.Context, id, query string, args ...interface{}) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(notification.ErrNotFound, "claimed notification %s", id)
	}
	return nil
}

func (repo *notificationRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	err := repo.finish(ctx, id,
		`UPDATE notifications SET status = ?, sent_at = ?, error_message = NULL WHERE id = ? AND status = ?`,
		string(notification.StatusSent), sentAt.UTC(), id, string(notification.StatusSending),
	)
	return errors.Wrap(err, "marking notification as sent")
}

func (repo *notificationRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	err := repo.finish(ctx, id,
		`UPDATE notifications SET status = ?, error_message = ? WHERE id = ? AND status = ?`,
		string(notification.StatusFailed), reason, id, string(notification.StatusSending),
	)
	return errors.Wrap(err, "marking notification as failed")
}

func (repo *notificationRepository) ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int, error) {
	q := repo.db.Rebind(`UPDATE notifications SET status = ?, claimed_at = NULL WHERE status = ? AND claimed_at < ?`)
	res, err := repo.db.ExecContext(ctx, q, string(notification.StatusPending), string(notification.StatusSending), cutoff.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "releasing claims")
	}
	return rowsAffected(res)
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = ?`
	args := []interface{}{filter.RecipientID}
	if filter.ClassID != "" {
		q += ` AND class_id = ?`
		args = append(args, filter.ClassID)
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	return toNotifications(rows), nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	q := repo.db.Rebind(`SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`)
	var row notificationRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "getting notification")
	}
	return row.toNotification(), nil
}

func (repo *notificationRepository) MarkAllRead(ctx context.Context, recipientID, classID string) (int, error) {
	q := `UPDATE notifications SET is_read = ? WHERE recipient_id = ? AND is_read = ?`
	args := []interface{}{true, recipientID, false}
	if classID != "" {
		q += ` AND class_id = ?`
		args = append(args, classID)
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications as read")
	}
	return rowsAffected(res)
}

func (repo *notificationRepository) DeleteNotifications(ctx context.Context, recipientID string, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In(`DELETE FROM notifications WHERE recipient_id = ? AND id IN (?)`, recipientID, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting notifications")
	}
	return rowsAffected(res)
}

func (repo *notificationRepository) CountUnread(ctx context.Context, recipientID, classID string) (int, error) {
	q := `SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = ?`
	args := []interface{}{recipientID, false}
	if classID != "" {
		q += ` AND class_id = ?`
		args = append(args, classID)
	}
	var count int
	if err := repo.db.GetContext(ctx, &count, repo.db.Rebind(q), args...); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "reading affected rows")
	}
	return int(n), nil
}
