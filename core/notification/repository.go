package notification

import (
	"context"
	"errors"
	"time"
)

var (
	// errors
	ErrNotFound       = errors.New("notification not found")
	ErrInvalidPayload = errors.New("invalid notification payload")
	ErrLookup         = errors.New("notification lookup failed")
	ErrTransport      = errors.New("email delivery failed")
)

// Repository is the notification record store.
type Repository interface {
	CreateNotification(ctx context.Context, n Notification) (Notification, error)
	// ExistsSince reports whether a notification of kind for (recipientID, taskID)
	// was created at or after since.
	ExistsSince(ctx context.Context, kind Kind, recipientID, taskID string, since time.Time) (bool, error)
	// ClaimPending atomically moves up to limit pending notifications, oldest first,
	// to sending and returns them. A record is never returned by two calls.
	ClaimPending(ctx context.Context, limit int, now time.Time) ([]Notification, error)
	// MarkSent and MarkFailed only act on claimed (sending) records.
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
	// ReleaseStaleClaims moves sending records claimed before cutoff back to pending.
	ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int, error)
	// QueryNotifications returns the recipient's notifications, newest first.
	QueryNotifications(ctx context.Context, filter QueryFilter) ([]Notification, error)
	GetNotification(ctx context.Context, id string) (Notification, error)
	MarkAllRead(ctx context.Context, recipientID, classID string) (int, error)
	// DeleteNotifications deletes the given ids owned by recipientID and returns how many went.
	DeleteNotifications(ctx context.Context, recipientID string, ids ...string) (int, error)
	CountUnread(ctx context.Context, recipientID, classID string) (int, error)
}
