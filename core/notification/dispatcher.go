package notification

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tasktracker/core"
	"github.com/trezcool/tasktracker/core/school"
)

const (
	reasonDeliveryFailed    = "email delivery failed"
	reasonRecipientNotFound = "recipient not found"
	reasonRecipientLookup   = "recipient lookup failed"
)

// Dispatcher drains the pending queue in bounded batches.
type Dispatcher struct {
	repo        Repository
	schoolRepo  school.Repository
	mailer      core.EmailService
	logger      core.Logger
	batchSize   int
	sendTimeout time.Duration
	now         func() time.Time
}

func NewDispatcher(
	repo Repository,
	schoolRepo school.Repository,
	mailer core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Dispatcher {
	return &Dispatcher{
		repo:        repo,
		schoolRepo:  schoolRepo,
		mailer:      mailer,
		logger:      logger,
		batchSize:   conf.Notification.BatchSize,
		sendTimeout: conf.Notification.SendTimeout,
		now:         time.Now,
	}
}

// WithClock replaces time.Now.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Flush claims up to one batch of pending notifications and sends them oldest first.
// Per-record failures are recorded on the records; the error is only set when
// the batch could not be claimed.
func (d *Dispatcher) Flush(ctx context.Context) (FlushResult, error) {
	var res FlushResult

	batch, err := d.repo.ClaimPending(ctx, d.batchSize, d.now().UTC())
	if err != nil {
		return res, errors.Wrap(err, "claiming pending notifications")
	}
	res.Claimed = len(batch)

	sort.SliceStable(batch, func(i, j int) bool {
		if batch[i].CreatedAt.Equal(batch[j].CreatedAt) {
			return batch[i].ID < batch[j].ID
		}
		return batch[i].CreatedAt.Before(batch[j].CreatedAt)
	})

	for _, n := range batch {
		if d.deliver(ctx, n) {
			res.Sent++
		} else {
			res.Failed++
		}
	}
	return res, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) bool {
	recipient, err := d.schoolRepo.GetUser(ctx, n.RecipientID)
	if err != nil {
		reason := reasonRecipientLookup
		if errors.Cause(err) == school.ErrUserNotFound {
			reason = reasonRecipientNotFound
		}
		d.fail(ctx, n, reason, err)
		return false
	}

	msg := &core.EmailMessage{
		To:          []mail.Address{recipient.Address()},
		Subject:     n.Subject,
		HTMLContent: n.Message,
	}
	if err = d.send(ctx, msg); err != nil {
		d.fail(ctx, n, reasonDeliveryFailed, err)
		return false
	}

	if err = d.repo.MarkSent(ctx, n.ID, d.now().UTC()); err != nil {
		// the email is out; the record stays in sending until released
		d.logger.Error(fmt.Sprintf("marking notification %s as sent: %v", n.ID, err), err)
	}
	return true
}

func (d *Dispatcher) send(ctx context.Context, msg *core.EmailMessage) error {
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		return errors.Wrapf(ErrTransport, "%v", err)
	}
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, n Notification, reason string, cause error) {
	d.logger.Error(fmt.Sprintf("sending notification %s: %v", n.ID, cause), cause)
	if err := d.repo.MarkFailed(ctx, n.ID, reason); err != nil {
		d.logger.Error(fmt.Sprintf("marking notification %s as failed: %v", n.ID, err), err)
	}
}

// ReleaseStale returns records stuck in sending for longer than olderThan to pending.
// It is meant for recovering after a crashed dispatcher; failed records are never retried.
func (d *Dispatcher) ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be positive")
	}
	n, err := d.repo.ReleaseStaleClaims(ctx, d.now().UTC().Add(-olderThan))
	if err != nil {
		return 0, errors.Wrap(err, "releasing stale claims")
	}
	if n > 0 {
		d.logger.Warn(fmt.Sprintf("released %d stale notification claims", n))
	}
	return n, nil
}
