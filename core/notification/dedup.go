package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// DedupPolicy decides whether a Candidate may be created.
type DedupPolicy interface {
	Allow(ctx context.Context, c Candidate) (bool, error)
}

// windowPolicy vetoes a task_deadline notification when one for the same
// recipient and task was created within the window.
type windowPolicy struct {
	repo   Repository
	window time.Duration
}

var _ DedupPolicy = (*windowPolicy)(nil)

func NewWindowPolicy(repo Repository, window time.Duration) DedupPolicy {
	return &windowPolicy{repo: repo, window: window}
}

func (p *windowPolicy) Allow(ctx context.Context, c Candidate) (bool, error) {
	if c.Type != KindTaskDeadline {
		return true, nil
	}
	exists, err := p.repo.ExistsSince(ctx, c.Type, c.RecipientID, c.TaskID, c.Now.Add(-p.window))
	if err != nil {
		return false, errors.Wrap(err, "checking recent notifications")
	}
	return !exists, nil
}
