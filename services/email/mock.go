package emailsvc

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/tasktracker/core"
)

var errMockDelivery = errors.New("mock delivery failure")

// ServiceMock records sent messages instead of delivering them.
// Failures can be injected per recipient address or for every message.
type ServiceMock struct {
	mu       sync.Mutex
	sent     []core.EmailMessage
	failAll  bool
	failFor  map[string]bool
	attempts int
}

var _ core.EmailService = (*ServiceMock)(nil)

func NewServiceMock() *ServiceMock {
	return &ServiceMock{failFor: make(map[string]bool)}
}

func (svc *ServiceMock) Send(ctx context.Context, msg *core.EmailMessage) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.attempts++
	if err := validate(msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if svc.failAll {
		return errMockDelivery
	}
	for _, to := range msg.To {
		if svc.failFor[to.Address] {
			return errors.Wrap(errMockDelivery, to.Address)
		}
	}
	svc.sent = append(svc.sent, *msg)
	return nil
}

// FailAll makes every following Send fail (or succeed again).
func (svc *ServiceMock) FailAll(fail bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.failAll = fail
}

// FailFor makes Send fail for messages addressed to any of addrs.
func (svc *ServiceMock) FailFor(addrs ...string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for _, a := range addrs {
		svc.failFor[a] = true
	}
}

func (svc *ServiceMock) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sent...)
}

// Attempts counts every Send call, failed ones included.
func (svc *ServiceMock) Attempts() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.attempts
}

func (svc *ServiceMock) Reset() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.sent = nil
	svc.attempts = 0
	svc.failAll = false
	svc.failFor = make(map[string]bool)
}
