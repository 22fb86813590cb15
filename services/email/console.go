package emailsvc

import (
	"context"
	"log"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tasktracker/core"
)

// consoleService prints emails instead of sending them. Used in DEV.
type consoleService struct {
	defaultFromEmail mail.Address
	subjPrefix       string
	out              *log.Logger
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config, out *log.Logger) core.EmailService {
	return &consoleService{
		defaultFromEmail: conf.DefaultFromEmail(),
		subjPrefix:       "[" + conf.AppName + "] ",
		out:              out,
	}
}

func (svc *consoleService) Send(ctx context.Context, msg *core.EmailMessage) error {
	if err := validate(msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := compose(svc.defaultFromEmail, svc.subjPrefix+msg.Subject, msg, time.Now())
	if err != nil {
		return errors.Wrap(err, "composing email")
	}
	svc.out.Println(string(body))
	return nil
}
