package emailsvc

import (
	"log"

	"github.com/pkg/errors"

	"github.com/trezcool/tasktracker/core"
)

// New returns the transport selected by conf.Mail.Transport.
func New(conf *core.Config, out *log.Logger) (core.EmailService, error) {
	switch conf.Mail.Transport {
	case "", "console":
		return NewConsoleService(conf, out), nil
	case "sendgrid":
		if conf.Mail.SendgridApiKey == "" {
			return nil, errors.New("sendgrid transport requires sendgridApiKey")
		}
		return NewSendgridService(conf), nil
	case "smtp":
		return NewSMTPService(conf), nil
	default:
		return nil, errors.Errorf("unknown mail transport %q", conf.Mail.Transport)
	}
}
