package emailsvc

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"net/mail"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/pkg/errors"

	"github.com/trezcool/tasktracker/core"
)

type smtpService struct {
	addr             string
	user             string
	password         string
	startTLS         bool
	tlsConfig        *tls.Config
	defaultFromEmail mail.Address
	subjPrefix       string
}

var _ core.EmailService = (*smtpService)(nil)

func NewSMTPService(conf *core.Config) core.EmailService {
	return &smtpService{
		addr:             conf.Mail.SMTPAddress(),
		user:             conf.Mail.SMTPUser,
		password:         conf.Mail.SMTPPassword,
		startTLS:         conf.Mail.SMTPStartTLS,
		tlsConfig:        &tls.Config{ServerName: conf.Mail.SMTPHost},
		defaultFromEmail: conf.DefaultFromEmail(),
		subjPrefix:       "[" + conf.AppName + "] ",
	}
}

func (svc *smtpService) Send(ctx context.Context, msg *core.EmailMessage) error {
	if err := validate(msg); err != nil {
		return err
	}
	body, err := compose(svc.defaultFromEmail, svc.subjPrefix+msg.Subject, msg, time.Now())
	if err != nil {
		return errors.Wrap(err, "composing email")
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", svc.addr)
	if err != nil {
		return errors.Wrap(err, "dialing smtp server")
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	var c *smtp.Client
	if svc.startTLS {
		// closes conn on failure
		if c, err = smtp.NewClientStartTLS(conn, svc.tlsConfig); err != nil {
			return errors.Wrap(err, "smtp starttls")
		}
	} else {
		c = smtp.NewClient(conn)
	}
	defer func() { _ = c.Close() }()

	if svc.user != "" {
		if err = c.Auth(sasl.NewPlainClient("", svc.user, svc.password)); err != nil {
			return errors.Wrap(err, "smtp auth")
		}
	}

	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, addr.Address)
	}
	if err = c.SendMail(svc.defaultFromEmail.Address, to, bytes.NewReader(body)); err != nil {
		return errors.Wrap(err, "smtp send")
	}
	return errors.Wrap(c.Quit(), "smtp quit")
}
