package emailsvc

import (
	"bytes"
	"io"
	netmail "net/mail"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/pkg/errors"

	"github.com/trezcool/tasktracker/core"
)

// compose renders msg as a multipart/alternative MIME message.
func compose(from netmail.Address, subject string, msg *core.EmailMessage, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetSubject(subject)
	h.SetAddressList("From", []*mail.Address{&from})
	h.SetAddressList("To", addressList(msg.To))
	if err := h.GenerateMessageID(); err != nil {
		return nil, errors.Wrap(err, "generating message id")
	}

	var buff bytes.Buffer
	w, err := mail.CreateInlineWriter(&buff, h)
	if err != nil {
		return nil, errors.Wrap(err, "creating inline writer")
	}

	parts := []struct{ contentType, content string }{
		{"text/plain", msg.TextContent},
		{"text/html", msg.HTMLContent},
	}
	for _, p := range parts {
		if p.content == "" {
			continue
		}
		var ph mail.InlineHeader
		ph.SetContentType(p.contentType, map[string]string{"charset": "utf-8"})
		pw, err := w.CreatePart(ph)
		if err != nil {
			return nil, errors.Wrapf(err, "creating %s part", p.contentType)
		}
		if _, err = io.WriteString(pw, p.content); err != nil {
			return nil, errors.Wrapf(err, "writing %s part", p.contentType)
		}
		if err = pw.Close(); err != nil {
			return nil, errors.Wrapf(err, "closing %s part", p.contentType)
		}
	}
	if err = w.Close(); err != nil {
		return nil, errors.Wrap(err, "closing inline writer")
	}
	return buff.Bytes(), nil
}

func addressList(addrs []netmail.Address) []*mail.Address {
	list := make([]*mail.Address, 0, len(addrs))
	for i := range addrs {
		list = append(list, &addrs[i])
	}
	return list
}

func validate(msg *core.EmailMessage) error {
	if !msg.HasRecipients() {
		return errors.New("email has no recipients")
	}
	if !msg.HasContent() {
		return errors.New("email has no content")
	}
	return nil
}
