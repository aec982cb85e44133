package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

type Sender interface {
	Send(to string, subject string, body string) error
}

// SMTPSender delivers plain-text mail over SMTP. Auth is optional so the
// same code path works against Mailpit in dev and a real relay in the
// clinic's deployment.
type SMTPSender struct {
	host string
	addr string
	from string
	user string
	pass string
}

func NewSMTPSender(host, port, from, user, pass string) *SMTPSender {
	host = strings.TrimSpace(host)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@pdcare.local"
	}
	return &SMTPSender{
		host: host,
		addr: fmt.Sprintf("%s:%s", host, strings.TrimSpace(port)),
		from: from,
		user: strings.TrimSpace(user),
		pass: pass,
	}
}

func (s *SMTPSender) Send(to string, subject string, body string) error {
	var a smtp.Auth
	if s.user != "" {
		a = smtp.PlainAuth("", s.user, s.pass, s.host)
	}
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		s.from, to, subject, body,
	)
	return smtp.SendMail(s.addr, a, s.from, []string{to}, []byte(msg))
}
