package notify

import (
	"fmt"
	"net/smtp"
)

// SMTP delivers plain-text mail. Used for password resets and expiry
// warnings.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

func NewSMTP(host, port, username, password, sender string) *SMTP {
	if sender == "" {
		sender = "no-reply@localhost"
	}
	return &SMTP{Host: host, Port: port, Username: username, Password: password, Sender: sender}
}

func (m *SMTP) Send(to, subject, body string) error {
	var auth smtp.Auth
	if m.Username != "" && m.Password != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}

	addr := fmt.Sprintf("%s:%s", m.Host, m.Port)
	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.Sender, to, subject, body),
	)

	return smtp.SendMail(addr, auth, m.Sender, []string{to}, msg)
}
