package alerter

import (
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/nuvemsync/nuvemsync/pkg/logger"
)

// EmailAlerter sends operator alerts over SMTP.
type EmailAlerter struct {
	logger *logger.Logger

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string
	Recipient    string

	SMTPAuth smtp.Auth
}

func NewEmailAlerter(logger *logger.Logger, host string, port int, user, password, sender, recipient string) *EmailAlerter {
	auth := smtp.PlainAuth(
		"",
		user,
		password,
		host,
	)

	return &EmailAlerter{
		logger:       logger,
		SMTPAuth:     auth,
		SMTPHost:     host,
		SMTPPort:     port,
		SMTPUser:     user,
		SMTPPassword: password,
		SMTPSender:   sender,
		Recipient:    recipient,
	}
}

func (e *EmailAlerter) Send(subject, message string) {
	addr := fmt.Sprintf("%s:%s", e.SMTPHost, strconv.Itoa(e.SMTPPort))
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		e.SMTPSender,
		e.Recipient,
		subject,
		message,
	)
	if err := smtp.SendMail(addr, e.SMTPAuth, e.SMTPSender, []string{e.Recipient}, []byte(msg)); err != nil {
		e.logger.Error("Failed to send email alert: ", err)
	}
}
