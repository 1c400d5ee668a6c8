package email

import (
	"errors"
	"fmt"
	"net/smtp"
)

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

func SendText(cfg SMTPConfig, to, subject, body string) error {
	if cfg.Host == "" {
		return errors.New("email: smtp host not configured")
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	msg := []byte("From: " + cfg.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n")

	var a smtp.Auth
	if cfg.User != "" {
		a = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}
	return smtp.SendMail(addr, a, cfg.From, []string{to}, msg)
}
