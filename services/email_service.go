package services

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// EmailService sends notification emails via SMTP
type EmailService struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewEmailService creates a new email service instance
func NewEmailService(config EmailConfig) *EmailService {
	if config.Port == 0 {
		config.Port = 587
	}
	return &EmailService{
		host:     config.Host,
		port:     config.Port,
		username: config.Username,
		password: config.Password,
		from:     config.From,
	}
}

// IsConfigured checks if SMTP credentials are present
func (e *EmailService) IsConfigured() bool {
	return e.username != "" && e.password != ""
}

// SendQuizReadyEmail tells a user one quiz level finished generating
func (e *EmailService) SendQuizReadyEmail(toEmail, userName, syllabusTitle, level string) error {
	if !e.IsConfigured() {
		log.Printf("Email: SMTP not configured, skipping quiz-ready email to %s", toEmail)
		return fmt.Errorf("SMTP not configured")
	}

	if userName == "" {
		userName = "there"
	}

	subject := fmt.Sprintf("Your %s quizzes are ready - %s", level, syllabusTitle)
	body := fmt.Sprintf(`Hi %s,

The %s-level quizzes for "%s" are ready. Open the app to start practicing.

Happy studying!`, userName, level, syllabusTitle)

	return e.sendEmail(toEmail, subject, body)
}

// sendEmail delivers a plain-text email via SMTP
func (e *EmailService) sendEmail(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	auth := smtp.PlainAuth("", e.username, e.password, e.host)

	msg := strings.Join([]string{
		"From: " + e.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(addr, auth, e.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	return nil
}
