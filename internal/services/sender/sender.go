// Package sender отправляет письма, полученные из очереди уведомлений.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
	"github.com/magabrotheeeer/tour-booking/internal/lib/smtp"
	"github.com/magabrotheeeer/tour-booking/internal/models"
)

// PasswordResetSubject - тема письма со ссылкой для сброса пароля.
const PasswordResetSubject = "Your password reset token (valid for 10 min)"

// Service отправляет письма через SMTP-транспорт.
type Service struct {
	transport smtp.Dialer
	log       *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(log *slog.Logger, transport smtp.Dialer) *Service {
	return &Service{
		transport: transport,
		log:       log,
	}
}

// SendPasswordReset разбирает сообщение о сбросе пароля и отправляет письмо.
func (s *Service) SendPasswordReset(body []byte) error {
	const op = "sender.SendPasswordReset"
	var message models.PasswordResetMessage
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}
	if message.Email == "" || message.ResetURL == "" {
		return fmt.Errorf("%s: message has no recipient or reset url", op)
	}

	text := PasswordResetText(message.ResetURL)
	if err := s.sendEmail([]string{message.Email}, PasswordResetSubject, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PasswordResetText формирует текст письма со ссылкой для сброса.
func PasswordResetText(resetURL string) string {
	return fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s.\n"+
		"If you didn't forget your password, please ignore this email!", resetURL)
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	from := s.transport.From()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Dial()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			s.log.Debug("smtp client close", sl.Err(err))
		}
	}()

	if err := client.Mail(s.transport.Sender()); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.transport.Sender()), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
