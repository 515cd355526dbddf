// Package smtp открывает сессии с почтовым сервером. Шифрование STARTTLS
// и аутентификация включаются, только если сервер их поддерживает и в
// конфиге задан пользователь: так же работает локальный перехватчик писем.
package smtp

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"github.com/magabrotheeeer/tour-booking/internal/config"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
)

// DialTimeout - ограничение на установку TCP-соединения.
const DialTimeout = 10 * time.Second

// Client - открытая сессия SMTP.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer открывает сессии и знает адреса отправителя.
type Dialer interface {
	Dial() (Client, error)
	// Sender - адрес для команды MAIL FROM.
	Sender() string
	// From - значение заголовка From.
	From() string
}

// Transport - Dialer поверх net/smtp.
type Transport struct {
	cfg config.SMTP
	log *slog.Logger
}

// NewTransport создаёт транспорт по настройкам cfg.
func NewTransport(cfg config.SMTP, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log}
}

// Dial подключается к серверу, включает STARTTLS и проходит аутентификацию.
func (t *Transport) Dial() (Client, error) {
	const op = "smtp.Dial"
	addr := net.JoinHostPort(t.cfg.SMTPHost, t.cfg.SMTPPort)

	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	client, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := t.secure(client); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			t.log.Debug("smtp client close", sl.Err(closeErr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

func (t *Transport) secure(client *smtp.Client) error {
	if ok, _ := client.Extension("STARTTLS"); ok {
		err := client.StartTLS(&tls.Config{
			ServerName: t.cfg.SMTPHost,
			MinVersion: tls.VersionTLS12,
		})
		if err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if t.cfg.SMTPUser == "" {
		return nil
	}
	if ok, _ := client.Extension("AUTH"); !ok {
		t.log.Warn("smtp server does not advertise AUTH, sending without it", slog.String("host", t.cfg.SMTPHost))
		return nil
	}
	if err := client.Auth(smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPass, t.cfg.SMTPHost)); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

// Sender возвращает пользователя SMTP или, если он не задан, адрес From.
func (t *Transport) Sender() string {
	if t.cfg.SMTPUser != "" {
		return t.cfg.SMTPUser
	}
	return t.cfg.SMTPFrom
}

// From возвращает from из конфига или пользователя SMTP.
func (t *Transport) From() string {
	if t.cfg.SMTPFrom != "" {
		return t.cfg.SMTPFrom
	}
	return t.cfg.SMTPUser
}
