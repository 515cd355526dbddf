// Package mailsender - процесс, который читает очередь уведомлений
// и отправляет письма через SMTP.
package mailsender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/tour-booking/internal/config"
	"github.com/magabrotheeeer/tour-booking/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
	"github.com/magabrotheeeer/tour-booking/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/tour-booking/internal/services/sender"
)

// App - потребитель очереди писем.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	workers       int
	logger        *slog.Logger
}

// New подключается к брокеру и объявляет очереди.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.mailsender.New"
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.Retries, cfg.Delay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.NewService(logger, transport),
		workers:       cfg.Workers,
		logger:        logger,
	}, nil
}

// Run обрабатывает сообщения до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.PasswordResetQueue, a.workers, a.senderService.SendPasswordReset)
	if err != nil {
		a.logger.Error("failed to start password reset consumer", sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("mail sender shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}
