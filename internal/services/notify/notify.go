// Package notify ставит уведомления в очередь RabbitMQ. Письма отправляет
// отдельный процесс mail-sender.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/tour-booking/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/tour-booking/internal/models"
)

// Publisher публикует сообщение с ключом маршрутизации.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Service - отправитель уведомлений.
type Service struct {
	publisher Publisher
	log       *slog.Logger
}

// New создаёт сервис уведомлений.
func New(log *slog.Logger, publisher Publisher) *Service {
	return &Service{
		publisher: publisher,
		log:       log,
	}
}

// PasswordReset ставит в очередь письмо со ссылкой для сброса пароля.
func (s *Service) PasswordReset(ctx context.Context, msg models.PasswordResetMessage) error {
	const op = "notify.PasswordReset"
	if err := s.publisher.Publish(ctx, rabbitmq.PasswordResetRoutingKey, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("password reset queued", slog.String("email", msg.Email))
	return nil
}
