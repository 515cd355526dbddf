package rabbitmq

// QueueConfig описывает очередь и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Ключи маршрутизации уведомлений.
const (
	PasswordResetQueue      = "notifications.password_reset"
	PasswordResetRoutingKey = "password_reset"
)

// GetNotificationQueues возвращает очереди, которые слушает mail-sender.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: PasswordResetQueue, RoutingKey: PasswordResetRoutingKey},
	}
}
