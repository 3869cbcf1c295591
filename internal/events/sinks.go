package events

import (
	"log/slog"

	"github.com/magabrotheeeer/capitalized/internal/rabbitmq"
)

// AMQPSink публикует события в exchange RabbitMQ.
type AMQPSink struct {
	ch       rabbitmq.Publisher
	exchange string
}

// NewAMQPSink создаёт AMQPSink поверх канала ch.
func NewAMQPSink(ch rabbitmq.Publisher, exchange string) *AMQPSink {
	return &AMQPSink{ch: ch, exchange: exchange}
}

// Publish отправляет msg в JSON с ключом key.
func (s *AMQPSink) Publish(key string, msg any) error {
	return rabbitmq.PublishMessage(s.ch, s.exchange, key, msg)
}

// LogSink пишет события в лог. Используется, когда брокер не настроен.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink создаёт LogSink.
func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Publish логирует событие.
func (s *LogSink) Publish(key string, msg any) error {
	s.log.Info("onboarding event", slog.String("key", key), slog.Any("event", msg))
	return nil
}
