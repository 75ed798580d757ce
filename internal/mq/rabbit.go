package mq

import (
	"context"
	"encoding/json"

	"github.com/psds-microservice/support-bot/internal/kafka"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitPublisher публикует события тикетов в topic-exchange. Routing key: имя события (ticket.created и т.д.).
type RabbitPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	log      *zap.Logger
}

func NewRabbitPublisher(url, exchange string, log *zap.Logger) (*RabbitPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange, log: log}, nil
}

// Publish сериализует payload в JSON и отправляет в exchange.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         body,
	})
}

// ProduceTicketEvent реализует kafka.TicketEventProducer поверх RabbitMQ.
func (p *RabbitPublisher) ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{}) {
	if p == nil {
		return
	}
	msg := kafka.Envelope(event, payload)
	if err := p.Publish(ctx, event, msg); err != nil {
		p.log.Error("rabbitmq: publish ticket event", zap.String("event", event), zap.String("exchange", p.exchange), zap.Error(err))
	}
}

func (p *RabbitPublisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		p.log.Warn("rabbitmq: close channel", zap.Error(err))
	}
	return p.conn.Close()
}
