package application

import (
	"fmt"

	"github.com/psds-microservice/support-bot/internal/config"
	"github.com/psds-microservice/support-bot/internal/kafka"
	"github.com/psds-microservice/support-bot/internal/mq"
	"go.uber.org/zap"
)

// EventSink: продюсер событий тикетов вместе с его закрытием.
type EventSink struct {
	Producer kafka.TicketEventProducer
	close    func() error
}

func (s *EventSink) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// NewEventSink выбирает брокер по EVENTS_BROKER. Без брокера Producer == nil и события не публикуются.
func NewEventSink(cfg *config.Config, log *zap.Logger) (*EventSink, error) {
	switch cfg.Events.Broker {
	case config.BrokerKafka:
		p := kafka.NewProducer(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, log)
		log.Info("ticket events: kafka", zap.Strings("brokers", cfg.Events.KafkaBrokers), zap.String("topic", cfg.Events.KafkaTopic))
		return &EventSink{Producer: p, close: p.Close}, nil
	case config.BrokerRabbitMQ:
		p, err := mq.NewRabbitPublisher(cfg.Events.RabbitURL, cfg.Events.RabbitExchange, log)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		log.Info("ticket events: rabbitmq", zap.String("exchange", cfg.Events.RabbitExchange))
		return &EventSink{Producer: p, close: p.Close}, nil
	default:
		return &EventSink{}, nil
	}
}
