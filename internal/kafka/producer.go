package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TicketEventProducer: получатель событий жизненного цикла тикета (Kafka, RabbitMQ или мок в тестах).
type TicketEventProducer interface {
	ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{})
}

// Producer пишет события тикетов в топик Kafka (best-effort, ошибки только логируются).
type Producer struct {
	writer *kafka.Writer
	topic  string
	log    *zap.Logger
}

// NewProducer создаёт продюсер. Если brokers пустой или topic пустой: методы no-op.
func NewProducer(brokers []string, topic string, log *zap.Logger) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{log: log}
	}
	p := &Producer{topic: topic, log: log}
	// Async: WriteMessages только ставит сообщение в буфер, ошибки доставки приходят в Completion.
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion:   p.completion,
	}
	return p
}

func (p *Producer) completion(messages []kafka.Message, err error) {
	if err != nil {
		p.log.Error("kafka: deliver ticket events", zap.String("topic", p.topic), zap.Int("count", len(messages)), zap.Error(err))
	}
}

// Envelope дополняет payload полями event, event_id и occurred_at.
func Envelope(event string, payload map[string]interface{}) map[string]interface{} {
	msg := make(map[string]interface{}, len(payload)+3)
	for k, v := range payload {
		msg[k] = v
	}
	msg["event"] = event
	msg["event_id"] = uuid.NewString()
	msg["occurred_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	return msg
}

// ProduceTicketEvent отправляет событие; ключ сообщения: ticket_id, чтобы события тикета шли в одну партицию.
func (p *Producer) ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{}) {
	if p.writer == nil {
		return
	}
	msg := Envelope(event, payload)
	body, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("kafka: marshal ticket event", zap.String("event", event), zap.Error(err))
		return
	}
	var key []byte
	if id, ok := payload["ticket_id"]; ok {
		key, _ = json.Marshal(id)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: body}); err != nil {
		p.log.Error("kafka: write ticket event", zap.String("event", event), zap.String("topic", p.topic), zap.Error(err))
	}
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// ParseBrokers разбивает строку брокеров "host1:9092,host2:9092" на слайс.
func ParseBrokers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
