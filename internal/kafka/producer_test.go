package kafka

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"host1:9092", []string{"host1:9092"}},
		{" host1:9092 , ,host2:9092,", []string{"host1:9092", "host2:9092"}},
	}
	for _, tt := range tests {
		if got := ParseBrokers(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseBrokers(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEnvelope(t *testing.T) {
	payload := map[string]interface{}{"ticket_id": uint64(3), "event": "spoofed"}
	msg := Envelope("ticket.created", payload)
	if msg["event"] != "ticket.created" {
		t.Errorf("event = %v", msg["event"])
	}
	if msg["ticket_id"] != uint64(3) {
		t.Errorf("ticket_id lost: %v", msg["ticket_id"])
	}
	if _, err := uuid.Parse(msg["event_id"].(string)); err != nil {
		t.Errorf("event_id is not a uuid: %v", err)
	}
	if payload["event"] != "spoofed" {
		t.Error("Envelope must not mutate the payload")
	}
}

func TestDisabledProducerIsNoop(t *testing.T) {
	p := NewProducer(nil, "topic", zap.NewNop())
	p.ProduceTicketEvent(context.Background(), "ticket.created", map[string]interface{}{"ticket_id": 1})
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestProducerDoesNotWaitForBroker(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "support.tickets", zap.NewNop())
	if !p.writer.Async || p.writer.Completion == nil {
		t.Fatal("writer must be async with a completion callback")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	p.ProduceTicketEvent(ctx, "ticket.created", map[string]interface{}{"ticket_id": uint64(1)})
	if d := time.Since(start); d > time.Second {
		t.Errorf("ProduceTicketEvent blocked for %v with an unreachable broker", d)
	}
}
