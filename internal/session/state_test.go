package session

import (
	"context"
	"testing"
)

func TestDecodeRestoresVariantFields(t *testing.T) {
	raw, err := Encode(WaitingShop{FullName: "Ivan Petrov", Company: "Acme"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	shop, ok := got.(WaitingShop)
	if !ok {
		t.Fatalf("Decode returned %T, want WaitingShop", got)
	}
	if shop.FullName != "Ivan Petrov" || shop.Company != "Acme" {
		t.Errorf("fields lost: %+v", shop)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{"},
		{"unknown step", `{"step":"registration.waiting_age"}`},
		{"bad data", `{"step":"ticket_selection.waiting_reply","data":{"ticket_id":"x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.raw)); err == nil {
				t.Errorf("Decode(%s) succeeded", tt.raw)
			}
		})
	}
}

func TestDecodeEmptyStepIsIdle(t *testing.T) {
	s, err := Decode([]byte(`{}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Step() != StepIdle {
		t.Errorf("Step = %s, want idle", s.Step())
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	s, err := st.Get(ctx, 7)
	if err != nil || s.Step() != StepIdle {
		t.Fatalf("Get on empty store = %v, %v", s, err)
	}
	if err := st.Set(ctx, 7, WaitingReply{TicketID: 12}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s, _ = st.Get(ctx, 7)
	if r, ok := s.(WaitingReply); !ok || r.TicketID != 12 {
		t.Fatalf("Get = %#v, want WaitingReply{12}", s)
	}
	if err := st.Set(ctx, 7, Idle{}); err != nil {
		t.Fatalf("Set idle: %v", err)
	}
	if st.Len() != 0 {
		t.Errorf("Idle must not be stored, Len = %d", st.Len())
	}
	_ = st.Set(ctx, 8, WaitingTitle{})
	_ = st.Clear(ctx, 8)
	if s, _ := st.Get(ctx, 8); s.Step() != StepIdle {
		t.Errorf("after Clear Step = %s", s.Step())
	}
}
