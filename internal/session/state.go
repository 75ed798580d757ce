package session

import (
	"encoding/json"
	"fmt"
)

// Step: имя состояния диалога. Значения совпадают с ключами в хранилище.
type Step string

const (
	StepIdle                Step = "idle"
	StepWaitingFullName     Step = "registration.waiting_full_name"
	StepWaitingCompany      Step = "registration.waiting_company"
	StepWaitingShop         Step = "registration.waiting_shop"
	StepWaitingTitle        Step = "ticket_creation.waiting_title"
	StepWaitingDescription  Step = "ticket_creation.waiting_description"
	StepWaitingConfirmation Step = "ticket_creation.waiting_confirmation"
	StepSelectingTicket     Step = "ticket_selection.selecting_ticket"
	StepWaitingReply        Step = "ticket_selection.waiting_reply"
)

// State: состояние диалога. Каждый вариант несёт только свои поля.
type State interface {
	Step() Step
}

type Idle struct{}

type WaitingFullName struct{}

type WaitingCompany struct {
	FullName string `json:"full_name"`
}

type WaitingShop struct {
	FullName string `json:"full_name"`
	Company  string `json:"company"`
}

type WaitingTitle struct{}

type WaitingDescription struct {
	Title string `json:"title"`
}

// WaitingConfirmation ссылается на уже сохранённый pending-тикет.
type WaitingConfirmation struct {
	TicketID uint64 `json:"ticket_id"`
}

type SelectingTicket struct{}

type WaitingReply struct {
	TicketID uint64 `json:"ticket_id"`
}

func (Idle) Step() Step                { return StepIdle }
func (WaitingFullName) Step() Step     { return StepWaitingFullName }
func (WaitingCompany) Step() Step      { return StepWaitingCompany }
func (WaitingShop) Step() Step         { return StepWaitingShop }
func (WaitingTitle) Step() Step        { return StepWaitingTitle }
func (WaitingDescription) Step() Step  { return StepWaitingDescription }
func (WaitingConfirmation) Step() Step { return StepWaitingConfirmation }
func (SelectingTicket) Step() Step     { return StepSelectingTicket }
func (WaitingReply) Step() Step        { return StepWaitingReply }

type envelope struct {
	Step Step            `json:"step"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode сериализует состояние в конверт {"step": ..., "data": ...}.
func Encode(s State) ([]byte, error) {
	if s == nil {
		s = Idle{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("session: encode %s: %w", s.Step(), err)
	}
	return json.Marshal(envelope{Step: s.Step(), Data: data})
}

// Decode восстанавливает вариант State по полю step.
func Decode(raw []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("session: decode envelope: %w", err)
	}
	switch env.Step {
	case StepIdle, "":
		return Idle{}, nil
	case StepWaitingFullName:
		return WaitingFullName{}, nil
	case StepWaitingTitle:
		return WaitingTitle{}, nil
	case StepSelectingTicket:
		return SelectingTicket{}, nil
	case StepWaitingCompany:
		return decodeData[WaitingCompany](env.Data)
	case StepWaitingShop:
		return decodeData[WaitingShop](env.Data)
	case StepWaitingDescription:
		return decodeData[WaitingDescription](env.Data)
	case StepWaitingConfirmation:
		return decodeData[WaitingConfirmation](env.Data)
	case StepWaitingReply:
		return decodeData[WaitingReply](env.Data)
	}
	return nil, fmt.Errorf("session: unknown step %q", env.Step)
}

func decodeData[T State](raw json.RawMessage) (State, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("session: decode data: %w", err)
	}
	return v, nil
}
