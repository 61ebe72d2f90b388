package eventbus

import "github.com/weibaohui/negotiator/internal/model"

type NegotiationEventType string

const (
	NegotiationEventStarted      NegotiationEventType = "Started"
	NegotiationEventMessageAdded NegotiationEventType = "MessageAdded"
	NegotiationEventConcluded    NegotiationEventType = "Concluded"
	NegotiationEventExhausted    NegotiationEventType = "Exhausted"
)

// AllNegotiationEventTypes 便于一次订阅全部事件
var AllNegotiationEventTypes = []NegotiationEventType{
	NegotiationEventStarted,
	NegotiationEventMessageAdded,
	NegotiationEventConcluded,
	NegotiationEventExhausted,
}

type NegotiationEvent struct {
	Type          NegotiationEventType `json:"type"`
	NegotiationID string               `json:"negotiation_id"`
	Item          string               `json:"item,omitempty"`
	Role          model.Role           `json:"speaker,omitempty"`
	Message       string               `json:"message,omitempty"`
	Round         int                  `json:"round"`
	FinalPrice    *float64             `json:"final_price,omitempty"`
}

func (e NegotiationEvent) EventType() NegotiationEventType {
	return e.Type
}

type NegotiationEventBus = Bus[NegotiationEventType, NegotiationEvent]

func NewNegotiationEventBus() *NegotiationEventBus {
	return NewBus[NegotiationEventType, NegotiationEvent]()
}
