package subscriber

import (
	"context"

	"github.com/weibaohui/negotiator/internal/eventbus"
)

type broadcaster interface {
	Broadcast(messageType string, data any)
}

// broadcastTypes 事件类型到 WebSocket 消息类型的映射
var broadcastTypes = map[eventbus.NegotiationEventType]string{
	eventbus.NegotiationEventStarted:      "negotiation_started",
	eventbus.NegotiationEventMessageAdded: "negotiation_message",
	eventbus.NegotiationEventConcluded:    "negotiation_concluded",
	eventbus.NegotiationEventExhausted:    "negotiation_exhausted",
}

// BroadcastSubscriber 把谈判事件推送给所有 WebSocket 客户端
type BroadcastSubscriber struct {
	hub broadcaster
}

func NewBroadcastSubscriber(hub broadcaster) *BroadcastSubscriber {
	return &BroadcastSubscriber{hub: hub}
}

func (s *BroadcastSubscriber) Register(bus *eventbus.NegotiationEventBus) func() {
	if bus == nil || s.hub == nil {
		return func() {}
	}
	return bus.SubscribeAll(eventbus.AllNegotiationEventTypes, s.handle)
}

func (s *BroadcastSubscriber) handle(ctx context.Context, event eventbus.NegotiationEvent) error {
	messageType, ok := broadcastTypes[event.Type]
	if !ok {
		return nil
	}
	s.hub.Broadcast(messageType, event)
	return nil
}
