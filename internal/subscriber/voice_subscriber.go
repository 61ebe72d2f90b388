package subscriber

import (
	"context"

	"github.com/weibaohui/negotiator/internal/eventbus"
	"github.com/weibaohui/negotiator/internal/model"
)

type speaker interface {
	Speak(text string, role model.Role)
}

// VoiceSubscriber 朗读每条新消息
type VoiceSubscriber struct {
	speaker speaker
}

func NewVoiceSubscriber(speaker speaker) *VoiceSubscriber {
	return &VoiceSubscriber{speaker: speaker}
}

func (s *VoiceSubscriber) Register(bus *eventbus.NegotiationEventBus) func() {
	if bus == nil || s.speaker == nil {
		return func() {}
	}
	return bus.Subscribe(eventbus.NegotiationEventMessageAdded, s.handleMessageAdded)
}

func (s *VoiceSubscriber) handleMessageAdded(ctx context.Context, event eventbus.NegotiationEvent) error {
	// Speak 只入队，不阻塞发言流程
	s.speaker.Speak(event.Message, event.Role)
	return nil
}
