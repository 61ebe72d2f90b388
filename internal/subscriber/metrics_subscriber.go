package subscriber

import (
	"context"

	"github.com/weibaohui/negotiator/internal/eventbus"
	"github.com/weibaohui/negotiator/internal/pkg/metrics"
	"k8s.io/klog/v2"
)

// MetricsSubscriber 把谈判事件计入 prometheus 指标
type MetricsSubscriber struct {
	metrics *metrics.Metrics
}

func NewMetricsSubscriber(m *metrics.Metrics) *MetricsSubscriber {
	return &MetricsSubscriber{metrics: m}
}

func (s *MetricsSubscriber) Register(bus *eventbus.NegotiationEventBus) func() {
	if bus == nil || s.metrics == nil {
		return func() {}
	}
	return bus.SubscribeAll(eventbus.AllNegotiationEventTypes, s.handle)
}

func (s *MetricsSubscriber) handle(ctx context.Context, event eventbus.NegotiationEvent) error {
	switch event.Type {
	case eventbus.NegotiationEventStarted:
		s.metrics.IncStarted()
	case eventbus.NegotiationEventMessageAdded:
		s.metrics.IncTurn(string(event.Role))
	case eventbus.NegotiationEventConcluded:
		s.metrics.IncOutcome("concluded")
	case eventbus.NegotiationEventExhausted:
		s.metrics.IncOutcome("exhausted")
	}
	klog.V(6).Infof("谈判指标已记录: type=%s, negotiationID=%s", event.Type, event.NegotiationID)
	return nil
}
