package service

import (
	"context"
	"sync"
	"time"

	"github.com/weibaohui/negotiator/config"
	"github.com/weibaohui/negotiator/internal/eventbus"
	"github.com/weibaohui/negotiator/internal/model"
	"github.com/weibaohui/negotiator/internal/pkg/llm"
	"github.com/weibaohui/negotiator/internal/service/negotiation"
	"k8s.io/klog/v2"
)

// NegotiationService 谈判服务接口，同一时间只维护一个当前会话
type NegotiationService interface {
	// Start 丢弃旧会话并开始新谈判
	Start(ctx context.Context, params model.StartParams) model.TurnResult

	// BuyerRespond 买方发言
	BuyerRespond(ctx context.Context) model.TurnResult

	// SellerRespond 卖方发言
	SellerRespond(ctx context.Context) model.TurnResult

	// AutoNegotiate 自动进行最多 rounds 轮
	AutoNegotiate(ctx context.Context, rounds int) AutoNegotiateResult

	// Status 当前会话快照，ok 为 false 表示从未开始过谈判
	Status() (model.Summary, bool)

	// Cancel 取消正在进行的生成请求
	Cancel() bool

	// Listen 语音输入
	Listen(ctx context.Context, timeout time.Duration) (string, bool)
}

// AutoNegotiateResult 自动谈判结果
type AutoNegotiateResult struct {
	Success bool               `json:"success"`
	Results []model.TurnResult `json:"results"`
	Summary *model.Summary     `json:"summary,omitempty"`
}

type listener interface {
	Listen(ctx context.Context, timeout time.Duration) (string, bool)
}

// negotiationService 谈判服务实现
type negotiationService struct {
	generator llm.Generator
	bus       *eventbus.NegotiationEventBus
	listener  listener
	opts      negotiation.Options

	mu      sync.RWMutex
	session *negotiation.Session
}

// NewNegotiationService 创建谈判服务，bus 与 listener 可以为 nil
func NewNegotiationService(cfg *config.Config, generator llm.Generator, bus *eventbus.NegotiationEventBus, listener listener) NegotiationService {
	return &negotiationService{
		generator: generator,
		bus:       bus,
		listener:  listener,
		opts: negotiation.Options{
			MaxRounds:         cfg.Negotiation.MaxRounds,
			TurnPause:         cfg.Negotiation.TurnPause,
			BuyerName:         cfg.Negotiation.BuyerName,
			BuyerPersonality:  cfg.Negotiation.BuyerPersonality,
			SellerName:        cfg.Negotiation.SellerName,
			SellerPersonality: cfg.Negotiation.SellerPersonality,
		},
	}
}

// Start 开始新谈判
func (s *negotiationService) Start(ctx context.Context, params model.StartParams) model.TurnResult {
	session := negotiation.NewSession(s.generator, s.bus, s.opts)

	s.mu.Lock()
	previous := s.session
	s.session = session
	s.mu.Unlock()

	if previous != nil {
		// 旧会话可能还有进行中的生成请求
		previous.Cancel()
	}

	result := session.Start(ctx, params)
	klog.V(6).Infof("谈判已开始: negotiationID=%s, item=%s", result.NegotiationID, params.Item)
	return result
}

// BuyerRespond 买方发言
func (s *negotiationService) BuyerRespond(ctx context.Context) model.TurnResult {
	session := s.current()
	if session == nil {
		return inactiveResult()
	}
	result, err := session.AdvanceBuyer(ctx)
	if err != nil {
		klog.V(6).Infof("买方发言被拒绝: %v", err)
	}
	return result
}

// SellerRespond 卖方发言
func (s *negotiationService) SellerRespond(ctx context.Context) model.TurnResult {
	session := s.current()
	if session == nil {
		return inactiveResult()
	}
	result, err := session.AdvanceSeller(ctx)
	if err != nil {
		klog.V(6).Infof("卖方发言被拒绝: %v", err)
	}
	return result
}

// AutoNegotiate 自动谈判，会话不活跃时返回空结果
func (s *negotiationService) AutoNegotiate(ctx context.Context, rounds int) AutoNegotiateResult {
	session := s.current()
	if session == nil {
		return AutoNegotiateResult{Success: true, Results: []model.TurnResult{}}
	}

	results := session.AutoRun(ctx, rounds)
	summary := session.Summary()
	klog.V(6).Infof("自动谈判结束: negotiationID=%s, turns=%d, status=%s", summary.NegotiationID, len(results), summary.Status)
	return AutoNegotiateResult{
		Success: true,
		Results: results,
		Summary: &summary,
	}
}

// Status 当前会话快照
func (s *negotiationService) Status() (model.Summary, bool) {
	session := s.current()
	if session == nil {
		return model.Summary{
			Status:  "idle",
			History: []model.Message{},
			Offers:  []model.Offer{},
		}, false
	}
	return session.Summary(), true
}

// Cancel 取消当前会话进行中的生成请求
func (s *negotiationService) Cancel() bool {
	session := s.current()
	if session == nil {
		return false
	}
	return session.Cancel()
}

// Listen 语音输入，未配置语音时返回 false
func (s *negotiationService) Listen(ctx context.Context, timeout time.Duration) (string, bool) {
	if s.listener == nil {
		return "", false
	}
	return s.listener.Listen(ctx, timeout)
}

func (s *negotiationService) current() *negotiation.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func inactiveResult() model.TurnResult {
	return model.TurnResult{Success: false, Error: negotiation.ErrInactiveSession.Error()}
}
