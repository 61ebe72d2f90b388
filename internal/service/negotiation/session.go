package negotiation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/weibaohui/negotiator/internal/eventbus"
	"github.com/weibaohui/negotiator/internal/model"
	"github.com/weibaohui/negotiator/internal/pkg/llm"
	"github.com/weibaohui/negotiator/internal/service/statemachine"
	"k8s.io/klog/v2"
)

// ErrInactiveSession 会话未开始或已结束
var ErrInactiveSession = errors.New("no active negotiation")

const (
	sellerMaxFactor = 1.5
	buyerMinFactor  = 0.8
)

// Options 会话参数
type Options struct {
	MaxRounds         int
	TurnPause         time.Duration
	BuyerName         string
	BuyerPersonality  string
	SellerName        string
	SellerPersonality string
}

// Session 一次买卖双方的谈判。
// turnMu 串行化所有发言（含 LLM 调用），mu 只保护状态读写，
// 因此生成过程中 Summary 仍可读取。
type Session struct {
	opts      Options
	generator llm.Generator
	bus       *eventbus.NegotiationEventBus
	sm        *statemachine.NegotiationStateMachine

	turnMu sync.Mutex

	mu                 sync.RWMutex
	id                 string
	status             statemachine.NegotiationStatus
	item               string
	itemDetails        string
	buyer              *Party
	seller             *Party
	history            []model.Message
	offers             []model.Offer
	roundCount         int
	currentBuyerOffer  *float64
	currentSellerOffer *float64
	finalPrice         *float64

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// NewSession 创建 idle 状态的会话，bus 可以为 nil
func NewSession(generator llm.Generator, bus *eventbus.NegotiationEventBus, opts Options) *Session {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = 10
	}
	s := &Session{
		opts:      opts,
		generator: generator,
		bus:       bus,
		sm:        statemachine.NewNegotiationStateMachine(),
		status:    statemachine.NegotiationStatusIdle,
	}
	s.buyer = NewParty(model.RoleBuyer, opts.BuyerName, opts.BuyerPersonality, generator)
	s.seller = NewParty(model.RoleSeller, opts.SellerName, opts.SellerPersonality, generator)
	return s
}

// Start 重置全部状态，配置双方价格并生成卖方开场白
func (s *Session) Start(ctx context.Context, params model.StartParams) model.TurnResult {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	buyer := NewParty(model.RoleBuyer, s.opts.BuyerName, s.opts.BuyerPersonality, s.generator)
	seller := NewParty(model.RoleSeller, s.opts.SellerName, s.opts.SellerPersonality, s.generator)
	// 派生边界不与 seller_min / buyer_max 交叉校验
	seller.Cost = params.SellerCost
	seller.SetPricingBounds(params.SellerTarget, params.SellerMin, params.SellerTarget*sellerMaxFactor)
	buyer.SetPricingBounds(params.BuyerTarget, params.BuyerTarget*buyerMinFactor, params.BuyerMax)

	s.mu.Lock()
	s.id = uuid.NewString()
	s.status = statemachine.NegotiationStatusIdle
	s.item = params.Item
	s.itemDetails = params.ItemDetails
	s.buyer = buyer
	s.seller = seller
	s.history = nil
	s.offers = nil
	s.roundCount = 0
	s.currentBuyerOffer = nil
	s.currentSellerOffer = nil
	s.finalPrice = nil
	id := s.id
	s.mu.Unlock()

	klog.V(6).Infof("开始谈判: negotiationID=%s, item=%s", id, params.Item)

	runCtx, done := s.beginGeneration(ctx)
	// 卖方角色总有开场白
	opening, _ := seller.Open(runCtx, OpeningContext{Item: params.Item, Details: params.ItemDetails})
	done()

	s.mu.Lock()
	s.transitionLocked(statemachine.NegotiationStatusActive)
	s.appendLocked(model.RoleSeller, opening)
	s.mu.Unlock()

	s.publish(ctx, eventbus.NegotiationEvent{Type: eventbus.NegotiationEventStarted, NegotiationID: id, Item: params.Item})
	s.publish(ctx, eventbus.NegotiationEvent{
		Type:          eventbus.NegotiationEventMessageAdded,
		NegotiationID: id,
		Role:          model.RoleSeller,
		Message:       opening,
	})

	return model.TurnResult{
		Success:       true,
		Message:       opening,
		Speaker:       model.RoleSeller,
		Round:         0,
		NegotiationID: id,
	}
}

// AdvanceBuyer 买方回应卖方最新消息，轮数加一，不做成交判定
func (s *Session) AdvanceBuyer(ctx context.Context) (model.TurnResult, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.Lock()
	if s.status != statemachine.NegotiationStatusActive {
		s.mu.Unlock()
		return failedTurn(ErrInactiveSession), ErrInactiveSession
	}
	if s.roundCount >= s.opts.MaxRounds {
		// 卖方未回应最后一轮就再次请求买方发言
		s.transitionLocked(statemachine.NegotiationStatusExhausted)
		event := s.terminalEventLocked(eventbus.NegotiationEventExhausted)
		s.mu.Unlock()
		s.publish(ctx, event)
		return failedTurn(ErrInactiveSession), ErrInactiveSession
	}
	lastSeller := s.counterpartMessageLocked(model.RoleBuyer)
	turn := TurnContext{Item: s.item, Round: s.roundCount}
	buyer := s.buyer
	s.mu.Unlock()

	runCtx, done := s.beginGeneration(ctx)
	reply := buyer.RequestReply(runCtx, lastSeller, turn)
	done()

	s.mu.Lock()
	s.appendLocked(model.RoleBuyer, reply)
	s.roundCount++
	round := s.roundCount
	id := s.id
	s.mu.Unlock()

	s.publish(ctx, eventbus.NegotiationEvent{
		Type:          eventbus.NegotiationEventMessageAdded,
		NegotiationID: id,
		Role:          model.RoleBuyer,
		Message:       reply,
		Round:         round,
	})

	return model.TurnResult{
		Success: true,
		Message: reply,
		Speaker: model.RoleBuyer,
		Round:   round,
	}, nil
}

// AdvanceSeller 卖方回应买方最新消息，只对卖方消息做成交判定
func (s *Session) AdvanceSeller(ctx context.Context) (model.TurnResult, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.Lock()
	if s.status != statemachine.NegotiationStatusActive {
		s.mu.Unlock()
		return failedTurn(ErrInactiveSession), ErrInactiveSession
	}
	lastBuyer := s.counterpartMessageLocked(model.RoleSeller)
	turn := TurnContext{Item: s.item, Round: s.roundCount}
	seller := s.seller
	s.mu.Unlock()

	runCtx, done := s.beginGeneration(ctx)
	reply := seller.RequestReply(runCtx, lastBuyer, turn)
	done()

	conclusion := DetectConclusion(reply)

	s.mu.Lock()
	s.appendLocked(model.RoleSeller, reply)
	round := s.roundCount
	id := s.id
	var terminal *eventbus.NegotiationEvent
	switch {
	case conclusion.Concluded:
		s.finalPrice = conclusion.Price
		s.transitionLocked(statemachine.NegotiationStatusConcluded)
		event := s.terminalEventLocked(eventbus.NegotiationEventConcluded)
		terminal = &event
	case s.roundCount >= s.opts.MaxRounds:
		s.transitionLocked(statemachine.NegotiationStatusExhausted)
		event := s.terminalEventLocked(eventbus.NegotiationEventExhausted)
		terminal = &event
	}
	s.mu.Unlock()

	s.publish(ctx, eventbus.NegotiationEvent{
		Type:          eventbus.NegotiationEventMessageAdded,
		NegotiationID: id,
		Role:          model.RoleSeller,
		Message:       reply,
		Round:         round,
	})
	if terminal != nil {
		s.publish(ctx, *terminal)
	}

	return model.TurnResult{
		Success:       true,
		Message:       reply,
		Speaker:       model.RoleSeller,
		Round:         round,
		DealConcluded: conclusion.Concluded,
		FinalPrice:    conclusion.Price,
	}, nil
}

// AutoRun 双方轮流发言，直到成交、达到最大轮数或执行完 maxIterations 轮
func (s *Session) AutoRun(ctx context.Context, maxIterations int) []model.TurnResult {
	if maxIterations <= 0 {
		return []model.TurnResult{}
	}
	// 轮数受 MaxRounds 限制，预分配不能按调用方传入的次数
	results := make([]model.TurnResult, 0, min(maxIterations, s.opts.MaxRounds)*2)

	for i := 0; i < maxIterations; i++ {
		if !s.Active() {
			break
		}

		buyerResult, err := s.AdvanceBuyer(ctx)
		if err != nil {
			break
		}
		results = append(results, buyerResult)

		if !s.pause(ctx) {
			break
		}

		sellerResult, err := s.AdvanceSeller(ctx)
		if err != nil {
			break
		}
		results = append(results, sellerResult)
		if sellerResult.DealConcluded {
			break
		}

		if s.RoundCount() >= s.opts.MaxRounds {
			break
		}
		if i < maxIterations-1 && !s.pause(ctx) {
			break
		}
	}

	return results
}

// Cancel 尽力取消正在进行的生成请求
func (s *Session) Cancel() bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Summary 当前会话快照
func (s *Session) Summary() model.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]model.Message, len(s.history))
	copy(history, s.history)
	offers := make([]model.Offer, len(s.offers))
	copy(offers, s.offers)

	return model.Summary{
		NegotiationID:      s.id,
		Item:               s.item,
		ItemDetails:        s.itemDetails,
		Status:             string(s.status),
		Active:             s.status == statemachine.NegotiationStatusActive,
		RoundCount:         s.roundCount,
		MaxRounds:          s.opts.MaxRounds,
		History:            history,
		Offers:             offers,
		BuyerTarget:        s.buyer.TargetPrice,
		SellerTarget:       s.seller.TargetPrice,
		CurrentBuyerOffer:  s.currentBuyerOffer,
		CurrentSellerOffer: s.currentSellerOffer,
		FinalPrice:         s.finalPrice,
	}
}

func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status == statemachine.NegotiationStatusActive
}

func (s *Session) Status() statemachine.NegotiationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) RoundCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roundCount
}

func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Buyer / Seller 供报价评估使用，谈判开始后边界不再变化
func (s *Session) Buyer() *Party {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buyer
}

func (s *Session) Seller() *Party {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seller
}

func (s *Session) beginGeneration(ctx context.Context) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()
	return runCtx, func() {
		s.cancelMu.Lock()
		s.cancel = nil
		s.cancelMu.Unlock()
		cancel()
	}
}

func (s *Session) pause(ctx context.Context) bool {
	if s.opts.TurnPause <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.opts.TurnPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Session) transitionLocked(to statemachine.NegotiationStatus) {
	if err := s.sm.Transition(s.status, to, s.id); err != nil {
		klog.Warningf("谈判状态迁移失败: negotiationID=%s, err=%v", s.id, err)
		return
	}
	s.status = to
}

func (s *Session) appendLocked(role model.Role, content string) {
	now := time.Now()
	s.history = append(s.history, model.Message{
		ID:        ulid.Make().String(),
		Sender:    string(role),
		Content:   content,
		Round:     s.roundCount,
		Timestamp: now,
	})

	price := ExtractPrice(content)
	if price == nil {
		return
	}
	s.offers = append(s.offers, model.Offer{
		Party:      role,
		Price:      *price,
		Quantity:   1,
		Conditions: map[string]any{},
		Message:    content,
		Timestamp:  now,
	})
	if role == model.RoleBuyer {
		s.currentBuyerOffer = price
	} else {
		s.currentSellerOffer = price
	}
}

// counterpartMessageLocked 倒序查找对手方的最新消息，没有时返回空串
func (s *Session) counterpartMessageLocked(role model.Role) string {
	counterpart := string(role.Counterpart())
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Sender == counterpart {
			return s.history[i].Content
		}
	}
	return ""
}

func (s *Session) terminalEventLocked(eventType eventbus.NegotiationEventType) eventbus.NegotiationEvent {
	return eventbus.NegotiationEvent{
		Type:          eventType,
		NegotiationID: s.id,
		Item:          s.item,
		Round:         s.roundCount,
		FinalPrice:    s.finalPrice,
	}
}

func (s *Session) publish(ctx context.Context, event eventbus.NegotiationEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		klog.Warningf("发布谈判事件失败: type=%s, negotiationID=%s, err=%v", event.Type, event.NegotiationID, err)
	}
}

func failedTurn(err error) model.TurnResult {
	return model.TurnResult{Success: false, Error: err.Error()}
}
