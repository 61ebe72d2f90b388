package statemachine

import (
	"fmt"

	"k8s.io/klog/v2"
)

// NegotiationStatus 定义谈判会话的所有可能状态
type NegotiationStatus string

const (
	NegotiationStatusIdle      NegotiationStatus = "idle"      // 尚未开始
	NegotiationStatusActive    NegotiationStatus = "active"    // 进行中，可以轮流发言
	NegotiationStatusConcluded NegotiationStatus = "concluded" // 卖方消息命中成交关键词
	NegotiationStatusExhausted NegotiationStatus = "exhausted" // 达到最大轮数仍未成交
)

// NegotiationTransition 定义谈判状态迁移
type NegotiationTransition struct {
	From NegotiationStatus
	To   NegotiationStatus
}

// NegotiationStateMachine 谈判状态机
type NegotiationStateMachine struct {
	allowedTransitions map[NegotiationTransition]bool
}

// NewNegotiationStateMachine 创建新的谈判状态机
func NewNegotiationStateMachine() *NegotiationStateMachine {
	sm := &NegotiationStateMachine{
		allowedTransitions: make(map[NegotiationTransition]bool),
	}

	// idle -> active -> concluded/exhausted
	// 终止态只能通过重新 start 开启新会话，不允许迁回 active
	transitions := []NegotiationTransition{
		{NegotiationStatusIdle, NegotiationStatusActive},
		{NegotiationStatusActive, NegotiationStatusConcluded},
		{NegotiationStatusActive, NegotiationStatusExhausted},
	}

	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}

	return sm
}

// CanTransition 检查状态迁移是否合法
func (sm *NegotiationStateMachine) CanTransition(from, to NegotiationStatus) bool {
	if from == to {
		return false
	}
	return sm.allowedTransitions[NegotiationTransition{From: from, To: to}]
}

// ValidateTransition 验证状态迁移并返回错误
func (sm *NegotiationStateMachine) ValidateTransition(from, to NegotiationStatus) error {
	if !sm.CanTransition(from, to) {
		return &InvalidStateTransitionError{
			From: string(from),
			To:   string(to),
		}
	}
	return nil
}

// Transition 执行状态迁移（带日志）
func (sm *NegotiationStateMachine) Transition(from, to NegotiationStatus, negotiationID string) error {
	if err := sm.ValidateTransition(from, to); err != nil {
		klog.V(6).Infof("谈判状态迁移被拒绝: negotiationID=%s, %s -> %s, error=%v",
			negotiationID, from, to, err)
		return err
	}

	klog.V(6).Infof("谈判状态迁移成功: negotiationID=%s, %s -> %s", negotiationID, from, to)
	return nil
}

// InvalidStateTransitionError 无效的状态迁移错误
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid negotiation state transition: %s -> %s", e.From, e.To)
}

// IsTerminal 判断状态是否为终止态
func IsTerminal(status NegotiationStatus) bool {
	return status == NegotiationStatusConcluded || status == NegotiationStatusExhausted
}
