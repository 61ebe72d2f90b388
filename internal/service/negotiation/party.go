package negotiation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/weibaohui/negotiator/internal/model"
	"github.com/weibaohui/negotiator/internal/pkg/llm"
	"k8s.io/klog/v2"
)

// ErrNoOpening 该角色没有开场白
var ErrNoOpening = errors.New("role has no opening message")

const (
	contextWindow    = 5
	transcriptWindow = 3
)

// Party 谈判的一方。价格边界在谈判开始前设置，之后不再修改。
type Party struct {
	Role        model.Role
	Name        string
	Personality string

	TargetPrice   float64
	MinAcceptable float64
	MaxAcceptable float64
	Cost          float64 // 仅卖方使用

	history   []model.Message
	generator llm.Generator
	behavior  roleBehavior
}

func NewParty(role model.Role, name, personality string, generator llm.Generator) *Party {
	behavior, ok := roleBehaviors[role]
	if !ok {
		panic(fmt.Sprintf("unknown negotiation role: %s", role))
	}
	return &Party{
		Role:        role,
		Name:        name,
		Personality: personality,
		generator:   generator,
		behavior:    behavior,
	}
}

// SetPricingBounds 不校验 min <= target <= max
func (p *Party) SetPricingBounds(target, min, max float64) {
	p.TargetPrice = target
	p.MinAcceptable = min
	p.MaxAcceptable = max
}

func (p *Party) RecordMessage(content, sender string) {
	p.history = append(p.history, model.Message{
		ID:        ulid.Make().String(),
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// History 完整历史的副本
func (p *Party) History() []model.Message {
	out := make([]model.Message, len(p.history))
	copy(out, p.history)
	return out
}

// Context 最近 5 条消息
func (p *Party) Context() []model.Message {
	return lastN(p.history, contextWindow)
}

// Transcript 最近 3 条消息的文本形式
func (p *Party) Transcript() string {
	if len(p.history) == 0 {
		return "No previous conversation."
	}
	recent := lastN(p.history, transcriptWindow)
	lines := make([]string, 0, len(recent))
	for _, msg := range recent {
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Sender, msg.Content))
	}
	return strings.Join(lines, "\n")
}

// RequestReply 针对对方上一条消息生成回复，并记入自己的历史
func (p *Party) RequestReply(ctx context.Context, counterpartMessage string, turn TurnContext) string {
	prompt := p.behavior.replyPrompt(p, counterpartMessage, turn)
	return p.generate(ctx, prompt)
}

// Open 生成卖方的商品介绍；买方没有开场白，返回 ErrNoOpening
func (p *Party) Open(ctx context.Context, opening OpeningContext) (string, error) {
	if p.behavior.openingPrompt == nil {
		return "", ErrNoOpening
	}
	prompt := p.behavior.openingPrompt(p, opening)
	return p.generate(ctx, prompt), nil
}

// EvaluateOffer 买方接受 price <= max，卖方接受 price >= min
func (p *Party) EvaluateOffer(price float64) bool {
	return p.behavior.accepts(p, price)
}

func (p *Party) generate(ctx context.Context, prompt string) string {
	target := p.TargetPrice
	klog.V(6).Infof("[%s] 请求生成: promptLength=%d, history=%d", p.Role, len(prompt), len(p.history))
	response := p.generator.Generate(ctx, llm.Request{
		Role:        p.Role,
		Personality: p.Personality,
		TargetPrice: &target,
		Prompt:      prompt,
	})
	p.RecordMessage(response, p.Name)
	return response
}

func lastN(messages []model.Message, n int) []model.Message {
	if len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	out := make([]model.Message, len(messages))
	copy(out, messages)
	return out
}
