package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/weibaohui/negotiator/config"
	"github.com/weibaohui/negotiator/internal/pkg/metrics"
	"k8s.io/klog/v2"
)

// Completer 底层模型调用，返回文本或错误
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Generator 消息生成器，错误以文本形式返回，调用方总能拿到可展示的内容
type Generator interface {
	Generate(ctx context.Context, req Request) string
}

// TextGenerator 把 Completer 的错误转换为带前缀的文本
type TextGenerator struct {
	completer Completer
	provider  string
	metrics   *metrics.Metrics
}

func NewTextGenerator(completer Completer, provider string, m *metrics.Metrics) *TextGenerator {
	return &TextGenerator{
		completer: completer,
		provider:  provider,
		metrics:   m,
	}
}

func (g *TextGenerator) Generate(ctx context.Context, req Request) string {
	start := time.Now()
	text, err := g.completer.Complete(ctx, BuildSystemPrompt(req), req.Prompt)
	g.metrics.ObserveGeneration(g.provider, time.Since(start), err != nil)
	if err != nil {
		klog.Warningf("消息生成失败: provider=%s, role=%s, err=%v", g.provider, req.Role, err)
		return Describe(err)
	}
	klog.V(6).Infof("消息生成完成: provider=%s, role=%s, length=%d", g.provider, req.Role, len(text))
	return text
}

// NewGenerator 按配置选择后端
func NewGenerator(cfg *config.Config, m *metrics.Metrics) (Generator, error) {
	switch cfg.LLM.Provider {
	case "", "http":
		return NewTextGenerator(NewClient(cfg), "http", m), nil
	case "eino":
		completer, err := NewEinoCompleter(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		return NewTextGenerator(completer, "eino", m), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}
