package negotiation

import (
	"context"
	"sync"

	"github.com/weibaohui/negotiator/internal/model"
	"github.com/weibaohui/negotiator/internal/pkg/llm"
)

// scriptedGenerator 按角色依次返回预设回复，用完后返回默认回复
type scriptedGenerator struct {
	mu       sync.Mutex
	replies  map[model.Role][]string
	fallback string
	requests []llm.Request
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		replies:  make(map[model.Role][]string),
		fallback: "Let me think about that.",
	}
}

func (g *scriptedGenerator) script(role model.Role, replies ...string) *scriptedGenerator {
	g.replies[role] = append(g.replies[role], replies...)
	return g
}

func (g *scriptedGenerator) Generate(ctx context.Context, req llm.Request) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	queue := g.replies[req.Role]
	if len(queue) == 0 {
		return g.fallback
	}
	g.replies[req.Role] = queue[1:]
	return queue[0]
}

func (g *scriptedGenerator) lastRequest() llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

// blockingGenerator 阻塞直到 ctx 被取消
type blockingGenerator struct {
	started chan struct{}
}

func (g *blockingGenerator) Generate(ctx context.Context, req llm.Request) string {
	close(g.started)
	<-ctx.Done()
	return llm.ErrorPrefix + "Request cancelled"
}
