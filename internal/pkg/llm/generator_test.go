package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weibaohui/negotiator/config"
	"github.com/weibaohui/negotiator/internal/model"
	"github.com/weibaohui/negotiator/internal/pkg/metrics"
)

type fakeCompleter struct {
	text   string
	err    error
	system string
	user   string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.system = systemPrompt
	f.user = userPrompt
	return f.text, f.err
}

func TestTextGeneratorPassesPrompts(t *testing.T) {
	target := 80.0
	completer := &fakeCompleter{text: "How about $70?"}
	gen := NewTextGenerator(completer, "fake", metrics.New())

	out := gen.Generate(context.Background(), Request{
		Role:        model.RoleBuyer,
		Personality: "friendly",
		TargetPrice: &target,
		Prompt:      "make an offer",
	})

	assert.Equal(t, "How about $70?", out)
	assert.Equal(t, "make an offer", completer.user)
	assert.Contains(t, completer.system, "friendly buyer")
	assert.Contains(t, completer.system, "Your target price is $80.")
}

func TestTextGeneratorReturnsErrorAsText(t *testing.T) {
	gen := NewTextGenerator(&fakeCompleter{err: &HTTPStatusError{StatusCode: 429}}, "fake", nil)

	out := gen.Generate(context.Background(), Request{Role: model.RoleSeller, Prompt: "hi"})

	assert.True(t, strings.HasPrefix(out, ErrorPrefix))
	assert.Contains(t, out, "Rate Limited")
}

func TestDescribeUnknownError(t *testing.T) {
	assert.Equal(t, ErrorPrefix+"Unexpected error: boom", Describe(errors.New("boom")))
	assert.Contains(t, Describe(errors.New("status code: 401, invalid api key")), "Authentication Error")
	assert.Equal(t, "", Describe(nil))
}

func TestNewGeneratorProviders(t *testing.T) {
	cfg := config.Default()

	gen, err := NewGenerator(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &TextGenerator{}, gen)

	cfg.LLM.Provider = "unknown"
	_, err = NewGenerator(cfg, nil)
	assert.Error(t, err)
}
