package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/weibaohui/negotiator/config"
	"k8s.io/klog/v2"
)

// EinoCompleter 基于 eino OpenAI ChatModel 的后端
type EinoCompleter struct {
	chatModel model.BaseChatModel
}

// NewEinoCompleter 创建 eino 后端
func NewEinoCompleter(ctx context.Context, cfg *config.Config) (*EinoCompleter, error) {
	klog.V(6).Infof("[EinoCompleter] 创建 OpenAI ChatModel: model=%s, baseURL=%s", cfg.LLM.Model, cfg.LLM.APIURL)

	modelConfig := &openai.ChatModelConfig{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.APIURL,
		Timeout: cfg.LLM.Timeout,
	}
	if cfg.LLM.MaxTokens > 0 {
		maxTokens := cfg.LLM.MaxTokens
		modelConfig.MaxTokens = &maxTokens
	}
	if cfg.LLM.Temperature > 0 {
		temperature := float32(cfg.LLM.Temperature)
		modelConfig.Temperature = &temperature
	}
	if cfg.LLM.TopP > 0 {
		topP := float32(cfg.LLM.TopP)
		modelConfig.TopP = &topP
	}

	chatModel, err := openai.NewChatModel(ctx, modelConfig)
	if err != nil {
		klog.Errorf("[EinoCompleter] 创建 ChatModel 失败: %v", err)
		return nil, err
	}
	return &EinoCompleter{chatModel: chatModel}, nil
}

// NewEinoCompleterWithModel 使用已有的 ChatModel，便于测试替换
func NewEinoCompleterWithModel(chatModel model.BaseChatModel) *EinoCompleter {
	return &EinoCompleter{chatModel: chatModel}
}

func (e *EinoCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	input := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}

	resp, err := e.chatModel.Generate(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			return "", classifyTransportError(ctx.Err())
		}
		return "", err
	}
	if resp == nil {
		return "", &UnexpectedStructureError{Body: "<nil message>"}
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", &UnexpectedStructureError{Body: fmt.Sprintf("empty content, role=%s", resp.Role)}
	}
	return content, nil
}
