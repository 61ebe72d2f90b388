package llm

import (
	"fmt"
	"strconv"

	"github.com/weibaohui/negotiator/internal/model"
)

const neutralSystemPrompt = "You are a helpful AI assistant in a negotiation."

// BuildSystemPrompt 按角色构造系统提示词
func BuildSystemPrompt(req Request) string {
	if req.Role == "" {
		return neutralSystemPrompt
	}

	personality := req.Personality
	if personality == "" {
		personality = "diplomatic"
	}

	var prompt string
	if req.Role == model.RoleBuyer {
		prompt = fmt.Sprintf("You are a %s buyer in a negotiation. Your goal is to get the best price while maintaining a good relationship. "+
			"Be strategic, friendly, and persuasive. Always respond as the buyer character.", personality)
	} else {
		prompt = fmt.Sprintf("You are a %s seller in a negotiation. Your goal is to maximize profit while ensuring customer satisfaction. "+
			"Be professional, convincing, and value-focused. Always respond as the seller character.", personality)
	}

	if req.TargetPrice != nil && *req.TargetPrice != 0 {
		prompt += " Your target price is $" + FormatPrice(*req.TargetPrice) + "."
	}
	return prompt
}

// FormatPrice 去掉多余的小数位：45 -> "45"，45.5 -> "45.5"
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}
