package negotiation

import (
	"fmt"

	"github.com/weibaohui/negotiator/internal/model"
	"github.com/weibaohui/negotiator/internal/pkg/llm"
)

// TurnContext 每轮发言附带的上下文
type TurnContext struct {
	Item  string
	Round int
}

// OpeningContext 开场发言的上下文
type OpeningContext struct {
	Item    string
	Details string
}

// roleBehavior 按角色区分的提示词和报价判定，只有卖方有开场白
type roleBehavior struct {
	replyPrompt   func(p *Party, counterpartMessage string, turn TurnContext) string
	openingPrompt func(p *Party, opening OpeningContext) string
	accepts       func(p *Party, price float64) bool
}

var roleBehaviors = map[model.Role]roleBehavior{
	model.RoleBuyer: {
		replyPrompt: buyerReplyPrompt,
		accepts: func(p *Party, price float64) bool {
			return price <= p.MaxAcceptable
		},
	},
	model.RoleSeller: {
		replyPrompt:   sellerReplyPrompt,
		openingPrompt: sellerOpeningPrompt,
		accepts: func(p *Party, price float64) bool {
			return price >= p.MinAcceptable
		},
	},
}

func itemOrUnknown(item string) string {
	if item == "" {
		return "Unknown item"
	}
	return item
}

func buyerReplyPrompt(p *Party, counterpartMessage string, turn TurnContext) string {
	return fmt.Sprintf(`NEGOTIATION CONTEXT:
- You are %s, a diplomatic buyer
- Item being negotiated: %s
- Seller's last message: "%s"
- Your target price: $%s
- Your maximum budget: $%s

RECENT CONVERSATION:
%s

INSTRUCTIONS:
- Respond as a charming, collaborative buyer
- Try to find win-win solutions
- Be diplomatic but firm about your budget
- Make counteroffers when appropriate
- Keep responses under 100 words
- If the price is acceptable, show enthusiasm

Generate your response:`,
		p.Name, itemOrUnknown(turn.Item), counterpartMessage,
		llm.FormatPrice(p.TargetPrice), llm.FormatPrice(p.MaxAcceptable),
		p.Transcript())
}

func sellerReplyPrompt(p *Party, counterpartMessage string, turn TurnContext) string {
	return fmt.Sprintf(`NEGOTIATION CONTEXT:
- You are %s, a professional seller
- Item being sold: %s
- Buyer's message: "%s"
- Your target price: $%s
- Your minimum acceptable: $%s
- Item cost: $%s

RECENT CONVERSATION:
%s

INSTRUCTIONS:
- Respond as a professional, value-focused seller
- Emphasize the quality and benefits of your item
- Be firm but fair with pricing
- Make counteroffers when buyer's offer is too low
- Show flexibility while protecting your margins
- Keep responses under 100 words
- If buyer's offer is acceptable, show appreciation

Generate your response:`,
		p.Name, itemOrUnknown(turn.Item), counterpartMessage,
		llm.FormatPrice(p.TargetPrice), llm.FormatPrice(p.MinAcceptable), llm.FormatPrice(p.Cost),
		p.Transcript())
}

func sellerOpeningPrompt(p *Party, opening OpeningContext) string {
	return fmt.Sprintf(`You are %s, listing %s for sale.

Item details: %s
Your asking price: $%s

Create an attractive listing that:
- Highlights the item's quality and value
- Justifies the asking price
- Invites negotiation
- Sounds professional and trustworthy

Keep it under 80 words and make it compelling.`,
		p.Name, opening.Item, opening.Details, llm.FormatPrice(p.TargetPrice))
}
