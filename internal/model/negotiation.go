package model

import (
	"time"
)

// Role 谈判参与方
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Counterpart 返回对手方角色
func (r Role) Counterpart() Role {
	if r == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}

// Message 对话记录，只追加不删除
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"speaker"`
	Content   string    `json:"message"`
	Round     int       `json:"round"`
	Timestamp time.Time `json:"timestamp"`
}

// Offer 从消息中识别出的报价
type Offer struct {
	Party      Role           `json:"agent_type"`
	Price      float64        `json:"price"`
	Quantity   int            `json:"quantity"`
	Conditions map[string]any `json:"conditions"`
	Message    string         `json:"message"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Summary 谈判快照（只读）
type Summary struct {
	NegotiationID      string    `json:"negotiation_id"`
	Item               string    `json:"item"`
	ItemDetails        string    `json:"item_details"`
	Status             string    `json:"status"` // idle, active, concluded, exhausted
	Active             bool      `json:"active"`
	RoundCount         int       `json:"rounds"`
	MaxRounds          int       `json:"max_rounds"`
	History            []Message `json:"history"`
	Offers             []Offer   `json:"offers"`
	BuyerTarget        float64   `json:"buyer_target"`
	SellerTarget       float64   `json:"seller_target"`
	CurrentBuyerOffer  *float64  `json:"current_buyer_offer"`
	CurrentSellerOffer *float64  `json:"current_seller_offer"`
	FinalPrice         *float64  `json:"final_price"`
}

// TurnResult 单次发言的结果
type TurnResult struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message,omitempty"`
	Speaker       Role     `json:"speaker,omitempty"`
	Round         int      `json:"round"`
	NegotiationID string   `json:"negotiation_id,omitempty"`
	DealConcluded bool     `json:"deal_concluded,omitempty"`
	FinalPrice    *float64 `json:"final_price,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// StartParams 发起谈判的参数
type StartParams struct {
	Item         string
	ItemDetails  string
	SellerCost   float64
	SellerTarget float64
	SellerMin    float64
	BuyerTarget  float64
	BuyerMax     float64
}
