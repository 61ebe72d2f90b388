package negotiation

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weibaohui/negotiator/internal/model"
)

func TestEvaluateOfferBuyer(t *testing.T) {
	buyer := NewParty(model.RoleBuyer, "Alex", "diplomat", newScriptedGenerator())
	buyer.SetPricingBounds(80, 64, 100)

	assert.True(t, buyer.EvaluateOffer(100), "价格等于上限应接受")
	assert.False(t, buyer.EvaluateOffer(100.01), "超过上限应拒绝")
	assert.True(t, buyer.EvaluateOffer(10))
}

func TestEvaluateOfferSeller(t *testing.T) {
	seller := NewParty(model.RoleSeller, "Maria", "merchant", newScriptedGenerator())
	seller.SetPricingBounds(120, 90, 180)

	assert.True(t, seller.EvaluateOffer(90))
	assert.False(t, seller.EvaluateOffer(89.99))
	assert.True(t, seller.EvaluateOffer(500))
}

func TestSetPricingBoundsAcceptsAnyTriple(t *testing.T) {
	buyer := NewParty(model.RoleBuyer, "Alex", "", newScriptedGenerator())
	buyer.SetPricingBounds(50, 200, 10)

	assert.Equal(t, 50.0, buyer.TargetPrice)
	assert.Equal(t, 200.0, buyer.MinAcceptable)
	assert.Equal(t, 10.0, buyer.MaxAcceptable)
}

func TestHistoryWindows(t *testing.T) {
	party := NewParty(model.RoleSeller, "Maria", "", newScriptedGenerator())
	assert.Equal(t, "No previous conversation.", party.Transcript())

	for i := 1; i <= 7; i++ {
		party.RecordMessage(fmt.Sprintf("msg-%d", i), "Maria")
	}

	assert.Len(t, party.History(), 7, "完整历史保留")

	ctx := party.Context()
	require.Len(t, ctx, 5)
	assert.Equal(t, "msg-3", ctx[0].Content)
	assert.Equal(t, "msg-7", ctx[4].Content)

	assert.Equal(t, "Maria: msg-5\nMaria: msg-6\nMaria: msg-7", party.Transcript())
}

func TestRequestReplyBuildsRolePrompt(t *testing.T) {
	gen := newScriptedGenerator().script(model.RoleBuyer, "Would you take $85?")
	buyer := NewParty(model.RoleBuyer, "Alex the Buyer", "charming", gen)
	buyer.SetPricingBounds(80, 64, 100)

	reply := buyer.RequestReply(context.Background(), "It's yours for $120.", TurnContext{Item: "Vintage lamp"})

	assert.Equal(t, "Would you take $85?", reply)
	req := gen.lastRequest()
	assert.Equal(t, model.RoleBuyer, req.Role)
	assert.Equal(t, "charming", req.Personality)
	require.NotNil(t, req.TargetPrice)
	assert.Equal(t, 80.0, *req.TargetPrice)
	assert.Contains(t, req.Prompt, "You are Alex the Buyer, a diplomatic buyer")
	assert.Contains(t, req.Prompt, `Seller's last message: "It's yours for $120."`)
	assert.Contains(t, req.Prompt, "Your maximum budget: $100")
	assert.Contains(t, req.Prompt, "Vintage lamp")
	assert.Contains(t, req.Prompt, "No previous conversation.")

	history := buyer.History()
	require.Len(t, history, 1)
	assert.Equal(t, "Alex the Buyer", history[0].Sender)
	assert.Equal(t, reply, history[0].Content)
}

func TestSellerPromptIncludesCostAndTranscript(t *testing.T) {
	gen := newScriptedGenerator()
	seller := NewParty(model.RoleSeller, "Maria the Seller", "merchant", gen)
	seller.Cost = 40
	seller.SetPricingBounds(120, 90, 180)
	seller.RecordMessage("Earlier pitch", "Maria the Seller")

	seller.RequestReply(context.Background(), "", TurnContext{})

	prompt := gen.lastRequest().Prompt
	assert.Contains(t, prompt, "Item being sold: Unknown item")
	assert.Contains(t, prompt, `Buyer's message: ""`)
	assert.Contains(t, prompt, "Your minimum acceptable: $90")
	assert.Contains(t, prompt, "Item cost: $40")
	assert.Contains(t, prompt, "Maria the Seller: Earlier pitch")
}

func TestOpeningPrompts(t *testing.T) {
	gen := newScriptedGenerator()
	seller := NewParty(model.RoleSeller, "Maria", "", gen)
	seller.SetPricingBounds(120, 90, 180)
	_, err := seller.Open(context.Background(), OpeningContext{Item: "Lamp", Details: "brass, 1950s"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gen.lastRequest().Prompt, "You are Maria, listing Lamp for sale."))
	assert.Contains(t, gen.lastRequest().Prompt, "Your asking price: $120")

	buyer := NewParty(model.RoleBuyer, "Alex", "", gen)
	buyer.SetPricingBounds(80, 64, 100)
	opening, err := buyer.Open(context.Background(), OpeningContext{Item: "Lamp"})
	assert.ErrorIs(t, err, ErrNoOpening)
	assert.Empty(t, opening)
	assert.Len(t, gen.requests, 1)
	assert.Empty(t, buyer.Context())
}
