package negotiation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/duke-git/lancet/v2/slice"
)

// conclusionKeywords 卖方消息中出现任一关键词即视为成交
var conclusionKeywords = []string{"deal", "agreed", "accept", "sold", "final price", "shake hands"}

var pricePattern = regexp.MustCompile(`\$(\d+(?:\.\d{2})?)`)

// Conclusion 成交判定结果，Price 为 nil 表示文本中没有价格
type Conclusion struct {
	Concluded bool     `json:"concluded"`
	Price     *float64 `json:"price,omitempty"`
}

// DetectConclusion 关键词 + 正则的启发式判定。
// 只做子串匹配："I cannot accept that deal" 也会被判为成交，没有关键词的同意表述会漏判。
func DetectConclusion(text string) Conclusion {
	lower := strings.ToLower(text)
	concluded := slice.Some(conclusionKeywords, func(_ int, keyword string) bool {
		return strings.Contains(lower, keyword)
	})
	if !concluded {
		return Conclusion{}
	}
	return Conclusion{Concluded: true, Price: ExtractPrice(text)}
}

// ExtractPrice 返回文本中第一个 $ 金额
func ExtractPrice(text string) *float64 {
	match := pricePattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	price, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}
	return &price
}
