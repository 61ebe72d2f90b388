package handler

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weibaohui/negotiator/internal/model"
	"github.com/weibaohui/negotiator/internal/service"
	"k8s.io/klog/v2"
)

// Number 接受 JSON 数字或数字字符串
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		return errors.New("number is null")
	}
	if strings.HasPrefix(text, `"`) {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return fmt.Errorf("invalid number %s: %w", text, err)
		}
		text = strings.TrimSpace(unquoted)
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", text)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("number must be finite: %q", text)
	}
	*n = Number(value)
	return nil
}

// maxAutoRounds rounds 上限，超出 int 范围的值不能直接转换
const maxAutoRounds = math.MaxInt32

func clampRounds(value float64) int {
	switch {
	case value <= 0:
		return 0
	case value >= maxAutoRounds:
		return maxAutoRounds
	default:
		return int(value)
	}
}

// StartNegotiationRequest 开始谈判请求，价格字段全部必填
type StartNegotiationRequest struct {
	Item         string  `json:"item" binding:"required"`
	ItemDetails  string  `json:"item_details"`
	SellerCost   *Number `json:"seller_cost" binding:"required"`
	SellerTarget *Number `json:"seller_target" binding:"required"`
	SellerMin    *Number `json:"seller_min" binding:"required"`
	BuyerTarget  *Number `json:"buyer_target" binding:"required"`
	BuyerMax     *Number `json:"buyer_max" binding:"required"`
}

func (r *StartNegotiationRequest) Params() model.StartParams {
	return model.StartParams{
		Item:         r.Item,
		ItemDetails:  r.ItemDetails,
		SellerCost:   float64(*r.SellerCost),
		SellerTarget: float64(*r.SellerTarget),
		SellerMin:    float64(*r.SellerMin),
		BuyerTarget:  float64(*r.BuyerTarget),
		BuyerMax:     float64(*r.BuyerMax),
	}
}

// AutoNegotiateRequest rounds 缺省时使用配置值
type AutoNegotiateRequest struct {
	Rounds *Number `json:"rounds"`
}

// ListenRequest timeout 单位为秒
type ListenRequest struct {
	Timeout *Number `json:"timeout"`
}

type NegotiationHandler struct {
	service    service.NegotiationService
	autoRounds int
}

func NewNegotiationHandler(service service.NegotiationService, autoRounds int) *NegotiationHandler {
	if autoRounds <= 0 {
		autoRounds = 5
	}
	return &NegotiationHandler{
		service:    service,
		autoRounds: autoRounds,
	}
}

func (h *NegotiationHandler) Start(c *gin.Context) {
	var req StartNegotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result := h.service.Start(c.Request.Context(), req.Params())
	c.JSON(http.StatusOK, result)
}

func (h *NegotiationHandler) BuyerRespond(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.BuyerRespond(c.Request.Context()))
}

func (h *NegotiationHandler) SellerRespond(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.SellerRespond(c.Request.Context()))
}

func (h *NegotiationHandler) AutoNegotiate(c *gin.Context) {
	var req AutoNegotiateRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	rounds := h.autoRounds
	if req.Rounds != nil {
		rounds = clampRounds(float64(*req.Rounds))
	}

	c.JSON(http.StatusOK, h.service.AutoNegotiate(c.Request.Context(), rounds))
}

func (h *NegotiationHandler) Status(c *gin.Context) {
	summary, _ := h.service.Status()
	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}

func (h *NegotiationHandler) Cancel(c *gin.Context) {
	cancelled := h.service.Cancel()
	c.JSON(http.StatusOK, gin.H{"success": true, "cancelled": cancelled})
}

func (h *NegotiationHandler) Listen(c *gin.Context) {
	var req ListenRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	timeout := 5 * time.Second
	if req.Timeout != nil && *req.Timeout > 0 {
		timeout = time.Duration(float64(*req.Timeout) * float64(time.Second))
	}

	text, ok := h.service.Listen(c.Request.Context(), timeout)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "no speech recognized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "text": text})
}

// bindOptionalJSON 空请求体视为全部字段缺省
func bindOptionalJSON(c *gin.Context, obj any) error {
	err := c.ShouldBindJSON(obj)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func badRequest(c *gin.Context, err error) {
	klog.V(6).Infof("请求参数错误: path=%s, err=%v", c.FullPath(), err)
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}
