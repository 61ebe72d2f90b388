package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/weibaohui/negotiator/internal/service"
	"k8s.io/klog/v2"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 64 * 1024
	wsSendBuffer     = 64
)

// WSMessage 服务端推送的消息
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WSRequest 客户端请求，action 决定 data 的结构
type WSRequest struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan WSMessage
}

// Hub 管理 WebSocket 连接，负责处理客户端请求和广播谈判事件
type Hub struct {
	service  service.NegotiationService
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*wsClient
}

func NewHub(service service.NegotiationService) *Hub {
	return &Hub{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// 与 HTTP 接口的 CORS 策略一致，允许任意来源
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*wsClient),
	}
}

// Broadcast 推送给所有客户端，发送缓冲满的客户端丢弃本条消息
func (h *Hub) Broadcast(messageType string, data any) {
	msg := WSMessage{Type: messageType, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- msg:
		default:
			klog.Warningf("WebSocket 客户端发送缓冲已满，丢弃消息: clientID=%s, type=%s", client.id, messageType)
		}
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close 断开所有连接
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.conn.Close()
	}
}

func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		klog.Warningf("WebSocket 升级失败: %v", err)
		return
	}

	client := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan WSMessage, wsSendBuffer),
	}
	h.register(client)
	klog.V(6).Infof("WebSocket 客户端已连接: clientID=%s", client.id)

	go h.writePump(client)
	client.send <- WSMessage{Type: "status", Data: gin.H{"message": "Connected to AI Negotiation System"}}

	h.readPump(client)
}

func (h *Hub) register(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.id] = client
}

func (h *Hub) unregister(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
	}
}

func (h *Hub) readPump(client *wsClient) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.unregister(client)
		client.conn.Close()
		klog.V(6).Infof("WebSocket 客户端已断开: clientID=%s", client.id)
	}()

	client.conn.SetReadLimit(wsMaxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				klog.Warningf("WebSocket 读取失败: clientID=%s, err=%v", client.id, err)
			}
			return
		}
		var req WSRequest
		if err := json.Unmarshal(data, &req); err != nil {
			h.reply(client, WSMessage{Type: "error", Data: gin.H{"success": false, "error": "invalid request: " + err.Error()}})
			continue
		}
		h.reply(client, h.handleRequest(ctx, req))
	}
}

func (h *Hub) handleRequest(ctx context.Context, req WSRequest) WSMessage {
	switch req.Action {
	case "start_negotiation":
		var start StartNegotiationRequest
		if err := decodeStartRequest(req.Data, &start); err != nil {
			return WSMessage{Type: "error", Data: gin.H{"success": false, "error": err.Error()}}
		}
		return WSMessage{Type: "negotiation_update", Data: h.service.Start(ctx, start.Params())}
	case "buyer_respond":
		return WSMessage{Type: "negotiation_update", Data: h.service.BuyerRespond(ctx)}
	case "seller_respond":
		return WSMessage{Type: "negotiation_update", Data: h.service.SellerRespond(ctx)}
	case "negotiation_status":
		summary, _ := h.service.Status()
		return WSMessage{Type: "negotiation_status", Data: gin.H{"success": true, "summary": summary}}
	default:
		return WSMessage{Type: "error", Data: gin.H{"success": false, "error": "unsupported action: " + req.Action}}
	}
}

func decodeStartRequest(data json.RawMessage, req *StartNegotiationRequest) error {
	if len(data) == 0 {
		return errors.New("data is required")
	}
	if err := json.Unmarshal(data, req); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(req)
}

// reply 连接已注销时直接丢弃
func (h *Hub) reply(client *wsClient, msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client.id]; !ok {
		return
	}
	select {
	case client.send <- msg:
	default:
		klog.Warningf("WebSocket 回复丢弃: clientID=%s, type=%s", client.id, msg.Type)
	}
}

func (h *Hub) writePump(client *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(msg); err != nil {
				klog.Warningf("WebSocket 写入失败: clientID=%s, err=%v", client.id, err)
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
