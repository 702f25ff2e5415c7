package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/research-desk/backend/internal/handler/payload"
	"github.com/zhouzirui/research-desk/backend/internal/model/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/research-desk/backend/internal/service/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/turn"
	"github.com/zhouzirui/research-desk/backend/pkg/logging"
)

const (
	readWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	pingInterval = 54 * time.Second
	maxPending   = 8
)

// Handler WebSocket对话处理器
type Handler struct {
	chatSvc           *chatservice.Service
	turns             *turn.Handler
	defaultCreativity float64
	upgrader          websocket.Upgrader
	logger            *log.Logger
}

// New 创建WebSocket处理器
func New(chatSvc *chatservice.Service, turns *turn.Handler, defaultCreativity float64) *Handler {
	return &Handler{
		chatSvc:           chatSvc,
		turns:             turns,
		defaultCreativity: defaultCreativity,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logging.Named("ws"),
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// connection 串行化对同一连接的写操作
type connection struct {
	conn      *websocket.Conn
	sessionID string
	logger    *log.Logger
	mu        sync.Mutex
}

func (c *connection) send(typ string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	msg := outgoingMessage{
		Type:      typ,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Warn("write failed", "type", typ, "session", c.sessionID, "err", err)
	}
}

func (c *connection) sendError(message string) {
	c.send("error", map[string]string{"error": message})
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messages, err := h.chatSvc.Transcript(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", payload.StatusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	h.logger.Info("new connection", "session", sessionID)

	ctx, cancel := context.WithCancel(context.Background())

	c := &connection{conn: conn, sessionID: sessionID, logger: h.logger}
	queue := make(chan payload.Turn, maxPending)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.pingLoop(ctx, conn)
	}()
	go func() {
		defer wg.Done()
		for body := range queue {
			h.runTurn(ctx, c, r.Header, body)
		}
	}()
	defer wg.Wait()
	defer close(queue)
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	c.send("connected", map[string]any{"messages": messages})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("read error", "session", sessionID, "err", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			c.sendError("session mismatch")
			continue
		}

		switch msg.Type {
		case "turn":
			var body payload.Turn
			if err := json.Unmarshal(msg.Data, &body); err != nil {
				c.sendError("invalid turn payload")
				continue
			}
			select {
			case queue <- body:
			default:
				c.sendError("too many pending turns")
			}
		case "ping":
			c.send("pong", nil)
		default:
			c.sendError("unsupported message type: " + msg.Type)
		}
	}
}

// runTurn 执行一轮对话并推送进度事件
func (h *Handler) runTurn(ctx context.Context, c *connection, header http.Header, body payload.Turn) {
	hooks := turn.Hooks{
		OnUserMessage: func(msg chat.Message) { c.send("user", msg) },
		OnStep:        func(step ai.Step) { c.send("step", step) },
	}

	res, err := h.turns.Handle(ctx, c.sessionID, body.Message, body.Settings(header, h.defaultCreativity), hooks)
	outcome := payload.NewOutcome(res, err)

	switch {
	case err == nil:
		c.send("message", outcome)
	case turn.IsWarning(err):
		c.send("warning", outcome)
	default:
		c.send("error", outcome)
	}
	c.send("end", map[string]bool{"finished": true})
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
