package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/research-desk/backend/internal/handler/payload"
	"github.com/zhouzirui/research-desk/backend/internal/model/chat"
	chatService "github.com/zhouzirui/research-desk/backend/internal/service/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/turn"
	"github.com/zhouzirui/research-desk/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc           *chatService.Service
	turns             *turn.Handler
	defaultCreativity float64
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, turns *turn.Handler, defaultCreativity float64) *Handler {
	return &Handler{
		chatSvc:           chatSvc,
		turns:             turns,
		defaultCreativity: defaultCreativity,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/{sessionID}/messages", h.handleListMessages)
	r.Delete("/sessions/{sessionID}", h.handleDeleteSession)
	r.Post("/sessions/{sessionID}/turns", h.handleTurn)
}

type sessionResponse struct {
	Session  chat.Session   `json:"session"`
	Messages []chat.Message `json:"messages"`
}

// handleCreateSession 创建会话，返回带问候语的初始记录
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	messages, err := h.chatSvc.Transcript(r.Context(), session.ID)
	if err != nil {
		utils.RespondError(w, payload.StatusFor(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sessionResponse{Session: session, Messages: messages})
}

// handleListMessages 返回会话记录
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.Transcript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, payload.StatusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// handleDeleteSession 结束会话
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, payload.StatusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTurn 同步执行一轮对话
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	body, err := payload.DecodeTurn(r.Body)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings := body.Settings(r.Header, h.defaultCreativity)
	res, err := h.turns.Handle(r.Context(), chi.URLParam(r, "sessionID"), body.Message, settings, turn.Hooks{})
	outcome := payload.NewOutcome(res, err)
	utils.RespondJSON(w, payload.StatusFor(err), outcome)
}
