package stream

import (
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/research-desk/backend/internal/handler/payload"
	"github.com/zhouzirui/research-desk/backend/internal/model/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/ai"
	"github.com/zhouzirui/research-desk/backend/internal/service/turn"
	"github.com/zhouzirui/research-desk/backend/pkg/logging"
	"github.com/zhouzirui/research-desk/backend/pkg/utils"
)

// Handler runs turns and reports their progress via Server-Sent Events
type Handler struct {
	turns             *turn.Handler
	defaultCreativity float64
	logger            *log.Logger
}

// New creates a new stream handler
func New(turns *turn.Handler, defaultCreativity float64) *Handler {
	return &Handler{
		turns:             turns,
		defaultCreativity: defaultCreativity,
		logger:            logging.Named("sse"),
	}
}

// RegisterRoutes 注册流式对话路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions/{sessionID}/turns/stream", h.handleStream)
}

// Terminal is the payload of the last message, warning or error event of a turn.
type Terminal struct {
	payload.Outcome
	Status int `json:"status"`
}

type endEvent struct {
	SessionID string `json:"sessionId"`
	Finished  bool   `json:"finished"`
}

// emitter serialises writes; the agent may run tools concurrently.
type emitter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *log.Logger
	broken  bool
}

func (e *emitter) send(event string, data any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.broken {
		return
	}
	if err := utils.SendSSEEvent(e.w, e.flusher, event, data); err != nil {
		e.logger.Warn("failed to send event", "event", event, "err", err)
		e.broken = true
	}
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	body, err := payload.DecodeTurn(r.Body)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	em := &emitter{w: w, flusher: flusher, logger: h.logger}
	hooks := turn.Hooks{
		OnUserMessage: func(msg chat.Message) { em.send("user", msg) },
		OnStep:        func(step ai.Step) { em.send("step", step) },
	}

	res, err := h.turns.Handle(r.Context(), sessionID, body.Message, body.Settings(r.Header, h.defaultCreativity), hooks)
	em.send(terminalEvent(err), Terminal{Outcome: payload.NewOutcome(res, err), Status: payload.StatusFor(err)})
	em.send("end", endEvent{SessionID: sessionID, Finished: true})

	h.logger.Debug("stream closed", "session", sessionID)
}

func terminalEvent(err error) string {
	switch {
	case err == nil:
		return "message"
	case turn.IsWarning(err):
		return "warning"
	default:
		return "error"
	}
}
