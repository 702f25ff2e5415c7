package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	assistantHandler "github.com/zhouzirui/research-desk/backend/internal/handler/assistant"
	"github.com/zhouzirui/research-desk/backend/internal/handler/chat"
	"github.com/zhouzirui/research-desk/backend/internal/handler/stream"
	"github.com/zhouzirui/research-desk/backend/internal/handler/web"
	"github.com/zhouzirui/research-desk/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/research-desk/backend/internal/middleware"
	"github.com/zhouzirui/research-desk/backend/internal/model/assistant"
	chatService "github.com/zhouzirui/research-desk/backend/internal/service/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/search"
	"github.com/zhouzirui/research-desk/backend/internal/service/turn"
	"github.com/zhouzirui/research-desk/backend/pkg/logging"
	"github.com/zhouzirui/research-desk/backend/pkg/utils"
)

// Deps groups the services the HTTP layer is built on.
type Deps struct {
	Profile           assistant.Profile
	Model             string
	DefaultCreativity float64
	Tools             []search.Tool
	Sessions          *chatService.Service
	Turns             *turn.Handler
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  logging.Standard("http"),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": deps.Sessions.Len(),
		})
	})

	web.RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		assistantHandler.New(deps.Profile, deps.Model, deps.DefaultCreativity, deps.Tools).RegisterRoutes(api)
		chat.New(deps.Sessions, deps.Turns, deps.DefaultCreativity).RegisterRoutes(api)
		stream.New(deps.Turns, deps.DefaultCreativity).RegisterRoutes(api)
		ws.New(deps.Sessions, deps.Turns, deps.DefaultCreativity).RegisterRoutes(api)
	})

	return r
}
