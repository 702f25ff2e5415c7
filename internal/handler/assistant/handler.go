package assistant

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	assistantModel "github.com/zhouzirui/research-desk/backend/internal/model/assistant"
	"github.com/zhouzirui/research-desk/backend/internal/model/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/search"
	"github.com/zhouzirui/research-desk/backend/pkg/utils"
)

// Handler 助手信息的HTTP处理器
type Handler struct {
	info Info
}

// Slider 描述前端创造力滑块
type Slider struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Default float64 `json:"default"`
}

// ToolInfo 描述一个可用检索工具
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Info 是 GET /api/assistant 的响应体
type Info struct {
	assistantModel.Profile
	Model      string     `json:"model"`
	Creativity Slider     `json:"creativity"`
	Tools      []ToolInfo `json:"tools"`
}

// New 创建助手处理器
func New(profile assistantModel.Profile, modelName string, defaultCreativity float64, tools []search.Tool) *Handler {
	info := Info{
		Profile: profile,
		Model:   modelName,
		Creativity: Slider{
			Min:     chat.MinCreativity,
			Max:     chat.MaxCreativity,
			Step:    0.1,
			Default: defaultCreativity,
		},
		Tools: make([]ToolInfo, 0, len(tools)),
	}
	for _, t := range tools {
		info.Tools = append(info.Tools, ToolInfo{Name: t.Name(), Description: t.Description()})
	}
	return &Handler{info: info}
}

// RegisterRoutes 注册助手相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/assistant", h.handleGetAssistant)
}

func (h *Handler) handleGetAssistant(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.info)
}
