package assistant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	assistantModel "github.com/zhouzirui/research-desk/backend/internal/model/assistant"
	"github.com/zhouzirui/research-desk/backend/internal/service/search"
)

func TestGetAssistant(t *testing.T) {
	r := chi.NewRouter()
	New(assistantModel.Default(), "gemma2-9b-it", 0.3, search.NewToolset(search.Config{})).RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/assistant", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

	assert.Equal(t, assistantModel.Default().Greeting, got["greeting"])
	assert.Equal(t, "gemma2-9b-it", got["model"])

	slider := got["creativity"].(map[string]any)
	assert.InDelta(t, 0.0, slider["min"], 1e-9)
	assert.InDelta(t, 1.0, slider["max"], 1e-9)
	assert.InDelta(t, 0.1, slider["step"], 1e-9)
	assert.InDelta(t, 0.3, slider["default"], 1e-9)

	tools := got["tools"].([]any)
	require.Len(t, tools, 3)
	assert.Equal(t, "web_search", tools[0].(map[string]any)["name"])
}
