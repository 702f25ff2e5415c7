package payload

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/zhouzirui/research-desk/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/research-desk/backend/internal/service/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/turn"
)

// Turn is the body accepted by every transport that starts a turn.
type Turn struct {
	Message    string   `json:"message"`
	APIKey     string   `json:"apiKey"`
	Creativity *float64 `json:"creativity,omitempty"`
}

// DecodeTurn reads a Turn from r.
func DecodeTurn(r io.Reader) (Turn, error) {
	var p Turn
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Turn{}, errors.Wrap(err, "invalid request body")
	}
	return p, nil
}

// Settings merges the payload with the request headers. The body key wins over
// the X-API-Key header, which wins over an Authorization bearer token.
func (p Turn) Settings(header http.Header, defaultCreativity float64) chat.Settings {
	credential := p.APIKey
	if credential == "" && header != nil {
		credential = header.Get("X-API-Key")
	}
	if credential == "" && header != nil {
		if auth := header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			credential = strings.TrimPrefix(auth, "Bearer ")
		}
	}

	creativity := defaultCreativity
	if p.Creativity != nil {
		creativity = *p.Creativity
	}
	return chat.Settings{Credential: credential, Creativity: creativity}
}

// StatusFor maps turn and session errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil, turn.IsWarning(err):
		return http.StatusOK
	case errors.Is(err, turn.ErrExternalCall):
		return http.StatusBadGateway
	case errors.Is(err, chatservice.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatservice.ErrTurnInProgress):
		return http.StatusConflict
	case errors.Is(err, turn.ErrEmptyInput), errors.Is(err, chat.ErrCreativityOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Outcome is the JSON shape of a finished turn.
type Outcome struct {
	Reply    string         `json:"reply,omitempty"`
	Warning  string         `json:"warning,omitempty"`
	Error    string         `json:"error,omitempty"`
	Messages []chat.Message `json:"messages,omitempty"`
}

// NewOutcome renders a turn result and its error for clients.
func NewOutcome(res turn.Result, err error) Outcome {
	out := Outcome{Reply: res.Reply, Messages: res.Transcript}
	switch {
	case err == nil:
	case turn.IsWarning(err):
		out.Warning = turn.Describe(err)
	case errors.Is(err, turn.ErrExternalCall):
		out.Error = turn.Describe(err)
	default:
		out.Error = errors.UnwrapAll(err).Error()
	}
	return out
}
