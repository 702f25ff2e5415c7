package payload

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/research-desk/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/research-desk/backend/internal/service/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/turn"
)

func TestSettingsCredentialPrecedence(t *testing.T) {
	header := http.Header{}
	header.Set("Authorization", "Bearer from-bearer")
	assert.Equal(t, "from-bearer", Turn{}.Settings(header, 0.3).Credential)

	header.Set("X-API-Key", "from-header")
	assert.Equal(t, "from-header", Turn{}.Settings(header, 0.3).Credential)

	assert.Equal(t, "from-body", Turn{APIKey: "from-body"}.Settings(header, 0.3).Credential)
	assert.Empty(t, Turn{}.Settings(nil, 0.3).Credential)
}

func TestSettingsCreativityDefault(t *testing.T) {
	assert.InDelta(t, 0.3, Turn{}.Settings(nil, 0.3).Creativity, 1e-9)

	zero := 0.0
	assert.InDelta(t, 0.0, Turn{Creativity: &zero}.Settings(nil, 0.3).Creativity, 1e-9)
}

func TestDecodeTurn(t *testing.T) {
	p, err := DecodeTurn(strings.NewReader(`{"message":"hi","apiKey":"k","creativity":0.7}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", p.Message)
	require.NotNil(t, p.Creativity)
	assert.InDelta(t, 0.7, *p.Creativity, 1e-9)

	_, err = DecodeTurn(strings.NewReader(`{`))
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(nil))
	assert.Equal(t, http.StatusOK, StatusFor(turn.ErrMissingCredential))
	assert.Equal(t, http.StatusBadGateway, StatusFor(&turn.CallError{Err: errors.New("x")}))
	assert.Equal(t, http.StatusNotFound, StatusFor(chatservice.ErrSessionNotFound))
	assert.Equal(t, http.StatusConflict, StatusFor(chatservice.ErrTurnInProgress))
	assert.Equal(t, http.StatusBadRequest, StatusFor(turn.ErrEmptyInput))
	assert.Equal(t, http.StatusBadRequest, StatusFor(chat.ErrCreativityOutOfRange))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("other")))
}

func TestNewOutcome(t *testing.T) {
	res := turn.Result{Transcript: []chat.Message{chat.AssistantMessage("hi")}}

	warn := NewOutcome(res, turn.ErrMissingCredential)
	assert.NotEmpty(t, warn.Warning)
	assert.Empty(t, warn.Error)
	assert.Len(t, warn.Messages, 1)

	failed := NewOutcome(res, &turn.CallError{Err: errors.New("rate limited")})
	assert.Equal(t, "❌ Error: rate limited", failed.Error)

	ok := NewOutcome(turn.Result{Reply: "answer"}, nil)
	assert.Equal(t, "answer", ok.Reply)
	assert.Empty(t, ok.Error)
}
