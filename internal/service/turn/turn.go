package turn

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"

	"github.com/zhouzirui/research-desk/backend/internal/model/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/ai"
	"github.com/zhouzirui/research-desk/backend/pkg/logging"
)

var (
	ErrEmptyInput        = errors.New("message must not be empty")
	ErrMissingCredential = errors.New("missing API credential")
	ErrExternalCall      = errors.New("external reasoning call failed")
)

const missingCredentialHint = "Please enter your API key in the sidebar."

// CallError wraps any failure raised by the reasoning call.
type CallError struct {
	Err error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%v: %v", ErrExternalCall, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

func (e *CallError) Is(target error) bool { return target == ErrExternalCall }

// IsWarning reports whether err is the recoverable missing-credential warning.
func IsWarning(err error) bool {
	return errors.Is(err, ErrMissingCredential)
}

// Describe renders err as the text shown to the operator.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if IsWarning(err) {
		if hints := errors.GetAllHints(err); len(hints) > 0 {
			return "⚠️ " + hints[0]
		}
		return "⚠️ " + missingCredentialHint
	}
	var callErr *CallError
	if errors.As(err, &callErr) {
		return "❌ Error: " + callErr.Err.Error()
	}
	return "❌ Error: " + err.Error()
}

// Store is the slice of the session store a turn needs.
type Store interface {
	Append(ctx context.Context, sessionID string, message chat.Message) error
	Transcript(ctx context.Context, sessionID string) ([]chat.Message, error)
	BeginTurn(sessionID string) (release func(), err error)
}

// Reasoner performs the external reasoning call.
type Reasoner interface {
	Run(ctx context.Context, req ai.Request) (string, error)
}

// Result is the outcome of one turn. Transcript is the state after the turn,
// also when Handle returns an error after the user message was appended.
type Result struct {
	Reply      string         `json:"reply,omitempty"`
	Transcript []chat.Message `json:"messages"`
}

// Hooks let transports surface progress while a turn runs.
type Hooks struct {
	OnUserMessage func(chat.Message)
	OnStep        func(ai.Step)
}

// Handler runs turns against the session store.
type Handler struct {
	store    Store
	reasoner Reasoner
	logger   *log.Logger
}

// NewHandler creates a turn handler.
func NewHandler(store Store, reasoner Reasoner) *Handler {
	return &Handler{
		store:    store,
		reasoner: reasoner,
		logger:   logging.Named("turn"),
	}
}

// Handle appends input as a user message and, when a credential is present, runs
// the reasoning call once and appends its reply. It never retries.
func (h *Handler) Handle(ctx context.Context, sessionID, input string, settings chat.Settings, hooks Hooks) (Result, error) {
	if input == "" {
		return Result{}, ErrEmptyInput
	}
	if err := settings.Validate(); err != nil {
		return Result{}, err
	}

	release, err := h.store.BeginTurn(sessionID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	userMsg := chat.UserMessage(input)
	if err := h.store.Append(ctx, sessionID, userMsg); err != nil {
		return Result{}, errors.Wrap(err, "append user message")
	}
	if hooks.OnUserMessage != nil {
		hooks.OnUserMessage(userMsg)
	}

	if !settings.HasCredential() {
		h.logger.Warn("turn skipped: missing credential", "session", sessionID)
		return h.result(ctx, sessionID, ""), errors.WithHint(ErrMissingCredential, missingCredentialHint)
	}

	transcript, err := h.store.Transcript(ctx, sessionID)
	if err != nil {
		return Result{}, errors.Wrap(err, "load transcript")
	}

	callCtx := ai.WithStepObserver(ctx, hooks.OnStep)
	reply, err := h.reasoner.Run(callCtx, ai.Request{
		Credential: strings.TrimSpace(settings.Credential),
		Creativity: settings.Creativity,
		Transcript: transcript,
	})
	if err != nil {
		h.logger.Error("reasoning call failed", "session", sessionID, "err", err)
		return h.result(ctx, sessionID, ""), &CallError{Err: err}
	}

	if err := h.store.Append(ctx, sessionID, chat.AssistantMessage(reply)); err != nil {
		return Result{}, errors.Wrap(err, "append assistant message")
	}

	h.logger.Info("turn completed", "session", sessionID, "messages", len(transcript)+1)
	return h.result(ctx, sessionID, reply), nil
}

func (h *Handler) result(ctx context.Context, sessionID, reply string) Result {
	transcript, err := h.store.Transcript(ctx, sessionID)
	if err != nil {
		h.logger.Warn("failed to reload transcript", "session", sessionID, "err", err)
	}
	return Result{Reply: reply, Transcript: transcript}
}
