package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/research-desk/backend/internal/service/search"
)

// Step reports one tool invocation made by the agent during a turn.
type Step struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

type stepObserverKey struct{}

// WithStepObserver attaches fn to ctx; the agent's tools report every call to it.
func WithStepObserver(ctx context.Context, fn func(Step)) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, stepObserverKey{}, fn)
}

// ReportStep delivers step to the observer attached to ctx, if any.
func ReportStep(ctx context.Context, step Step) {
	if fn, ok := ctx.Value(stepObserverKey{}).(func(Step)); ok {
		fn(step)
	}
}

type queryArgs struct {
	Query string `json:"query"`
}

// agentTool exposes a search.Tool to the eino tools node.
type agentTool struct {
	inner search.Tool
}

var _ tool.InvokableTool = (*agentTool)(nil)

func (t *agentTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.inner.Name(),
		Desc: t.inner.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The text to look up.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun never fails the agent loop: lookup errors are returned to the model as text.
func (t *agentTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	query := parseQueryArgs(argumentsInJSON)
	step := Step{Tool: t.inner.Name(), Input: query}

	out, err := t.inner.Query(ctx, query)
	if err != nil {
		step.Error = err.Error()
		ReportStep(ctx, step)
		return fmt.Sprintf("%s lookup failed: %v", t.inner.Name(), err), nil
	}

	step.Output = out
	ReportStep(ctx, step)
	return out, nil
}

// parseQueryArgs accepts {"query": "..."} and, from weaker models, a bare string.
func parseQueryArgs(raw string) string {
	var args queryArgs
	if err := json.Unmarshal([]byte(raw), &args); err == nil && args.Query != "" {
		return args.Query
	}

	var bare string
	if err := json.Unmarshal([]byte(raw), &bare); err == nil {
		return bare
	}
	return strings.TrimSpace(raw)
}

func wrapTools(tools []search.Tool) []tool.BaseTool {
	wrapped := make([]tool.BaseTool, 0, len(tools))
	for _, t := range tools {
		wrapped = append(wrapped, &agentTool{inner: t})
	}
	return wrapped
}
