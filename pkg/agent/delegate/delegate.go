// Package delegate manages the sub-agent registry: loading delegate
// definitions from disk and dispatching the tool calls their models request.
package delegate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/domain/interfaces"
	"github.com/potenza-io/opsbot/pkg/domain/model"
	"github.com/potenza-io/opsbot/pkg/domain/types"
	"github.com/potenza-io/opsbot/pkg/service/llm"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

// Delegate is one specialized sub-agent: a system prompt, the tool
// declarations offered to its model, and the handlers behind them.
type Delegate struct {
	Name         string
	Instructions string
	Tools        []llm.ToolDef

	handlers map[string]tool.Handler
}

// New builds a delegate from in-memory parts. Production delegates come
// from LoadDir; this constructor exists for programmatic setups.
func New(name, instructions string, tools []llm.ToolDef, handlers map[string]tool.Handler) *Delegate {
	return &Delegate{Name: name, Instructions: instructions, Tools: tools, handlers: handlers}
}

// Registry holds the loaded delegates and executes their tool calls
type Registry struct {
	delegates map[string]*Delegate
	audit     interfaces.AuditRepository
}

// NewRegistry builds an empty registry. Tool dispatches are recorded to the
// audit repository when one is provided.
func NewRegistry(audit interfaces.AuditRepository) *Registry {
	return &Registry{
		delegates: map[string]*Delegate{},
		audit:     audit,
	}
}

// Register adds a delegate, replacing any previous one with the same name
func (r *Registry) Register(d *Delegate) {
	r.delegates[d.Name] = d
}

// Get returns the named delegate, or nil when unknown
func (r *Registry) Get(name string) *Delegate {
	return r.delegates[name]
}

// Names lists the registered delegate names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.delegates))
	for n := range r.delegates {
		names = append(names, n)
	}
	return names
}

// Dispatch runs one tool call requested by a delegate's model and returns
// the JSON document to feed back as the function call output. Tool failures
// never surface as Go errors; they are encoded in the returned document so
// the model can react. Every executed handler is appended to the audit log,
// whatever its outcome; only calls to tools that do not exist are not.
func (r *Registry) Dispatch(ctx context.Context, d *Delegate, name string, args map[string]any, sc *tool.SessionContext) string {
	logger := logging.From(ctx)

	res, executed := r.run(ctx, d, name, args, sc)

	raw, err := json.Marshal(res)
	if err != nil {
		logger.Error("tool result not serializable",
			"delegate", d.Name, "tool", name, "error", err)
		raw, _ = json.Marshal(tool.Error(goerr.Wrap(types.ErrNonSerializable, "tool result", goerr.V("tool", name)).Error()))
	}

	if executed {
		r.recordUsage(ctx, name, sc)
	}

	logger.Info("tool dispatched",
		"delegate", d.Name, "tool", name, "status", res.Status)
	return string(raw)
}

func (r *Registry) run(ctx context.Context, d *Delegate, name string, args map[string]any, sc *tool.SessionContext) (res *tool.Result, executed bool) {
	h, ok := d.handlers[name]
	if !ok {
		err := goerr.Wrap(types.ErrUnknownTool, "dispatch",
			goerr.V("delegate", d.Name), goerr.V("tool", name))
		return tool.Error(err.Error()), false
	}

	defer func() {
		// handler panics are contained per call; the handler still ran
		if rec := recover(); rec != nil {
			logging.From(ctx).Error("tool handler panic",
				"delegate", d.Name, "tool", name, "recover", rec)
			res = tool.Error("tool handler panic")
		}
	}()
	executed = true
	return h(ctx, args, sc), executed
}

func (r *Registry) recordUsage(ctx context.Context, name string, sc *tool.SessionContext) {
	if r.audit == nil {
		return
	}
	usage := &model.ToolUsage{
		FunctionName: name,
		UserEmail:    sc.UserEmail,
		SlackID:      sc.SlackID,
		ActorSlackID: sc.ActorSlackID,
		CalledAt:     time.Now().UTC(),
	}
	if err := r.audit.Append(ctx, usage); err != nil {
		// the tool already succeeded; a lost audit row is logged, not fatal
		logging.From(ctx).Warn("audit append failed", "tool", name, "error", err)
	}
}
