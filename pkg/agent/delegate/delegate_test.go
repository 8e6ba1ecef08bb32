package delegate_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/potenza-io/opsbot/pkg/agent/delegate"
	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/domain/types"
	"github.com/potenza-io/opsbot/pkg/repository/memory"
	"github.com/potenza-io/opsbot/pkg/service/llm"
)

func echoTools() []llm.ToolDef {
	return []llm.ToolDef{
		{Type: "function", Name: "echo"},
	}
}

func echoHandlers() map[string]tool.Handler {
	return map[string]tool.Handler{
		"echo": func(_ context.Context, args map[string]any, _ *tool.SessionContext) *tool.Result {
			return tool.Success(map[string]any{"echo": args["text"]})
		},
	}
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	t.Cleanup(func() { _ = repo.Close() })

	reg := delegate.NewRegistry(repo.Audit())
	d := delegate.New("echoer", "You echo.", echoTools(), echoHandlers())
	reg.Register(d)

	sc := &tool.SessionContext{
		UserEmail:    "alice@example.com",
		SlackID:      "U1",
		ActorSlackID: "UADMIN",
	}

	t.Run("successful call is audited", func(t *testing.T) {
		raw := reg.Dispatch(ctx, d, "echo", map[string]any{"text": "hi"}, sc)

		var res tool.Result
		gt.NoError(t, json.Unmarshal([]byte(raw), &res)).Required()
		gt.Value(t, res.Status).Equal(types.StatusSuccess)
		gt.Value(t, res.Data["echo"]).Equal("hi")

		entries, err := repo.Audit().List(ctx, 10)
		gt.NoError(t, err).Required()
		gt.Array(t, entries).Length(1)
		gt.Value(t, entries[0].FunctionName).Equal("echo")
		gt.Value(t, entries[0].UserEmail).Equal("alice@example.com")
		gt.Value(t, string(entries[0].ActorSlackID)).Equal("UADMIN")
	})

	t.Run("unknown tool is a tool error, not audited", func(t *testing.T) {
		before, err := repo.Audit().List(ctx, 0)
		gt.NoError(t, err).Required()

		raw := reg.Dispatch(ctx, d, "nope", nil, sc)

		var res tool.Result
		gt.NoError(t, json.Unmarshal([]byte(raw), &res)).Required()
		gt.Value(t, res.Status).Equal(types.StatusToolError)

		after, err := repo.Audit().List(ctx, 0)
		gt.NoError(t, err).Required()
		gt.Value(t, len(after)).Equal(len(before))
	})

	t.Run("failed handler is still audited", func(t *testing.T) {
		grumpy := delegate.New("grumpy", "", echoTools(), map[string]tool.Handler{
			"echo": func(context.Context, map[string]any, *tool.SessionContext) *tool.Result {
				return tool.Invalid("bad input")
			},
		})
		reg.Register(grumpy)

		before, err := repo.Audit().List(ctx, 0)
		gt.NoError(t, err).Required()

		raw := reg.Dispatch(ctx, grumpy, "echo", nil, sc)

		var res tool.Result
		gt.NoError(t, json.Unmarshal([]byte(raw), &res)).Required()
		gt.Value(t, res.Status).Equal(types.StatusInvalidInput)

		after, err := repo.Audit().List(ctx, 0)
		gt.NoError(t, err).Required()
		gt.Value(t, len(after)).Equal(len(before) + 1)
		gt.Value(t, after[0].FunctionName).Equal("echo")
	})

	t.Run("handler panic is contained and audited", func(t *testing.T) {
		panicky := delegate.New("panicky", "", echoTools(), map[string]tool.Handler{
			"echo": func(context.Context, map[string]any, *tool.SessionContext) *tool.Result {
				panic("boom")
			},
		})
		reg.Register(panicky)

		before, err := repo.Audit().List(ctx, 0)
		gt.NoError(t, err).Required()

		raw := reg.Dispatch(ctx, panicky, "echo", nil, sc)

		var res tool.Result
		gt.NoError(t, json.Unmarshal([]byte(raw), &res)).Required()
		gt.Value(t, res.Status).Equal(types.StatusToolError)

		after, err := repo.Audit().List(ctx, 0)
		gt.NoError(t, err).Required()
		gt.Value(t, len(after)).Equal(len(before) + 1)
	})
}

func TestRegistry(t *testing.T) {
	reg := delegate.NewRegistry(nil)
	reg.Register(delegate.New("a", "", nil, nil))
	reg.Register(delegate.New("b", "", nil, nil))

	gt.Value(t, reg.Get("a") != nil).Equal(true)
	gt.Value(t, reg.Get("missing") == nil).Equal(true)
	gt.Array(t, reg.Names()).Length(2)
}
