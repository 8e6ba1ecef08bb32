package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/potenza-io/opsbot/pkg/agent/delegate"
	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/domain/model"
	"github.com/potenza-io/opsbot/pkg/repository/memory"
	"github.com/potenza-io/opsbot/pkg/service/llm"
	"github.com/potenza-io/opsbot/pkg/usecase"
)

func alice() *model.User {
	return &model.User{SlackID: "U1", Email: "alice@example.com", CorporateID: 101}
}

// echoRegistry registers one delegate with a single echo tool whose handler
// captures the session it ran under
func echoRegistry(audit *memory.Repository, captured **tool.SessionContext) *delegate.Registry {
	var reg *delegate.Registry
	if audit != nil {
		reg = delegate.NewRegistry(audit.Audit())
	} else {
		reg = delegate.NewRegistry(nil)
	}
	handlers := map[string]tool.Handler{
		"echo": func(_ context.Context, args map[string]any, sc *tool.SessionContext) *tool.Result {
			if captured != nil {
				*captured = sc
			}
			return tool.Success(map[string]any{"echo": args["text"]})
		},
	}
	tools := []llm.ToolDef{{Type: "function", Name: "echo"}}
	reg.Register(delegate.New("echoer", "You echo.", tools, handlers))
	return reg
}

func TestOrchestratorHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("plain answer saves the anchor", func(t *testing.T) {
		repo := memory.New()
		client := &scriptedLLM{responses: []*llm.Response{
			textResponse("mgr_1", "Hello Alice!"),
		}}
		orch := usecase.NewOrchestrator(repo, client, echoRegistry(nil, nil), nil, nil, nil, nil, llm.DefaultModel)

		reply := orch.Handle(ctx, usecase.HandleInput{Text: "hi", User: alice(), ChannelID: "D1"})
		gt.Value(t, reply).Equal("Hello Alice!")

		conv, err := repo.Conversation().Get(ctx, "D1")
		gt.NoError(t, err).Required()
		gt.Value(t, conv != nil).Equal(true)
		gt.Value(t, conv.PreviousResponseID).Equal("mgr_1")
	})

	t.Run("second message continues from the anchor", func(t *testing.T) {
		repo := memory.New()
		client := &scriptedLLM{responses: []*llm.Response{
			textResponse("mgr_1", "first"),
			textResponse("mgr_2", "second"),
		}}
		orch := usecase.NewOrchestrator(repo, client, echoRegistry(nil, nil), nil, nil, nil, nil, llm.DefaultModel)

		_ = orch.Handle(ctx, usecase.HandleInput{Text: "one", User: alice(), ChannelID: "D1"})
		_ = orch.Handle(ctx, usecase.HandleInput{Text: "two", User: alice(), ChannelID: "D1"})

		gt.Array(t, client.requests).Length(2)
		gt.Value(t, client.requests[0].PreviousResponseID).Equal("")
		gt.Value(t, client.requests[1].PreviousResponseID).Equal("mgr_1")
	})

	t.Run("function call delegation runs the tool loop", func(t *testing.T) {
		repo := memory.New()
		slackSvc := &recordingSlack{}
		client := &scriptedLLM{responses: []*llm.Response{
			callResponse("mgr_1", "delegate", "call_1", `{"delegate_name": "echoer", "message": "say hi"}`),
			callResponse("del_1", "echo", "call_2", `{"text": "hi"}`),
			textResponse("del_2", "Done: hi"),
			textResponse("mgr_2", "All set."),
		}}
		orch := usecase.NewOrchestrator(repo, client, echoRegistry(nil, nil), slackSvc, nil, nil, nil, llm.DefaultModel)

		reply := orch.Handle(ctx, usecase.HandleInput{Text: "echo hi", User: alice(), ChannelID: "D1"})
		// the answer replaced the notice in place, nothing left to post
		gt.Value(t, reply).Equal("")

		gt.Array(t, client.requests).Length(4)
		// the delegate turn starts a fresh conversation with its own prompt
		gt.Value(t, client.requests[1].PreviousResponseID).Equal("")
		gt.Value(t, strings.HasPrefix(client.requests[1].Instructions, "You echo.")).Equal(true)
		gt.Value(t, client.requests[1].Input[0].Content).Equal("say hi")
		// the tool result is fed back on the delegate's own thread
		gt.Value(t, client.requests[2].PreviousResponseID).Equal("del_1")
		gt.Value(t, client.requests[2].Input[0].CallID).Equal("call_2")
		gt.Value(t, strings.Contains(client.requests[2].Input[0].Output, `"echo":"hi"`)).Equal(true)
		// the delegate reply answers the pending call on the manager thread
		gt.Value(t, client.requests[3].PreviousResponseID).Equal("mgr_1")
		gt.Value(t, client.requests[3].Input[0].CallID).Equal("call_1")
		gt.Value(t, client.requests[3].Input[0].Output).Equal("Done: hi")

		// the notice was posted, then replaced by the delegate reply
		gt.Array(t, slackSvc.messages).Length(1)
		gt.Value(t, strings.Contains(slackSvc.messages[0].text, "echoer")).Equal(true)
		gt.Array(t, slackSvc.updates).Length(1)
		gt.Value(t, slackSvc.updates[0].messageTS).Equal("1700000000.000001")
		gt.Value(t, slackSvc.updates[0].text).Equal("Done: hi")

		// the anchor is the follow-up response with the call settled
		conv, err := repo.Conversation().Get(ctx, "D1")
		gt.NoError(t, err).Required()
		gt.Value(t, conv.PreviousResponseID).Equal("mgr_2")
	})

	t.Run("failed follow-up keeps the previous anchor", func(t *testing.T) {
		repo := memory.New()
		client := &scriptedLLM{
			responses: []*llm.Response{
				callResponse("mgr_1", "delegate", "call_1", `{"delegate_name": "echoer", "message": "say hi"}`),
				callResponse("del_1", "echo", "call_2", `{"text": "hi"}`),
				textResponse("del_2", "Done: hi"),
			},
			errs: []error{nil, nil, nil, errors.New("upstream 500")},
		}
		orch := usecase.NewOrchestrator(repo, client, echoRegistry(nil, nil), nil, nil, nil, nil, llm.DefaultModel)

		reply := orch.Handle(ctx, usecase.HandleInput{Text: "echo hi", User: alice(), ChannelID: "D1"})
		gt.Value(t, reply).Equal("Done: hi")

		// anchoring on mgr_1 would leave the call unanswered forever
		conv, err := repo.Conversation().Get(ctx, "D1")
		gt.NoError(t, err).Required()
		gt.Value(t, conv == nil).Equal(true)
	})

	t.Run("textual directive fallback", func(t *testing.T) {
		repo := memory.New()
		client := &scriptedLLM{responses: []*llm.Response{
			textResponse("mgr_1", "Delegate to `echoer` bot with text \"say hi\""),
			textResponse("del_1", "hi"),
		}}
		orch := usecase.NewOrchestrator(repo, client, echoRegistry(nil, nil), nil, nil, nil, nil, llm.DefaultModel)

		reply := orch.Handle(ctx, usecase.HandleInput{Text: "echo", User: alice(), ChannelID: "D1"})
		gt.Value(t, reply).Equal("hi")
		gt.Value(t, client.requests[1].Input[0].Content).Equal("say hi")

		// no pending call on the manager thread, so it stays the anchor
		conv, err := repo.Conversation().Get(ctx, "D1")
		gt.NoError(t, err).Required()
		gt.Value(t, conv.PreviousResponseID).Equal("mgr_1")
	})

	t.Run("manager failure leaves the anchor untouched", func(t *testing.T) {
		repo := memory.New()
		client := &scriptedLLM{errs: []error{errors.New("upstream 500")}}
		orch := usecase.NewOrchestrator(repo, client, echoRegistry(nil, nil), nil, nil, nil, nil, llm.DefaultModel)

		reply := orch.Handle(ctx, usecase.HandleInput{Text: "hi", User: alice(), ChannelID: "D1"})
		gt.Value(t, strings.Contains(reply, "something went wrong")).Equal(true)

		conv, err := repo.Conversation().Get(ctx, "D1")
		gt.NoError(t, err).Required()
		gt.Value(t, conv == nil).Equal(true)
	})

	t.Run("unknown delegate is rephrased by the manager", func(t *testing.T) {
		repo := memory.New()
		client := &scriptedLLM{responses: []*llm.Response{
			callResponse("mgr_1", "delegate", "call_1", `{"delegate_name": "nope", "message": "x"}`),
			textResponse("mgr_2", "I could not reach that assistant, sorry."),
		}}
		orch := usecase.NewOrchestrator(repo, client, echoRegistry(nil, nil), nil, nil, nil, nil, llm.DefaultModel)

		reply := orch.Handle(ctx, usecase.HandleInput{Text: "x", User: alice(), ChannelID: "D1"})
		gt.Value(t, reply).Equal("I could not reach that assistant, sorry.")

		// the failure went back as the function call output on the manager thread
		gt.Array(t, client.requests).Length(2)
		gt.Value(t, client.requests[1].PreviousResponseID).Equal("mgr_1")
		gt.Value(t, client.requests[1].Input[0].CallID).Equal("call_1")
		gt.Value(t, strings.Contains(client.requests[1].Input[0].Output, "failure_tool_error")).Equal(true)

		// the rephrased response settled the call and becomes the anchor
		conv, err := repo.Conversation().Get(ctx, "D1")
		gt.NoError(t, err).Required()
		gt.Value(t, conv.PreviousResponseID).Equal("mgr_2")
	})

	t.Run("act-as swaps the effective identity but keeps the actor", func(t *testing.T) {
		repo := memory.New()
		admin := &model.User{SlackID: "UADMIN", Email: "root@example.com", CorporateID: 900, IsAdmin: true}
		gt.NoError(t, repo.User().Upsert(ctx, admin)).Required()
		gt.NoError(t, repo.User().Upsert(ctx, alice())).Required()
		gt.NoError(t, repo.ActAs().Put(ctx, &model.ActingAs{
			AdminSlackID: "UADMIN",
			UserSlackID:  "U1",
		})).Required()

		var captured *tool.SessionContext
		reg := echoRegistry(repo, &captured)
		client := &scriptedLLM{responses: []*llm.Response{
			callResponse("mgr_1", "delegate", "call_1", `{"delegate_name": "echoer", "message": "go"}`),
			callResponse("del_1", "echo", "call_2", `{"text": "x"}`),
			textResponse("del_2", "ok"),
			textResponse("mgr_2", "done"),
		}}
		orch := usecase.NewOrchestrator(repo, client, reg, nil, nil, nil, nil, llm.DefaultModel)

		reply := orch.Handle(ctx, usecase.HandleInput{Text: "go", User: admin, ChannelID: "D9"})
		gt.Value(t, reply).Equal("ok")

		gt.Value(t, captured != nil).Equal(true)
		gt.Value(t, captured.UserEmail).Equal("alice@example.com")
		gt.Value(t, string(captured.SlackID)).Equal("U1")
		gt.Value(t, captured.CorporateID).Equal(int64(101))
		gt.Value(t, captured.IsAdmin).Equal(true)
		gt.Value(t, string(captured.ActorSlackID)).Equal("UADMIN")

		// the audit row carries both identities
		entries, err := repo.Audit().List(ctx, 1)
		gt.NoError(t, err).Required()
		gt.Array(t, entries).Length(1)
		gt.Value(t, entries[0].UserEmail).Equal("alice@example.com")
		gt.Value(t, string(entries[0].ActorSlackID)).Equal("UADMIN")
	})
}
