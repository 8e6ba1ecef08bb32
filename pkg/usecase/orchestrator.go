package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/potenza-io/opsbot/pkg/agent/delegate"
	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/domain/interfaces"
	"github.com/potenza-io/opsbot/pkg/domain/model"
	"github.com/potenza-io/opsbot/pkg/service/analytics"
	"github.com/potenza-io/opsbot/pkg/service/llm"
	slacksvc "github.com/potenza-io/opsbot/pkg/service/slack"
	"github.com/potenza-io/opsbot/pkg/service/targetprocess"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

//go:embed prompt/manager_system.md
var managerSystemPromptTmpl string

var managerSystemPrompt = template.Must(template.New("manager_system").Parse(managerSystemPromptTmpl))

// apologyReply is the only error text the orchestrator emits directly; every
// other failure is handed back to the model for phrasing
const apologyReply = "I'm sorry, something went wrong while handling that. Please try again in a moment."

// delegateDirective is the textual fallback for models that write the
// delegation out instead of calling the delegate tool
var delegateDirective = regexp.MustCompile("Delegate to `([A-Za-z0-9_-]+)` bot with text \"((?s:.*?))\"")

// maxToolRounds bounds the sub-agent tool loop
const maxToolRounds = 8

// maxParallelTools bounds concurrent tool executions within one round
const maxParallelTools = 4

// HandleInput is one authenticated inbound Slack message
type HandleInput struct {
	Text      string
	User      *model.User
	ChannelID string
}

// Orchestrator runs the manager/sub-agent conversation for authenticated
// users: manager triage, delegation, the tool loop, and conversation
// continuity per channel.
type Orchestrator struct {
	repo          interfaces.Repository
	llmClient     llm.Client
	registry      *delegate.Registry
	slackService  slacksvc.Service
	analytics     analytics.Gateway
	targetprocess targetprocess.Client
	entities      *SpecialEntityCache
	model         string
}

func NewOrchestrator(repo interfaces.Repository, llmClient llm.Client, registry *delegate.Registry,
	slackService slacksvc.Service, gw analytics.Gateway, tp targetprocess.Client,
	entities *SpecialEntityCache, model string) *Orchestrator {
	return &Orchestrator{
		repo:          repo,
		llmClient:     llmClient,
		registry:      registry,
		slackService:  slackService,
		analytics:     gw,
		targetprocess: tp,
		entities:      entities,
		model:         model,
	}
}

// Handle produces the final reply for one message. It never returns an
// error for model or tool failures; those degrade to the apology reply.
func (uc *Orchestrator) Handle(ctx context.Context, in HandleInput) string {
	turnID := uuid.Must(uuid.NewV7()).String()
	ctx = logging.With(ctx, logging.From(ctx).With("turn_id", turnID))
	logger := logging.From(ctx)

	sc, err := uc.sessionContext(ctx, in.User)
	if err != nil {
		logger.Error("failed to build session context", "slack_id", in.User.SlackID, "error", err)
		return apologyReply
	}

	var prevID string
	if conv, err := uc.repo.Conversation().Get(ctx, in.ChannelID); err != nil {
		logger.Warn("failed to load conversation anchor", "channel_id", in.ChannelID, "error", err)
	} else if conv != nil {
		prevID = conv.PreviousResponseID
	}

	resp, err := uc.llmClient.Generate(ctx, &llm.Request{
		Model:              uc.model,
		Instructions:       uc.managerInstructions() + personalization(sc.UserEmail, time.Now().UTC()),
		Tools:              uc.managerTools(),
		Input:              []llm.Item{llm.UserMessage(in.Text)},
		PreviousResponseID: prevID,
	})
	if err != nil {
		// the anchor stays untouched so the next message can resume
		logger.Error("manager call failed", "channel_id", in.ChannelID, "error", err)
		return apologyReply
	}

	reply, anchorID := uc.resolve(ctx, in, sc, resp)
	uc.saveAnchor(ctx, in.ChannelID, anchorID)
	return reply
}

// resolve turns the manager response into the final reply plus the response
// id to anchor the channel on, running the delegation path when the manager
// asked for it. An empty reply means the answer already landed in Slack by
// replacing the consulting notice.
func (uc *Orchestrator) resolve(ctx context.Context, in HandleInput, sc *tool.SessionContext, resp *llm.Response) (string, string) {
	name, message, callID, ok := detectDelegation(resp)
	if !ok {
		return resp.Text(), resp.ID
	}

	noticeTS := uc.postNotice(ctx, in.ChannelID, name)

	reply, anchorID := uc.delegated(ctx, resp, name, message, callID, sc)
	if noticeTS != "" && reply != "" {
		if err := uc.slackService.UpdateMessage(ctx, in.ChannelID, noticeTS, reply); err != nil {
			logging.From(ctx).Warn("notice update failed", "channel_id", in.ChannelID, "error", err)
		} else {
			return "", anchorID
		}
	}
	return reply, anchorID
}

// postNotice tells the user which specialist is being consulted. The notice
// message is replaced by the final reply once the delegation settles.
func (uc *Orchestrator) postNotice(ctx context.Context, channelID, name string) string {
	if uc.slackService == nil {
		return ""
	}
	ts, err := uc.slackService.PostMessage(ctx, channelID,
		fmt.Sprintf("Consulting the `%s` assistant...", name))
	if err != nil {
		logging.From(ctx).Warn("consulting notice failed", "channel_id", channelID, "error", err)
		return ""
	}
	return ts
}

// delegated runs the sub-agent and settles the manager thread. A manager
// response that still carries an unanswered delegate call cannot be resumed,
// so the anchor moves to the follow-up response that carries the call output.
func (uc *Orchestrator) delegated(ctx context.Context, resp *llm.Response, name, message, callID string, sc *tool.SessionContext) (string, string) {
	logger := logging.From(ctx)

	reply, err := uc.runDelegate(ctx, name, message, sc)
	if err != nil {
		logger.Error("delegation failed", "delegate", name, "error", err)
		rephrased, anchorID, rerr := uc.settleManager(ctx, resp.ID, callID, failurePayload(name, err))
		if rerr != nil {
			logger.Error("failure rephrasing failed", "delegate", name, "error", rerr)
			return apologyReply, ""
		}
		return rephrased, anchorID
	}

	if callID == "" {
		// textual directive; the manager thread has no pending call
		return reply, resp.ID
	}

	_, anchorID, err := uc.settleManager(ctx, resp.ID, callID, reply)
	if err != nil {
		// keep the previous anchor rather than one with a pending call
		logger.Warn("manager follow-up failed", "delegate", name, "error", err)
		return reply, ""
	}
	return reply, anchorID
}

// runDelegate executes one sub-agent conversation: instructions plus
// personalization, the delegate's own tool schema, and a bounded loop
// feeding tool results back until the model answers in text.
func (uc *Orchestrator) runDelegate(ctx context.Context, name, message string, sc *tool.SessionContext) (string, error) {
	d := uc.registry.Get(name)
	if d == nil {
		return "", goerr.New("unknown delegate", goerr.V("delegate", name))
	}

	req := &llm.Request{
		Model:        uc.model,
		Instructions: d.Instructions + personalization(sc.UserEmail, time.Now().UTC()),
		Tools:        d.Tools,
		Input:        []llm.Item{llm.UserMessage(message)},
	}

	for round := 0; round < maxToolRounds; round++ {
		resp, err := uc.llmClient.Generate(ctx, req)
		if err != nil {
			return "", goerr.Wrap(err, "delegate call", goerr.V("delegate", name), goerr.V("round", round))
		}

		calls, err := resp.FunctionCalls()
		if err != nil {
			return "", goerr.Wrap(err, "decode delegate tool calls", goerr.V("delegate", name))
		}
		if len(calls) == 0 {
			return resp.Text(), nil
		}

		// calls within one round are independent; run them concurrently but
		// keep the output order aligned with the request order
		outputs := make([]string, len(calls))
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(maxParallelTools)
		for i, call := range calls {
			eg.Go(func() error {
				outputs[i] = uc.registry.Dispatch(egCtx, d, call.Name, call.Args, sc)
				return nil
			})
		}
		_ = eg.Wait()

		items := make([]llm.Item, 0, len(calls))
		for i, call := range calls {
			items = append(items, llm.FunctionCallOutput(call.CallID, outputs[i]))
		}
		req = &llm.Request{
			Model:              uc.model,
			Tools:              d.Tools,
			Input:              items,
			PreviousResponseID: resp.ID,
		}
	}
	return "", goerr.New("tool loop did not converge", goerr.V("delegate", name))
}

// settleManager continues the manager thread with the delegation outcome,
// answering the pending delegate call when there is one, and returns the
// manager's text plus the new anchor response id
func (uc *Orchestrator) settleManager(ctx context.Context, managerID, callID, output string) (string, string, error) {
	var input []llm.Item
	if callID != "" {
		input = []llm.Item{llm.FunctionCallOutput(callID, output)}
	} else {
		input = []llm.Item{llm.UserMessage("The delegation failed: " + output +
			" Explain the problem to the user briefly and suggest trying again.")}
	}

	resp, err := uc.llmClient.Generate(ctx, &llm.Request{
		Model:              uc.model,
		Input:              input,
		PreviousResponseID: managerID,
	})
	if err != nil {
		return "", "", goerr.Wrap(err, "settle manager thread")
	}
	return resp.Text(), resp.ID, nil
}

func failurePayload(name string, cause error) string {
	payload, err := json.Marshal(map[string]any{
		"status":        "failure_tool_error",
		"delegate":      name,
		"error_details": cause.Error(),
	})
	if err != nil {
		return `{"status":"failure_tool_error"}`
	}
	return string(payload)
}

// sessionContext builds the per-turn tool session, applying an active
// act-as session so tools see the impersonated identity while the audit
// trail keeps the admin as actor
func (uc *Orchestrator) sessionContext(ctx context.Context, caller *model.User) (*tool.SessionContext, error) {
	effective := caller
	if session, err := uc.repo.ActAs().Get(ctx, caller.SlackID); err != nil {
		return nil, goerr.Wrap(err, "resolve act-as session")
	} else if session != nil {
		target, err := uc.repo.User().Get(ctx, session.UserSlackID)
		if err != nil {
			return nil, goerr.Wrap(err, "load act-as target")
		}
		if target != nil {
			effective = target
			logging.From(ctx).Info("acting as another user",
				"admin", caller.SlackID, "user", target.SlackID)
		}
	}

	sc := &tool.SessionContext{
		UserEmail:     effective.Email,
		SlackID:       effective.SlackID,
		CorporateID:   effective.CorporateID,
		IsAdmin:       caller.IsAdmin,
		ActorSlackID:  caller.SlackID,
		ActorEmail:    caller.Email,
		Repo:          uc.repo,
		Analytics:     uc.analytics,
		Targetprocess: uc.targetprocess,
	}
	if uc.entities != nil {
		sc.Entities = uc.entities.Snapshot
	}
	return sc, nil
}

func (uc *Orchestrator) saveAnchor(ctx context.Context, channelID, responseID string) {
	if responseID == "" {
		return
	}
	err := uc.repo.Conversation().Put(ctx, &model.Conversation{
		ChannelID:          channelID,
		PreviousResponseID: responseID,
	})
	if err != nil {
		logging.From(ctx).Error("failed to save conversation anchor",
			"channel_id", channelID, "error", err)
	}
}

func (uc *Orchestrator) managerInstructions() string {
	names := uc.registry.Names()
	sort.Strings(names)

	var buf bytes.Buffer
	if err := managerSystemPrompt.Execute(&buf, map[string]any{"Delegates": names}); err != nil {
		// the template is static; a render failure is a programming error
		logging.Default().Error("manager prompt render failed", "error", err)
		return managerSystemPromptTmpl
	}
	return buf.String()
}

func (uc *Orchestrator) managerTools() []llm.ToolDef {
	return []llm.ToolDef{{
		Type:        "function",
		Name:        "delegate",
		Description: "Hand the request to a specialist assistant",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"delegate_name": map[string]any{
					"type":        "string",
					"description": "Name of the specialist to consult",
				},
				"message": map[string]any{
					"type":        "string",
					"description": "The request to pass to the specialist",
				},
			},
			"required": []string{"delegate_name", "message"},
		},
	}}
}

// detectDelegation prefers the delegate tool call and falls back to the
// textual directive some models emit instead
func detectDelegation(resp *llm.Response) (name, message, callID string, ok bool) {
	calls, err := resp.FunctionCalls()
	if err != nil {
		// undecodable arguments fall through to the textual directive
		calls = nil
	}
	for _, call := range calls {
		if call.Name != "delegate" {
			continue
		}
		name, _ = call.Args["delegate_name"].(string)
		message, _ = call.Args["message"].(string)
		if name != "" {
			return name, message, call.CallID, true
		}
	}

	if m := delegateDirective.FindStringSubmatch(resp.Text()); m != nil {
		return m[1], m[2], "", true
	}
	return "", "", "", false
}

func personalization(userEmail string, now time.Time) string {
	return fmt.Sprintf("\n\nYou are assisting %s. Today is %s, %s (UTC).",
		userEmail, now.Weekday(), now.Format("2006-01-02"))
}
