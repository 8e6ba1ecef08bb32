package usecase_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/slack-go/slack/slackevents"

	"github.com/potenza-io/opsbot/pkg/repository/memory"
	"github.com/potenza-io/opsbot/pkg/service/llm"
	"github.com/potenza-io/opsbot/pkg/usecase"
)

func dmEvent(user, channel, ts, text string) *slackevents.EventsAPIEvent {
	return &slackevents.EventsAPIEvent{
		Type: slackevents.CallbackEvent,
		InnerEvent: slackevents.EventsAPIInnerEvent{
			Type: "message",
			Data: &slackevents.MessageEvent{
				Type:        "message",
				User:        user,
				Text:        text,
				TimeStamp:   ts,
				Channel:     channel,
				ChannelType: "im",
			},
		},
	}
}

func newSlackFixture(repo *memory.Repository, client llm.Client, slackSvc *recordingSlack) *usecase.SlackUseCase {
	identity := usecase.NewIdentityUseCase(repo, directoryWithAlice(), &recordingSender{})
	orch := usecase.NewOrchestrator(repo, client, echoRegistry(nil, nil), slackSvc, nil, nil, nil, llm.DefaultModel)
	return usecase.NewSlackUseCase(repo, identity, orch, slackSvc)
}

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("linked user goes to the orchestrator", func(t *testing.T) {
		repo := memory.New()
		gt.NoError(t, repo.User().Upsert(ctx, alice())).Required()
		slackSvc := &recordingSlack{}
		client := &scriptedLLM{responses: []*llm.Response{textResponse("mgr_1", "Hi!")}}
		uc := newSlackFixture(repo, client, slackSvc)

		gt.NoError(t, uc.HandleEvent(ctx, dmEvent("U1", "D1", "1700000000.000100", "hello"))).Required()

		gt.Array(t, slackSvc.messages).Length(1)
		gt.Value(t, slackSvc.messages[0].channelID).Equal("D1")
		gt.Value(t, slackSvc.messages[0].text).Equal("Hi!")
	})

	t.Run("unlinked user goes to the identity flow", func(t *testing.T) {
		repo := memory.New()
		slackSvc := &recordingSlack{}
		uc := newSlackFixture(repo, &scriptedLLM{}, slackSvc)

		gt.NoError(t, uc.HandleEvent(ctx, dmEvent("U9", "D9", "1700000000.000200", "hello"))).Required()

		gt.Array(t, slackSvc.messages).Length(1)
		gt.Value(t, strings.Contains(slackSvc.messages[0].text, "verify who you are")).Equal(true)
	})

	t.Run("redelivered event is answered once", func(t *testing.T) {
		repo := memory.New()
		gt.NoError(t, repo.User().Upsert(ctx, alice())).Required()
		slackSvc := &recordingSlack{}
		client := &scriptedLLM{responses: []*llm.Response{
			textResponse("mgr_1", "once"),
			textResponse("mgr_2", "twice"),
		}}
		uc := newSlackFixture(repo, client, slackSvc)

		ev := dmEvent("U1", "D1", "1700000000.000300", "hello")
		gt.NoError(t, uc.HandleEvent(ctx, ev)).Required()
		gt.NoError(t, uc.HandleEvent(ctx, ev)).Required()

		gt.Array(t, slackSvc.messages).Length(1)
	})

	t.Run("same timestamp in another channel is distinct", func(t *testing.T) {
		repo := memory.New()
		gt.NoError(t, repo.User().Upsert(ctx, alice())).Required()
		slackSvc := &recordingSlack{}
		client := &scriptedLLM{responses: []*llm.Response{
			textResponse("mgr_1", "one"),
			textResponse("mgr_2", "two"),
		}}
		uc := newSlackFixture(repo, client, slackSvc)

		gt.NoError(t, uc.HandleEvent(ctx, dmEvent("U1", "D1", "1700000000.000400", "hello"))).Required()
		gt.NoError(t, uc.HandleEvent(ctx, dmEvent("U1", "D2", "1700000000.000400", "hello"))).Required()

		gt.Array(t, slackSvc.messages).Length(2)
	})

	t.Run("filtered events produce no reply", func(t *testing.T) {
		repo := memory.New()
		slackSvc := &recordingSlack{}
		uc := newSlackFixture(repo, &scriptedLLM{}, slackSvc)

		bot := dmEvent("U1", "D1", "1700000000.000500", "beep")
		bot.InnerEvent.Data.(*slackevents.MessageEvent).BotID = "B1"
		gt.NoError(t, uc.HandleEvent(ctx, bot)).Required()

		edited := dmEvent("U1", "D1", "1700000000.000501", "edit")
		edited.InnerEvent.Data.(*slackevents.MessageEvent).SubType = "message_changed"
		gt.NoError(t, uc.HandleEvent(ctx, edited)).Required()

		channel := dmEvent("U1", "C1", "1700000000.000502", "in public")
		channel.InnerEvent.Data.(*slackevents.MessageEvent).ChannelType = "channel"
		gt.NoError(t, uc.HandleEvent(ctx, channel)).Required()

		blank := dmEvent("U1", "D1", "1700000000.000503", "   ")
		gt.NoError(t, uc.HandleEvent(ctx, blank)).Required()

		nonMessage := &slackevents.EventsAPIEvent{
			Type:       slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{Type: "reaction_added", Data: &slackevents.ReactionAddedEvent{}},
		}
		gt.NoError(t, uc.HandleEvent(ctx, nonMessage)).Required()

		gt.Array(t, slackSvc.messages).Length(0)
	})
}
