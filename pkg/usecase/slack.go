package usecase

import (
	"context"
	"strings"

	"github.com/slack-go/slack/slackevents"

	"github.com/potenza-io/opsbot/pkg/domain/interfaces"
	"github.com/potenza-io/opsbot/pkg/domain/model"
	slacksvc "github.com/potenza-io/opsbot/pkg/service/slack"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

// SlackUseCase routes inbound Slack events: dedup, bot filtering, and the
// split between the identity flow and the agent orchestrator
type SlackUseCase struct {
	repo         interfaces.Repository
	identity     *IdentityUseCase
	orchestrator *Orchestrator
	slackService slacksvc.Service
}

func NewSlackUseCase(repo interfaces.Repository, identity *IdentityUseCase, orchestrator *Orchestrator, slackService slacksvc.Service) *SlackUseCase {
	return &SlackUseCase{
		repo:         repo,
		identity:     identity,
		orchestrator: orchestrator,
		slackService: slackService,
	}
}

// HandleEvent processes one callback event. The webhook has already
// acknowledged the delivery; errors here are logged, never retried.
func (uc *SlackUseCase) HandleEvent(ctx context.Context, event *slackevents.EventsAPIEvent) error {
	logger := logging.From(ctx)

	msg, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		logger.Debug("ignoring slack event", "type", event.InnerEvent.Type)
		return nil
	}

	// own and other bot messages would loop forever
	if msg.BotID != "" || msg.SubType != "" {
		return nil
	}
	if msg.ChannelType != "im" {
		return nil
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" || msg.User == "" {
		return nil
	}

	fresh, err := uc.repo.Event().MarkProcessed(ctx, msg.TimeStamp, msg.Channel)
	if err != nil {
		logger.Error("event dedup check failed", "ts", msg.TimeStamp, "channel", msg.Channel, "error", err)
		return err
	}
	if !fresh {
		logger.Info("skipping redelivered event", "ts", msg.TimeStamp, "channel", msg.Channel)
		return nil
	}

	slackID := model.SlackUserID(msg.User)
	user, err := uc.repo.User().Get(ctx, slackID)
	if err != nil {
		logger.Error("user lookup failed", "slack_id", slackID, "error", err)
		return err
	}

	var reply string
	if user == nil || !user.Linked() {
		reply, _ = uc.identity.HandleMessage(ctx, slackID, text)
	} else {
		reply = uc.orchestrator.Handle(ctx, HandleInput{
			Text:      text,
			User:      user,
			ChannelID: msg.Channel,
		})
	}
	if reply == "" {
		return nil
	}

	if _, err := uc.slackService.PostMessage(ctx, msg.Channel, reply); err != nil {
		logger.Error("failed to post reply", "channel", msg.Channel, "error", err)
		return err
	}
	return nil
}
