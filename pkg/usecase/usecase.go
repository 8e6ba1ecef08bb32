package usecase

import (
	"context"
	"time"

	"github.com/potenza-io/opsbot/pkg/agent/delegate"
	"github.com/potenza-io/opsbot/pkg/domain/interfaces"
	"github.com/potenza-io/opsbot/pkg/domain/types"
	"github.com/potenza-io/opsbot/pkg/service/analytics"
	"github.com/potenza-io/opsbot/pkg/service/email"
	"github.com/potenza-io/opsbot/pkg/service/llm"
	slacksvc "github.com/potenza-io/opsbot/pkg/service/slack"
	"github.com/potenza-io/opsbot/pkg/service/targetprocess"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

type UseCases struct {
	repo interfaces.Repository

	llmClient     llm.Client
	slackService  slacksvc.Service
	targetprocess targetprocess.Client
	analytics     analytics.Gateway
	emailSender   email.Sender
	registry      *delegate.Registry
	managerModel  string

	Identity     *IdentityUseCase
	Orchestrator *Orchestrator
	Slack        *SlackUseCase
	Entities     *SpecialEntityCache
}

type Option func(*UseCases)

func WithLLM(client llm.Client) Option {
	return func(uc *UseCases) {
		uc.llmClient = client
	}
}

func WithSlackService(svc slacksvc.Service) Option {
	return func(uc *UseCases) {
		uc.slackService = svc
	}
}

func WithTargetprocess(client targetprocess.Client) Option {
	return func(uc *UseCases) {
		uc.targetprocess = client
	}
}

func WithAnalytics(gw analytics.Gateway) Option {
	return func(uc *UseCases) {
		uc.analytics = gw
	}
}

func WithEmailSender(sender email.Sender) Option {
	return func(uc *UseCases) {
		uc.emailSender = sender
	}
}

func WithDelegates(registry *delegate.Registry) Option {
	return func(uc *UseCases) {
		uc.registry = registry
	}
}

func WithManagerModel(model string) Option {
	return func(uc *UseCases) {
		uc.managerModel = model
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:         repo,
		managerModel: llm.DefaultModel,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Entities = NewSpecialEntityCache(uc.analytics)
	uc.Identity = NewIdentityUseCase(repo, uc.targetprocess, uc.emailSender)
	uc.Orchestrator = NewOrchestrator(repo, uc.llmClient, uc.registry, uc.slackService,
		uc.analytics, uc.targetprocess, uc.Entities, uc.managerModel)
	uc.Slack = NewSlackUseCase(repo, uc.Identity, uc.Orchestrator, uc.slackService)

	return uc
}

// Maintain is the daily maintenance job: it clears conversation anchors so
// every channel starts a fresh LLM conversation, and prunes processed-event
// records past their dedup window.
func (uc *UseCases) Maintain(ctx context.Context) error {
	logger := logging.From(ctx)

	if err := uc.repo.Conversation().ResetAll(ctx); err != nil {
		return err
	}
	pruned, err := uc.repo.Event().PruneBefore(ctx, time.Now().UTC().Add(-types.ProcessedEventTTL))
	if err != nil {
		return err
	}
	logger.Info("daily maintenance done", "pruned_events", pruned)
	return nil
}
