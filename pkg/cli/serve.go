package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/potenza-io/opsbot/pkg/agent/delegate"
	"github.com/potenza-io/opsbot/pkg/agent/tool"
	admintool "github.com/potenza-io/opsbot/pkg/agent/tool/admin"
	"github.com/potenza-io/opsbot/pkg/agent/tool/directory"
	"github.com/potenza-io/opsbot/pkg/agent/tool/timeoff"
	"github.com/potenza-io/opsbot/pkg/cli/config"
	httpctrl "github.com/potenza-io/opsbot/pkg/controller/http"
	"github.com/potenza-io/opsbot/pkg/service/worker"
	"github.com/potenza-io/opsbot/pkg/usecase"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

// handlerTable merges every registered tool handler under its stable key
func handlerTable() map[string]tool.Handler {
	table := map[string]tool.Handler{}
	for _, handlers := range []map[string]tool.Handler{
		timeoff.Handlers(),
		directory.Handlers(),
		admintool.Handlers(),
	} {
		for key, h := range handlers {
			table[key] = h
		}
	}
	return table
}

func cmdServe() *cli.Command {
	var addr string
	var repoCfg config.Repository
	var slackCfg config.Slack
	var llmCfg config.LLM
	var tpCfg config.Targetprocess
	var analyticsCfg config.Analytics
	var emailCfg config.Email
	var agentCfg config.Agent

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("OPSBOT_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, tpCfg.Flags()...)
	flags = append(flags, analyticsCfg.Flags()...)
	flags = append(flags, emailCfg.Flags()...)
	flags = append(flags, agentCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the Slack assistant server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			repo, err := repoCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
			}()

			slackSvc, err := slackCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure slack service")
			}
			llmClient, err := llmCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure llm client")
			}
			tpClient, err := tpCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure targetprocess client")
			}
			gateway, err := analyticsCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure analytics gateway")
			}
			sender, err := emailCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure email sender")
			}

			registry := delegate.NewRegistry(repo.Audit())
			delegates, err := delegate.LoadDir(ctx, agentCfg.DelegatesDir(), handlerTable())
			if err != nil {
				return goerr.Wrap(err, "failed to load delegates")
			}
			for _, d := range delegates {
				registry.Register(d)
			}

			uc := usecase.New(repo,
				usecase.WithLLM(llmClient),
				usecase.WithSlackService(slackSvc),
				usecase.WithTargetprocess(tpClient),
				usecase.WithAnalytics(gateway),
				usecase.WithEmailSender(sender),
				usecase.WithDelegates(registry),
				usecase.WithManagerModel(llmCfg.Model()),
			)

			if id := agentCfg.BootstrapAdminID(); id != 0 {
				elevated, err := repo.User().EnsureBootstrapAdmin(ctx, id)
				if err != nil {
					return goerr.Wrap(err, "failed to bootstrap admin")
				}
				if elevated {
					logger.Info("bootstrap admin elevated", "corporate_id", id)
				}
			}

			refreshHour, refreshMinute, err := agentCfg.RefreshAt()
			if err != nil {
				return goerr.Wrap(err, "invalid entity-refresh-at")
			}
			maintHour, maintMinute, err := agentCfg.MaintenanceAt()
			if err != nil {
				return goerr.Wrap(err, "invalid maintenance-at")
			}

			refreshWorker := worker.NewDailyWorker("entity-refresh", refreshHour, refreshMinute, true,
				uc.Entities.Refresh)
			maintWorker := worker.NewDailyWorker("maintenance", maintHour, maintMinute, false,
				uc.Maintain)
			refreshWorker.Start(ctx)
			maintWorker.Start(ctx)

			webhook := httpctrl.NewSlackWebhookHandler(uc.Slack)
			handler := httpctrl.New(
				httpctrl.WithSlackWebhook(webhook, slackCfg.SigningSecret()),
			)
			server := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.Info("Received shutdown signal", "signal", sig)

				refreshWorker.Stop()
				maintWorker.Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logger.Info("Server shutdown completed")
				return nil
			}
		},
	}
}
