package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/potenza-io/opsbot/pkg/service/llm"
)

type LLM struct {
	apiKey  string
	baseURL string
	model   string
}

func (x *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-api-key",
			Usage:       "API key for the LLM endpoint",
			Category:    "LLM",
			Destination: &x.apiKey,
			Sources:     cli.EnvVars("OPSBOT_LLM_API_KEY"),
		},
		&cli.StringFlag{
			Name:        "llm-base-url",
			Usage:       "Base URL of the LLM responses endpoint",
			Category:    "LLM",
			Value:       llm.DefaultBaseURL,
			Destination: &x.baseURL,
			Sources:     cli.EnvVars("OPSBOT_LLM_BASE_URL"),
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Usage:       "Model used for the manager and all delegates",
			Category:    "LLM",
			Value:       llm.DefaultModel,
			Destination: &x.model,
			Sources:     cli.EnvVars("OPSBOT_LLM_MODEL"),
		},
	}
}

func (x LLM) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("api-key.len", len(x.apiKey)),
		slog.String("base-url", x.baseURL),
		slog.String("model", x.model),
	)
}

// Model returns the configured model name
func (x *LLM) Model() string {
	return x.model
}

// Configure builds the LLM client
func (x *LLM) Configure() (llm.Client, error) {
	if x.apiKey == "" {
		return nil, goerr.New("llm-api-key is required")
	}
	return llm.New(x.apiKey, llm.WithBaseURL(x.baseURL))
}
