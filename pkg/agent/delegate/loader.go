package delegate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/service/llm"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

const (
	instructionsFile = "instructions.md"
	toolsFile        = "tools.json"
	functionsFile    = "functions.toml"
)

// functionTable is the functions.toml document: a [tools] table mapping
// each declared tool name to a handler key from the host's handler table.
type functionTable struct {
	Tools map[string]string `toml:"tools"`
}

// LoadDir scans the top level of dir for delegate definition directories
// and binds each one against the given handler table. Directories with a
// missing or malformed file are logged and skipped; they never abort the
// rest of the load. An empty result is an error since the assistant cannot
// work without delegates.
func LoadDir(ctx context.Context, dir string, handlers map[string]tool.Handler) ([]*Delegate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, goerr.Wrap(err, "read delegates dir", goerr.V("dir", dir))
	}

	logger := logging.From(ctx)
	var delegates []*Delegate
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d, err := loadOne(filepath.Join(dir, e.Name()), e.Name(), handlers)
		if err != nil {
			logger.Warn("skipping delegate", "name", e.Name(), "error", err)
			continue
		}
		delegates = append(delegates, d)
		logger.Info("loaded delegate", "name", d.Name, "tools", len(d.Tools))
	}

	if len(delegates) == 0 {
		return nil, goerr.New("no usable delegate definitions", goerr.V("dir", dir))
	}
	return delegates, nil
}

func loadOne(dir, name string, handlers map[string]tool.Handler) (*Delegate, error) {
	instructions, err := os.ReadFile(filepath.Join(dir, instructionsFile))
	if err != nil {
		return nil, goerr.Wrap(err, "read instructions")
	}

	rawTools, err := os.ReadFile(filepath.Join(dir, toolsFile))
	if err != nil {
		return nil, goerr.Wrap(err, "read tool declarations")
	}
	var tools []llm.ToolDef
	if err := json.Unmarshal(rawTools, &tools); err != nil {
		return nil, goerr.Wrap(err, "parse tool declarations")
	}

	rawFns, err := os.ReadFile(filepath.Join(dir, functionsFile))
	if err != nil {
		return nil, goerr.Wrap(err, "read function table")
	}
	var table functionTable
	if err := toml.Unmarshal(rawFns, &table); err != nil {
		return nil, goerr.Wrap(err, "parse function table")
	}

	bound := make(map[string]tool.Handler, len(tools))
	for _, t := range tools {
		key, ok := table.Tools[t.Name]
		if !ok {
			return nil, goerr.New("tool has no function table entry", goerr.V("tool", t.Name))
		}
		h, ok := handlers[key]
		if !ok {
			return nil, goerr.New("function table names unknown handler",
				goerr.V("tool", t.Name), goerr.V("handler", key))
		}
		bound[t.Name] = h
	}

	return &Delegate{
		Name:         name,
		Instructions: string(instructions),
		Tools:        tools,
		handlers:     bound,
	}, nil
}
