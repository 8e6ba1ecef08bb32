package analytics

import "context"

// Gateway executes SQL against the internal analytics HTTP endpoint and
// returns rows as maps keyed by the header row
type Gateway interface {
	Execute(ctx context.Context, query string) ([]map[string]any, error)
}
