package usecase

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/potenza-io/opsbot/pkg/service/analytics"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

// entityQuery returns the nickname to upstream-id mapping maintained on the
// analytics side (PTO_STORY, WFH_STORY, SICK_STORY and friends)
const entityQuery = `SELECT nickname, entity_id FROM special_entities`

// SpecialEntityCache holds the nickname to upstream entity id mapping used
// to compose time-tracking API payloads. A failed refresh keeps the prior
// snapshot; the cache is empty only when it has never been filled.
type SpecialEntityCache struct {
	mu       sync.RWMutex
	entities map[string]int64
	gateway  analytics.Gateway
}

func NewSpecialEntityCache(gateway analytics.Gateway) *SpecialEntityCache {
	return &SpecialEntityCache{
		entities: map[string]int64{},
		gateway:  gateway,
	}
}

// Snapshot returns a copy of the current mapping
func (c *SpecialEntityCache) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := make(map[string]int64, len(c.entities))
	for k, v := range c.entities {
		snap[k] = v
	}
	return snap
}

// Refresh reloads the mapping from the analytics gateway. On failure the
// prior snapshot stays in place and the error is returned for logging.
func (c *SpecialEntityCache) Refresh(ctx context.Context) error {
	if c.gateway == nil {
		return goerr.New("no analytics gateway configured")
	}

	rows, err := c.gateway.Execute(ctx, entityQuery)
	if err != nil {
		logging.From(ctx).Warn("entity cache refresh failed, keeping prior snapshot", "error", err)
		return goerr.Wrap(err, "refresh special entities")
	}

	fresh := make(map[string]int64, len(rows))
	for _, row := range rows {
		nickname, _ := row["nickname"].(string)
		if nickname == "" {
			continue
		}
		switch id := row["entity_id"].(type) {
		case float64:
			fresh[nickname] = int64(id)
		case int64:
			fresh[nickname] = id
		case int:
			fresh[nickname] = int64(id)
		}
	}
	if len(fresh) == 0 {
		logging.From(ctx).Warn("entity cache refresh returned no rows, keeping prior snapshot")
		return goerr.New("no special entities returned")
	}

	c.mu.Lock()
	c.entities = fresh
	c.mu.Unlock()

	logging.From(ctx).Info("entity cache refreshed", "entities", len(fresh))
	return nil
}
