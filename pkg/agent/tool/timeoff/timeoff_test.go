package timeoff_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/agent/tool/timeoff"
	"github.com/potenza-io/opsbot/pkg/service/targetprocess"
)

type fakeTargetprocess struct {
	postTime    func(ctx context.Context, req *targetprocess.PostTimeRequest) error
	listTimes   func(ctx context.Context, userID, storyID int64) ([]targetprocess.TimeEntry, error)
	deleteTime  func(ctx context.Context, id int64) error
	updateTime  func(ctx context.Context, id int64, date *string, spent *float64) error
	findByEmail func(ctx context.Context, localPart string) ([]targetprocess.User, error)
	findByName  func(ctx context.Context, firstName, lastName string) ([]targetprocess.User, error)
	restart     func(ctx context.Context) error
}

func (f *fakeTargetprocess) PostTime(ctx context.Context, req *targetprocess.PostTimeRequest) error {
	return f.postTime(ctx, req)
}

func (f *fakeTargetprocess) ListTimes(ctx context.Context, userID, storyID int64) ([]targetprocess.TimeEntry, error) {
	return f.listTimes(ctx, userID, storyID)
}

func (f *fakeTargetprocess) DeleteTime(ctx context.Context, id int64) error {
	return f.deleteTime(ctx, id)
}

func (f *fakeTargetprocess) UpdateTime(ctx context.Context, id int64, date *string, spent *float64) error {
	return f.updateTime(ctx, id, date, spent)
}

func (f *fakeTargetprocess) FindUsersByEmailLocalPart(ctx context.Context, localPart string) ([]targetprocess.User, error) {
	return f.findByEmail(ctx, localPart)
}

func (f *fakeTargetprocess) FindUsersByName(ctx context.Context, firstName, lastName string) ([]targetprocess.User, error) {
	return f.findByName(ctx, firstName, lastName)
}

func (f *fakeTargetprocess) RestartService(ctx context.Context) error {
	return f.restart(ctx)
}

type fakeGateway struct {
	execute func(ctx context.Context, query string) ([]map[string]any, error)
}

func (f *fakeGateway) Execute(ctx context.Context, query string) ([]map[string]any, error) {
	return f.execute(ctx, query)
}

func newSession(tp targetprocess.Client, gw *fakeGateway) *tool.SessionContext {
	return &tool.SessionContext{
		UserEmail:     "alice@example.com",
		SlackID:       "U1",
		CorporateID:   101,
		ActorSlackID:  "U1",
		ActorEmail:    "alice@example.com",
		Targetprocess: tp,
		Analytics:     gw,
		Entities: func() map[string]int64 {
			return map[string]int64{
				timeoff.EntityPTOStory:  5001,
				timeoff.EntityWFHStory:  5002,
				timeoff.EntitySickStory: 5003,
			}
		},
	}
}

func handler(t *testing.T, name string) tool.Handler {
	t.Helper()
	h, ok := timeoff.Handlers()[name]
	gt.Value(t, ok).Equal(true)
	return h
}

func resultDates(results []map[string]any) map[string]string {
	out := make(map[string]string, len(results))
	for _, r := range results {
		date, _ := r["date"].(string)
		if date == "" {
			date, _ = r["original_date"].(string)
		}
		status, _ := r["status"].(string)
		out[date] = status
	}
	return out
}
