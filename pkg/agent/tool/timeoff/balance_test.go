package timeoff_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/potenza-io/opsbot/pkg/domain/types"
)

func TestGetPTOBalance(t *testing.T) {
	t.Run("combines allotment, rollover, logged, and upcoming", func(t *testing.T) {
		var gotQuery string
		gw := &fakeGateway{
			execute: func(_ context.Context, query string) ([]map[string]any, error) {
				gotQuery = query
				return []map[string]any{
					{
						"pto_hours_logged":   16.0,
						"allotted_pto":       120.0,
						"rollover":           8.0,
						"upcoming_pto_hours": 24.0,
					},
				}, nil
			},
		}
		sc := newSession(&fakeTargetprocess{}, gw)

		res := handler(t, "timeoff.get_pto_balance")(context.Background(), map[string]any{}, sc)

		gt.Value(t, res.Status).Equal(types.StatusSuccess)
		gt.Value(t, res.Data["remaining_pto_hours"]).Equal(88.0)
		gt.Value(t, res.Data["pto_hours_logged"]).Equal(16.0)
		gt.Value(t, res.Data["upcoming_pto_hours"]).Equal(24.0)
		gt.Value(t, strings.Contains(gotQuery, "corporate_id = 101")).Equal(true)
	})

	t.Run("stringified numerics are coerced", func(t *testing.T) {
		gw := &fakeGateway{
			execute: func(context.Context, string) ([]map[string]any, error) {
				return []map[string]any{
					{
						"pto_hours_logged":   "16",
						"allotted_pto":       "120",
						"rollover":           "0",
						"upcoming_pto_hours": "0",
					},
				}, nil
			},
		}
		sc := newSession(&fakeTargetprocess{}, gw)

		res := handler(t, "timeoff.get_pto_balance")(context.Background(), map[string]any{}, sc)

		gt.Value(t, res.Status).Equal(types.StatusSuccess)
		gt.Value(t, res.Data["remaining_pto_hours"]).Equal(104.0)
	})

	t.Run("no allotment row", func(t *testing.T) {
		gw := &fakeGateway{
			execute: func(context.Context, string) ([]map[string]any, error) {
				return []map[string]any{}, nil
			},
		}
		sc := newSession(&fakeTargetprocess{}, gw)

		res := handler(t, "timeoff.get_pto_balance")(context.Background(), map[string]any{}, sc)
		gt.Value(t, res.Status).Equal(types.StatusNoDataFound)
	})

	t.Run("unlinked caller", func(t *testing.T) {
		sc := newSession(&fakeTargetprocess{}, nil)
		sc.CorporateID = 0

		res := handler(t, "timeoff.get_pto_balance")(context.Background(), map[string]any{}, sc)
		gt.Value(t, res.Status).Equal(types.StatusUserNotLinked)
	})
}
