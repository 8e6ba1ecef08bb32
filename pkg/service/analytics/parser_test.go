package analytics_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/potenza-io/opsbot/pkg/service/analytics"
)

func TestParseRows(t *testing.T) {
	t.Run("rows object shape", func(t *testing.T) {
		body := `<html><body><pre>
{"rows": [["name", "hours"], ["alice", 8], ["bob", 4.5]]}
</pre></body></html>`

		rows, err := analytics.ParseRows(body)
		gt.NoError(t, err).Required()
		gt.Array(t, rows).Length(2)
		gt.Value(t, rows[0]["name"]).Equal("alice")
		gt.Value(t, rows[0]["hours"]).Equal(float64(8))
		gt.Value(t, rows[1]["name"]).Equal("bob")
		gt.Value(t, rows[1]["hours"]).Equal(4.5)
	})

	t.Run("bare array shape", func(t *testing.T) {
		body := `<pre>[["id"], [101], [102]]</pre>`

		rows, err := analytics.ParseRows(body)
		gt.NoError(t, err).Required()
		gt.Array(t, rows).Length(2)
		gt.Value(t, rows[0]["id"]).Equal(float64(101))
		gt.Value(t, rows[1]["id"]).Equal(float64(102))
	})

	t.Run("header only yields no rows", func(t *testing.T) {
		rows, err := analytics.ParseRows(`<pre>[["a", "b"]]</pre>`)
		gt.NoError(t, err).Required()
		gt.Array(t, rows).Length(0)
	})

	t.Run("short row leaves trailing columns absent", func(t *testing.T) {
		rows, err := analytics.ParseRows(`<pre>[["a", "b"], [1]]</pre>`)
		gt.NoError(t, err).Required()
		gt.Array(t, rows).Length(1)
		gt.Value(t, rows[0]["a"]).Equal(float64(1))
		_, ok := rows[0]["b"]
		gt.Value(t, ok).Equal(false)
	})

	t.Run("missing pre marker", func(t *testing.T) {
		_, err := analytics.ParseRows(`{"rows": []}`)
		gt.Error(t, err)
	})

	t.Run("non-JSON blob", func(t *testing.T) {
		_, err := analytics.ParseRows(`<pre>not json</pre>`)
		gt.Error(t, err)
	})
}
