package clickhouse

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`events`", quoteIdent("events"))
	assert.Equal(t, "`odd name`", quoteIdent("odd name"))
	assert.Equal(t, "`tick\\`tock`", quoteIdent("tick`tock"))
	assert.Equal(t, "`a\\\\b`", quoteIdent(`a\b`))
	assert.Equal(t, "`tab\\there`", quoteIdent("tab\there"))
	assert.Equal(t, "`\\x01`", quoteIdent("\x01"))
}

func TestTableIdentifier(t *testing.T) {
	table := &Table{Name: "events"}
	assert.Equal(t, "`events`", table.Identifier())

	table.Database = "metrics"
	assert.Equal(t, "`metrics`.`events`", table.Identifier())
}

func TestTableDrop(t *testing.T) {
	var got atomic.Value
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got.Store(string(body))
	}), nil)

	require.NoError(t, client.Table("events").Drop(context.Background()))
	assert.Equal(t, "DROP TABLE `events`", got.Load())
}

func TestTableExists(t *testing.T) {
	var gotParams atomic.Value
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotParams.Store([2]string{q.Get("param_db"), q.Get("param_name")})
		_, _ = w.Write([]byte(`{
			"meta": [{"name": "n", "type": "UInt64"}],
			"data": [{"n": "1"}],
			"rows": 1,
			"statistics": {"elapsed": 0, "rows_read": 1, "bytes_read": 8}
		}`))
	}), &Config{Database: "metrics"})

	exists, err := client.Table("events").Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, [2]string{"metrics", "events"}, gotParams.Load())
}

func TestTableColumns(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"meta": [{"name": "name", "type": "String"}, {"name": "type", "type": "String"}],
			"data": [
				{"name": "id", "type": "UInt64"},
				{"name": "payload", "type": "Nullable(String)"}
			],
			"rows": 2,
			"statistics": {"elapsed": 0, "rows_read": 2, "bytes_read": 64}
		}`))
	}), nil)

	schema, err := client.Table("events").Columns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Schema{
		{Name: "id", Type: "UInt64"},
		{Name: "payload", Type: "Nullable(String)"},
	}, schema)
}
