/*
 * Copyright 2025 ClickFort, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package itcases

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	clickhouse "github.com/clickfort/clickhouse-http/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type visit struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	Hits int64  `json:"hits"`
}

func createVisitsTable(t *testing.T, ctx context.Context, c *clickhouse.Client) *clickhouse.Table {
	tbl := c.Table(RandomName(t))
	_, err := c.Command(ctx, &clickhouse.CommandParams{
		Query: fmt.Sprintf(`
			CREATE TABLE %s (
				id UInt64,
				name String,
				hits Int64
			) ENGINE = MergeTree ORDER BY id
		`, tbl.Identifier()),
	})
	require.NoError(t, err)
	return tbl
}

func TestIngestRoundTrip(t *testing.T) {
	c := NewClient(t)
	defer c.Close()

	ctx := context.Background()
	tbl := createVisitsTable(t, ctx, c)
	defer func() {
		require.NoError(t, tbl.Drop(ctx))
	}()

	rows := make([]visit, 0, 100)
	for i := 0; i < 100; i++ {
		rows = append(rows, visit{
			ID:   uint64(i),
			Name: gofakeit.Name(),
			Hits: gofakeit.Int64(),
		})
	}

	res, err := c.Insert(ctx, &clickhouse.InsertParams{
		Table:  tbl.Identifier(),
		Values: rows,
	})
	require.NoError(t, err)
	assert.True(t, res.Executed)

	out, err := c.Query(ctx, &clickhouse.QueryParams{
		Query: fmt.Sprintf(`SELECT id, name, hits FROM %s ORDER BY id`, tbl.Identifier()),
	})
	require.NoError(t, err)
	decoded, err := out.JSON()
	require.NoError(t, err)

	values, err := decoded.Values()
	require.NoError(t, err)
	require.Len(t, values, 100)
	for i, row := range values {
		assert.Equal(t, uint64(i), row[0])
		assert.Equal(t, rows[i].Name, row[1])
		assert.Equal(t, rows[i].Hits, row[2])
	}
}

func TestCableIngest(t *testing.T) {
	c := NewClient(t)
	defer c.Close()

	ctx := context.Background()
	tbl := createVisitsTable(t, ctx, c)
	defer func() {
		require.NoError(t, tbl.Drop(ctx))
	}()

	cable := c.RowCable(tbl.Identifier())
	cable.BatchRows = 10
	cable.BatchInterval = 100 * time.Millisecond
	cable.Start(ctx)
	defer cable.Close()

	done, errCh := cable.Send(visit{ID: 1, Name: gofakeit.Name(), Hits: 27})
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("batch did not settle")
	}
	require.NoError(t, <-errCh)

	exists, err := tbl.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	out, err := c.Query(ctx, &clickhouse.QueryParams{
		Query: fmt.Sprintf(`SELECT count() AS n FROM %s`, tbl.Identifier()),
	})
	require.NoError(t, err)
	decoded, err := out.JSON()
	require.NoError(t, err)
	values, err := decoded.Values()
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, uint64(1), values[0][0])
}
