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

	clickhouse "github.com/clickfort/clickhouse-http/go"
	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableSchema(t *testing.T) {
	c := NewClient(t)
	defer c.Close()

	ctx := context.Background()
	tbl := c.Table(RandomName(t))
	_, err := c.Command(ctx, &clickhouse.CommandParams{
		Query: fmt.Sprintf(`
			CREATE TABLE %s (
				i Int64,
				u UInt64,
				f Float64,
				s String,
				b Bool,
				ts DateTime,
				var Nullable(String)
			) ENGINE = MergeTree ORDER BY i
		`, tbl.Identifier()),
	})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, tbl.Drop(ctx))
	}()

	exists, err := tbl.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	schema, err := tbl.Columns(ctx)
	require.NoError(t, err)
	snaps.MatchSnapshot(t, schema)
}

func TestPing(t *testing.T) {
	c := NewClient(t)
	defer c.Close()

	res := c.Ping(context.Background())
	require.NoError(t, res.Err)
	assert.True(t, res.Ok)
}
