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

/*
Package clickhouse provides a lightweight client for the ClickHouse HTTP
interface.

# Client

Use NewClient to create a client. This is the major entrance to construct
structs for interacting with ClickHouse:

	client, err := clickhouse.NewClient(&clickhouse.Config{
		Endpoint: "http://<clickhouse-host>:<clickhouse-port:-8123>",
		Database: "default",
	})

# Query Data

Query returns the raw result stream in the requested format; the JSON format
can be materialized into typed values:

	res, err := client.Query(ctx, &clickhouse.QueryParams{
		Query: "SELECT number FROM system.numbers LIMIT 10",
	})
	if err != nil {
		return err
	}
	out, err := res.JSON()
	if err != nil {
		return err
	}
	values, err := out.Values()

# Insert Data

Insert takes in-memory rows, a *RowSet, or a pre-encoded stream:

	_, err := client.Insert(ctx, &clickhouse.InsertParams{
		Table: "events",
		Values: []map[string]any{
			{"ts": 1700000000, "v": "clickhouse"},
		},
	})

An insert with zero rows performs no network call at all.

# Streaming Inserts via Cables

Use RowCable to batch many small writes into few inserts:

	cable := client.RowCable("events")
	cable.Start(ctx)
	defer cable.Close()

	done, errCh := cable.Send(map[string]any{"ts": 1700000000, "v": "clickhouse"})

# Cancellation and Timeouts

Every operation takes a context. Canceling it destroys the in-flight exchange
and reports a CancellationError; an exchange idle longer than
Config.RequestTimeout reports a TimeoutError instead.
*/
package clickhouse
