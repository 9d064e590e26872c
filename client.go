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

package clickhouse

import (
	"context"
	"io"

	"github.com/rs/zerolog"
)

// Client is the outermost operation surface. It applies client-level default
// settings, normalizes statements, injects FORMAT clauses, validates and
// encodes insert payloads, and delegates to the Connection.
type Client struct {
	conn     *Connection
	settings Settings
	log      zerolog.Logger
}

// NewClient opens a connection and creates a client over it.
func NewClient(config *Config) (*Client, error) {
	conn, err := Open(config)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn: conn,
		log:  config.logger().With().Str("module", "client").Logger(),
	}, nil
}

// WithSettings derives a client whose settings overlay the connection
// defaults on every call. Per-call settings still take precedence. The
// derived client shares the underlying connection.
func (c *Client) WithSettings(settings Settings) *Client {
	return &Client{
		conn:     c.conn,
		settings: mergeSettings(c.settings, settings),
		log:      c.log,
	}
}

// Close releases the connection's pooled resources.
func (c *Client) Close() {
	c.conn.Close()
}

// QueryParams describes a SELECT-like statement.
type QueryParams struct {
	// Query is the statement text. Trailing separators are stripped and a
	// FORMAT clause is appended before sending.
	Query string
	// Format is the requested output format, FormatJSON by default.
	Format Format
	// Settings overlay the client and connection defaults for this call.
	Settings Settings
	// Params are bound statement parameters, referenced as {name:Type}.
	Params Parameters
	// QueryID correlates the call on the server; empty means generated.
	QueryID string
}

// QueryResult is a live result stream plus the id the query ran under.
type QueryResult struct {
	// Stream is the raw result payload in the requested format. The caller
	// owns it and must close it.
	Stream io.ReadCloser
	// QueryID is the id the statement ran under.
	QueryID string
	// Format is the output format the result was requested in.
	Format Format
}

// Query executes a statement and returns its result stream.
func (c *Client) Query(ctx context.Context, params *QueryParams) (*QueryResult, error) {
	format := params.Format
	if format == "" {
		format = DefaultQueryFormat
	}
	resp, err := c.conn.Query(ctx, &QueryRequest{
		Statement: formatQuery(params.Query, format),
		QueryID:   params.QueryID,
		Settings:  mergeSettings(c.settings, params.Settings),
		Params:    params.Params,
	})
	if err != nil {
		return nil, err
	}
	return &QueryResult{Stream: resp.Stream, QueryID: resp.QueryID, Format: format}, nil
}

// ExecParams describes a statement executed verbatim: no FORMAT clause is
// injected and the response is never decompressed.
type ExecParams struct {
	Query    string
	Settings Settings
	Params   Parameters
	QueryID  string
}

// ExecResult is the outcome of Exec. The stream is the raw server response;
// callers that do not care about it should use Command instead.
type ExecResult struct {
	Stream  io.ReadCloser
	QueryID string
}

// Exec executes a statement whose result the caller will discard or consume
// as opaque text.
func (c *Client) Exec(ctx context.Context, params *ExecParams) (*ExecResult, error) {
	resp, err := c.conn.Exec(ctx, &QueryRequest{
		Statement: normalizeStatement(params.Query),
		QueryID:   params.QueryID,
		Settings:  mergeSettings(c.settings, params.Settings),
		Params:    params.Params,
	})
	if err != nil {
		return nil, err
	}
	return &ExecResult{Stream: resp.Stream, QueryID: resp.QueryID}, nil
}

// CommandParams describes a statement whose result is never meaningful, such
// as DDL.
type CommandParams struct {
	Query    string
	Settings Settings
	Params   Parameters
	QueryID  string
}

// CommandResult is the outcome of Command.
type CommandResult struct {
	QueryID string
}

// Command executes a statement and discards the response stream.
func (c *Client) Command(ctx context.Context, params *CommandParams) (*CommandResult, error) {
	res, err := c.Exec(ctx, &ExecParams{
		Query:    params.Query,
		Settings: params.Settings,
		Params:   params.Params,
		QueryID:  params.QueryID,
	})
	if err != nil {
		return nil, err
	}
	sneakyBodyClose(res.Stream)
	return &CommandResult{QueryID: res.QueryID}, nil
}

// InsertParams describes one insert.
type InsertParams struct {
	// Table is the target table identifier, rendered verbatim.
	Table string
	// Values is the dataset: a slice of rows (structs or maps for
	// JSONEachRow, slices for JSONCompactEachRow), a *RowSet, an io.Reader
	// of pre-encoded data, or raw bytes.
	Values any
	// Columns restricts the insert to the listed columns.
	Columns []string
	// Except inserts into every column but the listed ones. Ignored when
	// Columns is non-empty.
	Except []string
	// Format is the wire format of the dataset. Defaults to JSONEachRow,
	// or JSONCompactEachRow for a *RowSet.
	Format   Format
	Settings Settings
	QueryID  string
}

// InsertResult reports whether an insert reached the server and under which
// query id.
type InsertResult struct {
	// Executed is false when the payload was an empty finite sequence and
	// no network call was made.
	Executed bool
	QueryID  string
}

// Insert validates and encodes the dataset, builds the INSERT statement and
// streams the dataset to the server. An empty finite sequence performs no
// network call and returns {Executed: false, QueryID: ""}.
func (c *Client) Insert(ctx context.Context, params *InsertParams) (*InsertResult, error) {
	format := params.Format
	columns, except := params.Columns, params.Except
	if rs, ok := params.Values.(*RowSet); ok {
		if format == "" {
			format = FormatJSONCompactEachRow
		}
		if len(columns) == 0 && len(except) == 0 {
			columns = rs.Columns
		}
	}
	if format == "" {
		format = DefaultInsertFormat
	}

	payload, empty, err := encodeInsertValues(params.Values, format)
	if err != nil {
		return nil, err
	}
	if empty {
		c.log.Debug().Str("table", params.Table).Msg("insert skipped: empty values")
		return &InsertResult{Executed: false, QueryID: ""}, nil
	}

	resp, err := c.conn.Insert(ctx, &InsertRequest{
		Statement:  buildInsertStatement(params.Table, columns, except, format),
		QueryID:    params.QueryID,
		Settings:   mergeSettings(c.settings, params.Settings),
		Data:       payload.data,
		DataStream: payload.stream,
	})
	if err != nil {
		return nil, err
	}
	return &InsertResult{Executed: true, QueryID: resp.QueryID}, nil
}

// PingResult reports server reachability. A failed ping carries the failure
// in Err instead of being returned as an error.
type PingResult struct {
	Ok  bool
	Err error
}

// Ping checks the health endpoint. It never returns an error; the failure
// kind, if any, is inside the result.
func (c *Client) Ping(ctx context.Context) PingResult {
	err := c.conn.ping(ctx)
	return PingResult{Ok: err == nil, Err: err}
}
