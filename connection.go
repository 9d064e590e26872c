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
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Connection is the operation façade over the request transport. It exposes
// the narrow surface the client layer consumes: Query, Exec, Insert, Ping and
// Close. Multiple operations may be in flight concurrently; each owns an
// independent exchange and they share nothing but the pooled transport.
type Connection struct {
	config    *Config
	base      *url.URL
	transport *transport
	log       zerolog.Logger
}

// Open resolves the configuration and creates a new connection.
func Open(config *Config) (*Connection, error) {
	base, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: invalid endpoint: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("clickhouse: invalid endpoint %q: scheme must be http or https", config.Endpoint)
	}
	return &Connection{
		config:    config,
		base:      base,
		transport: newTransport(config),
		log:       config.logger().With().Str("module", "connection").Logger(),
	}, nil
}

// Close releases the pooled sockets held for reuse. It does not interrupt
// in-flight operations. Calling Close more than once is the caller's
// responsibility to avoid.
func (conn *Connection) Close() {
	conn.transport.close()
}

// QueryRequest carries one statement exchange issued through Query or Exec.
type QueryRequest struct {
	// Statement is the full statement text sent as the request body.
	Statement string
	// QueryID correlates the exchange on the server. Empty means a fresh
	// random id is generated.
	QueryID string
	// Settings overlay the connection's default settings.
	Settings Settings
	// Params are bound statement parameters.
	Params Parameters
	// SessionID binds the exchange to a server session.
	SessionID string
}

// QueryResponse is the settled outcome of a Query or Exec exchange.
type QueryResponse struct {
	// Stream is the live result payload. The caller owns it and must close
	// it; an unconsumed stream keeps the exchange's socket busy until the
	// idle timeout fires.
	Stream io.ReadCloser
	// QueryID is the id the exchange ran under.
	QueryID string
}

// Query sends the statement as the request body and returns the live result
// stream. Response decompression follows the connection's compression policy.
func (conn *Connection) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	queryID := orRandomQueryID(req.QueryID)
	settings := mergeSettings(conn.config.Settings, req.Settings)
	decompress := conn.config.Compression.Response
	if decompress {
		// The server only compresses when asked twice: once per the
		// Accept-Encoding header and once per this setting.
		settings = mergeSettings(settings, Settings{"enable_http_compression": 1})
	}

	stream, err := conn.transport.do(ctx, &requestDescriptor{
		op:                 "query",
		method:             http.MethodPost,
		url:                conn.buildURL(encodeRequestParams(conn.config.database(), settings, req.Params, conn.sessionID(req.SessionID), queryID)),
		bodyBytes:          []byte(req.Statement),
		compressRequest:    conn.config.Compression.Request,
		decompressResponse: decompress,
	})
	if err != nil {
		return nil, err
	}
	return &QueryResponse{Stream: stream, QueryID: queryID}, nil
}

// Exec is Query without response decompression. It is meant for statements
// whose result the caller discards or consumes as opaque text.
func (conn *Connection) Exec(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	queryID := orRandomQueryID(req.QueryID)
	settings := mergeSettings(conn.config.Settings, req.Settings)

	stream, err := conn.transport.do(ctx, &requestDescriptor{
		op:              "exec",
		method:          http.MethodPost,
		url:             conn.buildURL(encodeRequestParams(conn.config.database(), settings, req.Params, conn.sessionID(req.SessionID), queryID)),
		bodyBytes:       []byte(req.Statement),
		compressRequest: conn.config.Compression.Request,
	})
	if err != nil {
		return nil, err
	}
	return &QueryResponse{Stream: stream, QueryID: queryID}, nil
}

// InsertRequest carries one insert exchange. The statement travels in the
// query string; the body is the encoded dataset.
type InsertRequest struct {
	// Statement is the INSERT INTO ... FORMAT ... statement.
	Statement string
	QueryID   string
	Settings  Settings
	SessionID string

	// Data is a literal encoded payload; DataStream is a caller-owned
	// stream consumed exactly once and never retried. At most one is set.
	Data       []byte
	DataStream io.Reader
}

// InsertResponse is the settled outcome of an insert exchange.
type InsertResponse struct {
	QueryID string
}

// Insert streams the encoded dataset to the server. The response carries no
// useful payload and is destroyed immediately.
func (conn *Connection) Insert(ctx context.Context, req *InsertRequest) (*InsertResponse, error) {
	queryID := orRandomQueryID(req.QueryID)
	settings := mergeSettings(conn.config.Settings, req.Settings)

	values := encodeRequestParams(conn.config.database(), settings, nil, conn.sessionID(req.SessionID), queryID)
	values.Set("query", req.Statement)

	stream, err := conn.transport.do(ctx, &requestDescriptor{
		op:              "insert",
		method:          http.MethodPost,
		url:             conn.buildURL(values),
		bodyBytes:       req.Data,
		bodyStream:      req.DataStream,
		compressRequest: conn.config.Compression.Request,
	})
	if err != nil {
		return nil, err
	}
	sneakyBodyClose(stream)
	return &InsertResponse{QueryID: queryID}, nil
}

// Ping issues a minimal exchange against the health-check path. It never
// returns an error; callers needing the failure detail use Client.Ping.
func (conn *Connection) Ping(ctx context.Context) bool {
	return conn.ping(ctx) == nil
}

func (conn *Connection) ping(ctx context.Context) error {
	u := *conn.base
	u.Path = "/ping"

	stream, err := conn.transport.do(ctx, &requestDescriptor{
		op:     "ping",
		method: http.MethodGet,
		url:    &u,
	})
	if err != nil {
		return err
	}
	sneakyBodyClose(stream)
	return nil
}

func (conn *Connection) buildURL(values url.Values) *url.URL {
	u := *conn.base
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = values.Encode()
	return &u
}

// sessionID returns the session the exchange binds to. A session configured
// at construction wins over any per-request session, so construction-time
// binding cannot be overridden per call.
func (conn *Connection) sessionID(requested string) string {
	if conn.config.SessionID != "" {
		return conn.config.SessionID
	}
	return requested
}

func orRandomQueryID(queryID string) string {
	if queryID != "" {
		return queryID
	}
	return uuid.NewString()
}
