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
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultDatabase is used when Config.Database is left empty.
	DefaultDatabase = "default"
	// DefaultRequestTimeout bounds the response-header wait and the idle gap
	// between body reads of a single exchange.
	DefaultRequestTimeout = 30 * time.Second
)

// Compression controls the per-connection gzip policy.
type Compression struct {
	// Request compresses outbound statement and insert bodies.
	Request bool
	// Response asks the server to gzip result payloads and transparently
	// decompresses them.
	Response bool
}

// Config defines the configuration for a connection.
//
// A Config is resolved once when the connection is opened and never mutated
// afterwards.
type Config struct {
	// Endpoint is the URL of the ClickHouse HTTP interface,
	// e.g. "http://localhost:8123".
	Endpoint string
	// Username and Password authenticate every request. Empty values fall
	// back to the server defaults.
	Username string
	Password string
	// Database is the default database for every statement.
	Database string
	// Settings are connection-level default settings attached to every
	// request. They have the lowest merge precedence.
	Settings Settings
	// SessionID, when set, binds every request of this client to one server
	// session. It cannot be overridden per call.
	SessionID string
	// RequestTimeout is the idle timeout of a single exchange. Zero means
	// DefaultRequestTimeout.
	RequestTimeout time.Duration
	// Compression is the gzip policy for this connection.
	Compression Compression
	// Application identifies the calling application in the User-Agent.
	Application string
	// Logger receives structured debug events for every exchange. Nil
	// disables logging.
	Logger *zerolog.Logger
}

func (c *Config) database() string {
	if c.Database == "" {
		return DefaultDatabase
	}
	return c.Database
}

func (c *Config) requestTimeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return c.RequestTimeout
}

func (c *Config) logger() zerolog.Logger {
	if c.Logger == nil {
		return zerolog.Nop()
	}
	return *c.Logger
}
