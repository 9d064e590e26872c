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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newTestClient spins up a mock server and a client pointed at it. Both are
// torn down when the test finishes, client first so pooled sockets are
// released before the server is drained.
func newTestClient(t *testing.T, handler http.Handler, config *Config) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	if config == nil {
		config = &Config{}
	}
	config.Endpoint = srv.URL

	client, err := NewClient(config)
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		srv.Close()
	})
	return client, srv
}
