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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

const (
	contentEncodingGzip = "gzip"

	// maxErrorBodySize caps how much of a failed response is buffered for
	// classification.
	maxErrorBodySize = 1 << 20
)

// requestDescriptor describes a single outbound exchange. A descriptor is
// created fresh for every exchange and discarded after settlement.
type requestDescriptor struct {
	op     string
	method string
	url    *url.URL

	// bodyBytes carries a literal in-memory payload; bodyStream carries a
	// caller-owned stream consumed exactly once. At most one is set.
	bodyBytes  []byte
	bodyStream io.Reader

	compressRequest    bool
	decompressResponse bool
}

// exchange tracks the settlement of one request/response cycle. Several
// sources race to finish it: response arrival, a transport error, caller
// cancellation, the idle timeout, and errors surfaced while the body is
// consumed. The first failure wins; every later one collapses into it, so an
// error event that trails a cancellation is reported as the cancellation, not
// as a fresh failure.
type exchange struct {
	op      string
	timeout time.Duration
	cause   func() error

	once sync.Once
	err  error
}

// fail records err as this exchange's failure unless one is already recorded,
// and returns the recorded failure.
func (e *exchange) fail(err error) error {
	e.once.Do(func() {
		e.err = e.classify(err)
	})
	return e.err
}

func (e *exchange) classify(err error) error {
	switch err.(type) {
	case *ServerError, *TransportError, *TimeoutError, *CancellationError:
		return err
	}
	// A cancel cause set by the idle timer outranks the generic context
	// error the HTTP client reports.
	var cause error
	if e.cause != nil {
		cause = e.cause()
	}
	switch cause := cause.(type) {
	case *TimeoutError:
		return cause
	case *CancellationError:
		return cause
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(cause, context.DeadlineExceeded):
		return &TimeoutError{Op: e.op, Duration: e.timeout}
	case errors.Is(err, context.Canceled) || errors.Is(cause, context.Canceled):
		return &CancellationError{Op: e.op}
	default:
		return &TransportError{Op: e.op, Err: err}
	}
}

// errExchangeClosed marks the cancel cause used when the caller closes a
// fully delivered result stream.
var errExchangeClosed = errors.New("exchange closed")

// transport owns the outbound HTTP exchanges of a connection. Its headers
// are assembled once at construction and never mutated, so concurrent
// exchanges can share them freely.
type transport struct {
	client  *http.Client
	pool    *http.Transport
	headers http.Header
	timeout time.Duration
	log     zerolog.Logger
}

func newTransport(config *Config) *transport {
	pool := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		// gzip is negotiated and unwrapped by the exchange itself so that
		// unsupported encodings can be rejected instead of passed through.
		DisableCompression: true,
	}

	headers := make(http.Header)
	headers.Set("User-Agent", userAgent(config.Application))
	if config.Username != "" {
		headers.Set("X-ClickHouse-User", config.Username)
	}
	if config.Password != "" {
		headers.Set("X-ClickHouse-Key", config.Password)
	}

	return &transport{
		client:  &http.Client{Transport: pool},
		pool:    pool,
		headers: headers,
		timeout: config.requestTimeout(),
		log:     config.logger().With().Str("module", "transport").Logger(),
	}
}

const clientName = "clickhouse-http-go/1.0"

func userAgent(application string) string {
	if application == "" {
		return clientName
	}
	return application + " " + clientName
}

// close releases pooled sockets. In-flight exchanges are unaffected.
func (t *transport) close() {
	t.pool.CloseIdleConnections()
}

// do executes exactly one HTTP exchange described by desc and resolves it to
// either a readable result stream or a classified error, never both. The
// returned stream keeps the idle timeout armed between reads; closing it
// releases every resource of the exchange.
func (t *transport) do(ctx context.Context, desc *requestDescriptor) (io.ReadCloser, error) {
	start := time.Now()
	reqCtx, cancel := context.WithCancelCause(ctx)
	ex := &exchange{
		op:      desc.op,
		timeout: t.timeout,
		cause:   func() error { return context.Cause(reqCtx) },
	}

	body, err := t.outboundBody(desc)
	if err != nil {
		cancel(nil)
		return nil, ex.fail(&TransportError{Op: desc.op, Err: err})
	}

	req, err := http.NewRequestWithContext(reqCtx, desc.method, desc.url.String(), body)
	if err != nil {
		cancel(nil)
		return nil, ex.fail(&TransportError{Op: desc.op, Err: err})
	}
	for name, values := range t.headers {
		req.Header[name] = values
	}
	if desc.compressRequest && body != nil {
		req.Header.Set("Content-Encoding", contentEncodingGzip)
	}
	if desc.decompressResponse {
		req.Header.Set("Accept-Encoding", contentEncodingGzip)
	}

	// The idle timer covers the wait for response headers here, then stays
	// armed through body consumption; exchangeBody re-arms it on every read.
	timer := time.AfterFunc(t.timeout, func() {
		cancel(ex.fail(&TimeoutError{Op: desc.op, Duration: t.timeout}))
	})

	type roundTripResult struct {
		resp *http.Response
		err  error
	}
	resCh := make(chan roundTripResult, 1)
	go func() {
		resp, err := t.client.Do(req)
		resCh <- roundTripResult{resp, err}
	}()

	var resp *http.Response
	select {
	case r := <-resCh:
		if r.err != nil {
			timer.Stop()
			cancel(nil)
			err := ex.fail(r.err)
			t.logExchange(desc, 0, start, err)
			return nil, err
		}
		resp = r.resp
	case <-reqCtx.Done():
		timer.Stop()
		// Join the in-flight round trip; a response that arrives after the
		// exchange is settled is drained and discarded.
		go func() {
			if r := <-resCh; r.resp != nil {
				sneakyBodyClose(r.resp.Body)
			}
		}()
		err := ex.fail(reqCtx.Err())
		cancel(nil)
		t.logExchange(desc, 0, start, err)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		timer.Reset(t.timeout)
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		timer.Stop()
		_ = resp.Body.Close()
		cancel(nil)
		if readErr != nil {
			err := ex.fail(readErr)
			t.logExchange(desc, resp.StatusCode, start, err)
			return nil, err
		}
		raw = maybeGunzip(resp.Header.Get("Content-Encoding"), raw)
		err := ex.fail(classifyResponse(desc.op, resp.StatusCode, raw))
		t.logExchange(desc, resp.StatusCode, start, err)
		return nil, err
	}

	view := io.ReadCloser(resp.Body)
	switch encoding := resp.Header.Get("Content-Encoding"); {
	case encoding == "":
		// plain body
	case encoding == contentEncodingGzip && desc.decompressResponse:
		timer.Reset(t.timeout)
		zr, zerr := gzip.NewReader(resp.Body)
		timer.Stop()
		if zerr != nil {
			_ = resp.Body.Close()
			cancel(nil)
			err := ex.fail(&TransportError{Op: desc.op, Err: fmt.Errorf("malformed gzip response: %w", zerr)})
			t.logExchange(desc, resp.StatusCode, start, err)
			return nil, err
		}
		view = zr
	default:
		sneakyBodyClose(resp.Body)
		cancel(nil)
		err := ex.fail(&TransportError{
			Op:         desc.op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unsupported content encoding %q", encoding),
		})
		t.logExchange(desc, resp.StatusCode, start, err)
		return nil, err
	}

	timer.Reset(t.timeout)
	t.logExchange(desc, resp.StatusCode, start, nil)
	return &exchangeBody{
		ex:      ex,
		view:    view,
		raw:     resp.Body,
		timer:   timer,
		timeout: t.timeout,
		cancel:  cancel,
	}, nil
}

// outboundBody adapts the descriptor's payload into the reader handed to the
// HTTP client, piping it through gzip when request compression is on.
func (t *transport) outboundBody(desc *requestDescriptor) (io.Reader, error) {
	switch {
	case desc.bodyStream != nil:
		if !desc.compressRequest {
			return desc.bodyStream, nil
		}
		pr, pw := io.Pipe()
		go func() {
			zw := gzip.NewWriter(pw)
			_, err := io.Copy(zw, desc.bodyStream)
			err = errors.Join(err, zw.Close())
			_ = pw.CloseWithError(err)
		}()
		return pr, nil
	case desc.bodyBytes != nil:
		if !desc.compressRequest {
			return bytes.NewReader(desc.bodyBytes), nil
		}
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(desc.bodyBytes); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return bytes.NewReader(buf.Bytes()), nil
	default:
		return nil, nil
	}
}

func (t *transport) logExchange(desc *requestDescriptor, status int, start time.Time, err error) {
	evt := t.log.Debug().
		Str("method", desc.method).
		Str("path", desc.url.Path).
		Str("op", desc.op).
		Dur("duration", time.Since(start))
	if status != 0 {
		evt = evt.Int("status", status)
	}
	if err != nil {
		evt.Err(err).Msg("exchange failed")
		return
	}
	evt.Msg("exchange settled")
}

// maybeGunzip best-effort decompresses a buffered error body so the
// classifier sees the exception text, not gzip bytes.
func maybeGunzip(encoding string, body []byte) []byte {
	if encoding != contentEncodingGzip {
		return body
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return body
	}
	out, err := io.ReadAll(zr)
	if err != nil {
		return body
	}
	return out
}

// exchangeBody is the result stream of a settled exchange. Every read re-arms
// the idle timer; read failures collapse into the exchange's first failure so
// post-cancellation noise is never reported as a new error. Close detaches
// everything the exchange registered: timer, decompressor, socket body, and
// the request context.
type exchangeBody struct {
	ex      *exchange
	view    io.ReadCloser
	raw     io.ReadCloser
	timer   *time.Timer
	timeout time.Duration
	cancel  context.CancelCauseFunc
	closed  atomic.Bool
}

func (b *exchangeBody) Read(p []byte) (int, error) {
	if b.closed.Load() {
		return 0, errExchangeClosed
	}
	b.timer.Reset(b.timeout)
	n, err := b.view.Read(p)
	if err != nil && err != io.EOF {
		err = b.ex.fail(err)
	}
	if err != nil {
		b.timer.Stop()
	}
	return n, err
}

func (b *exchangeBody) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.timer.Stop()
	if b.view != b.raw {
		_ = b.view.Close()
	}
	err := b.raw.Close()
	b.cancel(errExchangeClosed)
	return err
}
