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
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ServerError is a classified error response from the ClickHouse server.
//
// The HTTP interface reports failures as plain-text bodies of the form
//
//	Code: 60. DB::Exception: Table default.t does not exist. (UNKNOWN_TABLE) (version 24.3.1)
//
// which classifyResponse parses into Code, Message and Name.
type ServerError struct {
	// Code is the numeric ClickHouse error code.
	Code int
	// Name is the symbolic error name, e.g. "UNKNOWN_TABLE". May be empty
	// on older server versions.
	Name string
	// Message is the human-readable exception message.
	Message string
	// StatusCode is the HTTP status the error arrived with.
	StatusCode int
}

func (e *ServerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("clickhouse: %s (code %d): %s", e.Name, e.Code, e.Message)
	}
	return fmt.Sprintf("clickhouse: server error (code %d): %s", e.Code, e.Message)
}

// TransportError reports a failure of the exchange itself: connect errors,
// unsupported content encodings, broken compression pipelines, or a non-2xx
// response whose body did not parse as a server exception.
type TransportError struct {
	// Op is the operation the exchange was issued for.
	Op string
	// StatusCode is the HTTP status, or zero when no response was received.
	StatusCode int
	// Body is the raw response body, verbatim, when one was received.
	Body string
	// Err is the underlying cause, if any.
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("clickhouse: %s: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("clickhouse: %s: unexpected status %d: %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
	default:
		return fmt.Sprintf("clickhouse: %s: transport failure", e.Op)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports that an exchange sat idle longer than the configured
// request timeout and was destroyed.
type TimeoutError struct {
	Op       string
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("clickhouse: %s: idle timeout after %s", e.Op, e.Duration)
}

// Timeout reports true so the error satisfies net.Error style checks.
func (e *TimeoutError) Timeout() bool { return true }

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// CancellationError reports that the caller canceled an in-flight exchange.
type CancellationError struct {
	Op string
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("clickhouse: %s: canceled", e.Op)
}

func (e *CancellationError) Unwrap() error { return context.Canceled }

// ValidationError reports a malformed insert payload. It is raised before any
// network call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "clickhouse: " + e.Message
}

var (
	serverExceptionRe = regexp.MustCompile(`(?s)Code:\s*(\d+)[.,]?\s*(?:e\.displayText\(\)\s*=\s*)?(?:DB::[A-Za-z]*Exception:\s*)?(.+)`)
	exceptionNameRe   = regexp.MustCompile(`\(([A-Z][A-Z0-9_]+)\)\s*(?:\(version[^)]*\))?\s*$`)
	exceptionTrimRe   = regexp.MustCompile(`\s*(?:\(version[^)]*\))?\s*$`)
)

// classifyResponse turns a non-2xx response body into an error value. It is
// total: a body that does not match the server exception envelope falls back
// to a TransportError carrying the body verbatim.
func classifyResponse(op string, statusCode int, body []byte) error {
	text := strings.TrimSpace(string(body))

	m := serverExceptionRe.FindStringSubmatch(text)
	if m == nil {
		return &TransportError{Op: op, StatusCode: statusCode, Body: text}
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return &TransportError{Op: op, StatusCode: statusCode, Body: text}
	}

	message := m[2]
	var name string
	if nm := exceptionNameRe.FindStringSubmatch(message); nm != nil {
		name = nm[1]
	}
	message = strings.TrimSpace(exceptionNameRe.ReplaceAllString(message, ""))
	message = strings.TrimSpace(exceptionTrimRe.ReplaceAllString(message, ""))
	message = strings.TrimSuffix(message, ".")

	return &ServerError{
		Code:       code,
		Name:       name,
		Message:    message,
		StatusCode: statusCode,
	}
}

// sneakyBodyClose drains and closes the body, ignoring errors. This is used
// for responses whose payload carries no information, so the underlying
// connection can be reused.
func sneakyBodyClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<16))
		_ = body.Close()
	}
}
