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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Value stores the contents of a single cell from a query result.
type Value any

// FieldSchema describes a single result column.
type FieldSchema struct {
	// Name is the column name.
	Name string `json:"name"`
	// Type is the ClickHouse type, e.g. "UInt64" or "Nullable(String)".
	Type string `json:"type"`
}

// Schema describes the columns of a query result.
type Schema []FieldSchema

// Statistics are the server-side execution statistics of a query.
type Statistics struct {
	// Elapsed is the execution time in seconds.
	Elapsed float64 `json:"elapsed"`
	// RowsRead is the number of rows scanned.
	RowsRead uint64 `json:"rows_read"`
	// BytesRead is the number of bytes scanned.
	BytesRead uint64 `json:"bytes_read"`
}

// JSONResult is the decoded JSON output format envelope.
type JSONResult struct {
	// Meta is the result schema.
	Meta Schema `json:"meta"`
	// Data holds one object per row, keyed by column name.
	Data []map[string]any `json:"data"`
	// Rows is the number of rows in Data.
	Rows int64 `json:"rows"`
	// RowsBeforeLimitAtLeast is the pre-LIMIT row count lower bound.
	RowsBeforeLimitAtLeast int64 `json:"rows_before_limit_at_least,omitempty"`
	// Statistics are the server execution statistics.
	Statistics Statistics `json:"statistics"`
}

// JSON reads the whole result stream and decodes it as the JSON format
// envelope. The stream is closed afterwards.
//
// This method is only valid if the result was requested in FormatJSON.
func (r *QueryResult) JSON() (*JSONResult, error) {
	if r.Format != FormatJSON {
		return nil, fmt.Errorf("unexpected result format: %s", r.Format)
	}
	defer sneakyBodyClose(r.Stream)

	dec := json.NewDecoder(r.Stream)
	dec.UseNumber()
	var out JSONResult
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Values reads the result rows as value lists ordered by the schema, with
// cells converted to Go types according to the column types.
func (r *JSONResult) Values() ([][]Value, error) {
	var valueLists [][]Value
	for _, row := range r.Data {
		values := make([]Value, 0, len(r.Meta))
		for _, field := range r.Meta {
			raw, ok := row[field.Name]
			if !ok {
				return nil, fmt.Errorf("row is missing column %q", field.Name)
			}
			v, err := convertValue(raw, field.Type)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		valueLists = append(valueLists, values)
	}
	return valueLists, nil
}

// convertValue maps a decoded JSON cell onto a Go value for the given
// ClickHouse type. 64-bit integers arrive as quoted strings by default
// (output_format_json_quote_64bit_integers), so both representations are
// accepted.
func convertValue(raw any, chType string) (Value, error) {
	if raw == nil {
		return nil, nil
	}
	base := baseType(chType)

	switch {
	case base == "String" || strings.HasPrefix(base, "FixedString") ||
		strings.HasPrefix(base, "Enum") || base == "UUID":
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string for %s, got %T", chType, raw)
		}
		return s, nil
	case strings.HasPrefix(base, "UInt"):
		s, err := numberString(raw)
		if err != nil {
			return nil, fmt.Errorf("column type %s: %w", chType, err)
		}
		return strconv.ParseUint(s, 10, 64)
	case strings.HasPrefix(base, "Int"):
		s, err := numberString(raw)
		if err != nil {
			return nil, fmt.Errorf("column type %s: %w", chType, err)
		}
		return strconv.ParseInt(s, 10, 64)
	case strings.HasPrefix(base, "Float") || strings.HasPrefix(base, "Decimal"):
		s, err := numberString(raw)
		if err != nil {
			return nil, fmt.Errorf("column type %s: %w", chType, err)
		}
		return strconv.ParseFloat(s, 64)
	case base == "Bool":
		if b, ok := raw.(bool); ok {
			return b, nil
		}
		s, err := numberString(raw)
		if err != nil {
			return nil, fmt.Errorf("column type %s: %w", chType, err)
		}
		return s == "1" || s == "true", nil
	case strings.HasPrefix(base, "DateTime"):
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string for %s, got %T", chType, raw)
		}
		return time.Parse("2006-01-02 15:04:05", s)
	case base == "Date" || base == "Date32":
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string for %s, got %T", chType, raw)
		}
		return time.Parse("2006-01-02", s)
	default:
		// Arrays, tuples, maps and the rest stay in their decoded JSON form.
		return raw, nil
	}
}

// baseType unwraps Nullable(...) and LowCardinality(...) type wrappers.
func baseType(chType string) string {
	for {
		switch {
		case strings.HasPrefix(chType, "Nullable(") && strings.HasSuffix(chType, ")"):
			chType = chType[len("Nullable(") : len(chType)-1]
		case strings.HasPrefix(chType, "LowCardinality(") && strings.HasSuffix(chType, ")"):
			chType = chType[len("LowCardinality(") : len(chType)-1]
		default:
			return chType
		}
	}
}

func numberString(raw any) (string, error) {
	switch v := raw.(type) {
	case json.Number:
		return v.String(), nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("expected number, got %T", raw)
	}
}
