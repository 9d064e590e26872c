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
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// RowSet is a column-oriented insert payload: an explicit column list plus
// rows of values in the same order. It encodes as JSONCompactEachRow, and its
// Columns drive the column clause when the caller gives none.
type RowSet struct {
	Columns []string
	Rows    [][]any
}

// insertPayload is the wire form of an insert's dataset. Exactly one field is
// set; a stream is consumed once and never retried.
type insertPayload struct {
	data   []byte
	stream io.Reader
}

// encodeInsertValues validates values against the format and encodes them to
// the wire representation. The empty result reports a finite sequence with
// zero elements, which the caller turns into a no-op before any network call.
func encodeInsertValues(values any, format Format) (payload *insertPayload, empty bool, err error) {
	switch v := values.(type) {
	case nil:
		return nil, false, &ValidationError{Message: "insert: values are required"}
	case io.Reader:
		return &insertPayload{stream: v}, false, nil
	case json.RawMessage:
		return &insertPayload{data: v}, false, nil
	case []byte:
		return &insertPayload{data: v}, false, nil
	case *RowSet:
		if len(v.Rows) == 0 {
			return nil, true, nil
		}
		data, err := encodeCompactRows(v.Rows)
		if err != nil {
			return nil, false, err
		}
		return &insertPayload{data: data}, false, nil
	}

	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false, &ValidationError{
			Message: fmt.Sprintf("insert: unsupported values type %T", values),
		}
	}
	if rv.Len() == 0 {
		return nil, true, nil
	}
	if !format.structuredRows() {
		return nil, false, &ValidationError{
			Message: fmt.Sprintf("insert: format %s takes a pre-encoded byte stream, not in-memory rows", format),
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := 0; i < rv.Len(); i++ {
		row := rv.Index(i).Interface()
		if err := validateRowShape(row, format, i); err != nil {
			return nil, false, err
		}
		if err := enc.Encode(row); err != nil {
			return nil, false, &ValidationError{
				Message: fmt.Sprintf("insert: row %d is not encodable: %v", i, err),
			}
		}
	}
	return &insertPayload{data: buf.Bytes()}, false, nil
}

// validateRowShape checks a single row against the chosen format before any
// network call: JSONEachRow rows must encode to objects, JSONCompactEachRow
// rows to arrays.
func validateRowShape(row any, format Format, index int) error {
	rv := reflect.ValueOf(row)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return &ValidationError{Message: fmt.Sprintf("insert: row %d is nil", index)}
		}
		rv = rv.Elem()
	}

	switch format {
	case FormatJSONEachRow:
		switch rv.Kind() {
		case reflect.Struct, reflect.Map:
			return nil
		default:
			return &ValidationError{
				Message: fmt.Sprintf("insert: row %d must be a struct or map for %s, got %T", index, format, row),
			}
		}
	case FormatJSONCompactEachRow:
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			return nil
		default:
			return &ValidationError{
				Message: fmt.Sprintf("insert: row %d must be a slice for %s, got %T", index, format, row),
			}
		}
	default:
		return nil
	}
}

func encodeCompactRows(rows [][]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, row := range rows {
		if err := enc.Encode(row); err != nil {
			return nil, &ValidationError{
				Message: fmt.Sprintf("insert: row %d is not encodable: %v", i, err),
			}
		}
	}
	return buf.Bytes(), nil
}

// buildInsertStatement renders the INSERT statement whose dataset travels in
// the request body.
func buildInsertStatement(table string, columns, except []string, format Format) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	if clause := columnClause(columns, except); clause != "" {
		b.WriteByte(' ')
		b.WriteString(clause)
	}
	b.WriteString(" FORMAT ")
	b.WriteString(string(format))
	return b.String()
}

// columnClause renders the optional column list. An explicitly supplied but
// empty list falls back to no clause rather than failing; callers relying on
// "empty means all columns" should pass nil to make the intent visible.
func columnClause(columns, except []string) string {
	switch {
	case len(columns) > 0:
		return "(" + strings.Join(columns, ", ") + ")"
	case len(except) > 0:
		return "(* EXCEPT (" + strings.Join(except, ", ") + "))"
	default:
		return ""
	}
}
