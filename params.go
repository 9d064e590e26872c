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
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Settings are ClickHouse runtime settings attached to a request, e.g.
// {"max_rows_to_read": 1000}.
type Settings map[string]any

// Parameters are values bound to a parameterized statement, referenced as
// {name:Type} in the statement text. They are sent as param_<name> query
// parameters.
type Parameters map[string]any

// queryParamPrefix namespaces bound parameters apart from raw settings in the
// URL query string.
const queryParamPrefix = "param_"

// encodeRequestParams maps a request's options onto URL query parameters. It
// is a pure function: the result depends only on the inputs, and
// url.Values.Encode renders keys in sorted order, so the encoding is
// deterministic.
func encodeRequestParams(database string, settings Settings, params Parameters, sessionID, queryID string) url.Values {
	values := make(url.Values, len(settings)+len(params)+3)

	if database != "" {
		values.Set("database", database)
	}
	if queryID != "" {
		values.Set("query_id", queryID)
	}
	if sessionID != "" {
		values.Set("session_id", sessionID)
	}
	for name, value := range settings {
		values.Set(name, formatSettingValue(value))
	}
	for name, value := range params {
		values.Set(queryParamPrefix+name, formatParamValue(value))
	}
	return values
}

// formatSettingValue renders a setting value the way the HTTP interface
// expects: booleans as 0/1, everything else in its plain decimal or string
// form.
func formatSettingValue(v any) string {
	switch v := v.(type) {
	case bool:
		if v {
			return "1"
		}
		return "0"
	case string:
		return v
	case time.Duration:
		return strconv.FormatInt(int64(v/time.Second), 10)
	default:
		return plainScalar(v)
	}
}

// formatParamValue renders a bound parameter value. Strings pass through
// verbatim (URL escaping happens at encode time); temporal values use the
// ClickHouse DateTime literal form; slices render as array literals.
func formatParamValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case []string:
		quoted := make([]string, len(v))
		for i, s := range v {
			quoted[i] = quoteParamString(s)
		}
		return "[" + strings.Join(quoted, ",") + "]"
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			if s, ok := e.(string); ok {
				parts[i] = quoteParamString(s)
			} else {
				parts[i] = formatParamValue(e)
			}
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return plainScalar(v)
	}
}

func plainScalar(v any) string {
	switch v := v.(type) {
	case int:
		return strconv.Itoa(v)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", v)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// quoteParamString renders a string element of an array parameter as a
// ClickHouse string literal.
func quoteParamString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// mergeSettings overlays settings maps left to right, later maps taking
// precedence. A nil result is returned when every input is empty.
func mergeSettings(layers ...Settings) Settings {
	var merged Settings
	for _, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		if merged == nil {
			merged = make(Settings, len(layer))
		}
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}
