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

import "strings"

// normalizeStatement trims surrounding whitespace and strips every trailing
// statement separator. The server rejects statements followed by FORMAT
// clauses when a separator intervenes, so the whole trailing run of
// semicolons must go, not just one.
func normalizeStatement(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	for strings.HasSuffix(stmt, ";") {
		stmt = strings.TrimRight(stmt, ";")
		stmt = strings.TrimRight(stmt, " \t\r\n")
	}
	return stmt
}

// formatQuery normalizes a query statement and appends the output format
// directive.
func formatQuery(stmt string, format Format) string {
	if format == "" {
		format = DefaultQueryFormat
	}
	return normalizeStatement(stmt) + "\nFORMAT " + string(format)
}
