package clickhouse

// Format identifies a ClickHouse input/output format, passed to the server
// via the FORMAT clause.
type Format string

const (
	// FormatJSON is the structured JSON envelope with meta, data and
	// statistics sections. Default query output format.
	FormatJSON Format = "JSON"
	// FormatJSONEachRow is newline-delimited JSON objects, one per row.
	FormatJSONEachRow Format = "JSONEachRow"
	// FormatJSONCompactEachRow is newline-delimited JSON arrays, one per row.
	FormatJSONCompactEachRow Format = "JSONCompactEachRow"
	// FormatCSV is comma-separated values.
	FormatCSV Format = "CSV"
	// FormatCSVWithNames is CSV with a leading header row.
	FormatCSVWithNames Format = "CSVWithNames"
	// FormatTabSeparated is tab-separated values.
	FormatTabSeparated Format = "TabSeparated"
	// FormatArrowStream is the Arrow IPC streaming format.
	FormatArrowStream Format = "ArrowStream"
)

// DefaultQueryFormat is appended to query statements that do not request an
// explicit format.
const DefaultQueryFormat = FormatJSON

// DefaultInsertFormat is used for insert payloads built from in-memory rows.
const DefaultInsertFormat = FormatJSONEachRow

// structuredRows reports whether the format accepts in-memory row values that
// the client encodes itself. The remaining formats take pre-encoded bytes or
// a stream.
func (f Format) structuredRows() bool {
	switch f {
	case FormatJSONEachRow, FormatJSONCompactEachRow:
		return true
	default:
		return false
	}
}
