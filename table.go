package clickhouse

import (
	"bytes"
	"context"
	"fmt"
)

// Table is a helper for addressing one table.
type Table struct {
	c *Client

	// Database is the database the table lives in.
	//
	// This is optional and may be empty; the connection's default database
	// applies then.
	Database string
	// Name is the table name.
	Name string
}

// Table creates a helper for the given table name.
func (c *Client) Table(name string) *Table {
	return &Table{
		c:    c,
		Name: name,
	}
}

// Identifier returns the quoted, optionally qualified table identifier.
func (t *Table) Identifier() string {
	var b bytes.Buffer
	if t.Database != "" {
		b.WriteString(quoteIdent(t.Database))
		b.WriteByte('.')
	}
	b.WriteString(quoteIdent(t.Name))
	return b.String()
}

// Drop drops the table.
func (t *Table) Drop(ctx context.Context) error {
	_, err := t.c.Command(ctx, &CommandParams{
		Query: fmt.Sprintf(`DROP TABLE %s`, t.Identifier()),
	})
	return err
}

// Exists reports whether the table exists.
func (t *Table) Exists(ctx context.Context) (bool, error) {
	database := t.Database
	if database == "" {
		database = t.c.conn.config.database()
	}

	res, err := t.c.Query(ctx, &QueryParams{
		Query: `SELECT count() AS n FROM system.tables WHERE database = {db:String} AND name = {name:String}`,
		Params: Parameters{
			"db":   database,
			"name": t.Name,
		},
	})
	if err != nil {
		return false, err
	}
	out, err := res.JSON()
	if err != nil {
		return false, err
	}
	values, err := out.Values()
	if err != nil {
		return false, err
	}
	if len(values) != 1 || len(values[0]) != 1 {
		return false, fmt.Errorf("expected a single count cell, got %d rows", len(values))
	}
	n, ok := values[0][0].(uint64)
	if !ok {
		return false, fmt.Errorf("expected uint64 count, got %T", values[0][0])
	}
	return n > 0, nil
}

// Columns reads the table's schema from system.columns.
func (t *Table) Columns(ctx context.Context) (Schema, error) {
	database := t.Database
	if database == "" {
		database = t.c.conn.config.database()
	}

	res, err := t.c.Query(ctx, &QueryParams{
		Query: `SELECT name, type FROM system.columns WHERE database = {db:String} AND table = {table:String} ORDER BY position`,
		Params: Parameters{
			"db":    database,
			"table": t.Name,
		},
	})
	if err != nil {
		return nil, err
	}
	out, err := res.JSON()
	if err != nil {
		return nil, err
	}

	var schema Schema
	for _, row := range out.Data {
		name, ok := row["name"].(string)
		if !ok {
			return nil, fmt.Errorf("expected string column name, got %T", row["name"])
		}
		typ, ok := row["type"].(string)
		if !ok {
			return nil, fmt.Errorf("expected string column type, got %T", row["type"])
		}
		schema = append(schema, FieldSchema{Name: name, Type: typ})
	}
	return schema, nil
}

// quoteIdent renders s as a backtick-quoted identifier.
func quoteIdent(s string) string {
	var b bytes.Buffer
	b.WriteByte('`')
	for _, c := range s {
		switch c {
		case '\t':
			b.WriteString("\\t")
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\\':
			b.WriteString("\\\\")
		case '`':
			b.WriteString("\\`")
		default:
			if c < 0x20 {
				fmt.Fprintf(&b, "\\x%02x", c)
				break
			}
			b.WriteRune(c)
		}
	}
	b.WriteByte('`')
	return b.String()
}
