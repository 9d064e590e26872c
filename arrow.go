package clickhouse

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/ipc"
)

// Arrow reads the whole result stream and decodes it as Arrow record
// batches. The stream is closed afterwards, and the caller owns the returned
// records (call Release when done).
//
// This method is only valid if the result was requested in FormatArrowStream.
func (r *QueryResult) Arrow() ([]arrow.Record, error) {
	if r.Format != FormatArrowStream {
		return nil, fmt.Errorf("unexpected result format: %s", r.Format)
	}
	defer sneakyBodyClose(r.Stream)

	reader, err := ipc.NewReader(r.Stream, ipc.WithDelayReadSchema(true))
	if err != nil {
		return nil, err
	}
	defer reader.Release()

	batches := make([]arrow.Record, 0)
	for reader.Next() {
		batch := reader.Record()
		batch.Retain()
		batches = append(batches, batch)
	}
	if err := reader.Err(); err != nil {
		for _, batch := range batches {
			batch.Release()
		}
		return nil, err
	}
	return batches, nil
}

// encodeArrowStream encodes the record batches into a single Arrow IPC
// stream. ClickHouse's ArrowStream format is the raw IPC stream on the wire.
func encodeArrowStream(batches []arrow.Record) (payload []byte, err error) {
	if len(batches) == 0 {
		return nil, errors.New("cannot encode empty batches")
	}

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(batches[0].Schema()))
	defer func() {
		err = errors.Join(err, writer.Close())
		if err == nil {
			payload = buf.Bytes()
		}
	}()

	for _, batch := range batches {
		if err := writer.Write(batch); err != nil {
			return nil, err
		}
	}
	return
}

// InsertArrowParams describes an insert whose dataset is Arrow record
// batches, sent in the ArrowStream format.
type InsertArrowParams struct {
	Table    string
	Batches  []arrow.Record
	Settings Settings
	QueryID  string
}

// InsertArrow encodes the batches as an Arrow IPC stream and inserts them.
// Zero batches perform no network call.
func (c *Client) InsertArrow(ctx context.Context, params *InsertArrowParams) (*InsertResult, error) {
	if len(params.Batches) == 0 {
		return &InsertResult{Executed: false, QueryID: ""}, nil
	}
	payload, err := encodeArrowStream(params.Batches)
	if err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("insert: arrow encoding failed: %v", err)}
	}
	return c.Insert(ctx, &InsertParams{
		Table:    params.Table,
		Values:   payload,
		Format:   FormatArrowStream,
		Settings: params.Settings,
		QueryID:  params.QueryID,
	})
}
