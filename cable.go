package clickhouse

import (
	"context"
	"time"
)

// RowCable batches individual rows and flushes them as inserts, either when
// the buffered row count reaches BatchRows or on the BatchInterval tick.
// Rows are encoded in the JSONEachRow format.
type RowCable struct {
	c     *Client
	table string

	pending []*rowSend
	sendCh  chan *rowSend

	// BatchRows is the row count that triggers a flush. Defaults to 10000.
	BatchRows int
	// BatchInterval is the maximum time rows sit buffered. Defaults to 1s.
	BatchInterval time.Duration
}

type rowSend struct {
	row any

	err  chan error
	done chan struct{}
}

// RowCable creates a cable inserting into the given table.
func (c *Client) RowCable(table string) *RowCable {
	return &RowCable{
		c:             c,
		table:         table,
		pending:       make([]*rowSend, 0),
		sendCh:        make(chan *rowSend),
		BatchRows:     10000,
		BatchInterval: time.Second,
	}
}

// Start launches the cable loop. The loop runs until Close is called; ctx
// bounds the inserts issued by flushes.
func (cb *RowCable) Start(ctx context.Context) {
	go func() {
		ticker := time.Tick(cb.BatchInterval)

		stop, flush := false, false
		for {
			if flush || len(cb.pending) >= cb.BatchRows {
				pending := cb.pending
				go cb.flush(ctx, pending)

				flush = false
				cb.pending = make([]*rowSend, 0)
			}

			if stop {
				break
			}

			select {
			case <-ticker:
				if len(cb.pending) > 0 {
					flush = true
				}
			case send, more := <-cb.sendCh:
				if !more {
					stop = true
					flush = len(cb.pending) > 0
					continue
				}
				if send.row == nil {
					continue
				}
				cb.pending = append(cb.pending, send)
			}
		}
	}()
}

func (cb *RowCable) flush(ctx context.Context, pending []*rowSend) {
	rows := make([]any, 0, len(pending))
	for _, send := range pending {
		rows = append(rows, send.row)
	}

	_, err := cb.c.Insert(ctx, &InsertParams{
		Table:  cb.table,
		Values: rows,
		Format: FormatJSONEachRow,
	})
	for _, send := range pending {
		if err != nil {
			send.err <- err
		} else {
			close(send.err)
		}
		close(send.done)
	}
}

// Send queues one row. The done channel closes when the row's batch settles;
// the err channel delivers the batch failure, if any, and closes otherwise.
func (cb *RowCable) Send(row any) (<-chan struct{}, <-chan error) {
	send := &rowSend{
		row:  row,
		err:  make(chan error, 1),
		done: make(chan struct{}, 1),
	}
	cb.sendCh <- send
	return send.done, send.err
}

// Close stops the cable loop after flushing the buffered rows.
func (cb *RowCable) Close() {
	close(cb.sendCh)
}
