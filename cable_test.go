package clickhouse

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cableEvent struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func randomCableEvent(id int) cableEvent {
	return cableEvent{ID: id, Name: gofakeit.Name()}
}

func TestRowCableFlushesOnBatchSize(t *testing.T) {
	var mu sync.Mutex
	var batches [][]byte
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		mu.Lock()
		batches = append(batches, body)
		mu.Unlock()
	}), nil)

	cable := client.RowCable("events")
	cable.BatchRows = 3
	cable.BatchInterval = time.Hour
	cable.Start(context.Background())

	var dones []<-chan struct{}
	var errs []<-chan error
	for i := 0; i < 3; i++ {
		done, errCh := cable.Send(randomCableEvent(i))
		dones = append(dones, done)
		errs = append(errs, errCh)
	}
	for i, done := range dones {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("batch did not settle")
		}
		require.NoError(t, <-errs[i])
	}
	cable.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 1)

	lines := bytes.Split(bytes.TrimSpace(batches[0]), []byte("\n"))
	require.Len(t, lines, 3)
	for i, line := range lines {
		var row cableEvent
		require.NoError(t, json.Unmarshal(line, &row))
		assert.Equal(t, i, row.ID)
	}
}

func TestRowCableFlushesOnClose(t *testing.T) {
	var calls sync.WaitGroup
	calls.Add(1)
	var gotQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		calls.Done()
	}), nil)

	cable := client.RowCable("events")
	cable.BatchInterval = time.Hour
	cable.Start(context.Background())

	done, errCh := cable.Send(randomCableEvent(1))
	cable.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("close did not flush the buffered row")
	}
	require.NoError(t, <-errCh)

	calls.Wait()
	assert.Equal(t, "INSERT INTO events FORMAT JSONEachRow", gotQuery)
}

func TestRowCableFlushesOnInterval(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), nil)

	cable := client.RowCable("events")
	cable.BatchInterval = 20 * time.Millisecond
	cable.Start(context.Background())
	defer cable.Close()

	done, errCh := cable.Send(randomCableEvent(1))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("interval did not flush the buffered row")
	}
	require.NoError(t, <-errCh)
}

func TestRowCableDeliversInsertErrors(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Code: 60. DB::Exception: Table default.events does not exist. (UNKNOWN_TABLE)"))
	}), nil)

	cable := client.RowCable("events")
	cable.BatchRows = 1
	cable.BatchInterval = time.Hour
	cable.Start(context.Background())
	defer cable.Close()

	done, errCh := cable.Send(randomCableEvent(1))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("failed batch did not settle")
	}

	var serverErr *ServerError
	require.ErrorAs(t, <-errCh, &serverErr)
	assert.Equal(t, 60, serverErr.Code)
}
