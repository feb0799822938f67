package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func events() []ScanEvent {
	at := time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC)
	return []ScanEvent{
		{Plate: "B7566PAA", DisplayPlate: "B 7566 PAA", Outcome: "matched", RouteCode: "GS", Source: "api", At: at},
		{Plate: "B9999ZZ", DisplayPlate: "B 9999 ZZ", Outcome: "unrecognized", Source: "api", At: at},
	}
}

func TestBulkBody(t *testing.T) {
	buf, err := bulkBody("blink-scans", events())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"index":{"_index":"blink-scans"}}`, lines[0])

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	assert.Equal(t, "B7566PAA", doc["plate"])
	assert.Equal(t, "2026-04-01T07:00:00Z", doc["@timestamp"])

	require.NoError(t, json.Unmarshal([]byte(lines[3]), &doc))
	assert.Equal(t, "unrecognized", doc["outcome"])
}

type fakeCluster struct {
	mu    sync.Mutex
	docs  int
	fail  bool
	paths []string
}

func (c *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	c.mu.Lock()
	c.paths = append(c.paths, r.URL.Path)
	c.mu.Unlock()

	if !strings.HasSuffix(r.URL.Path, "/_bulk") {
		_, _ = io.WriteString(w, `{"version":{"number":"8.11.1"}}`)
		return
	}

	lines := 0
	sc := bufio.NewScanner(r.Body)
	for sc.Scan() {
		if sc.Text() != "" {
			lines++
		}
	}

	c.mu.Lock()
	c.docs += lines / 2
	fail := c.fail
	c.mu.Unlock()

	if fail {
		_, _ = io.WriteString(w, `{"errors":true,"items":[{"index":{"status":400,"error":{"type":"mapper_parsing_exception","reason":"bad"}}}]}`)
		return
	}
	_, _ = io.WriteString(w, `{"errors":false,"items":[{"index":{"status":201}}]}`)
}

func TestFlush(t *testing.T) {
	cluster := &fakeCluster{}
	srv := httptest.NewServer(cluster)
	defer srv.Close()

	x, err := NewScanIndexer(srv.URL, "blink-scans", testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, x.Flush(ctx, events()))
	assert.Equal(t, 2, cluster.docs)
	assert.Contains(t, cluster.paths, "/blink-scans/_bulk")

	require.NoError(t, x.Flush(ctx, nil))

	cluster.mu.Lock()
	cluster.fail = true
	cluster.mu.Unlock()
	err = x.Flush(ctx, events())
	assert.ErrorContains(t, err, "failed")
}

func TestRunFlushesOnShutdown(t *testing.T) {
	cluster := &fakeCluster{}
	srv := httptest.NewServer(cluster)
	defer srv.Close()

	x, err := NewScanIndexer(srv.URL, "blink-scans", testLogger())
	require.NoError(t, err)
	x.flushInterval = time.Hour

	for _, ev := range events() {
		x.Record(ev)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		x.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("indexer did not stop")
	}

	cluster.mu.Lock()
	defer cluster.mu.Unlock()
	assert.Equal(t, 2, cluster.docs)
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.Record(events()[0])
}
