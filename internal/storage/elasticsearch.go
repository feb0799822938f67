// Package storage ships scan outcomes to an Elasticsearch index for audit.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ScanEvent is one resolved (or rejected) plate scan.
type ScanEvent struct {
	SessionID    string    `json:"sessionId,omitempty"`
	Plate        string    `json:"plate"`
	DisplayPlate string    `json:"displayPlate"`
	Outcome      string    `json:"outcome"`
	RouteCode    string    `json:"routeCode,omitempty"`
	Source       string    `json:"source"`
	At           time.Time `json:"@timestamp"`
}

// Recorder accepts scan events without blocking the caller.
type Recorder interface {
	Record(ev ScanEvent)
}

// Nop discards events. It is used when indexing is disabled.
type Nop struct{}

func (Nop) Record(ScanEvent) {}

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
)

// ScanIndexer buffers events and bulk-indexes them from Run.
type ScanIndexer struct {
	client        *elasticsearch.Client
	index         string
	events        chan ScanEvent
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
}

func NewScanIndexer(url, index string, logger *slog.Logger) (*ScanIndexer, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &ScanIndexer{
		client:        client,
		index:         index,
		events:        make(chan ScanEvent, 1024),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		logger:        logger.With("component", "scan_indexer", "index", index),
	}, nil
}

// Ping checks that the cluster answers.
func (x *ScanIndexer) Ping(ctx context.Context) error {
	res, err := x.client.Info(x.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch info: %s", res.String())
	}
	return nil
}

func (x *ScanIndexer) Record(ev ScanEvent) {
	select {
	case x.events <- ev:
	default:
		x.logger.Warn("scan event buffer full, dropping event", "plate", ev.Plate)
	}
}

// Run flushes buffered events every flush interval or once a batch fills.
// Remaining events are flushed when ctx is done.
func (x *ScanIndexer) Run(ctx context.Context) {
	ticker := time.NewTicker(x.flushInterval)
	defer ticker.Stop()

	batch := make([]ScanEvent, 0, x.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := x.Flush(ctx, batch); err != nil {
			x.logger.Error("failed to index scan events", "count", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-x.events:
					batch = append(batch, ev)
					continue
				default:
				}
				break
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(shutdownCtx)
			cancel()
			return

		case ev := <-x.events:
			batch = append(batch, ev)
			if len(batch) >= x.batchSize {
				flush(ctx)
			}

		case <-ticker.C:
			flush(ctx)
		}
	}
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// Flush bulk-indexes events in one request.
func (x *ScanIndexer) Flush(ctx context.Context, events []ScanEvent) error {
	if len(events) == 0 {
		return nil
	}

	body, err := bulkBody(x.index, events)
	if err != nil {
		return err
	}

	start := time.Now()
	req := esapi.BulkRequest{
		Index: x.index,
		Body:  body,
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk request [%s]: %s", res.Status(), string(raw))
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}

	failed := 0
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Error != nil {
				failed++
				x.logger.Warn("scan event rejected", "type", result.Error.Type, "reason", result.Error.Reason)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("bulk index: %d of %d events failed", failed, len(events))
	}

	x.logger.Debug("indexed scan events", "count", len(events), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func bulkBody(index string, events []ScanEvent) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	meta, err := json.Marshal(map[string]any{"index": map[string]any{"_index": index}})
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		doc, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal scan event: %w", err)
		}
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}
	return &buf, nil
}
