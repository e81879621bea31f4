// Package worker consumes file-arrival events and drives batch processing.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/pipeline"
)

// Worker subscribes to file-arrived events, downloads the CSV object, runs
// it through the pipeline, and writes metadata and quarantine objects back
// to storage.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	store     domain.ObjectStore
	processor *pipeline.Processor
	storage   domain.StorageConfig

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new batch worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, store domain.ObjectStore,
	processor *pipeline.Processor, storage domain.StorageConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		store:     store,
		processor: processor,
		storage:   storage,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the file-arrived topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicFileArrived, w.handleFileArrived)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicFileArrived, err)
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started", "topic", domain.TopicFileArrived)
	return nil
}

// handleFileArrived processes one incoming file end to end. Invocations are
// tracked on the WaitGroup so Stop drains in-flight batches.
func (w *Worker) handleFileArrived(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	start := time.Now()

	var ev domain.FileArrivedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		slog.Error("failed to parse file-arrived event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if ev.FileName == "" {
		slog.Error("file-arrived event without file name", "message_id", msg.ID)
		return fmt.Errorf("file name is required")
	}

	source := ev.Source
	if source == "" {
		source = ingest.DetectSourceType(ev.FileName)
	}

	meta := &domain.FileMetadata{
		FileName:  ev.FileName,
		Source:    source,
		Status:    domain.StatusProcessing,
		StartedAt: start.UTC(),
	}
	w.writeMetadata(ctx, meta)

	data, err := w.store.Read(ctx, w.storage.IncomingContainer, ev.FileName)
	if err != nil {
		w.finalize(ctx, meta, domain.StatusDownloadFailed, err)
		return err
	}

	if source == domain.SourceUnknown {
		w.finalize(ctx, meta, domain.StatusUnknownSource, fmt.Errorf("cannot detect source type from file name %q", ev.FileName))
		return nil
	}

	header, rows, err := ingest.ParseCSV(string(data))
	if err != nil {
		w.finalize(ctx, meta, domain.StatusProcessorFailed, err)
		return err
	}

	res, err := w.processor.Process(ctx, pipeline.Batch{
		FileName: ev.FileName,
		Source:   source,
		Header:   header,
		Rows:     rows,
	})
	if err != nil {
		w.finalize(ctx, meta, domain.StatusProcessorFailed, err)
		return err
	}

	if len(res.BadRows) > 0 {
		w.writeQuarantine(ctx, ev.FileName, res.Header, res.BadRows)
	}

	meta.Apply(res.Summary)
	w.finalize(ctx, meta, domain.StatusCompleted, nil)

	w.publishResults(ctx, meta, res.Alerts)

	slog.Info("file processed",
		"file", ev.FileName,
		"source", source,
		"rows_parsed", res.Summary.RowsParsed,
		"valid", res.Summary.Valid,
		"quarantined", res.Summary.Quarantined,
		"alerts", res.Summary.Alerts,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// finalize stamps the final status on the metadata record and writes it to both
// the repository and the metadata container.
func (w *Worker) finalize(ctx context.Context, meta *domain.FileMetadata, status string, cause error) {
	now := time.Now().UTC()
	meta.Status = status
	meta.CompletedAt = &now
	if cause != nil {
		meta.Error = cause.Error()
		slog.Error("file processing failed",
			"file", meta.FileName,
			"status", status,
			"error", cause,
		)
	}
	w.writeMetadata(ctx, meta)
}

// writeMetadata persists the metadata record; storage and repository
// failures are logged, not fatal, so a flaky sink never loses the batch.
func (w *Worker) writeMetadata(ctx context.Context, meta *domain.FileMetadata) {
	if w.repo != nil {
		if err := w.repo.SaveFileMetadata(ctx, meta); err != nil {
			slog.Error("failed to save file metadata",
				"file", meta.FileName,
				"error", err,
			)
		}
	}

	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return
	}
	name := ingest.MetadataName(meta.FileName)
	if err := w.store.Write(ctx, w.storage.MetadataContainer, name, raw); err != nil {
		slog.Error("failed to write metadata object",
			"file", meta.FileName,
			"object", name,
			"error", err,
		)
	}
}

// writeQuarantine renders rejected rows back to CSV alongside the original
// header and stores them for manual review.
func (w *Worker) writeQuarantine(ctx context.Context, fileName string, header []string, rows []domain.RawRow) {
	data, err := ingest.QuarantineCSV(header, rows)
	if err != nil {
		slog.Error("failed to render quarantine CSV",
			"file", fileName,
			"error", err,
		)
		return
	}

	name := ingest.QuarantineName(fileName)
	if err := w.store.Write(ctx, w.storage.QuarantineContainer, name, data); err != nil {
		slog.Error("failed to write quarantine object",
			"file", fileName,
			"object", name,
			"error", err,
		)
	}
}

// publishResults emits the batch-completed event and one event per alert.
func (w *Worker) publishResults(ctx context.Context, meta *domain.FileMetadata, alerts []domain.Alert) {
	if payload, err := json.Marshal(meta); err == nil {
		if err := w.bus.Publish(ctx, domain.TopicBatchCompleted, payload); err != nil {
			slog.Error("failed to publish batch-completed event",
				"file", meta.FileName,
				"error", err,
			)
		}
	}

	for i := range alerts {
		payload, err := json.Marshal(&alerts[i])
		if err != nil {
			continue
		}
		if err := w.bus.Publish(ctx, domain.TopicAlertRaised, payload); err != nil {
			slog.Error("failed to publish alert event",
				"alert_id", alerts[i].ID,
				"error", err,
			)
		}
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
