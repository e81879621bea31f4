// Package pipeline orchestrates one file batch: validation in input order,
// valid/invalid routing, rule evaluation, and persistence of records and
// alerts. All blocking I/O happens through the injected collaborators; the
// engines themselves are pure.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/normalize"
	"github.com/opensource-finance/kestrel/internal/profile"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/validate"
)

const customerCacheTTL = 5 * time.Minute

// Processor runs the validation / normalization / rule-evaluation pipeline
// for one file batch at a time. It holds no cross-batch state and is safe to
// use concurrently across different batches.
type Processor struct {
	repo     domain.Repository
	cache    domain.Cache
	engine   *rules.Engine
	profiles *profile.Engine

	validator validate.Validator
	parser    normalize.TimestampParser
	workers   int
}

// NewProcessor wires a processor from its collaborators. The repository and
// rule engines are required; the cache is optional.
func NewProcessor(repo domain.Repository, cache domain.Cache, engine *rules.Engine,
	profiles *profile.Engine, cfg domain.PipelineConfig) (*Processor, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if engine == nil || profiles == nil {
		return nil, fmt.Errorf("rule engines are required")
	}

	workers := cfg.UpsertWorkers
	if workers <= 0 {
		workers = 8
	}
	parser := normalize.TimestampParser{DayFirst: cfg.DayFirst}

	return &Processor{
		repo:      repo,
		cache:     cache,
		engine:    engine,
		profiles:  profiles,
		validator: validate.Validator{Timestamps: parser},
		parser:    parser,
		workers:   workers,
	}, nil
}

// Batch is one parsed file handed to the processor.
type Batch struct {
	FileName string
	Source   domain.SourceType
	Header   []string
	Rows     []domain.RawRow
}

// Result carries the summary counts, the alerts the batch raised, and the
// rejected rows in original input order for the caller to quarantine verbatim.
type Result struct {
	Summary domain.Summary
	Alerts  []domain.Alert
	Header  []string
	BadRows []domain.RawRow
}

// Process validates every row in input order, persists the valid ones, runs
// the rule set for the source kind, and persists the alerts. Data-quality
// problems quarantine rows and never fail the batch; an unknown source or a
// missing collaborator is a hard error.
func (p *Processor) Process(ctx context.Context, batch Batch) (*Result, error) {
	switch batch.Source {
	case domain.SourceATM, domain.SourceUPI:
		return p.processTransactions(ctx, batch)
	case domain.SourceAccount:
		return p.processAccounts(ctx, batch)
	case domain.SourceCustomer:
		return p.processCustomers(ctx, batch)
	default:
		return nil, fmt.Errorf("unknown source type %q for file %s", batch.Source, batch.FileName)
	}
}

func (p *Processor) processTransactions(ctx context.Context, batch Batch) (*Result, error) {
	res := &Result{Header: batch.Header}
	res.Summary.RowsParsed = len(batch.Rows)

	var valid []domain.CleanedRow
	for i, row := range batch.Rows {
		errs, cleaned := p.validator.TransactionRow(row, batch.Source)
		if len(errs) > 0 {
			res.BadRows = append(res.BadRows, row)
			slog.Warn("transaction row invalid",
				"file", batch.FileName,
				"row", i+1,
				"errors", errs,
			)
			continue
		}
		valid = append(valid, cleaned)
	}
	res.Summary.Valid = len(valid)
	res.Summary.Invalid = len(res.BadRows)
	res.Summary.Quarantined = len(res.BadRows)

	p.upsertParallel(ctx, len(valid), func(i int) error {
		return p.repo.UpsertTransaction(ctx, batch.Source, valid[i])
	}, func(i int) string { return valid[i].TransactionID() })

	alerts := p.engine.Detect(valid)
	p.persistAlerts(ctx, batch.FileName, alerts)
	res.Alerts = alerts
	res.Summary.Alerts = len(alerts)

	return res, nil
}

func (p *Processor) processAccounts(ctx context.Context, batch Batch) (*Result, error) {
	res := &Result{Header: batch.Header}
	res.Summary.RowsParsed = len(batch.Rows)

	var docs []*domain.AccountDocument
	for i, row := range batch.Rows {
		if errs := p.validator.AccountRow(row); len(errs) > 0 {
			res.BadRows = append(res.BadRows, row)
			slog.Warn("account row invalid",
				"file", batch.FileName,
				"row", i+1,
				"errors", errs,
			)
			continue
		}
		docs = append(docs, BuildAccountDocument(row, p.parser))
	}
	res.Summary.Valid = len(docs)
	res.Summary.Invalid = len(res.BadRows)
	res.Summary.Quarantined = len(res.BadRows)

	customers := p.lookupCustomers(ctx, docs)

	var alerts []domain.Alert
	for _, doc := range docs {
		alerts = append(alerts, p.profiles.Evaluate(doc, customers[doc.CustomerID])...)
	}
	p.persistAlerts(ctx, batch.FileName, alerts)
	res.Alerts = alerts
	res.Summary.Alerts = len(alerts)

	p.upsertParallel(ctx, len(docs), func(i int) error {
		return p.repo.UpsertAccountProfile(ctx, docs[i])
	}, func(i int) string { return docs[i].AccountNumber })

	return res, nil
}

func (p *Processor) processCustomers(ctx context.Context, batch Batch) (*Result, error) {
	res := &Result{Header: batch.Header}
	res.Summary.RowsParsed = len(batch.Rows)

	var docs []*domain.CustomerDocument
	for i, row := range batch.Rows {
		if errs := p.validator.CustomerRow(row); len(errs) > 0 {
			res.BadRows = append(res.BadRows, row)
			slog.Warn("customer row invalid",
				"file", batch.FileName,
				"row", i+1,
				"errors", errs,
			)
			continue
		}
		docs = append(docs, BuildCustomerDocument(row, p.parser))
	}
	res.Summary.Valid = len(docs)
	res.Summary.Invalid = len(res.BadRows)
	res.Summary.Quarantined = len(res.BadRows)

	p.upsertParallel(ctx, len(docs), func(i int) error {
		return p.repo.UpsertCustomerProfile(ctx, docs[i])
	}, func(i int) string { return docs[i].CustomerID })

	return res, nil
}

// lookupCustomers fetches customer documents for the distinct CustomerIDs in
// a batch of account documents, going through the cache first. Lookup
// failures only degrade enrichment; they never fail the batch.
func (p *Processor) lookupCustomers(ctx context.Context, docs []*domain.AccountDocument) map[string]*domain.CustomerDocument {
	seen := make(map[string]struct{}, len(docs))
	var ids []string
	for _, d := range docs {
		if d.CustomerID == "" {
			continue
		}
		if _, ok := seen[d.CustomerID]; ok {
			continue
		}
		seen[d.CustomerID] = struct{}{}
		ids = append(ids, d.CustomerID)
	}
	sort.Strings(ids)

	out := make(map[string]*domain.CustomerDocument, len(ids))
	for _, id := range ids {
		if doc := p.cachedCustomer(ctx, id); doc != nil {
			out[id] = doc
			continue
		}

		doc, err := p.repo.GetCustomerProfile(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			slog.Warn("failed to query customer profile", "customer_id", id, "error", err)
			continue
		}
		out[id] = doc
		p.cacheCustomer(ctx, doc)
	}
	return out
}

func (p *Processor) cachedCustomer(ctx context.Context, id string) *domain.CustomerDocument {
	if p.cache == nil {
		return nil
	}
	raw, err := p.cache.Get(ctx, "customer:"+id)
	if err != nil || raw == nil {
		return nil
	}
	var doc domain.CustomerDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return &doc
}

func (p *Processor) cacheCustomer(ctx context.Context, doc *domain.CustomerDocument) {
	if p.cache == nil {
		return
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return
	}
	_ = p.cache.Set(ctx, "customer:"+doc.CustomerID, raw, customerCacheTTL)
}

func (p *Processor) persistAlerts(ctx context.Context, fileName string, alerts []domain.Alert) {
	for i := range alerts {
		if err := p.repo.UpsertAlert(ctx, &alerts[i]); err != nil {
			slog.Error("failed to persist alert",
				"file", fileName,
				"alert_id", alerts[i].ID,
				"error", err,
			)
		}
	}
}

// upsertParallel runs n upserts through a bounded worker pool. Failures are
// logged per row; persistence retry policy belongs to the repository layer.
func (p *Processor) upsertParallel(ctx context.Context, n int, fn func(i int) error, key func(i int) string) {
	if n == 0 {
		return
	}

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			if err := fn(idx); err != nil {
				slog.Error("failed to upsert record",
					"key", key(idx),
					"error", err,
				)
			}
		}(i)
	}

	wg.Wait()
}
