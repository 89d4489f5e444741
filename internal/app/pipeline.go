package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"klinefetch/internal/decoder"
	"klinefetch/internal/ports"
	"klinefetch/internal/table"
)

// TableStore persists the table produced by one pipeline run.
type TableStore interface {
	SaveTable(ctx context.Context, symbol, interval, runID string, t *table.Table) (int, error)
}

// Request selects one kline series to fetch.
type Request struct {
	Symbol   string
	Interval string
	Limit    int
}

// Result is the outcome of one successful pipeline run.
type Result struct {
	Request
	RunID  string       // Correlates log lines and stored rows of this run
	Table  *table.Table // Terminal artifact, one column per kline field
	Stored int          // Rows written to the store, 0 without a store
}

// Config holds the collaborators of a Pipeline.
type Config struct {
	Fetcher     ports.KlineFetcher
	Store       TableStore // Optional
	Logger      ports.Logger
	Concurrency int // Max parallel runs in RunAll, <= 0 means unlimited
}

// Pipeline runs fetch → decode → tabulate (→ store) for kline requests.
type Pipeline struct {
	fetcher     ports.KlineFetcher
	store       TableStore
	logger      ports.Logger
	concurrency int
	newRunID    func() string
}

// NewPipeline creates a new Pipeline instance.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Fetcher == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Pipeline")
	}
	return &Pipeline{
		fetcher:     cfg.Fetcher,
		store:       cfg.Store,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
		newRunID:    uuid.NewString,
	}, nil
}

// Run executes one request sequentially. The returned error wraps exactly one
// of ports.ErrFetchFailed, ports.ErrMalformedRow or ports.ErrTableBuildFailed,
// or a storage error when a store is configured.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	runID := p.newRunID()
	fields := map[string]interface{}{"runID": runID, "symbol": req.Symbol, "interval": req.Interval, "limit": req.Limit}

	raw, err := p.fetcher.FetchKlines(ctx, req.Symbol, req.Interval, req.Limit)
	if err != nil {
		return nil, p.fail(ctx, err, "Fetching klines failed", req, fields)
	}

	klines, err := decoder.Decode(raw)
	if err != nil {
		return nil, p.fail(ctx, err, "Decoding klines failed", req, fields)
	}

	tbl, err := table.Tabulate(klines)
	if err != nil {
		return nil, p.fail(ctx, err, "Building kline table failed", req, fields)
	}

	res := &Result{Request: req, RunID: runID, Table: tbl}
	fields["rows"] = tbl.Height()
	if len(klines) > 0 {
		fields["first"] = klines[0].OpenAt().Format("2006-01-02T15:04:05Z")
		fields["last"] = klines[len(klines)-1].OpenAt().Format("2006-01-02T15:04:05Z")
	} else {
		p.logger.Warn(ctx, "Exchange returned no klines", fields)
	}

	if p.store != nil {
		stored, err := p.store.SaveTable(ctx, req.Symbol, req.Interval, runID, tbl)
		if err != nil {
			return nil, p.fail(ctx, err, "Storing kline table failed", req, fields)
		}
		res.Stored = stored
		fields["stored"] = stored
	}

	p.logger.Info(ctx, "Kline table built", fields)
	return res, nil
}

// RunAll executes the requests concurrently. Results keep the order of reqs.
// The first failure cancels the remaining runs and is returned.
func (p *Pipeline) RunAll(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			res, err := p.Run(gctx, req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) fail(ctx context.Context, err error, msg string, req Request, fields map[string]interface{}) error {
	p.logger.Error(ctx, err, msg, fields)
	return fmt.Errorf("%s %s: %w", req.Symbol, req.Interval, err)
}

// ErrorKind names the pipeline stage an error came from.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ports.ErrFetchFailed):
		return "fetch failed"
	case errors.Is(err, ports.ErrMalformedRow):
		return "malformed row"
	case errors.Is(err, ports.ErrTableBuildFailed):
		return "table build failed"
	case errors.Is(err, ports.ErrQueryFailed), errors.Is(err, ports.ErrDBConnection):
		return "storage failed"
	default:
		return "unknown"
	}
}
