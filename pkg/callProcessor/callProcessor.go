package callProcessor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/dorothy-zbornak/0x-user-clusters/pkg/callExtractor"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/callerAggregator"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/schemaRegistry"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type CallProcessorConfig struct {
	// Since and Until bound record timestamps, inclusive. A zero Until is unbounded.
	Since time.Time
	Until time.Time

	// Workers is the number of goroutines decoding records
	Workers int
	// StrictSelectors aborts the run on the first unknown selector
	StrictSelectors bool

	// ProgressWriter receives the status line; nil disables it
	ProgressWriter   io.Writer
	ProgressInterval time.Duration
}

// Stats summarises a run.
type Stats struct {
	Lines    uint64 `json:"lines"`
	Records  uint64 `json:"records"`
	Filtered uint64 `json:"filtered"`
	Skipped  uint64 `json:"skipped"`
	Calls    uint64 `json:"calls"`
	Orders   uint64 `json:"orders"`
}

type CallProcessor struct {
	extractor  *callExtractor.CallExtractor
	aggregator *callerAggregator.CallerAggregator
	config     *CallProcessorConfig
	logger     *zap.Logger
}

func NewCallProcessor(
	extractor *callExtractor.CallExtractor,
	aggregator *callerAggregator.CallerAggregator,
	cfg *CallProcessorConfig,
	logger *zap.Logger,
) *CallProcessor {
	if cfg == nil {
		cfg = &CallProcessorConfig{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &CallProcessor{
		extractor:  extractor,
		aggregator: aggregator,
		config:     cfg,
		logger:     logger,
	}
}

// line is a non-blank input line. seq numbers lines contiguously from 1;
// number is the position in the file, for logs.
type line struct {
	seq    uint64
	number uint64
	data   []byte
}

type outcome int

const (
	outcomeObserved outcome = iota
	outcomeFiltered
	outcomeSkipped
)

type result struct {
	seq     uint64
	outcome outcome
	record  *types.CallRecord
	calls   []*types.ExtractedCall
}

// Process reads newline-delimited call records from r and folds every
// record inside the time window into the aggregator.
//
// Records are decoded by a pool of workers but observed strictly in input
// order, so callers keep their first-observed position regardless of the
// worker count. Bad records are logged and skipped; only read and store
// failures (or an unknown selector in strict mode) end the run early.
func (cp *CallProcessor) Process(ctx context.Context, r io.Reader) (*Stats, error) {
	g, ctx := errgroup.WithContext(ctx)

	lines := make(chan line, cp.config.Workers*4)
	results := make(chan *result, cp.config.Workers*4)

	g.Go(func() error {
		defer close(lines)
		return cp.readLines(ctx, r, lines)
	})

	workers, workerCtx := errgroup.WithContext(ctx)
	for i := 0; i < cp.config.Workers; i++ {
		workers.Go(func() error {
			for l := range lines {
				if err := workerCtx.Err(); err != nil {
					return err
				}
				res, err := cp.processLine(l)
				if err != nil {
					return err
				}
				select {
				case results <- res:
				case <-workerCtx.Done():
					return workerCtx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(results)
		return workers.Wait()
	})

	stats := &Stats{}
	g.Go(func() error {
		return cp.observe(ctx, results, stats)
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	cp.logger.Sugar().Infow("Processed call log",
		"lines", stats.Lines,
		"records", stats.Records,
		"filtered", stats.Filtered,
		"skipped", stats.Skipped,
		"calls", stats.Calls,
		"orders", stats.Orders,
	)
	return stats, nil
}

func (cp *CallProcessor) readLines(ctx context.Context, r io.Reader, out chan<- line) error {
	reader := bufio.NewReader(r)
	var number, seq uint64
	for {
		data, err := reader.ReadBytes('\n')
		if len(data) > 0 {
			number++
			trimmed := bytes.TrimSpace(data)
			if len(trimmed) > 0 {
				seq++
				select {
				case out <- line{seq: seq, number: number, data: trimmed}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "failed to read call log after line %d", number)
		}
	}
}

// processLine decodes a single line. The returned error is reserved for
// conditions that must stop the run.
func (cp *CallProcessor) processLine(l line) (*result, error) {
	res := &result{seq: l.seq}

	record, err := parseRecord(l.data)
	if err != nil {
		cp.logger.Sugar().Warnw("Skipping malformed record", "line", l.number, "error", err)
		res.outcome = outcomeSkipped
		return res, nil
	}
	if !cp.inWindow(record.Timestamp) {
		res.outcome = outcomeFiltered
		return res, nil
	}

	calls, err := cp.extractor.ExtractHexCalls(record.CallData, record.CallType)
	if err != nil {
		if cp.config.StrictSelectors && errors.Is(err, schemaRegistry.ErrUnknownSelector) {
			return nil, errors.Wrapf(err, "line %d", l.number)
		}
		cp.logger.Sugar().Warnw("Skipping record",
			"line", l.number,
			"caller", record.CallerAddress(),
			"error", err,
		)
		res.outcome = outcomeSkipped
		return res, nil
	}

	res.outcome = outcomeObserved
	res.record = record
	res.calls = calls
	return res, nil
}

func parseRecord(data []byte) (*types.CallRecord, error) {
	var record types.CallRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrap(ErrMalformedRecord, err.Error())
	}
	switch {
	case record.FromAddress == "":
		return nil, errors.Wrap(ErrMalformedRecord, "missing fromAddress")
	case record.ToAddress == "":
		return nil, errors.Wrap(ErrMalformedRecord, "missing toAddress")
	case record.CallData == "":
		return nil, errors.Wrap(ErrMalformedRecord, "missing callData")
	}
	return &record, nil
}

func (cp *CallProcessor) inWindow(timestamp float64) bool {
	if !cp.config.Since.IsZero() && timestamp < unixSeconds(cp.config.Since) {
		return false
	}
	if !cp.config.Until.IsZero() && timestamp > unixSeconds(cp.config.Until) {
		return false
	}
	return true
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// observe restores input order and applies results to the aggregator from
// a single goroutine.
func (cp *CallProcessor) observe(ctx context.Context, results <-chan *result, stats *Stats) error {
	progress := newProgressLine(cp.config.ProgressWriter, cp.config.ProgressInterval)
	defer progress.finish()

	pending := make(map[uint64]*result)
	var next uint64 = 1

	apply := func(res *result) error {
		stats.Lines++
		switch res.outcome {
		case outcomeFiltered:
			stats.Filtered++
			return nil
		case outcomeSkipped:
			stats.Skipped++
			return nil
		}
		if err := cp.aggregator.Observe(ctx, res.record, res.calls); err != nil {
			return err
		}
		stats.Records++
		stats.Calls += uint64(len(res.calls))
		for _, call := range res.calls {
			stats.Orders += uint64(len(call.Orders))
		}
		if progress.due() {
			callers, err := cp.aggregator.CallerCount(ctx)
			if err != nil {
				return err
			}
			progress.update(stats.Calls, stats.Orders, callers)
		}
		return nil
	}

	for res := range results {
		pending[res.seq] = res
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if err := apply(ready); err != nil {
				return err
			}
		}
	}

	if cp.config.ProgressWriter != nil {
		callers, err := cp.aggregator.CallerCount(ctx)
		if err != nil {
			return err
		}
		progress.update(stats.Calls, stats.Orders, callers)
	}
	return nil
}
