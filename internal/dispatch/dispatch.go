// Package dispatch categorizes a scanned batch of files. Valid cache entries
// are reused, misses go to the categorization service with bounded
// concurrency, and every failure degrades to the offline rules so a batch
// always yields one usable result per file.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"declutter/internal/categorize"
	"declutter/internal/logging"
	"declutter/internal/metrics"
	"declutter/internal/scanner"
	"declutter/internal/services"
	"declutter/internal/services/llm"
)

// DefaultMaxConcurrent is used when Options.MaxConcurrent is not positive.
const DefaultMaxConcurrent = 5

// Categorizer is the subset of the service client the dispatcher needs.
type Categorizer interface {
	Categorize(ctx context.Context, req llm.Request) (categorize.Result, error)
}

// Cache is the subset of the response cache the dispatcher needs.
type Cache interface {
	Lookup(id scanner.FileIdentity) (categorize.Categorization, bool)
	Store(id scanner.FileIdentity, c categorize.Categorization)
}

// Options configures a Dispatcher.
type Options struct {
	MaxConcurrent  int
	Categories     []string
	Offline        bool
	DeepInspection bool
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	// Progress is called after every finished file with the running count.
	// Calls are serialized.
	Progress func(done, total int)
}

// Dispatcher is safe to reuse across runs but Run calls must not overlap.
type Dispatcher struct {
	client Categorizer
	cache  Cache
	opts   Options
	logger *slog.Logger
}

// New builds a dispatcher. client may be nil in offline mode; cache may be
// nil to disable caching.
func New(client Categorizer, cache Cache, opts Options) *Dispatcher {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if client == nil {
		opts.Offline = true
	}
	return &Dispatcher{
		client: client,
		cache:  cache,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "dispatch"),
	}
}

// Run categorizes files and returns results aligned with the input order.
// The only error is context cancellation; per-file failures are folded into
// degraded results.
func (d *Dispatcher) Run(ctx context.Context, files []scanner.FileIdentity) ([]categorize.Result, error) {
	results := make([]categorize.Result, len(files))
	total := len(files)

	var (
		progressMu sync.Mutex
		done       int
	)
	finish := func(i int, result categorize.Result) {
		results[i] = result.WithPath(files[i].Path)
		d.opts.Metrics.RecordCategorization(string(result.Source), result.Kind != categorize.KindSuccess)
		progressMu.Lock()
		done++
		if d.opts.Progress != nil {
			d.opts.Progress(done, total)
		}
		progressMu.Unlock()
	}

	pending := make([]int, 0, len(files))
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.cache != nil {
			// Entries for categories no longer configured count as misses.
			if cached, ok := d.cache.Lookup(file); ok {
				if category, allowed := categorize.Match(cached.Category, d.opts.Categories); allowed {
					cached.Category = category
					finish(i, categorize.Success(cached, categorize.SourceCache))
					continue
				}
			}
		}
		if d.opts.Offline {
			finish(i, categorize.Offline(file.Name(), d.opts.Categories))
			continue
		}
		pending = append(pending, i)
	}

	if len(pending) == 0 {
		return results, nil
	}

	d.logger.Debug("dispatching categorization requests",
		logging.Int("pending", len(pending)),
		logging.Int("cached", total-len(pending)),
		logging.Int("max_concurrent", d.opts.MaxConcurrent),
	)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(d.opts.MaxConcurrent)
	for _, i := range pending {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := d.categorizeOne(gctx, files[i])
			if err := gctx.Err(); err != nil {
				return err
			}
			finish(i, result)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (d *Dispatcher) categorizeOne(ctx context.Context, file scanner.FileIdentity) categorize.Result {
	req := llm.Request{Name: file.Name(), Categories: d.opts.Categories}
	if d.opts.DeepInspection && categorize.IsTextFile(file.Path) {
		sample, err := categorize.ReadSample(file.Path, categorize.SampleChars)
		if err != nil {
			d.logger.Debug("deep inspection sample unavailable",
				logging.Path(file.Path),
				logging.Error(err))
		}
		req.Sample = sample
	}

	ctx = services.WithRequestID(ctx, uuid.NewString())
	d.opts.Metrics.RequestStarted()
	result, err := d.client.Categorize(ctx, req)
	d.opts.Metrics.RequestFinished()

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return categorize.Failed("canceled", err)
			}
		}
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "categorization failed; using fallback",
			"categorization_fallback",
			logging.Path(file.Path),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check llm api key, model and network connectivity"),
			logging.String(logging.FieldImpact, "file is organized by extension instead"),
		)
		return categorize.Fallback(file.Name(), d.opts.Categories, "categorization service failed", err)
	}
	if !result.Usable() {
		return categorize.Fallback(file.Name(), d.opts.Categories, "categorization service returned no category", result.Err)
	}
	if result.Kind == categorize.KindSuccess && d.cache != nil {
		d.cache.Store(file, result.Categorization)
	}
	if result.Kind == categorize.KindDegraded {
		d.logger.Info("categorization degraded",
			append([]any{logging.Path(file.Path)},
				logging.Args(logging.DecisionAttrs("categorization", string(result.Source), result.Reason)...)...)...,
		)
	}
	return result
}
