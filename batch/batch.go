// Package batch converts many messages or mappings concurrently on a bounded
// goroutine pool.
//
// Results are returned in input order. The first failing record cancels the
// remaining work and its error is returned, annotated with the record index.
//
// Every Encode and Decode call runs in a span named protodict.batch.encode or
// protodict.batch.decode and is counted in the protodict.batch.records and
// protodict.batch.duration instruments.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/zero-day-ai/protodict"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/proto"
)

// DefaultConcurrency is used when Options.Concurrency is not positive.
const DefaultConcurrency = 4

const instrumentationName = "github.com/zero-day-ai/protodict/batch"

// Options configures a Converter.
type Options struct {
	// Concurrency is the number of records converted in parallel.
	// Default: 4
	Concurrency int

	// Logger receives pool diagnostics. If nil, slog.Default() is used.
	Logger *slog.Logger

	// EncodeOptions are passed to every protodict.Encode call.
	EncodeOptions []protodict.EncodeOption

	// DecodeOptions are passed to every protodict.Decode call.
	DecodeOptions []protodict.DecodeOption

	// TracerProvider creates the batch spans. If nil, the global provider is used.
	TracerProvider trace.TracerProvider

	// MeterProvider creates the batch instruments. If nil, the global
	// provider is used.
	MeterProvider metric.MeterProvider
}

// Converter runs protodict conversions on an ants worker pool.
// It is safe for concurrent use. Call Close to release the pool.
type Converter struct {
	pool   *ants.Pool
	opts   Options
	logger *slog.Logger

	tracer   trace.Tracer
	records  metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a Converter with its own worker pool.
func New(opts Options) (*Converter, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = otel.GetMeterProvider()
	}

	meter := opts.MeterProvider.Meter(instrumentationName)
	records, err := meter.Int64Counter(
		"protodict.batch.records",
		metric.WithDescription("Number of records submitted for batch conversion"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create records counter: %w", err)
	}
	duration, err := meter.Float64Histogram(
		"protodict.batch.duration",
		metric.WithDescription("Batch conversion duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	logger := opts.Logger.With("component", "batch")
	pool, err := ants.NewPool(opts.Concurrency, ants.WithLogger(poolLogger{logger}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Converter{
		pool:     pool,
		opts:     opts,
		logger:   logger,
		tracer:   opts.TracerProvider.Tracer(instrumentationName),
		records:  records,
		duration: duration,
	}, nil
}

// Close releases the worker pool. In-flight tasks finish first.
func (c *Converter) Close() {
	c.pool.Release()
}

// Concurrency returns the pool size.
func (c *Converter) Concurrency() int {
	return c.pool.Cap()
}

// Encode encodes msgs concurrently.
func (c *Converter) Encode(ctx context.Context, msgs []proto.Message) ([]map[string]any, error) {
	results := make([]map[string]any, len(msgs))
	err := c.observe(ctx, "encode", len(msgs), func(i int) error {
		m, err := protodict.Encode(msgs[i], c.opts.EncodeOptions...)
		if err != nil {
			return err
		}
		results[i] = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Decode decodes each mapping into a message created by newMessage.
func (c *Converter) Decode(ctx context.Context, ms []map[string]any, newMessage func() proto.Message) ([]proto.Message, error) {
	results := make([]proto.Message, len(ms))
	err := c.observe(ctx, "decode", len(ms), func(i int) error {
		msg, err := protodict.Decode(ms[i], newMessage(), c.opts.DecodeOptions...)
		if err != nil {
			return err
		}
		results[i] = msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// observe wraps run in a span and records the batch size and duration.
func (c *Converter) observe(ctx context.Context, op string, n int, fn func(i int) error) error {
	ctx, span := c.tracer.Start(ctx, "protodict.batch."+op, trace.WithAttributes(
		attribute.Int("batch.records", n),
		attribute.Int("batch.concurrency", c.pool.Cap()),
	))
	defer span.End()

	start := time.Now()
	err := c.run(ctx, n, fn)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	attrs := metric.WithAttributes(
		attribute.String("batch.operation", op),
		attribute.String("batch.status", status),
	)
	c.records.Add(ctx, int64(n), attrs)
	c.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)

	return err
}

// run calls fn for every index in [0, n) on the pool and waits for all
// submitted tasks.
func (c *Converter) run(ctx context.Context, n int, fn func(i int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fail(fmt.Errorf("record %d: panic: %v", i, r))
				}
			}()

			if ctx.Err() != nil {
				return
			}
			if err := fn(i); err != nil {
				fail(fmt.Errorf("record %d: %w", i, err))
			}
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("failed to submit record %d: %w", i, err))
			break
		}
	}

	wg.Wait()

	if firstErr != nil {
		c.logger.Debug("batch aborted", "records", n, "error", firstErr)
		return firstErr
	}
	return ctx.Err()
}

// poolLogger adapts slog to the ants logger interface.
type poolLogger struct {
	logger *slog.Logger
}

func (l poolLogger) Printf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}
