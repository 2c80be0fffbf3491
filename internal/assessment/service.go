// Package assessment scores questionnaires and assembles reports around the
// risk engine.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lungbuddy/lungbuddy/internal/advice"
	"github.com/lungbuddy/lungbuddy/internal/projection"
	"github.com/lungbuddy/lungbuddy/internal/risk"
)

const tracerName = "github.com/lungbuddy/lungbuddy/internal/assessment"

// Batch errors.
var (
	ErrEmptyBatch    = errors.New("batch is empty")
	ErrBatchTooLarge = errors.New("batch too large")
)

// DefaultBatchLimit is used when no flag source is configured.
const DefaultBatchLimit = 100

// Advisor produces recommendations for a scored questionnaire.
type Advisor interface {
	Recommend(ctx context.Context, q risk.Questionnaire, result risk.Result) advice.Advice
}

// FlagSource provides runtime limits.
type FlagSource interface {
	BatchLimit(ctx context.Context) int
}

// Assessment is a scored questionnaire.
type Assessment struct {
	Questionnaire risk.Questionnaire `json:"questionnaire"`
	Result        risk.Result        `json:"result"`
}

// ReportOptions selects what-if interventions for the projection.
type ReportOptions struct {
	Interventions projection.Interventions
}

// Report is an assessment with its projection and recommendations.
type Report struct {
	Assessment
	Projection projection.Projection `json:"projection"`
	Advice     advice.Advice         `json:"advice"`
}

// ServiceConfig holds configuration for the assessment service.
type ServiceConfig struct {
	Metrics *Metrics
	Advisor Advisor
	Flags   FlagSource
	Logger  zerolog.Logger

	// Workers bounds batch concurrency (default: GOMAXPROCS).
	Workers int
}

// Service scores questionnaires.
type Service struct {
	metrics *Metrics
	advisor Advisor
	flags   FlagSource
	logger  zerolog.Logger
	workers int
	tracer  trace.Tracer
}

// NewService creates a new assessment service.
func NewService(cfg ServiceConfig) *Service {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Service{
		metrics: cfg.Metrics,
		advisor: cfg.Advisor,
		flags:   cfg.Flags,
		logger:  cfg.Logger,
		workers: workers,
		tracer:  otel.Tracer(tracerName),
	}
}

// Compute scores one questionnaire. It never fails.
func (s *Service) Compute(ctx context.Context, raw risk.RawAnswers) Assessment {
	_, span := s.tracer.Start(ctx, "assessment.Compute")
	defer span.End()

	a := s.compute(raw)
	s.metrics.ObserveResult("single", a.Result)

	span.SetAttributes(
		attribute.Int("assessment.score", a.Result.Score),
		attribute.String("assessment.label", string(a.Result.Label)),
	)
	return a
}

// BatchLimit returns the maximum batch size.
func (s *Service) BatchLimit(ctx context.Context) int {
	if s.flags == nil {
		return DefaultBatchLimit
	}
	return s.flags.BatchLimit(ctx)
}

// ComputeBatch scores independent questionnaires concurrently. The output
// order matches the input order.
func (s *Service) ComputeBatch(ctx context.Context, raws []risk.RawAnswers) ([]Assessment, error) {
	if len(raws) == 0 {
		return nil, ErrEmptyBatch
	}
	if limit := s.BatchLimit(ctx); len(raws) > limit {
		return nil, fmt.Errorf("%w: %d items, limit %d", ErrBatchTooLarge, len(raws), limit)
	}

	ctx, span := s.tracer.Start(ctx, "assessment.ComputeBatch",
		trace.WithAttributes(attribute.Int("assessment.batch_size", len(raws))))
	defer span.End()

	start := time.Now()
	results := make([]Assessment, len(raws))

	workers := s.workers
	if workers > len(raws) {
		workers = len(raws)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				results[idx] = s.compute(raws[idx])
			}
		}()
	}

	var err error
feed:
	for i := range raws {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()

	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	for _, a := range results {
		s.metrics.ObserveResult("batch", a.Result)
	}
	s.metrics.ObserveBatch(time.Since(start))

	s.logger.Debug().
		Int("batch_size", len(raws)).
		Int("workers", workers).
		Dur("duration", time.Since(start)).
		Msg("batch scored")

	return results, nil
}

// Report scores a questionnaire and adds the capacity projection and
// recommendations.
func (s *Service) Report(ctx context.Context, raw risk.RawAnswers, opts ReportOptions) Report {
	ctx, span := s.tracer.Start(ctx, "assessment.Report")
	defer span.End()

	a := s.Compute(ctx, raw)
	report := Report{
		Assessment: a,
		Projection: projection.Project(projection.InputFrom(a.Questionnaire, a.Result.Score), opts.Interventions),
	}

	if s.advisor != nil {
		report.Advice = s.advisor.Recommend(ctx, a.Questionnaire, a.Result)
	} else {
		report.Advice = advice.Advice{
			Recommendations: advice.Rules(a.Questionnaire, a.Result),
			Source:          advice.SourceRules,
		}
	}

	span.SetAttributes(attribute.String("advice.source", string(report.Advice.Source)))
	return report
}

func (s *Service) compute(raw risk.RawAnswers) Assessment {
	q := risk.Normalize(raw)
	return Assessment{Questionnaire: q, Result: risk.Score(q)}
}
