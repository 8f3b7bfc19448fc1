package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Praveen-2107/blackforge-ai/pkg/dataset"
	"github.com/Praveen-2107/blackforge-ai/pkg/detectors"
	"github.com/Praveen-2107/blackforge-ai/pkg/detectors/cluster"
	"github.com/Praveen-2107/blackforge-ai/pkg/detectors/influence"
	"github.com/Praveen-2107/blackforge-ai/pkg/detectors/spectral"
)

// Engine orchestrates the detection pipeline: it fans the requested
// detectors out in parallel over the shared read-only matrix, joins on all
// of them, then aggregates and classifies.
type Engine struct {
	detectors  map[detectors.Method]detectors.Detector
	weights    map[detectors.Method]float64
	classifier ClassifierConfig
	logger     *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDetector registers or replaces a detector.
func WithDetector(d detectors.Detector) EngineOption {
	return func(e *Engine) { e.detectors[d.Method()] = d }
}

// WithWeights sets per-method confidence weights for aggregation.
func WithWeights(w map[detectors.Method]float64) EngineOption {
	return func(e *Engine) { e.weights = w }
}

// WithClassifierConfig sets the poison-type cascade thresholds.
func WithClassifierConfig(cfg ClassifierConfig) EngineOption {
	return func(e *Engine) { e.classifier = cfg }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine with the three standard detectors, replaceable
// via options.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		detectors: map[detectors.Method]detectors.Detector{
			detectors.MethodSpectral:  spectral.New(),
			detectors.MethodCluster:   cluster.New(),
			detectors.MethodInfluence: influence.New(),
		},
		classifier: DefaultClassifierConfig(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Methods returns the registered detection methods.
func (e *Engine) Methods() []detectors.Method {
	out := make([]detectors.Method, 0, len(e.detectors))
	for m := range e.detectors {
		out = append(out, m)
	}
	return out
}

// Run analyzes the dataset with the requested methods (all registered ones
// when methods is empty) and returns the merged verdict plus the per-method
// results for audit and display.
//
// The influence detector needs labels; for unlabeled data it is skipped here
// rather than run with fabricated labels. Detection has no internal
// cancellation; callers wanting a bound on large datasets should wrap Run
// with a context timeout and treat expiry as a detector failure.
func (e *Engine) Run(ctx context.Context, samples dataset.Matrix, labels dataset.Labels, methods []detectors.Method) (Verdict, []detectors.Result, error) {
	if err := dataset.Validate(samples, labels); err != nil {
		return Verdict{}, nil, err
	}

	if len(methods) == 0 {
		methods = []detectors.Method{
			detectors.MethodSpectral,
			detectors.MethodCluster,
			detectors.MethodInfluence,
		}
	}

	var selected []detectors.Detector
	for _, m := range methods {
		det, ok := e.detectors[m]
		if !ok {
			return Verdict{}, nil, fmt.Errorf("unknown detection method %q", m)
		}
		if m == detectors.MethodInfluence && labels == nil {
			e.logger.Info("skipping influence detection on unlabeled dataset")
			continue
		}
		selected = append(selected, det)
	}

	results := make([]detectors.Result, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for i, det := range selected {
		g.Go(func() error {
			r, err := det.Detect(gctx, samples, labels)
			if err != nil {
				return fmt.Errorf("%s: %w", det.Method(), err)
			}
			results[i] = r
			return nil
		})
	}
	// All detectors must finish before aggregation; partial results are
	// never merged.
	if err := g.Wait(); err != nil {
		return Verdict{}, nil, err
	}

	verdict := Aggregate(results, e.weights)
	verdict.PoisonType = ClassifyPoisonType(samples, verdict.SuspiciousIndices, labels, e.classifier)

	e.logger.Info("detection run complete",
		zap.Int("samples", samples.Rows()),
		zap.Int("suspicious", len(verdict.SuspiciousIndices)),
		zap.Float64("threat_score", verdict.ThreatScore),
		zap.String("grade", verdict.Grade),
		zap.String("poison_type", string(verdict.PoisonType)),
	)
	return verdict, results, nil
}
