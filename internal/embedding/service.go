/*
Package embedding orchestrates the aggregator's single embedding model:
lazy, shared initialisation, retrying a failed load without poisoning
future attempts, L2-normalised output, and a per-server file cache so a
restart doesn't re-embed every tool on every upstream.

Model execution itself lives behind the Runtime interface — this package
owns the policy around calling it, not the inference.
*/
package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultDimension is the output width of the default model
// (Xenova/all-MiniLM-L6-v2).
const DefaultDimension = 384

// Runtime executes a single embedding model. It is the seam between this
// package's init/retry/caching policy and the actual inference backend.
type Runtime interface {
	Generate(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// RuntimeFactory constructs a Runtime for a named model on first use.
type RuntimeFactory func(ctx context.Context, modelName string) (Runtime, error)

// Service is the process-wide embedding singleton. Only one model load is
// ever in flight: concurrent first callers share it via singleflight, and a
// failed load never poisons the Service — the next caller gets a fresh
// attempt.
type Service struct {
	modelName string
	factory   RuntimeFactory
	logger    *zap.Logger

	mu      sync.Mutex
	runtime Runtime

	sf singleflight.Group
}

// New creates a Service bound to modelName. The model is not loaded until
// the first GenerateEmbedding call.
func New(modelName string, factory RuntimeFactory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{modelName: modelName, factory: factory, logger: logger}
}

// GenerateEmbedding produces an L2-normalised embedding for text, loading
// the model on first use. A load failure is returned to the caller and
// left retryable on the next call; a successful load is cached for the
// life of the process.
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	rt, err := s.ensureRuntime(ctx)
	if err != nil {
		return nil, fmt.Errorf("embedding model unavailable: %w", err)
	}

	vec, err := rt.Generate(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("generate embedding: %w", err)
	}
	return l2Normalize(vec), nil
}

// Dimension reports the loaded model's output width, or the default if the
// model has not been loaded yet.
func (s *Service) Dimension() int {
	s.mu.Lock()
	rt := s.runtime
	s.mu.Unlock()
	if rt == nil {
		return DefaultDimension
	}
	return rt.Dimension()
}

func (s *Service) ensureRuntime(ctx context.Context) (Runtime, error) {
	s.mu.Lock()
	if s.runtime != nil {
		rt := s.runtime
		s.mu.Unlock()
		return rt, nil
	}
	s.mu.Unlock()

	v, err, _ := s.sf.Do("load", func() (any, error) {
		s.mu.Lock()
		if s.runtime != nil {
			rt := s.runtime
			s.mu.Unlock()
			return rt, nil
		}
		s.mu.Unlock()

		rt, err := backoff.Retry(ctx, func() (Runtime, error) {
			return s.factory(ctx, s.modelName)
		}, backoff.WithMaxTries(3), backoff.WithBackOff(backoff.NewExponentialBackOff()))
		if err != nil {
			s.logger.Warn("embedding model load failed", zap.String("model", s.modelName), zap.Error(err))
			return nil, err
		}

		s.mu.Lock()
		s.runtime = rt
		s.mu.Unlock()
		s.logger.Info("embedding model loaded", zap.String("model", s.modelName))
		return rt, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Runtime), nil
}

func l2Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
