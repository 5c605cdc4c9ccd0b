package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"screensage/internal/config"
	"screensage/internal/logging"
	"screensage/internal/types"
)

// ErrAllModelsFailed is returned when every preferred model failed to
// produce a parseable solution.
var ErrAllModelsFailed = errors.New("all models failed")

// Generator turns detected problems into generated solutions, cache-first.
// Concurrent Generate calls for the same fingerprint share one in-flight
// LLM build.
type Generator struct {
	cfg    config.SolutionConfig
	client LLMClient
	cache  *SolutionCache
	group  singleflight.Group
}

// NewGenerator creates a generator around the given client and a fresh
// cache of the configured capacity.
func NewGenerator(cfg config.SolutionConfig, client LLMClient) *Generator {
	return &Generator{
		cfg:    cfg,
		client: client,
		cache:  NewSolutionCache(cfg.CacheCapacity),
	}
}

// Cache exposes the underlying solution cache (shared with persistence).
func (g *Generator) Cache() *SolutionCache {
	return g.cache
}

// Generate returns a solution for the problem, consulting the cache first.
// On a miss it walks the preferred model list; the first model returning a
// parseable response wins. A generation either returns a complete record
// or an error, never a partial solution.
func (g *Generator) Generate(ctx context.Context, problem *types.DetectedProblem) (*types.GeneratedSolution, error) {
	fingerprint := problem.Fingerprint()

	if cached, ok := g.cache.Get(fingerprint); ok {
		logging.Solver("cache hit for problem %s (fingerprint %s)", problem.ID, fingerprint)
		return cached, nil
	}

	result, err, _ := g.group.Do(fingerprint, func() (interface{}, error) {
		// Re-check under single-flight: a concurrent caller may have
		// populated the cache while this one queued.
		if cached, ok := g.cache.Get(fingerprint); ok {
			return cached, nil
		}
		solution, err := g.generate(ctx, problem)
		if err != nil {
			return nil, err
		}
		g.cache.Put(fingerprint, solution)
		return solution, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*types.GeneratedSolution), nil
}

func (g *Generator) generate(ctx context.Context, problem *types.DetectedProblem) (*types.GeneratedSolution, error) {
	start := time.Now()
	prompt := buildPrompt(problem)
	system := systemPrompt(problem)

	perModelTimeout := time.Duration(g.cfg.TimeoutMs) * time.Millisecond
	if perModelTimeout <= 0 {
		perModelTimeout = 30 * time.Second
	}

	var lastErr error
	for _, model := range g.cfg.PreferredModels {
		solution, err := g.generateWithModel(ctx, problem, prompt, system, model, perModelTimeout)
		if err != nil {
			logging.Get(logging.CategorySolver).Warn("model %s failed: %v", model, err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		solution.GenerationMs = time.Since(start).Milliseconds()
		logging.Solver("generated solution %s for problem %s with %s in %dms",
			solution.ID, problem.ID, model, solution.GenerationMs)
		return solution, nil
	}

	if lastErr == nil {
		lastErr = ErrAllModelsFailed
	}
	return nil, fmt.Errorf("%w: %w", ErrAllModelsFailed, lastErr)
}

func (g *Generator) generateWithModel(ctx context.Context, problem *types.DetectedProblem, prompt, system, model string, timeout time.Duration) (*types.GeneratedSolution, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	response, err := g.client.Complete(ctx, LLMRequest{
		Model:        model,
		Prompt:       prompt,
		SystemPrompt: system,
		MaxTokens:    g.cfg.MaxTokens,
		Temperature:  g.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}
	if response.Content == "" {
		return nil, fmt.Errorf("empty completion from %s", model)
	}

	parsed := parseResponse(response.Content)
	if parsed.Code == "" {
		return nil, fmt.Errorf("no solution code in %s response", model)
	}

	return &types.GeneratedSolution{
		ID:              uuid.NewString(),
		ProblemID:       problem.ID,
		Code:            parsed.Code,
		Language:        problem.Language,
		Explanation:     parsed.Explanation,
		TimeComplexity:  parsed.TimeComplexity,
		SpaceComplexity: parsed.SpaceComplexity,
		Confidence:      confidenceScore(parsed),
		ModelUsed:       model,
		GeneratedAt:     time.Now(),
	}, nil
}
