// Package optimization sweeps strategy parameters over a fixed data set.
package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
	"stockBacktester/internal/strategy/analytics"
	"stockBacktester/internal/strategy/backtesting"
	"stockBacktester/internal/strategy/strategies"
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// Values enumerates the range, inclusive of Max.
func (r ParameterRange) Values() []float64 {
	var out []float64
	for i := 0; ; i++ {
		value := r.Min + float64(i)*r.Step
		if value > r.Max+r.Step*1e-9 { // Slack absorbs floating point drift
			break
		}
		value = math.Min(value, r.Max)
		if r.IsInt {
			value = math.Round(value)
		}
		out = append(out, value)
	}
	return out
}

func (r ParameterRange) validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("parameter range without a name: %w", ports.ErrInvalidParameter)
	case r.Step <= 0 || math.IsNaN(r.Step):
		return fmt.Errorf("%s: step %v must be positive: %w", r.Name, r.Step, ports.ErrInvalidParameter)
	case r.Max < r.Min:
		return fmt.Errorf("%s: max %v below min %v: %w", r.Name, r.Max, r.Min, ports.ErrInvalidParameter)
	}
	return nil
}

// OptimizationResult holds the results of a parameter optimization
type OptimizationResult struct {
	Parameters strategies.Params // Swept values only
	Metrics    analytics.Metrics
	Score      float64

	index int // Position of the combination in the sweep
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	Strategy        string            // Registry name
	BaseParams      strategies.Params // Fixed overrides applied before the swept values
	ParameterRanges []ParameterRange
	Engine          backtesting.Config
	Start           time.Time
	End             time.Time
	Workers         int // Concurrent runs; <= 0 uses GOMAXPROCS
	ScoreFunction   func(analytics.Metrics) float64
}

// Optimizer implements strategy parameter optimization
type Optimizer struct {
	config   OptimizerConfig
	registry *strategies.Registry
	logger   ports.Logger
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig, registry *strategies.Registry, logger ports.Logger) *Optimizer {
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	return &Optimizer{config: config, registry: registry, logger: logger}
}

type job struct {
	index  int
	params strategies.Params
}

// Optimize runs one backtest per parameter combination and returns the
// completed runs sorted by score, best first. Combinations the strategy
// rejects and runs without trading days are left out. Every run owns its
// Engine and a logger scoped to its parameters.
func (o *Optimizer) Optimize(ctx context.Context, series []domain.Series) ([]OptimizationResult, error) {
	if _, err := o.registry.Defaults(o.config.Strategy); err != nil {
		return nil, err
	}
	for _, r := range o.config.ParameterRanges {
		if err := r.validate(); err != nil {
			return nil, err
		}
	}

	combinations := o.generateParameterCombinations()
	workers := o.config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(combinations) {
		workers = len(combinations)
	}

	o.logger.Info(ctx, "Starting parameter sweep", map[string]interface{}{
		"strategy":     o.config.Strategy,
		"combinations": len(combinations),
		"workers":      workers,
	})

	var (
		mu       sync.Mutex
		firstErr error
		failed   int
	)
	slots := make([]*OptimizationResult, len(combinations))

	g := new(errgroup.Group)
	g.SetLimit(max(workers, 1))
	for i, params := range combinations {
		if ctx.Err() != nil {
			break
		}
		j := job{index: i, params: params}
		g.Go(func() error {
			result, ok, err := o.runOne(ctx, j, series)
			if err != nil {
				// A rejected combination does not stop the sweep.
				mu.Lock()
				failed++
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return nil
			}
			if ok {
				slots[j.index] = &result
			}
			return nil
		})
	}
	_ = g.Wait() // Workers never return errors

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("optimization interrupted: %w: %w", ports.ErrContextCanceled, err)
	}

	results := make([]OptimizationResult, 0, len(combinations))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	if len(results) == 0 && firstErr != nil {
		return nil, fmt.Errorf("all %d combinations failed: %w", failed, firstErr)
	}

	sortResultsByScore(results)

	o.logger.Info(ctx, "Parameter sweep finished", map[string]interface{}{
		"strategy":  o.config.Strategy,
		"completed": len(results),
		"failed":    failed,
	})
	return results, nil
}

// runOne reports ok=false for runs that completed without producing a result.
func (o *Optimizer) runOne(ctx context.Context, j job, series []domain.Series) (OptimizationResult, bool, error) {
	runLogger := o.logger.With(map[string]interface{}{"run": j.index, "params": j.params})

	params := o.config.BaseParams.Merge(j.params)
	strategy, err := o.registry.New(o.config.Strategy, params, runLogger)
	if err != nil {
		runLogger.Warn(ctx, "Skipping rejected parameter combination", map[string]interface{}{"error": err.Error()})
		return OptimizationResult{}, false, err
	}

	engine := backtesting.NewEngine(o.config.Engine, runLogger)
	metrics, err := engine.Run(ctx, strategy, series, o.config.Start, o.config.End)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ports.ErrContextCanceled) {
			return OptimizationResult{}, false, nil
		}
		runLogger.Error(ctx, err, "Backtest failed")
		return OptimizationResult{}, false, err
	}
	if engine.State() != backtesting.StateCompleted {
		return OptimizationResult{}, false, nil
	}

	return OptimizationResult{
		Parameters: j.params,
		Metrics:    metrics,
		Score:      o.config.ScoreFunction(metrics),
		index:      j.index,
	}, true, nil
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []strategies.Params {
	var combinations []strategies.Params
	current := make(strategies.Params)

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(strategies.Params, len(current))
			for k, v := range current {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		for _, value := range param.Values() {
			if param.IsInt {
				current[param.Name] = int(value)
			} else {
				current[param.Name] = value
			}
			generate(paramIndex + 1)
		}
	}

	generate(0)
	return combinations
}

// sortResultsByScore sorts optimization results by score in descending order.
// Equal scores keep the order in which the combinations were generated.
func sortResultsByScore(results []OptimizationResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].index < results[j].index
	})
}

// maxScoredProfitFactor caps the profit factor so runs without losses stay comparable.
const maxScoredProfitFactor = 10.0

// DefaultScoreFunction provides a default scoring function for optimization
func DefaultScoreFunction(metrics analytics.Metrics) float64 {
	score := 0.0

	// Weight different metrics
	score += metrics.WinRate / 100 * 0.3
	score += math.Min(metrics.ProfitFactor, maxScoredProfitFactor) * 0.2
	score += (1 - metrics.MaxDrawdown/100) * 0.2
	score += metrics.TotalReturn / 100 * 0.2
	score += metrics.SharpeRatio * 0.1

	return score
}
