// Package montecarlo runs stochastic retirement simulations: N independent
// trials draw annual investment returns from a pluggable distribution and
// replay a withdrawal plan against them. Trials are embarrassingly parallel
// and are fanned out across workers; every trial derives its own generator
// from the base seed, so results are identical for a fixed seed regardless of
// worker count or execution order.
package montecarlo

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"retirement-engine/internal/money"
	"retirement-engine/internal/validate"
)

// ReturnModel draws one annual investment return (e.g. 0.05 for +5%).
type ReturnModel interface {
	Draw(r *rand.Rand) float64
}

// NormalReturns is a normally distributed return model with configurable mean
// and standard deviation.
type NormalReturns struct {
	Mean   float64
	StdDev float64
}

// Draw samples one return.
func (n NormalReturns) Draw(r *rand.Rand) float64 {
	return n.Mean + n.StdDev*r.NormFloat64()
}

// FixedReturns always yields the same return. Useful for calibration and tests.
type FixedReturns struct {
	Return float64
}

// Draw returns the fixed value.
func (f FixedReturns) Draw(r *rand.Rand) float64 {
	return f.Return
}

// Safe-withdrawal search outcomes.
const (
	SWRConverged     = "CONVERGED"
	SWRNotDetermined = "NOT_DETERMINED"
)

// Config parameterizes one simulation run.
type Config struct {
	InitialPot       money.Money
	AnnualWithdrawal money.Money
	StartAge         int
	HorizonYears     int

	// Trials defaults to 10,000.
	Trials int
	// Workers defaults to GOMAXPROCS.
	Workers int
	// Seed makes the run reproducible. Nil draws a fresh seed per invocation.
	Seed *int64

	Model ReturnModel

	// TargetSuccess is the success probability the safe-withdrawal-rate search
	// aims for. Defaults to 0.90.
	TargetSuccess float64
}

// Result is the statistical outcome of a simulation run.
type Result struct {
	Trials             int     `json:"trials"`
	Seed               int64   `json:"seed"`
	SuccessProbability float64 `json:"success_probability"`

	// Percentiles maps percentile rank (10, 25, 50, 75, 90) to the ending pot
	// value among successful trials. Empty when no trial succeeded.
	Percentiles map[int]money.Money `json:"percentiles,omitempty"`

	// WorstCaseDepletionAge is the earliest age any failing trial ran out of
	// money, or nil if every trial survived the horizon.
	WorstCaseDepletionAge *int `json:"worst_case_depletion_age"`

	// SafeWithdrawalRate is the withdrawal rate whose success probability meets
	// TargetSuccess, found by bisection. Nil when the search could not bracket
	// a root (SafeWithdrawalStatus reports NOT_DETERMINED).
	SafeWithdrawalRate   *decimal.Decimal `json:"safe_withdrawal_rate,omitempty"`
	SafeWithdrawalStatus string           `json:"safe_withdrawal_status"`
}

const (
	defaultTrials        = 10000
	defaultTargetSuccess = 0.90

	maxTrials  = 1_000_000
	maxHorizon = 80

	swrLow        = 0.001
	swrHigh       = 0.20
	swrTolerance  = 0.0001
	swrMaxBisects = 40
)

var ranks = []int{10, 25, 50, 75, 90}

// Simulate runs the configured number of trials and aggregates the outcomes.
// A cancelled context aborts the batch and discards partial results.
func Simulate(ctx context.Context, cfg Config) (Result, error) {
	cfg, err := normalize(cfg)
	if err != nil {
		return Result{}, err
	}

	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}

	withdrawal := cfg.AnnualWithdrawal.Float64()
	initial := cfg.InitialPot.Float64()

	outcomes, err := runTrials(ctx, cfg, initial, withdrawal, seed)
	if err != nil {
		return Result{}, err
	}

	res := aggregate(cfg, outcomes, seed)

	// Safe withdrawal rate: bisect the withdrawal rate to the target success
	// probability, all other assumptions held fixed.
	rate, status, err := searchSafeRate(ctx, cfg, initial, seed)
	if err != nil {
		return Result{}, err
	}
	res.SafeWithdrawalStatus = status
	if status == SWRConverged {
		d := decimal.NewFromFloat(rate).Round(4)
		res.SafeWithdrawalRate = &d
	}

	return res, nil
}

func normalize(cfg Config) (Config, error) {
	if err := validate.PositiveAmount("initial pot", cfg.InitialPot); err != nil {
		return Config{}, err
	}
	if err := validate.CurrencyIs("annual withdrawal", cfg.AnnualWithdrawal, cfg.InitialPot.Currency()); err != nil {
		return Config{}, err
	}
	if err := validate.NonNegativeAmount("annual withdrawal", cfg.AnnualWithdrawal); err != nil {
		return Config{}, err
	}
	if err := validate.IntBetween("horizon years", cfg.HorizonYears, 1, maxHorizon); err != nil {
		return Config{}, err
	}
	if err := validate.IntBetween("start age", cfg.StartAge, 16, 100); err != nil {
		return Config{}, err
	}
	if cfg.Model == nil {
		return Config{}, fmt.Errorf("%w: return model must be supplied", validate.ErrInvalidParameter)
	}

	if cfg.Trials == 0 {
		cfg.Trials = defaultTrials
	}
	if err := validate.IntBetween("trials", cfg.Trials, 1, maxTrials); err != nil {
		return Config{}, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.TargetSuccess == 0 {
		cfg.TargetSuccess = defaultTargetSuccess
	}
	if cfg.TargetSuccess <= 0 || cfg.TargetSuccess >= 1 {
		return Config{}, fmt.Errorf("%w: target success must be within (0, 1), got %v",
			validate.ErrInvalidParameter, cfg.TargetSuccess)
	}
	return cfg, nil
}

// trialOutcome is one trial's result. depletionYear is -1 on success.
type trialOutcome struct {
	endValue      float64
	depletionYear int
}

// runTrials executes all trials across the worker pool. Each worker fills a
// disjoint range of the outcome slice, so no locking is needed and the merged
// result is independent of scheduling.
func runTrials(ctx context.Context, cfg Config, initial, withdrawal float64, seed int64) ([]trialOutcome, error) {
	outcomes := make([]trialOutcome, cfg.Trials)

	workers := cfg.Workers
	if workers > cfg.Trials {
		workers = cfg.Trials
	}
	chunk := (cfg.Trials + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > cfg.Trials {
			end = cfg.Trials
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for t := start; t < end; t++ {
				if ctx.Err() != nil {
					return
				}
				rng := rand.New(rand.NewSource(seed + int64(t)))
				outcomes[t] = runTrial(rng, cfg.Model, initial, withdrawal, cfg.HorizonYears)
			}
		}(start, end)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		// Partial results are not meaningful; discard them.
		return nil, err
	}
	return outcomes, nil
}

// runTrial replays one withdrawal path: withdraw, then apply the drawn return.
func runTrial(rng *rand.Rand, model ReturnModel, pot, withdrawal float64, horizon int) trialOutcome {
	for year := 0; year < horizon; year++ {
		pot -= withdrawal
		if pot <= 0 {
			return trialOutcome{depletionYear: year}
		}
		pot *= 1 + model.Draw(rng)
		if pot <= 0 {
			return trialOutcome{depletionYear: year}
		}
	}
	return trialOutcome{endValue: pot, depletionYear: -1}
}

func aggregate(cfg Config, outcomes []trialOutcome, seed int64) Result {
	var endings []float64
	worstYear := -1
	for _, o := range outcomes {
		if o.depletionYear < 0 {
			endings = append(endings, o.endValue)
			continue
		}
		if worstYear < 0 || o.depletionYear < worstYear {
			worstYear = o.depletionYear
		}
	}

	res := Result{
		Trials:             cfg.Trials,
		Seed:               seed,
		SuccessProbability: float64(len(endings)) / float64(cfg.Trials),
	}

	if worstYear >= 0 {
		age := cfg.StartAge + worstYear
		res.WorstCaseDepletionAge = &age
	}

	if len(endings) > 0 {
		sort.Float64s(endings)
		res.Percentiles = make(map[int]money.Money, len(ranks))
		for _, p := range ranks {
			res.Percentiles[p] = money.New(
				decimal.NewFromFloat(percentile(endings, p)).Round(2),
				cfg.InitialPot.Currency(),
			)
		}
	}

	return res
}

// percentile returns the nearest-rank percentile of sorted values.
func percentile(sorted []float64, p int) float64 {
	idx := int(math.Ceil(float64(p)/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// searchSafeRate bisects the withdrawal rate whose success probability first
// meets the target. Returns NOT_DETERMINED when the probability never crosses
// the target inside the search bracket (pathological return models).
func searchSafeRate(ctx context.Context, cfg Config, initial float64, seed int64) (float64, string, error) {
	probAt := func(rate float64) (float64, error) {
		outcomes, err := runTrials(ctx, cfg, initial, initial*rate, seed)
		if err != nil {
			return 0, err
		}
		successes := 0
		for _, o := range outcomes {
			if o.depletionYear < 0 {
				successes++
			}
		}
		return float64(successes) / float64(cfg.Trials), nil
	}

	pLow, err := probAt(swrLow)
	if err != nil {
		return 0, "", err
	}
	pHigh, err := probAt(swrHigh)
	if err != nil {
		return 0, "", err
	}

	// Success probability is non-increasing in the withdrawal rate, so the
	// target is bracketed only when pHigh < target <= pLow.
	if pLow < cfg.TargetSuccess || pHigh >= cfg.TargetSuccess {
		return 0, SWRNotDetermined, nil
	}

	lo, hi := swrLow, swrHigh
	for i := 0; i < swrMaxBisects && hi-lo > swrTolerance; i++ {
		mid := (lo + hi) / 2
		p, err := probAt(mid)
		if err != nil {
			return 0, "", err
		}
		if p >= cfg.TargetSuccess {
			lo = mid
		} else {
			hi = mid
		}
	}

	return lo, SWRConverged, nil
}
