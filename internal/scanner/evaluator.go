package scanner

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"stock-insight-backend/internal/marketdata"
	"stock-insight-backend/internal/seasonality"
	"stock-insight-backend/internal/signal"
	"stock-insight-backend/internal/technicals"
	"stock-insight-backend/internal/zones"
)

// Evaluator runs the full analysis pipeline for one symbol: price history,
// supply/demand zones, indicator table, seasonal curves, market state, then
// the unified scorer. Missing auxiliary inputs degrade to a weaker signal
// instead of failing the evaluation.
type Evaluator struct {
	provider *marketdata.Provider
	scorer   *signal.Scorer
	logger   zerolog.Logger
	now      func() time.Time
}

// NewEvaluator creates a pipeline evaluator on top of the market data provider
func NewEvaluator(provider *marketdata.Provider, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		provider: provider,
		scorer:   signal.NewScorer(),
		logger:   logger.With().Str("component", "evaluator").Logger(),
		now:      time.Now,
	}
}

// Evaluate computes the signal for one symbol. The only hard failure is a
// symbol with no price history at all.
func (e *Evaluator) Evaluate(ctx context.Context, symbol string, opts EvaluateOptions) (*Evaluation, error) {
	tf := opts.Timeframe
	if !tf.Valid() {
		tf = marketdata.TimeframeDaily
	}

	resolved, candles, err := e.provider.History(ctx, symbol, tf)
	if err != nil {
		return nil, err
	}
	candles = marketdata.FilterValid(candles)
	if len(candles) == 0 {
		return nil, marketdata.ErrNoData
	}

	now := e.now().UTC()
	price := round2(candles[len(candles)-1].Close)
	zoneSet, state := zones.Analyze(candles, tf)

	var tech *signal.TechSummary
	if _, techCandles, err := e.provider.TechnicalsHistory(ctx, resolved, tf); err == nil {
		if techCandles = marketdata.FilterValid(techCandles); len(techCandles) > 0 {
			report := technicals.Compute(techCandles)
			tech = report.Summary()
		}
	} else {
		e.logger.Debug().Err(err).Str("symbol", resolved).Msg("technicals history unavailable")
	}

	var curves map[int][]float64
	var years []int
	if _, daily, err := e.provider.SeasonalityDaily(ctx, resolved); err == nil && len(daily) >= seasonality.MinDailyRows {
		monthly := marketdata.ResampleMonthly(daily)
		if res, err := seasonality.Compute(monthly, now.Year(), opts.ExcludeOutliers); err == nil {
			curves = res.MonthlySeries()
			years = res.Years
			if opts.Years > 0 && len(years) > opts.Years {
				years = years[len(years)-opts.Years:]
			}
		}
	} else if err != nil {
		e.logger.Debug().Err(err).Str("symbol", resolved).Msg("seasonality history unavailable")
	}

	sig := e.scorer.ComputePortfolio(signal.PortfolioInputs{
		Candles:         candles,
		CurrentPrice:    price,
		SeasonCurves:    curves,
		Years:           years,
		ExcludeOutliers: opts.ExcludeOutliers,
		Support:         zones.Prices(zoneSet.Support),
		Resistance:      zones.Prices(zoneSet.Resistance),
		Tech:            tech,
		UseTechFilter:   opts.UseTechFilter,
		Market: &signal.MarketState{
			State:     state.State,
			Direction: state.Direction(),
			Strength:  state.Strength,
		},
		ReferenceDate: now,
	})
	sig = signal.ApplyTimeframeLabel(sig, tf, now)

	return &Evaluation{
		Symbol:       resolved,
		Timeframe:    tf,
		CurrentPrice: price,
		MarketState:  state,
		Signal:       sig,
		EvaluatedAt:  now,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
