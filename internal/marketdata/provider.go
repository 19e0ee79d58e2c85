package marketdata

import (
	"context"

	"github.com/rs/zerolog"
)

// seasonalityRanges is the fallback chain for daily seasonality data. Long
// ranges fail for young listings, so progressively shorter ones are tried.
var seasonalityRanges = []string{"20y", "10y", "5y", "2y", "1y"}

// Provider resolves raw user symbols against the chart API, walking the
// candidate list until one form yields data. Every method reports back the
// candidate that actually resolved.
type Provider struct {
	client *Client
	logger zerolog.Logger
}

func NewProvider(client *Client, logger zerolog.Logger) *Provider {
	return &Provider{
		client: client,
		logger: logger.With().Str("component", "marketdata").Logger(),
	}
}

// History fetches timeframe candles over the timeframe's standard chart
// range for the first candidate that resolves.
func (p *Provider) History(ctx context.Context, raw string, tf Timeframe) (string, []Candle, error) {
	return p.historyRange(ctx, raw, tf, tf.HistoryRange())
}

// TechnicalsHistory fetches candles over the longer range the indicator
// table is computed on.
func (p *Provider) TechnicalsHistory(ctx context.Context, raw string, tf Timeframe) (string, []Candle, error) {
	return p.historyRange(ctx, raw, tf, tf.TechnicalsRange())
}

func (p *Provider) historyRange(ctx context.Context, raw string, tf Timeframe, chartRange string) (string, []Candle, error) {
	for _, cand := range SymbolCandidates(raw) {
		candles, err := p.client.FetchHistory(ctx, cand, tf, chartRange)
		if err != nil {
			p.logger.Debug().Err(err).Str("symbol", cand).Str("range", chartRange).Msg("history fetch failed")
			continue
		}
		if len(candles) == 0 {
			continue
		}
		return cand, candles, nil
	}
	return "", nil, ErrNoData
}

// SeasonalityDaily fetches the daily series the seasonal table is built
// from. For each candidate the range chain is walked until data appears;
// the first non-empty result wins even if it is short.
func (p *Provider) SeasonalityDaily(ctx context.Context, raw string) (string, []Candle, error) {
	for _, cand := range SymbolCandidates(raw) {
		for _, chartRange := range seasonalityRanges {
			candles, err := p.client.FetchChart(ctx, cand, chartRange, "1d")
			if err != nil {
				p.logger.Debug().Err(err).Str("symbol", cand).Str("range", chartRange).Msg("seasonality fetch failed")
				continue
			}
			if len(candles) == 0 {
				continue
			}
			return cand, candles, nil
		}
	}
	return "", nil, ErrNoData
}

// Quote returns the latest traded price for the first candidate that
// resolves.
func (p *Provider) Quote(ctx context.Context, raw string) (string, float64, error) {
	for _, cand := range SymbolCandidates(raw) {
		price, err := p.client.Quote(ctx, cand)
		if err != nil {
			p.logger.Debug().Err(err).Str("symbol", cand).Msg("quote fetch failed")
			continue
		}
		return cand, price, nil
	}
	return "", 0, ErrNoData
}
