package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	userAgent      = "Mozilla/5.0"
)

// ErrNoData is returned when no candidate symbol yields usable data.
var ErrNoData = errors.New("no market data available")

// Client fetches candles from the Yahoo Finance chart API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a chart API client. An empty baseURL selects the public
// Yahoo endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type chartMeta struct {
	Symbol             string   `json:"symbol"`
	Currency           string   `json:"currency"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta       chartMeta `json:"meta"`
			Timestamp  []int64   `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchChart retrieves candles for symbol over the given chart range and
// interval. Rows without a close are dropped; an empty-but-valid payload
// returns no candles and no error.
func (c *Client) FetchChart(ctx context.Context, symbol, chartRange, interval string) ([]Candle, error) {
	candles, _, err := c.fetch(ctx, symbol, chartRange, interval)
	return candles, err
}

func (c *Client) fetch(ctx context.Context, symbol, chartRange, interval string) ([]Candle, *chartMeta, error) {
	endpoint := fmt.Sprintf(
		"%s/%s?range=%s&interval=%s&includePrePost=false&events=div%%2Csplits",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(chartRange), url.QueryEscape(interval),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("error building chart request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("error fetching chart: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading chart response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("chart API returned status %d for %s", resp.StatusCode, symbol)
	}

	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, fmt.Errorf("error parsing chart response: %w", err)
	}
	if payload.Chart.Error != nil {
		return nil, nil, fmt.Errorf("chart API error for %s: %s", symbol, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, nil, nil
	}

	r0 := payload.Chart.Result[0]
	if len(r0.Timestamp) == 0 || len(r0.Indicators.Quote) == 0 {
		return nil, &r0.Meta, nil
	}

	q := r0.Indicators.Quote[0]
	candles := make([]Candle, 0, len(r0.Timestamp))
	for i, ts := range r0.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		candles = append(candles, Candle{
			Date:   time.Unix(ts, 0).UTC(),
			Open:   deref(q.Open, i),
			High:   deref(q.High, i),
			Low:    deref(q.Low, i),
			Close:  *q.Close[i],
			Volume: deref(q.Volume, i),
		})
	}
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Date.Before(candles[j].Date)
	})
	return candles, &r0.Meta, nil
}

// FetchHistory returns candles for the timeframe over chartRange. Weekly
// and monthly requests that come back empty are rebuilt from daily data,
// which Yahoo serves more reliably than the native long intervals.
func (c *Client) FetchHistory(ctx context.Context, symbol string, tf Timeframe, chartRange string) ([]Candle, error) {
	candles, err := c.FetchChart(ctx, symbol, chartRange, tf.Interval())
	if err != nil {
		return nil, err
	}
	if len(candles) > 0 || (tf != TimeframeWeekly && tf != TimeframeMonthly) {
		return candles, nil
	}

	daily, err := c.FetchChart(ctx, symbol, chartRange, "1d")
	if err != nil {
		return nil, err
	}
	if len(daily) == 0 {
		return nil, nil
	}
	if tf == TimeframeWeekly {
		return ResampleWeekly(daily), nil
	}
	return ResampleMonthly(daily), nil
}

// Quote returns the latest traded price for symbol. It prefers the chart
// meta price, then the last intraday close, then the last daily close.
func (c *Client) Quote(ctx context.Context, symbol string) (float64, error) {
	candles, meta, err := c.fetch(ctx, symbol, "1d", "1m")
	if err == nil {
		if meta != nil && meta.RegularMarketPrice != nil && isFinite(*meta.RegularMarketPrice) {
			return *meta.RegularMarketPrice, nil
		}
		if n := len(candles); n > 0 {
			return candles[n-1].Close, nil
		}
	}

	daily, _, err := c.fetch(ctx, symbol, "2d", "1d")
	if err != nil {
		return 0, err
	}
	if n := len(daily); n > 0 {
		return daily[n-1].Close, nil
	}
	return 0, ErrNoData
}

func deref(series []*float64, i int) float64 {
	if i < len(series) && series[i] != nil {
		return *series[i]
	}
	return math.NaN()
}
