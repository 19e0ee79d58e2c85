package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

const chartFixture = `{
	"chart": {
		"result": [{
			"meta": {"symbol": "ENEL.MI", "currency": "EUR", "regularMarketPrice": 7.415},
			"timestamp": [1704153600, 1704240000, 1704326400],
			"indicators": {"quote": [{
				"open":   [7.0, 7.15, null],
				"high":   [7.1, 7.3, 7.4],
				"low":    [6.9, 7.0, 7.1],
				"close":  [7.05, null, 7.3],
				"volume": [1000, 2000, 3000]
			}]}
		}],
		"error": null
	}
}`

const intradayFixture = `{
	"chart": {
		"result": [{
			"meta": {"symbol": "ENEL.MI", "currency": "EUR"},
			"timestamp": [1704153600, 1704240000],
			"indicators": {"quote": [{
				"open":   [7.0, 7.1],
				"high":   [7.2, 7.3],
				"low":    [6.9, 7.0],
				"close":  [7.1, 7.25],
				"volume": [10, 20]
			}]}
		}],
		"error": null
	}
}`

const twoWeekDailyFixture = `{
	"chart": {
		"result": [{
			"meta": {"symbol": "ENEL.MI", "currency": "EUR"},
			"timestamp": [1704153600, 1704240000, 1704672000, 1704758400],
			"indicators": {"quote": [{
				"open":   [7.0, 7.1, 7.4, 7.5],
				"high":   [7.2, 7.5, 7.6, 7.9],
				"low":    [6.9, 7.0, 7.3, 7.4],
				"close":  [7.1, 7.4, 7.5, 7.8],
				"volume": [100, 150, 200, 250]
			}]}
		}],
		"error": null
	}
}`

const emptyFixture = `{"chart": {"result": [], "error": null}}`

const noBarsFixture = `{
	"chart": {
		"result": [{
			"meta": {"symbol": "ENEL.MI", "currency": "EUR"},
			"timestamp": [],
			"indicators": {"quote": []}
		}],
		"error": null
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestFetchChart(t *testing.T) {
	var gotPath, gotUA string
	var gotQuery url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query()
		fmt.Fprint(w, chartFixture)
	})

	candles, err := c.FetchChart(context.Background(), "ENEL.MI", "1y", "1d")
	if err != nil {
		t.Fatalf("FetchChart returned error: %v", err)
	}

	if gotPath != "/ENEL.MI" {
		t.Errorf("request path = %q, want /ENEL.MI", gotPath)
	}
	if gotUA != "Mozilla/5.0" {
		t.Errorf("User-Agent = %q, want Mozilla/5.0", gotUA)
	}
	if got := gotQuery.Get("range"); got != "1y" {
		t.Errorf("range param = %q, want 1y", got)
	}
	if got := gotQuery.Get("interval"); got != "1d" {
		t.Errorf("interval param = %q, want 1d", got)
	}
	if got := gotQuery.Get("events"); got != "div,splits" {
		t.Errorf("events param = %q, want div,splits", got)
	}

	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2 after dropping the closeless row", len(candles))
	}
	first := candles[0]
	if !first.Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first date = %v, want 2024-01-02 UTC", first.Date)
	}
	if first.Open != 7.0 || first.High != 7.1 || first.Low != 6.9 || first.Close != 7.05 || first.Volume != 1000 {
		t.Errorf("unexpected first candle: %+v", first)
	}
	second := candles[1]
	if second.Close != 7.3 {
		t.Errorf("second close = %v, want 7.3", second.Close)
	}
	if !math.IsNaN(second.Open) {
		t.Errorf("missing open should decode as NaN, got %v", second.Open)
	}
}

func TestFetchChartOrdersByDate(t *testing.T) {
	scrambled := `{"chart":{"result":[{"meta":{},"timestamp":[1704326400,1704153600],"indicators":{"quote":[{"open":[7.2,7.0],"high":[7.4,7.1],"low":[7.1,6.9],"close":[7.3,7.05],"volume":[1,1]}]}}],"error":null}}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, scrambled)
	})

	candles, err := c.FetchChart(context.Background(), "ENEL.MI", "1y", "1d")
	if err != nil {
		t.Fatalf("FetchChart returned error: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
	if candles[0].Close != 7.05 || candles[1].Close != 7.3 {
		t.Errorf("candles not ordered by date: %v then %v", candles[0].Close, candles[1].Close)
	}
}

func TestFetchChartStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := c.FetchChart(context.Background(), "ENEL.MI", "1y", "1d"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestFetchChartAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	})

	_, err := c.FetchChart(context.Background(), "GONE", "1y", "1d")
	if err == nil {
		t.Fatal("expected error for chart error payload")
	}
	if !strings.Contains(err.Error(), "No data found") {
		t.Errorf("error should carry the API description, got %v", err)
	}
}

func TestFetchChartEmptyResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, emptyFixture)
	})

	candles, err := c.FetchChart(context.Background(), "ENEL.MI", "1y", "1d")
	if err != nil {
		t.Fatalf("empty result should not error, got %v", err)
	}
	if len(candles) != 0 {
		t.Errorf("got %d candles, want 0", len(candles))
	}
}

func TestFetchHistoryWeeklyFallback(t *testing.T) {
	var intervals []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		interval := r.URL.Query().Get("interval")
		intervals = append(intervals, interval)
		if interval == "1wk" {
			fmt.Fprint(w, emptyFixture)
			return
		}
		fmt.Fprint(w, twoWeekDailyFixture)
	})

	candles, err := c.FetchHistory(context.Background(), "ENEL.MI", TimeframeWeekly, "5y")
	if err != nil {
		t.Fatalf("FetchHistory returned error: %v", err)
	}

	if len(intervals) != 2 || intervals[0] != "1wk" || intervals[1] != "1d" {
		t.Fatalf("expected 1wk then 1d requests, got %v", intervals)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d weekly bars, want 2", len(candles))
	}

	first := candles[0]
	if !first.Date.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first bar date = %v, want Friday 2024-01-05", first.Date)
	}
	if first.Open != 7.0 || first.High != 7.5 || first.Low != 6.9 || first.Close != 7.4 || first.Volume != 250 {
		t.Errorf("unexpected first weekly bar: %+v", first)
	}
	second := candles[1]
	if !second.Date.Equal(time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("second bar date = %v, want Friday 2024-01-12", second.Date)
	}
	if second.Open != 7.4 || second.High != 7.9 || second.Low != 7.3 || second.Close != 7.8 || second.Volume != 450 {
		t.Errorf("unexpected second weekly bar: %+v", second)
	}
}

func TestFetchHistoryDailyNoFallback(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, emptyFixture)
	})

	candles, err := c.FetchHistory(context.Background(), "ENEL.MI", TimeframeDaily, "1y")
	if err != nil {
		t.Fatalf("FetchHistory returned error: %v", err)
	}
	if len(candles) != 0 {
		t.Errorf("got %d candles, want 0", len(candles))
	}
	if calls != 1 {
		t.Errorf("daily request should not retry, got %d calls", calls)
	}
}

func TestQuote(t *testing.T) {
	t.Run("meta price", func(t *testing.T) {
		calls := 0
		var gotQuery url.Values
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			gotQuery = r.URL.Query()
			fmt.Fprint(w, chartFixture)
		})

		price, err := c.Quote(context.Background(), "ENEL.MI")
		if err != nil {
			t.Fatalf("Quote returned error: %v", err)
		}
		if price != 7.415 {
			t.Errorf("price = %v, want 7.415", price)
		}
		if calls != 1 {
			t.Errorf("meta price should resolve in one request, got %d", calls)
		}
		if gotQuery.Get("range") != "1d" || gotQuery.Get("interval") != "1m" {
			t.Errorf("unexpected intraday query: %v", gotQuery)
		}
	})

	t.Run("falls back to last intraday close", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, intradayFixture)
		})

		price, err := c.Quote(context.Background(), "ENEL.MI")
		if err != nil {
			t.Fatalf("Quote returned error: %v", err)
		}
		if price != 7.25 {
			t.Errorf("price = %v, want 7.25", price)
		}
	})

	t.Run("falls back to last daily close", func(t *testing.T) {
		var ranges []string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			ranges = append(ranges, r.URL.Query().Get("range"))
			if r.URL.Query().Get("interval") == "1m" {
				fmt.Fprint(w, noBarsFixture)
				return
			}
			fmt.Fprint(w, twoWeekDailyFixture)
		})

		price, err := c.Quote(context.Background(), "ENEL.MI")
		if err != nil {
			t.Fatalf("Quote returned error: %v", err)
		}
		if price != 7.8 {
			t.Errorf("price = %v, want 7.8", price)
		}
		if len(ranges) != 2 || ranges[0] != "1d" || ranges[1] != "2d" {
			t.Errorf("expected 1d then 2d requests, got %v", ranges)
		}
	})

	t.Run("intraday failure still tries daily", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("interval") == "1m" {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, twoWeekDailyFixture)
		})

		price, err := c.Quote(context.Background(), "ENEL.MI")
		if err != nil {
			t.Fatalf("Quote returned error: %v", err)
		}
		if price != 7.8 {
			t.Errorf("price = %v, want 7.8", price)
		}
	})

	t.Run("no data", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, emptyFixture)
		})

		_, err := c.Quote(context.Background(), "ENEL.MI")
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("expected ErrNoData, got %v", err)
		}
	})
}
