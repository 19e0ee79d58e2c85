package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewProvider(NewClient(srv.URL), zerolog.Nop())
}

func TestProviderHistoryWalksCandidates(t *testing.T) {
	var paths []string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/NVDA" {
			fmt.Fprint(w, chartFixture)
			return
		}
		fmt.Fprint(w, emptyFixture)
	})

	symbol, candles, err := p.History(context.Background(), "1nvda", TimeframeDaily)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if symbol != "NVDA" {
		t.Errorf("resolved symbol = %q, want NVDA", symbol)
	}
	if len(candles) != 2 {
		t.Errorf("got %d candles, want 2", len(candles))
	}

	want := []string{"/1NVDA.MI", "/1NVDA", "/NVDA"}
	if len(paths) != len(want) {
		t.Fatalf("requested paths %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("request %d hit %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestProviderHistorySkipsFailures(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/1NVDA.MI" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, chartFixture)
	})

	symbol, _, err := p.History(context.Background(), "1nvda", TimeframeDaily)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if symbol != "1NVDA" {
		t.Errorf("resolved symbol = %q, want 1NVDA", symbol)
	}
}

func TestProviderHistoryNoData(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, emptyFixture)
	})

	_, _, err := p.History(context.Background(), "enel", TimeframeDaily)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestProviderTechnicalsHistoryUsesLongRange(t *testing.T) {
	var gotRange string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.URL.Query().Get("range")
		fmt.Fprint(w, chartFixture)
	})

	if _, _, err := p.TechnicalsHistory(context.Background(), "enel.mi", TimeframeDaily); err != nil {
		t.Fatalf("TechnicalsHistory returned error: %v", err)
	}
	if gotRange != "5y" {
		t.Errorf("range = %q, want 5y", gotRange)
	}
}

func TestProviderSeasonalityDailyRangeChain(t *testing.T) {
	var ranges []string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		chartRange := r.URL.Query().Get("range")
		ranges = append(ranges, chartRange)
		switch chartRange {
		case "20y":
			w.WriteHeader(http.StatusInternalServerError)
		case "10y":
			fmt.Fprint(w, emptyFixture)
		default:
			fmt.Fprint(w, chartFixture)
		}
	})

	symbol, candles, err := p.SeasonalityDaily(context.Background(), "enel.mi")
	if err != nil {
		t.Fatalf("SeasonalityDaily returned error: %v", err)
	}
	if symbol != "ENEL.MI" {
		t.Errorf("resolved symbol = %q, want ENEL.MI", symbol)
	}
	if len(candles) != 2 {
		t.Errorf("got %d candles, want 2", len(candles))
	}

	want := []string{"20y", "10y", "5y"}
	if len(ranges) != len(want) {
		t.Fatalf("requested ranges %v, want %v", ranges, want)
	}
	for i := range want {
		if ranges[i] != want[i] {
			t.Errorf("request %d used range %q, want %q", i, ranges[i], want[i])
		}
	}
}

func TestProviderQuoteWalksCandidates(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/1NVDA.MI" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, chartFixture)
	})

	symbol, price, err := p.Quote(context.Background(), "1nvda")
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if symbol != "1NVDA" {
		t.Errorf("resolved symbol = %q, want 1NVDA", symbol)
	}
	if price != 7.415 {
		t.Errorf("price = %v, want 7.415", price)
	}
}
