package seasonality

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"stock-insight-backend/internal/marketdata"
)

func monthCandle(year int, month time.Month, open, close float64) marketdata.Candle {
	return marketdata.Candle{
		Date:  time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
		Open:  open,
		High:  math.Max(open, close),
		Low:   math.Min(open, close),
		Close: close,
	}
}

// fixtureCandles builds Dec 2021 through Mar 2024: a seed month, a year
// alternating +10%/-10%, a year of steady +2%, and a partial year holding
// one -40% outlier month.
func fixtureCandles() []marketdata.Candle {
	var out []marketdata.Candle
	c := 100.0
	out = append(out, monthCandle(2021, time.December, 95, c))
	for m := 1; m <= 12; m++ {
		f := 1.1
		if m%2 == 0 {
			f = 0.9
		}
		prev := c
		c *= f
		out = append(out, monthCandle(2022, time.Month(m), prev, c))
	}
	for m := 1; m <= 12; m++ {
		prev := c
		c *= 1.02
		out = append(out, monthCandle(2023, time.Month(m), prev, c))
	}
	for i, f := range []float64{1.05, 0.6, 1.1} {
		prev := c
		c *= f
		out = append(out, monthCandle(2024, time.Month(i+1), prev, c))
	}
	return out
}

var nan = math.NaN()

func assertCurve(t *testing.T, name string, got []*float64, want []float64) {
	t.Helper()
	if len(got) != 12 {
		t.Fatalf("%s has %d entries, want 12", name, len(got))
	}
	for i, w := range want {
		if math.IsNaN(w) {
			if got[i] != nil {
				t.Errorf("%s[%d] = %v, want nil", name, i, *got[i])
			}
			continue
		}
		if got[i] == nil {
			t.Errorf("%s[%d] = nil, want %v", name, i, w)
			continue
		}
		if math.Abs(*got[i]-w) > 1e-9 {
			t.Errorf("%s[%d] = %v, want %v", name, i, *got[i], w)
		}
	}
}

func TestComputeCurves(t *testing.T) {
	res, err := Compute(fixtureCandles(), 2024, false)
	if err != nil {
		t.Fatal(err)
	}

	// 2021 holds only the seed month, whose return is undefined.
	if !reflect.DeepEqual(res.Years, []int{2022, 2023, 2024}) {
		t.Fatalf("years = %v, want [2022 2023 2024]", res.Years)
	}

	assertCurve(t, "seasonal 2022", res.SeasonalByYear[2022],
		[]float64{10, -10, 10, -10, 10, -10, 10, -10, 10, -10, 10, -10})
	assertCurve(t, "cumulative 2022", res.CumulativeByYear[2022],
		[]float64{10, -1, 8.9, -1.99, 7.81, -2.97, 6.73, -3.94, 5.67, -4.9, 4.61, -5.85})

	assertCurve(t, "seasonal 2023", res.SeasonalByYear[2023],
		[]float64{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2})
	assertCurve(t, "cumulative 2023", res.CumulativeByYear[2023],
		[]float64{2, 4.04, 6.12, 8.24, 10.41, 12.62, 14.87, 17.17, 19.51, 21.9, 24.34, 26.82})

	// The current year stays despite having fewer than six valid months.
	assertCurve(t, "seasonal 2024", res.SeasonalByYear[2024],
		[]float64{5, -40, 10, nan, nan, nan, nan, nan, nan, nan, nan, nan})
	assertCurve(t, "cumulative 2024", res.CumulativeByYear[2024],
		[]float64{5, -37, -30.7, nan, nan, nan, nan, nan, nan, nan, nan, nan})

	if res.Months[0] != "Gen" || res.Months[4] != "Mag" || res.Months[11] != "Dic" {
		t.Errorf("months = %v, want Italian short names", res.Months)
	}
	if res.ExcludeOutliers {
		t.Error("excludeOutliers echoed true, want false")
	}
}

func TestComputePercentiles(t *testing.T) {
	res, err := Compute(fixtureCandles(), 2024, false)
	if err != nil {
		t.Fatal(err)
	}

	jan := res.MonthlyPercentiles[0]
	if jan != (Band{P10: 2, Median: 5, P90: 5}) {
		t.Errorf("january band = %+v, want {2 5 5}", jan)
	}
	feb := res.MonthlyPercentiles[1]
	if feb != (Band{P10: -40, Median: -10, P90: -10}) {
		t.Errorf("february band = %+v, want {-40 -10 -10}", feb)
	}
	// Only two years cover April; every floor-indexed rank reads the lower one.
	apr := res.MonthlyPercentiles[3]
	if apr != (Band{P10: -10, Median: -10, P90: -10}) {
		t.Errorf("april band = %+v, want {-10 -10 -10}", apr)
	}

	dec := res.CumulativePercentiles[11]
	if dec != (Band{P10: -5.85, Median: -5.85, P90: -5.85}) {
		t.Errorf("december cumulative band = %+v, want {-5.85 -5.85 -5.85}", dec)
	}
}

func TestComputeExcludeOutliers(t *testing.T) {
	res, err := Compute(fixtureCandles(), 2024, true)
	if err != nil {
		t.Fatal(err)
	}

	// The pooled 5th/95th quantiles sit at -10/+10, so only the -40 month
	// clips.
	assertCurve(t, "seasonal 2024", res.SeasonalByYear[2024],
		[]float64{5, -10, 10, nan, nan, nan, nan, nan, nan, nan, nan, nan})
	assertCurve(t, "cumulative 2024", res.CumulativeByYear[2024],
		[]float64{5, -5.5, 3.95, nan, nan, nan, nan, nan, nan, nan, nan, nan})
	assertCurve(t, "seasonal 2022", res.SeasonalByYear[2022],
		[]float64{10, -10, 10, -10, 10, -10, 10, -10, 10, -10, 10, -10})

	feb := res.MonthlyPercentiles[1]
	if feb != (Band{P10: -10, Median: -10, P90: -10}) {
		t.Errorf("february band = %+v, want {-10 -10 -10}", feb)
	}
	if !res.ExcludeOutliers {
		t.Error("excludeOutliers echoed false, want true")
	}
}

func TestComputeCurrentYearExemption(t *testing.T) {
	// With the clock moved past 2024 the partial year loses its exemption.
	res, err := Compute(fixtureCandles(), 2025, false)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Years, []int{2022, 2023}) {
		t.Fatalf("years = %v, want [2022 2023]", res.Years)
	}
	if _, ok := res.SeasonalByYear[2024]; ok {
		t.Error("2024 curve present, want dropped without the current-year exemption")
	}
}

func TestComputeInsufficientRows(t *testing.T) {
	candles := fixtureCandles()[:5]
	if _, err := Compute(candles, 2024, false); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestComputeNoQualifyingYears(t *testing.T) {
	var candles []marketdata.Candle
	c := 100.0
	for m := 1; m <= 6; m++ {
		prev := c
		c *= 1.01
		candles = append(candles, monthCandle(2022, time.Month(m), prev, c))
	}
	// Six rows pass the length gate, but the first return is undefined and
	// five valid months miss the cutoff.
	if _, err := Compute(candles, 2024, false); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestComputeSkipsBadOpens(t *testing.T) {
	var candles []marketdata.Candle
	c := 100.0
	for m := 1; m <= 12; m++ {
		prev := c
		c *= 1.02
		cd := monthCandle(2022, time.Month(m), prev, c)
		if m == 5 {
			cd.Open = 0
		}
		candles = append(candles, cd)
	}

	res, err := Compute(candles, 2030, false)
	if err != nil {
		t.Fatal(err)
	}
	// May drops out and June's return spans two months of drift.
	assertCurve(t, "seasonal 2022", res.SeasonalByYear[2022],
		[]float64{nan, 2, 2, 2, nan, 4.04, 2, 2, 2, 2, 2, 2})
	assertCurve(t, "cumulative 2022", res.CumulativeByYear[2022],
		[]float64{nan, 2, 4.04, 6.12, nan, 10.41, 12.62, 14.87, 17.17, 19.51, 21.9, 24.34})
}

func TestCumulativeSeries(t *testing.T) {
	res, err := Compute(fixtureCandles(), 2024, false)
	if err != nil {
		t.Fatal(err)
	}
	series := res.CumulativeSeries()
	got2024 := series[2024]
	if len(got2024) != 12 {
		t.Fatalf("2024 series has %d entries, want 12", len(got2024))
	}
	if got2024[0] != 5 || got2024[1] != -37 || got2024[2] != -30.7 {
		t.Errorf("2024 series = %v, want 5/-37/-30.7 leading", got2024[:3])
	}
	for i := 3; i < 12; i++ {
		if !math.IsNaN(got2024[i]) {
			t.Errorf("2024 series[%d] = %v, want NaN", i, got2024[i])
		}
	}
	if got2022 := series[2022]; got2022[11] != -5.85 {
		t.Errorf("2022 december = %v, want -5.85", got2022[11])
	}
}
