// Package seasonality aggregates monthly closes into per-year return and
// compounded curves, the TradingView-style table the analysis page charts.
package seasonality

import (
	"errors"
	"math"
	"sort"

	"stock-insight-backend/internal/marketdata"
)

// ErrInsufficientData marks series too short to build a seasonal table.
var ErrInsufficientData = errors.New("seasonality: insufficient data")

// Minimum history before the table is meaningful. Daily rows are checked by
// the caller before resampling, monthly rows here.
const (
	MinDailyRows   = 120
	MinMonthlyRows = 6

	minValidMonths = 6
)

var monthNames = []string{"Gen", "Feb", "Mar", "Apr", "Mag", "Giu", "Lug", "Ago", "Set", "Ott", "Nov", "Dic"}

// Band is one month's spread across the selected years
type Band struct {
	P10    float64 `json:"p10"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
}

// Result is the seasonality response payload. Curve slices always hold 12
// entries; nil marks a month without data for that year.
type Result struct {
	Months                []string           `json:"months"`
	SeasonalByYear        map[int][]*float64 `json:"seasonalCurveByYear"`
	CumulativeByYear      map[int][]*float64 `json:"cumulativeCurveByYear"`
	MonthlyPercentiles    []Band             `json:"monthlyPercentiles"`
	CumulativePercentiles []Band             `json:"cumulativePercentiles"`
	Years                 []int              `json:"years"`
	ExcludeOutliers       bool               `json:"excludeOutliers"`
}

type observation struct {
	year      int
	month     int
	returnPct float64
}

// Compute builds the seasonal table from month-end candles. Years with
// fewer than six valid months are dropped unless they are the current year,
// which always shows its partial curve. With excludeOutliers the pooled
// monthly returns are clipped to their 5th/95th quantiles first.
func Compute(monthly []marketdata.Candle, currentYear int, excludeOutliers bool) (*Result, error) {
	if len(monthly) < MinMonthlyRows {
		return nil, ErrInsufficientData
	}

	obs := monthlyReturns(monthly)
	if excludeOutliers {
		clipOutliers(obs)
	}

	seasonal := make(map[int][]*float64)
	cumulative := make(map[int][]*float64)

	for start := 0; start < len(obs); {
		end := start
		for end < len(obs) && obs[end].year == obs[start].year {
			end++
		}
		year := obs[start].year
		group := obs[start:end]
		start = end

		valid := 0
		for _, o := range group {
			if isFinite(o.returnPct) {
				valid++
			}
		}
		if year != currentYear && valid < minValidMonths {
			continue
		}

		curve := make([]*float64, 12)
		for _, o := range group {
			if !isFinite(o.returnPct) {
				continue
			}
			curve[o.month-1] = ptr(round2(o.returnPct))
		}

		// Compounding runs over the rounded monthly values and carries
		// across empty months.
		cumCurve := make([]*float64, 12)
		cum := 0.0
		for i, v := range curve {
			if v == nil {
				continue
			}
			cum = (1+cum)*(1+*v/100) - 1
			cumCurve[i] = ptr(round2(cum * 100))
		}

		hasAny := false
		for _, v := range curve {
			if v != nil {
				hasAny = true
				break
			}
		}
		if hasAny {
			seasonal[year] = curve
			cumulative[year] = cumCurve
		}
	}

	if len(seasonal) == 0 {
		return nil, ErrInsufficientData
	}

	years := make([]int, 0, len(seasonal))
	for y := range seasonal {
		years = append(years, y)
	}
	sort.Ints(years)

	return &Result{
		Months:                monthNames,
		SeasonalByYear:        seasonal,
		CumulativeByYear:      cumulative,
		MonthlyPercentiles:    computePercentiles(seasonal),
		CumulativePercentiles: computePercentiles(cumulative),
		Years:                 years,
		ExcludeOutliers:       excludeOutliers,
	}, nil
}

// monthlyReturns filters to usable rows (finite open>0 and close) and links
// each close to the previous surviving one, so a dropped month folds into
// the next return. The first row carries NaN.
func monthlyReturns(monthly []marketdata.Candle) []observation {
	sorted := append([]marketdata.Candle(nil), monthly...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	obs := make([]observation, 0, len(sorted))
	prevClose := math.NaN()
	for _, c := range sorted {
		if !isFinite(c.Open) || !isFinite(c.Close) || c.Open <= 0 {
			continue
		}
		ret := math.NaN()
		if isFinite(prevClose) && prevClose != 0 {
			ret = (c.Close/prevClose - 1) * 100
		}
		obs = append(obs, observation{
			year:      c.Date.Year(),
			month:     int(c.Date.Month()),
			returnPct: ret,
		})
		prevClose = c.Close
	}
	return obs
}

// clipOutliers winsorizes the pooled returns in place at the 5th and 95th
// linear quantiles
func clipOutliers(obs []observation) {
	finite := make([]float64, 0, len(obs))
	for _, o := range obs {
		if isFinite(o.returnPct) {
			finite = append(finite, o.returnPct)
		}
	}
	if len(finite) == 0 {
		return
	}
	lo := quantileLinear(finite, 0.05)
	hi := quantileLinear(finite, 0.95)
	if lo > hi {
		lo, hi = hi, lo
	}
	for i := range obs {
		if !isFinite(obs[i].returnPct) {
			continue
		}
		if obs[i].returnPct < lo {
			obs[i].returnPct = lo
		}
		if obs[i].returnPct > hi {
			obs[i].returnPct = hi
		}
	}
}

// computePercentiles reads each month across years at the floor-indexed
// 10/50/90 ranks. Months no year covers read as a zero band.
func computePercentiles(curves map[int][]*float64) []Band {
	bands := make([]Band, 12)
	for m := 0; m < 12; m++ {
		var vals []float64
		for _, curve := range curves {
			if v := curve[m]; v != nil {
				vals = append(vals, *v)
			}
		}
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		n := len(vals)
		bands[m] = Band{
			P10:    round2(vals[int(0.10*float64(n-1))]),
			Median: round2(vals[int(0.50*float64(n-1))]),
			P90:    round2(vals[int(0.90*float64(n-1))]),
		}
	}
	return bands
}

// MonthlySeries flattens the per-year monthly return curves for the signal
// engine, nil holes becoming NaN.
func (r *Result) MonthlySeries() map[int][]float64 {
	return flattenCurves(r.SeasonalByYear)
}

// CumulativeSeries flattens the compounded curves the same way.
func (r *Result) CumulativeSeries() map[int][]float64 {
	return flattenCurves(r.CumulativeByYear)
}

func flattenCurves(curves map[int][]*float64) map[int][]float64 {
	out := make(map[int][]float64, len(curves))
	for year, curve := range curves {
		series := make([]float64, 12)
		for i, v := range curve {
			if v == nil {
				series[i] = math.NaN()
			} else {
				series[i] = *v
			}
		}
		out[year] = series
	}
	return out
}

// quantileLinear interpolates between ranks the way numpy's default does
func quantileLinear(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[lo+1]-sorted[lo])
}

func ptr(v float64) *float64 { return &v }

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
