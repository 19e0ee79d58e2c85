package signal

import "sort"

// MonthlyBand is the cumulative seasonal percentile band for one calendar month
type MonthlyBand struct {
	P10    float64 `json:"p10"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
}

// Winsorize clamps every finite monthly return into the 5th..95th percentile
// band of the pooled values across all years. Non-finite entries pass through
// untouched; the input map is never modified.
func Winsorize(curves map[int][]float64) map[int][]float64 {
	var pool []float64
	for _, months := range curves {
		for _, v := range months {
			if isFinite(v) {
				pool = append(pool, v)
			}
		}
	}
	out := make(map[int][]float64, len(curves))
	if len(pool) == 0 {
		for year, months := range curves {
			out[year] = append([]float64(nil), months...)
		}
		return out
	}
	sort.Float64s(pool)
	lo := pool[int(0.05*float64(len(pool)-1))]
	hi := pool[int(0.95*float64(len(pool)-1))]
	for year, months := range curves {
		row := make([]float64, len(months))
		for i, v := range months {
			if isFinite(v) {
				if v < lo {
					v = lo
				} else if v > hi {
					v = hi
				}
			}
			row[i] = v
		}
		out[year] = row
	}
	return out
}

// ComputeCumulativePercentiles accumulates each selected year's running sum of
// monthly returns and reads the p10/median/p90 band per calendar month across
// years. Months with no contributing year stay at the zero band.
func ComputeCumulativePercentiles(curves map[int][]float64, years []int) [12]MonthlyBand {
	buckets := make([][]float64, 12)
	for _, year := range years {
		months, ok := curves[year]
		if !ok {
			continue
		}
		cum := 0.0
		for m := 0; m < 12; m++ {
			if m < len(months) && isFinite(months[m]) {
				cum += months[m]
			}
			buckets[m] = append(buckets[m], cum)
		}
	}

	var bands [12]MonthlyBand
	for m, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		sort.Float64s(bucket)
		n := float64(len(bucket))
		bands[m] = MonthlyBand{
			P10:    bucket[int(0.1*n)],
			Median: bucket[int(0.5*n)],
			P90:    bucket[int(0.9*n)],
		}
	}
	return bands
}

// TradeMonths picks the historically best buy month (global minimum of the
// cumulative medians) and the best sell month after it. When no later month
// exceeds the buy month's median, both point at the same month.
func TradeMonths(bands [12]MonthlyBand) (buyMonth, sellMonth int) {
	for m := 1; m < 12; m++ {
		if bands[m].Median < bands[buyMonth].Median {
			buyMonth = m
		}
	}
	sellMonth = buyMonth
	best := bands[buyMonth].Median
	for m := buyMonth + 1; m < 12; m++ {
		if bands[m].Median > best {
			best = bands[m].Median
			sellMonth = m
		}
	}
	return buyMonth, sellMonth
}
