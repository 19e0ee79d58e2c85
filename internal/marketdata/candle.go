package marketdata

import (
	"math"
	"time"
)

// Candle represents one OHLCV bar. Dates keep the exchange-local day
// reported upstream; no timezone conversion is applied.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// FilterValid drops candles with a zero date or any non-finite price.
// Detection code downstream assumes every remaining row is usable.
func FilterValid(candles []Candle) []Candle {
	out := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if c.Date.IsZero() {
			continue
		}
		if !isFinite(c.Open) || !isFinite(c.High) || !isFinite(c.Low) || !isFinite(c.Close) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Closes extracts the close series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs extracts the high series.
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows extracts the low series.
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Volumes extracts the volume series.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// ResampleWeekly aggregates daily candles into weekly bars. Weeks run
// Saturday through Friday and are labeled with the Friday date, matching
// the W-FRI convention the charts were built on.
func ResampleWeekly(daily []Candle) []Candle {
	return resample(daily, weekEndFriday)
}

// ResampleMonthly aggregates daily candles into month-end bars.
func ResampleMonthly(daily []Candle) []Candle {
	return resample(daily, monthEnd)
}

func resample(daily []Candle, label func(time.Time) time.Time) []Candle {
	if len(daily) == 0 {
		return nil
	}

	var out []Candle
	idx := make(map[time.Time]int)

	for _, c := range daily {
		key := label(c.Date)
		i, ok := idx[key]
		if !ok {
			idx[key] = len(out)
			out = append(out, Candle{
				Date:   key,
				Open:   c.Open,
				High:   c.High,
				Low:    c.Low,
				Close:  c.Close,
				Volume: c.Volume,
			})
			continue
		}
		bar := &out[i]
		if c.High > bar.High {
			bar.High = c.High
		}
		if c.Low < bar.Low {
			bar.Low = c.Low
		}
		bar.Close = c.Close
		bar.Volume += c.Volume
	}

	return out
}

func weekEndFriday(d time.Time) time.Time {
	// Weekday is Sunday=0; Friday=5. Saturday rolls into the next week.
	offset := (int(time.Friday) - int(d.Weekday()) + 7) % 7
	day := d.AddDate(0, 0, offset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, d.Location())
}

func monthEnd(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, d.Location())
}
