// Package technicals rates a candle series the way the indicator table on
// the analysis page does: SMA/EMA/WMA/HMA/TEMA over the standard periods
// plus 21 oscillators, each labeled Buy, Sell or Neutral, rolled up into
// per-group majorities and one overall verdict.
package technicals

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"stock-insight-backend/internal/marketdata"
	"stock-insight-backend/internal/signal"
)

// Ratings attached to each table row. ADX rows use trend wording instead
// and never join the Buy/Sell tally.
const (
	ActionBuy     = "Buy"
	ActionSell    = "Sell"
	ActionNeutral = "Neutral"

	actionStrongTrend = "Tendenza Forte"
	actionWeakTrend   = "Neutro"
)

var maPeriods = []int{10, 20, 50, 100, 200}

// Entry is one indicator row
type Entry struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Action string  `json:"action"`
}

// Report is the full indicator table plus the aggregated signals
type Report struct {
	Overall        string  `json:"overall"`
	MovingAverages []Entry `json:"movingAveragesSummary"`
	Oscillators    []Entry `json:"oscillatorsSummary"`
	MASignal       string  `json:"maSignal"`
	OscSignal      string  `json:"oscSignal"`
}

// Compute builds the report for a chronological candle series. Periods
// longer than the series are dropped from the moving-average table;
// oscillators without enough history keep a Neutral row with value 0.
func Compute(candles []marketdata.Candle) Report {
	closes := marketdata.Closes(candles)
	highs := marketdata.Highs(candles)
	lows := marketdata.Lows(candles)
	volumes := marketdata.Volumes(candles)

	mas := movingAverages(closes)
	osc := oscillators(highs, lows, closes, volumes)

	maBuy, maSell, _ := countActions(mas)
	oscBuy, oscSell, _ := countActions(osc)
	maSignal := majority(maBuy, maSell)
	oscSignal := majority(oscBuy, oscSell)

	overall := ActionNeutral
	if maSignal == ActionBuy && oscSignal == ActionBuy {
		overall = ActionBuy
	} else if maSignal == ActionSell && oscSignal == ActionSell {
		overall = ActionSell
	}

	return Report{
		Overall:        overall,
		MovingAverages: mas,
		Oscillators:    osc,
		MASignal:       maSignal,
		OscSignal:      oscSignal,
	}
}

func movingAverages(closes []float64) []Entry {
	n := len(closes)
	lastClose := math.NaN()
	if n > 0 {
		lastClose = closes[n-1]
	}

	var entries []Entry
	for _, p := range maPeriods {
		if n < p {
			continue
		}
		entries = append(entries,
			maEntry("SMA", p, talib.Sma(closes, p)[n-1], lastClose),
			maEntry("EMA", p, talib.Ema(closes, p)[n-1], lastClose),
		)
	}
	for _, p := range maPeriods {
		if n < p {
			continue
		}
		tema := math.NaN()
		if n >= 3*(p-1)+1 {
			tema = talib.Tema(closes, p)[n-1]
		}
		entries = append(entries,
			maEntry("WMA", p, talib.Wma(closes, p)[n-1], lastClose),
			maEntry("HMA", p, hull(closes, p), lastClose),
			maEntry("TEMA", p, tema, lastClose),
		)
	}
	return entries
}

// hull smooths the raw Hull difference 2*WMA(p/2)-WMA(p) with a simple
// mean over sqrt(p) bars
func hull(closes []float64, period int) float64 {
	n := len(closes)
	half := period / 2
	smooth := int(math.Sqrt(float64(period)))
	if n < period+smooth-1 {
		return math.NaN()
	}
	wmaHalf := talib.Wma(closes, half)
	wmaFull := talib.Wma(closes, period)
	diff := make([]float64, n)
	for i := range diff {
		diff[i] = 2*wmaHalf[i] - wmaFull[i]
	}
	return talib.Sma(diff, smooth)[n-1]
}

func oscillators(highs, lows, closes, volumes []float64) []Entry {
	n := len(closes)

	// Shared series: MACD feeds two rows, the fast stochastic %K feeds both
	// stochastic rows.
	macdLine, macdSignal, macdHist := math.NaN(), math.NaN(), math.NaN()
	if n >= 34 {
		line, sig, hist := talib.Macd(closes, 12, 26, 9)
		macdLine, macdSignal, macdHist = line[n-1], sig[n-1], hist[n-1]
	}
	fastK := math.NaN()
	if n >= 16 {
		k, _ := talib.StochF(highs, lows, closes, 14, 3, talib.SMA)
		fastK = k[n-1]
	}

	// Each reading needs the series to cover the indicator's warmup before
	// the library call happens; go-talib indexes the warmup window unchecked.
	rsi14 := lastAt(n, 15, func() []float64 { return talib.Rsi(closes, 14) })
	atr14 := lastAt(n, 15, func() []float64 { return talib.Atr(highs, lows, closes, 14) })
	cci20 := lastAt(n, 20, func() []float64 { return talib.Cci(highs, lows, closes, 20) })
	adx14 := lastAt(n, 28, func() []float64 { return talib.Adx(highs, lows, closes, 14) })
	willr14 := lastAt(n, 14, func() []float64 { return talib.WillR(highs, lows, closes, 14) })
	roc12 := lastAt(n, 13, func() []float64 { return talib.Roc(closes, 12) })
	mom10 := lastAt(n, 11, func() []float64 { return talib.Mom(closes, 10) })
	mom3M := lastAt(n, 64, func() []float64 { return talib.Mom(closes, 63) })
	trix15 := lastAt(n, 44, func() []float64 { return talib.Trix(closes, 15) })
	ultOsc := lastAt(n, 29, func() []float64 { return talib.UltOsc(highs, lows, closes, 7, 14, 28) })
	cci50 := lastAt(n, 50, func() []float64 { return talib.Cci(highs, lows, closes, 50) })
	rsi7 := lastAt(n, 8, func() []float64 { return talib.Rsi(closes, 7) })
	rsi21 := lastAt(n, 22, func() []float64 { return talib.Rsi(closes, 21) })
	willr50 := lastAt(n, 50, func() []float64 { return talib.WillR(highs, lows, closes, 50) })
	roc6 := lastAt(n, 7, func() []float64 { return talib.Roc(closes, 6) })
	mom20 := lastAt(n, 21, func() []float64 { return talib.Mom(closes, 20) })
	cmf20 := chaikinMoneyFlow(highs, lows, closes, volumes, 20)

	// The quarterly momentum row shows 0 instead of an empty value when the
	// series is too short.
	if math.IsNaN(mom3M) {
		mom3M = 0
	}

	adxAction := actionWeakTrend
	if adx14 > 25 {
		adxAction = actionStrongTrend
	}

	return []Entry{
		{Name: "RSI14", Value: jsonValue(rsi14), Action: rateOverbought(rsi14, 70, 30)},
		{Name: "MACD", Value: jsonValue(macdLine), Action: rateAbove(macdLine, macdSignal)},
		{Name: "Stochastic14", Value: jsonValue(fastK), Action: rateOverbought(fastK, 80, 20)},
		{Name: "ATR14", Value: jsonValue(atr14), Action: ActionNeutral},
		{Name: "CCI20", Value: jsonValue(cci20), Action: rateOversold(cci20, -100, 100)},
		{Name: "ADX14", Value: jsonValue(adx14), Action: adxAction},
		{Name: "WilliamsR14", Value: jsonValue(willr14), Action: rateOverbought(willr14, -20, -80)},
		{Name: "ROC12", Value: jsonValue(roc12), Action: rateSign(roc12)},
		{Name: "Momentum10", Value: jsonValue(mom10), Action: rateSign(mom10)},
		{Name: "Momentum3M", Value: jsonValue(mom3M), Action: rateSign(mom3M)},
		{Name: "TRIX15", Value: jsonValue(trix15), Action: rateSign(trix15)},
		{Name: "UltimateOsc", Value: jsonValue(ultOsc), Action: rateOverbought(ultOsc, 70, 30)},
		{Name: "CCI50", Value: jsonValue(cci50), Action: rateOversold(cci50, -100, 100)},
		{Name: "RSI7", Value: jsonValue(rsi7), Action: rateOverbought(rsi7, 70, 30)},
		{Name: "RSI21", Value: jsonValue(rsi21), Action: rateOverbought(rsi21, 70, 30)},
		{Name: "StochSlow", Value: jsonValue(fastK), Action: rateOverbought(fastK, 80, 20)},
		{Name: "WilliamsR50", Value: jsonValue(willr50), Action: rateOverbought(willr50, -20, -80)},
		{Name: "MACD_Hist", Value: jsonValue(macdHist), Action: rateSign(macdHist)},
		{Name: "ROC6", Value: jsonValue(roc6), Action: rateSign(roc6)},
		{Name: "Momentum20", Value: jsonValue(mom20), Action: rateSign(mom20)},
		{Name: "CMF20", Value: jsonValue(cmf20), Action: rateSign(cmf20)},
	}
}

// chaikinMoneyFlow is the money-flow multiplier weighted by volume, summed
// over the window and normalized by total volume. Zero-range candles push
// the multiplier to infinity and the row falls back to Neutral through the
// non-finite handling.
func chaikinMoneyFlow(highs, lows, closes, volumes []float64, period int) float64 {
	n := len(closes)
	if n < period {
		return math.NaN()
	}
	var mfSum, volSum float64
	for i := n - period; i < n; i++ {
		rng := highs[i] - lows[i]
		mfSum += ((closes[i] - lows[i]) - (highs[i] - closes[i])) / rng * volumes[i]
		volSum += volumes[i]
	}
	return mfSum / volSum
}

func lastAt(n, minLen int, series func() []float64) float64 {
	if n < minLen {
		return math.NaN()
	}
	s := series()
	return s[len(s)-1]
}

func maEntry(family string, period int, value, lastClose float64) Entry {
	return Entry{
		Name:   fmt.Sprintf("%s%d", family, period),
		Value:  jsonValue(value),
		Action: rateAbove(lastClose, value),
	}
}

// rateAbove is Buy when a sits above b. NaN on either side resolves to
// Neutral.
func rateAbove(a, b float64) string {
	switch {
	case a > b:
		return ActionBuy
	case a < b:
		return ActionSell
	default:
		return ActionNeutral
	}
}

// rateOverbought sells above the high threshold and buys below the low one
func rateOverbought(v, high, low float64) string {
	switch {
	case v > high:
		return ActionSell
	case v < low:
		return ActionBuy
	default:
		return ActionNeutral
	}
}

// rateOversold buys below the low threshold and sells above the high one,
// the CCI convention
func rateOversold(v, low, high float64) string {
	switch {
	case v < low:
		return ActionBuy
	case v > high:
		return ActionSell
	default:
		return ActionNeutral
	}
}

func rateSign(v float64) string {
	switch {
	case v > 0:
		return ActionBuy
	case v < 0:
		return ActionSell
	default:
		return ActionNeutral
	}
}

// jsonValue rounds for display and replaces non-finite values with 0 so the
// report always marshals
func jsonValue(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

func majority(buy, sell int) string {
	switch {
	case buy > sell:
		return ActionBuy
	case sell > buy:
		return ActionSell
	default:
		return ActionNeutral
	}
}

func countActions(entries []Entry) (buy, sell, neutral int) {
	for _, e := range entries {
		switch e.Action {
		case ActionBuy:
			buy++
		case ActionSell:
			sell++
		case ActionNeutral:
			neutral++
		}
	}
	return buy, sell, neutral
}

// Counts tallies Buy/Sell/Neutral rows across both tables. ADX rows carry
// trend wording and stay out of every bucket.
func (r Report) Counts() (buy, sell, neutral int) {
	buy, sell, neutral = countActions(r.MovingAverages)
	ob, os, on := countActions(r.Oscillators)
	return buy + ob, sell + os, neutral + on
}

// Strength maps the tally onto [0,1]: buys count in full, neutrals half.
// An empty report reads as a flat 0.5.
func (r Report) Strength() float64 {
	buy, sell, neutral := r.Counts()
	total := buy + sell + neutral
	if total == 0 {
		return 0.5
	}
	return (float64(buy) + 0.5*float64(neutral)) / float64(total)
}

// Summary converts the report into the scorer's technical input
func (r Report) Summary() *signal.TechSummary {
	buy, sell, neutral := r.Counts()
	return &signal.TechSummary{
		General:      r.Overall,
		Strength:     r.Strength(),
		BuyCount:     buy,
		SellCount:    sell,
		NeutralCount: neutral,
	}
}
