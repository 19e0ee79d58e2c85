package zones

import (
	"math"
	"sort"

	"stock-insight-backend/internal/marketdata"
	"stock-insight-backend/internal/signal"
)

// Zone is one supply or demand band on the price axis
type Zone struct {
	Price float64 `json:"price"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Set groups both sides of the book
type Set struct {
	Support    []Zone `json:"support"`
	Resistance []Zone `json:"resistance"`
}

// Market state classifications
const (
	StateInDemand = "IN_DEMAND"
	StateInSupply = "IN_SUPPLY"
	StateInNone   = "IN_NONE"
)

// MarketState is the proximity regime around the current price
type MarketState struct {
	State    string  `json:"state"`
	Strength float64 `json:"strength"`
}

// Direction converts the state into the scorer's input form
func (m MarketState) Direction() signal.Direction {
	switch m.State {
	case StateInDemand:
		return signal.DirectionUp
	case StateInSupply:
		return signal.DirectionDown
	}
	return signal.DirectionNeutral
}

// PivotSource selects how pivots are recognized
type PivotSource string

const (
	PivotClose PivotSource = "close"
	PivotHiLo  PivotSource = "hilo"
)

const (
	defaultBins       = 50
	defaultWindow     = 2
	defaultPercentile = 75.0
	defaultProximity  = 1.5
)

// Config tunes one detection pass
type Config struct {
	Bins               int
	Window             int
	StrengthPercentile float64
	PivotSource        PivotSource
}

// Params bundles the per-resolution tuning used by the analysis service
type Params struct {
	Config      Config
	Tail        int
	MinDistPct  float64
	MergeGapPct float64
}

// ParamsFor returns the production tuning for a timeframe. Longer
// resolutions pivot on highs/lows and demand a stronger histogram
// concentration before calling a zone.
func ParamsFor(tf marketdata.Timeframe) Params {
	switch tf {
	case marketdata.TimeframeWeekly:
		return Params{
			Config:      Config{Bins: defaultBins, Window: defaultWindow, StrengthPercentile: 80, PivotSource: PivotHiLo},
			Tail:        100,
			MinDistPct:  2.0,
			MergeGapPct: 1.2,
		}
	case marketdata.TimeframeMonthly:
		return Params{
			Config:      Config{Bins: defaultBins, Window: defaultWindow, StrengthPercentile: 90, PivotSource: PivotHiLo},
			Tail:        60,
			MinDistPct:  4.0,
			MergeGapPct: 2.5,
		}
	default:
		return Params{
			Config:      Config{Bins: defaultBins, Window: defaultWindow, StrengthPercentile: 70, PivotSource: PivotClose},
			Tail:        120,
			MinDistPct:  1.0,
			MergeGapPct: 0.6,
		}
	}
}

// Detector builds a pivot-weight histogram over the price range and turns
// the heaviest bins into zones
type Detector struct {
	cfg Config
}

// NewDetector returns a detector; zero config fields fall back to defaults
func NewDetector(cfg Config) *Detector {
	if cfg.Bins <= 0 {
		cfg.Bins = defaultBins
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.StrengthPercentile <= 0 {
		cfg.StrengthPercentile = defaultPercentile
	}
	if cfg.PivotSource == "" {
		cfg.PivotSource = PivotClose
	}
	return &Detector{cfg: cfg}
}

// Detect weighs every pivot by the cumulative accumulation/distribution line
// at that candle and bins it by close. Bins at or above the strength
// percentile of their side become zones.
func (d *Detector) Detect(candles []marketdata.Candle) Set {
	w := d.cfg.Window
	if len(candles) <= 2*w {
		return Set{}
	}

	priceMin, priceMax := math.Inf(1), math.Inf(-1)
	for _, c := range candles {
		if c.Low < priceMin {
			priceMin = c.Low
		}
		if c.High > priceMax {
			priceMax = c.High
		}
	}
	if !isFinite(priceMin) || !isFinite(priceMax) || priceMax <= priceMin {
		return Set{}
	}

	bins := d.cfg.Bins
	adl := accumulationLine(candles)
	supportCounts := make([]float64, bins)
	resistanceCounts := make([]float64, bins)

	for i := w; i < len(candles)-w; i++ {
		c := candles[i]
		bin := binIndex(c.Close, priceMin, priceMax, bins)
		if d.cfg.PivotSource == PivotHiLo {
			lo, hi := windowExtremes(candles, i, w)
			if c.Low == lo {
				supportCounts[bin] += adl[i]
			}
			if c.High == hi {
				resistanceCounts[bin] += adl[i]
			}
		} else {
			lo, hi := windowCloseExtremes(candles, i, w)
			if c.Close == lo {
				supportCounts[bin] += adl[i]
			} else if c.Close == hi {
				resistanceCounts[bin] += adl[i]
			}
		}
	}

	supThreshold := percentileLinear(supportCounts, d.cfg.StrengthPercentile)
	resThreshold := percentileLinear(resistanceCounts, d.cfg.StrengthPercentile)

	var set Set
	step := (priceMax - priceMin) / float64(bins)
	for i := 0; i < bins; i++ {
		lower := priceMin + step*float64(i)
		upper := lower + step
		zone := Zone{Price: round2((lower + upper) / 2), Min: round2(lower), Max: round2(upper)}
		if supportCounts[i] >= supThreshold {
			set.Support = append(set.Support, zone)
		}
		if resistanceCounts[i] >= resThreshold {
			set.Resistance = append(set.Resistance, zone)
		}
	}
	return set
}

// accumulationLine is the running money-flow volume sum
func accumulationLine(candles []marketdata.Candle) []float64 {
	adl := make([]float64, len(candles))
	cum := 0.0
	for i, c := range candles {
		rng := c.High - c.Low
		if rng == 0 {
			rng = 1e-9
		}
		cum += ((c.Close - c.Low) - (c.High - c.Close)) / rng * c.Volume
		adl[i] = cum
	}
	return adl
}

func windowExtremes(candles []marketdata.Candle, i, w int) (low, high float64) {
	low, high = math.Inf(1), math.Inf(-1)
	for j := i - w; j <= i+w; j++ {
		if candles[j].Low < low {
			low = candles[j].Low
		}
		if candles[j].High > high {
			high = candles[j].High
		}
	}
	return low, high
}

func windowCloseExtremes(candles []marketdata.Candle, i, w int) (low, high float64) {
	low, high = math.Inf(1), math.Inf(-1)
	for j := i - w; j <= i+w; j++ {
		if candles[j].Close < low {
			low = candles[j].Close
		}
		if candles[j].Close > high {
			high = candles[j].Close
		}
	}
	return low, high
}

func binIndex(price, lo, hi float64, bins int) int {
	idx := int(math.Floor((price - lo) / (hi - lo) * float64(bins)))
	if idx < 0 {
		idx = 0
	}
	if idx > bins-1 {
		idx = bins - 1
	}
	return idx
}

// FilterByDistance keeps supports at least minPct below the price and
// resistances at least minPct above it. A side that would empty keeps its
// original zones instead.
func FilterByDistance(set Set, price, minPct float64) Set {
	if price <= 0 || minPct <= 0 {
		return set
	}
	minAbs := price * minPct / 100

	var supports []Zone
	for _, z := range set.Support {
		if price-z.Price >= minAbs {
			supports = append(supports, z)
		}
	}
	var resistances []Zone
	for _, z := range set.Resistance {
		if z.Price-price >= minAbs {
			resistances = append(resistances, z)
		}
	}
	if supports == nil {
		supports = set.Support
	}
	if resistances == nil {
		resistances = set.Resistance
	}
	return Set{Support: supports, Resistance: resistances}
}

// MergeClose collapses zones whose prices sit within gapPct of each other
// into one zone with the averaged price and the union band
func MergeClose(set Set, gapPct float64) Set {
	if gapPct <= 0 {
		return set
	}
	return Set{
		Support:    mergeList(set.Support, gapPct),
		Resistance: mergeList(set.Resistance, gapPct),
	}
}

func mergeList(zones []Zone, gapPct float64) []Zone {
	if len(zones) == 0 {
		return zones
	}
	sorted := append([]Zone(nil), zones...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	merged := []Zone{sorted[0]}
	for _, z := range sorted[1:] {
		last := &merged[len(merged)-1]
		gap := math.Abs(z.Price - last.Price)
		if gap <= last.Price*gapPct/100 {
			*last = Zone{
				Price: round2((last.Price + z.Price) / 2),
				Min:   round2(math.Min(last.Min, z.Min)),
				Max:   round2(math.Max(last.Max, z.Max)),
			}
		} else {
			merged = append(merged, z)
		}
	}
	return merged
}

// DetermineMarketState classifies where the price sits between its nearest
// levels. Strength grows as either level gets closer.
func DetermineMarketState(price float64, set Set, proximity float64) MarketState {
	if proximity <= 0 {
		proximity = defaultProximity
	}
	var nearestSup, nearestRes *float64
	for _, z := range set.Support {
		if z.Price <= price && (nearestSup == nil || z.Price > *nearestSup) {
			p := z.Price
			nearestSup = &p
		}
	}
	for _, z := range set.Resistance {
		if z.Price >= price && (nearestRes == nil || z.Price < *nearestRes) {
			p := z.Price
			nearestRes = &p
		}
	}
	if nearestSup == nil || nearestRes == nil {
		return MarketState{State: StateInNone, Strength: 0}
	}

	distSup := (price - *nearestSup) / *nearestSup * 100
	distRes := (*nearestRes - price) / *nearestRes * 100
	strength := round2(100 - math.Min(distSup, distRes))

	switch {
	case distSup < distRes && distSup < proximity:
		return MarketState{State: StateInDemand, Strength: strength}
	case distRes < distSup && distRes < proximity:
		return MarketState{State: StateInSupply, Strength: strength}
	default:
		return MarketState{State: StateInNone, Strength: strength}
	}
}

// Analyze runs the full pass for one timeframe: tail the series, detect,
// distance-filter, merge, classify.
func Analyze(candles []marketdata.Candle, tf marketdata.Timeframe) (Set, MarketState) {
	params := ParamsFor(tf)
	if len(candles) > params.Tail {
		candles = candles[len(candles)-params.Tail:]
	}

	set := NewDetector(params.Config).Detect(candles)

	price := 0.0
	if len(candles) > 0 {
		price = round2(candles[len(candles)-1].Close)
	}
	set = FilterByDistance(set, price, params.MinDistPct)
	set = MergeClose(set, params.MergeGapPct)
	return set, DetermineMarketState(price, set, defaultProximity)
}

// Prices flattens a zone list for the scorer's level inputs
func Prices(zones []Zone) []float64 {
	if len(zones) == 0 {
		return nil
	}
	out := make([]float64, len(zones))
	for i, z := range zones {
		out[i] = z.Price
	}
	return out
}

// percentileLinear reads a percentile with linear interpolation between ranks
func percentileLinear(values []float64, pct float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if pct <= 0 {
		return sorted[0]
	}
	if pct >= 100 {
		return sorted[len(sorted)-1]
	}
	pos := pct / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[lo+1]-sorted[lo])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
