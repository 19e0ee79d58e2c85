package signal

import (
	"math"
	"sort"

	"stock-insight-backend/internal/analysis"
)

// Entry band, stop and target offsets around the anchoring level. The
// fallback set anchors on the price itself when no level exists on the
// trade side.
const (
	longEntryMinFactor  = 1.006
	longEntryMaxFactor  = 1.015
	longStopFactor      = 0.992
	shortEntryMaxFactor = 0.994
	shortEntryMinFactor = 0.985
	shortStopFactor     = 1.008

	fallbackEntryNear = 0.996
	fallbackEntryFar  = 1.004
	longFallbackStop  = 0.972
	shortFallbackStop = 1.028

	firstTargetRiskMultiple  = 1.6
	secondTargetSpanMultiple = 0.9

	riskEpsilon = 1e-6
)

// buildLongPlan lays out a buy setup around the nearest support. Targets walk
// the resistances above the entry, with the open gap's far edge competing as
// a candidate; synthetic risk multiples cover the empty book.
func buildLongPlan(price float64, support, resistance []float64, targetGap *analysis.Gap) *ExecutionPlan {
	var entryMin, entryMax, stop float64
	if sup := nearestBelow(support, price); sup != nil {
		entryMin = math.Min(price, *sup*longEntryMinFactor)
		entryMax = math.Max(price, *sup*longEntryMaxFactor)
		stop = *sup * longStopFactor
	} else {
		entryMin = price * fallbackEntryNear
		entryMax = price * fallbackEntryFar
		stop = price * longFallbackStop
	}
	risk := entryMax - stop

	candidates := levelsAbove(resistance, entryMax)
	if targetGap != nil {
		if top := math.Max(targetGap.Start, targetGap.End); top > entryMax {
			candidates = append(candidates, top)
			sort.Float64s(candidates)
		}
	}
	target1 := entryMax + risk*firstTargetRiskMultiple
	if len(candidates) > 0 {
		target1 = candidates[0]
	}
	target2 := target1 + (target1-entryMax)*secondTargetSpanMultiple
	for _, c := range candidates {
		if c > target1 {
			target2 = c
			break
		}
	}

	denom := math.Max(entryMax-stop, riskEpsilon)
	return &ExecutionPlan{
		Side:        SideLong,
		EntryMin:    round4(entryMin),
		EntryMax:    round4(entryMax),
		Stop:        round4(stop),
		Target1:     round4(target1),
		Target2:     round4(target2),
		RiskReward1: round2((target1 - entryMax) / denom),
		RiskReward2: round2((target2 - entryMax) / denom),
	}
}

// buildShortPlan mirrors the long layout around the nearest resistance
func buildShortPlan(price float64, support, resistance []float64, targetGap *analysis.Gap) *ExecutionPlan {
	var entryMin, entryMax, stop float64
	if res := nearestAbove(resistance, price); res != nil {
		entryMax = math.Max(price, *res*shortEntryMaxFactor)
		entryMin = math.Min(price, *res*shortEntryMinFactor)
		stop = *res * shortStopFactor
	} else {
		entryMax = price * fallbackEntryFar
		entryMin = price * fallbackEntryNear
		stop = price * shortFallbackStop
	}
	risk := stop - entryMin

	candidates := levelsBelow(support, entryMin)
	if targetGap != nil {
		if bottom := math.Min(targetGap.Start, targetGap.End); bottom < entryMin {
			candidates = append(candidates, bottom)
			sort.Sort(sort.Reverse(sort.Float64Slice(candidates)))
		}
	}
	target1 := entryMin - risk*firstTargetRiskMultiple
	if len(candidates) > 0 {
		target1 = candidates[0]
	}
	target2 := target1 - (entryMin-target1)*secondTargetSpanMultiple
	for _, c := range candidates {
		if c < target1 {
			target2 = c
			break
		}
	}

	denom := math.Max(stop-entryMin, riskEpsilon)
	return &ExecutionPlan{
		Side:        SideShort,
		EntryMin:    round4(entryMin),
		EntryMax:    round4(entryMax),
		Stop:        round4(stop),
		Target1:     round4(target1),
		Target2:     round4(target2),
		RiskReward1: round2((entryMin - target1) / denom),
		RiskReward2: round2((entryMin - target2) / denom),
	}
}

func nearestBelow(levels []float64, price float64) *float64 {
	var best *float64
	for _, level := range levels {
		if !isFinite(level) || level <= 0 || level > price {
			continue
		}
		if best == nil || level > *best {
			l := level
			best = &l
		}
	}
	return best
}

func nearestAbove(levels []float64, price float64) *float64 {
	var best *float64
	for _, level := range levels {
		if !isFinite(level) || level <= 0 || level < price {
			continue
		}
		if best == nil || level < *best {
			l := level
			best = &l
		}
	}
	return best
}

// levelsAbove returns the valid levels strictly above the bound, ascending
func levelsAbove(levels []float64, bound float64) []float64 {
	var out []float64
	for _, level := range levels {
		if isFinite(level) && level > bound {
			out = append(out, level)
		}
	}
	sort.Float64s(out)
	return out
}

// levelsBelow returns the valid levels strictly below the bound, descending
func levelsBelow(levels []float64, bound float64) []float64 {
	var out []float64
	for _, level := range levels {
		if isFinite(level) && level > 0 && level < bound {
			out = append(out, level)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
