package signal

import (
	"math"
	"reflect"
	"testing"
	"time"

	"stock-insight-backend/internal/analysis"
)

func fptr(v float64) *float64 { return &v }

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestComputeBetweenLevels(t *testing.T) {
	s := NewScorer()
	sig := s.Compute(Inputs{
		CurrentPrice:  100,
		Support:       []float64{95},
		Resistance:    []float64{110},
		ReferenceDate: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
	})

	// (10-5)/15 of the way toward resistance
	approx(t, "components.sr", sig.Components.SR, 1.0/3.0)
	approx(t, "score", sig.Score, 0.4/3.0)
	if sig.Regime != "Range" {
		t.Errorf("regime = %q, want Range", sig.Regime)
	}
	// The lean is bullish but the confidence gate keeps the label neutral
	approx(t, "scorePct", sig.ScorePct, 65.2833333333)
	approx(t, "confidencePct", sig.ConfidencePct, 36.3333333333)
	if sig.Tone != ToneNeutral || sig.Label != LabelNeutral {
		t.Errorf("tone/label = %s/%s, want neutral/Neutral", sig.Tone, sig.Label)
	}
	if sig.ExecutionPlan != nil {
		t.Error("neutral signal must not carry an execution plan")
	}
}

func TestComputeInsufficientData(t *testing.T) {
	s := NewScorer()
	for _, price := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		sig := s.Compute(Inputs{CurrentPrice: price})
		if sig.Tone != ToneNeutral || sig.Label != LabelNeutral {
			t.Fatalf("price %v: tone/label = %s/%s, want neutral", price, sig.Tone, sig.Label)
		}
		if sig.Regime != "Dati insufficienti" {
			t.Errorf("price %v: regime = %q", price, sig.Regime)
		}
		if sig.ScorePct != 50 || sig.ConfidencePct != 0 || sig.Score != 0 {
			t.Errorf("price %v: got score=%v scorePct=%v confidence=%v", price, sig.Score, sig.ScorePct, sig.ConfidencePct)
		}
		if sig.Components != (Components{}) {
			t.Errorf("price %v: components not zeroed: %+v", price, sig.Components)
		}
		if sig.ExecutionPlan != nil || sig.TargetGap != nil {
			t.Errorf("price %v: plan/target must be nil", price)
		}
	}
}

func TestComputeStrongBuyAlignment(t *testing.T) {
	s := NewScorer()
	sig := s.Compute(Inputs{
		CurrentPrice: 100,
		Support:      []float64{99},
		Resistance:   []float64{120},
		Gaps: []analysis.Gap{{
			Index: 5, Type: analysis.GapUp, Direction: analysis.GapDirectionUp,
			Start: 104, End: 106, SizePct: 1.9,
		}},
		GapCloseProb:  fptr(80),
		CurrentMedian: fptr(2),
		NextMedian:    fptr(8),
		Tech: &TechSummary{
			General: "Buy", Strength: 0.8,
			BuyCount: 15, SellCount: 3, NeutralCount: 4,
		},
		UseTechFilter: true,
		Market:        &MarketState{State: "IN_DEMAND", Direction: DirectionUp, Strength: 70},
		ReferenceDate: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
	})

	if sig.Label != LabelStrongBuy || sig.Tone != ToneBuy {
		t.Fatalf("label/tone = %s/%s, want Strong Buy/buy", sig.Label, sig.Tone)
	}
	if sig.Regime != "Trend forte" {
		t.Errorf("regime = %q, want Trend forte", sig.Regime)
	}
	if sig.ScorePct != 100 {
		t.Errorf("scorePct = %v, want 100 after the confirmation nudge", sig.ScorePct)
	}
	approx(t, "confidencePct", sig.ConfidencePct, 82.1076984128)
	if sig.TargetGap == nil || sig.TargetGap.Start != 104 {
		t.Fatalf("target gap = %+v, want the 104-106 gap", sig.TargetGap)
	}
	if sig.TargetDirection != DirectionUp {
		t.Errorf("targetDirection = %s, want up", sig.TargetDirection)
	}
	plan := sig.ExecutionPlan
	if plan == nil {
		t.Fatal("expected an execution plan")
	}
	if plan.Side != SideLong {
		t.Errorf("plan side = %s, want long", plan.Side)
	}
	// Gap top beats the resistance as first target, resistance becomes second
	approx(t, "plan.target1", plan.Target1, 106)
	approx(t, "plan.target2", plan.Target2, 120)
}

func TestComputeStrongSellAlignment(t *testing.T) {
	s := NewScorer()
	sig := s.Compute(Inputs{
		CurrentPrice: 100,
		Support:      []float64{80},
		Resistance:   []float64{101},
		Gaps: []analysis.Gap{{
			Index: 7, Type: analysis.GapDown, Direction: analysis.GapDirectionDown,
			Start: 97, End: 95, SizePct: -2.1,
		}},
		GapCloseProb:  fptr(90),
		CurrentMedian: fptr(1),
		NextMedian:    fptr(-6),
		Tech: &TechSummary{
			General: "Sell", Strength: 0.25,
			BuyCount: 3, SellCount: 15, NeutralCount: 4,
		},
		UseTechFilter: true,
		Market:        &MarketState{State: "IN_SUPPLY", Direction: DirectionDown, Strength: 60},
		ReferenceDate: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
	})

	if sig.Label != LabelStrongSell || sig.Tone != ToneSell {
		t.Fatalf("label/tone = %s/%s, want Strong Sell/sell", sig.Label, sig.Tone)
	}
	if sig.TargetDirection != DirectionDown {
		t.Errorf("targetDirection = %s, want down", sig.TargetDirection)
	}
	plan := sig.ExecutionPlan
	if plan == nil {
		t.Fatal("expected an execution plan")
	}
	if plan.Side != SideShort {
		t.Errorf("plan side = %s, want short", plan.Side)
	}
	// Gap bottom is the nearest level below entry, support follows
	approx(t, "plan.target1", plan.Target1, 95)
	approx(t, "plan.target2", plan.Target2, 80)
	if plan.Stop <= plan.EntryMax {
		t.Errorf("short stop %v must sit above entry %v", plan.Stop, plan.EntryMax)
	}
}

func TestComputeSeasonContradictionPenalty(t *testing.T) {
	s := NewScorer()
	sig := s.Compute(Inputs{
		CurrentPrice:  100,
		Support:       []float64{99},
		Resistance:    []float64{120},
		CurrentMedian: fptr(5),
		NextMedian:    fptr(3),
		ReferenceDate: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
	})

	approx(t, "components.sr", sig.Components.SR, 19.0/21.0)
	approx(t, "components.season", sig.Components.Season, -0.2)
	// 0.4*sr + 0.25*season, dampened because the season fights the trend
	unpenalized := 0.4*(19.0/21.0) + 0.25*(-0.2)
	approx(t, "score", sig.Score, unpenalized*0.72)
	if sig.Tone != ToneNeutral {
		t.Errorf("tone = %s, want neutral under the confidence gate", sig.Tone)
	}
}

func TestComputeMonthEndBonus(t *testing.T) {
	s := NewScorer()
	base := Inputs{
		CurrentPrice:  100,
		Support:       []float64{99},
		Resistance:    []float64{120},
		CurrentMedian: fptr(-3),
		NextMedian:    fptr(4),
	}

	late := base
	late.ReferenceDate = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	sig := s.Compute(late)
	if sig.Components.Bonus != 8 {
		t.Fatalf("bonus = %v, want 8 near month end", sig.Components.Bonus)
	}
	if sig.Label != LabelBuy {
		t.Errorf("label = %s, want Buy", sig.Label)
	}
	if sig.DisplayLabel != "Buy (fine mese)" {
		t.Errorf("displayLabel = %q, want the month-end qualifier", sig.DisplayLabel)
	}

	early := base
	early.ReferenceDate = time.Date(2024, 6, 26, 0, 0, 0, 0, time.UTC)
	if got := s.Compute(early).Components.Bonus; got != 0 {
		t.Errorf("bonus = %v, want 0 with four days left", got)
	}

	flipped := late
	flipped.CurrentMedian, flipped.NextMedian = fptr(3), fptr(-4)
	if got := s.Compute(flipped).Components.Bonus; got != -8 {
		t.Errorf("bonus = %v, want -8 on a positive-to-negative crossing", got)
	}

	sameSign := late
	sameSign.CurrentMedian, sameSign.NextMedian = fptr(2), fptr(5)
	if got := s.Compute(sameSign).Components.Bonus; got != 0 {
		t.Errorf("bonus = %v, want 0 without a sign crossing", got)
	}
}

func TestComputeOneSidedLevels(t *testing.T) {
	s := NewScorer()
	tests := []struct {
		name       string
		support    []float64
		resistance []float64
		want       float64
	}{
		{"support only", []float64{90}, nil, 0.35},
		{"resistance only", nil, []float64{110}, -0.35},
		{"no levels", nil, nil, 0},
		{"levels on wrong side ignored", []float64{150}, []float64{50}, 0},
	}
	for _, tt := range tests {
		sig := s.Compute(Inputs{CurrentPrice: 100, Support: tt.support, Resistance: tt.resistance})
		if sig.Components.SR != tt.want {
			t.Errorf("%s: sr = %v, want %v", tt.name, sig.Components.SR, tt.want)
		}
	}
}

func TestComputeTechContradictionCap(t *testing.T) {
	s := NewScorer()

	// Bearish numbers under a Buy label floor at -0.15
	sig := s.Compute(Inputs{
		CurrentPrice:  100,
		Tech:          &TechSummary{General: "Buy", Strength: 0.2, BuyCount: 2, SellCount: 14, NeutralCount: 4},
		UseTechFilter: true,
	})
	approx(t, "components.tech", sig.Components.Tech, -0.15)

	// Bullish numbers under a Sell label cap at +0.15
	sig = s.Compute(Inputs{
		CurrentPrice:  100,
		Tech:          &TechSummary{General: "Strong Sell", Strength: 0.9, BuyCount: 16, SellCount: 2, NeutralCount: 2},
		UseTechFilter: true,
	})
	approx(t, "components.tech", sig.Components.Tech, 0.15)

	// Filter off: the summary is ignored entirely
	sig = s.Compute(Inputs{
		CurrentPrice:  100,
		Tech:          &TechSummary{General: "Buy", Strength: 0.9, BuyCount: 20},
		UseTechFilter: false,
	})
	if sig.Components.Tech != 0 {
		t.Errorf("tech component = %v with the filter off, want 0", sig.Components.Tech)
	}
}

func TestComputeTargetGapSelection(t *testing.T) {
	s := NewScorer()
	above := analysis.Gap{Index: 3, Type: analysis.GapUp, Direction: analysis.GapDirectionUp, Start: 103, End: 105}
	below := analysis.Gap{Index: 8, Type: analysis.GapDown, Direction: analysis.GapDirectionDown, Start: 98, End: 97}

	// Neutral trend: globally nearest wins
	sig := s.Compute(Inputs{CurrentPrice: 100, Gaps: []analysis.Gap{above, below}})
	if sig.TargetGap == nil || sig.TargetGap.Index != 8 {
		t.Fatalf("target = %+v, want the nearer gap below", sig.TargetGap)
	}
	if sig.TargetDirection != DirectionDown {
		t.Errorf("targetDirection = %s, want down", sig.TargetDirection)
	}

	// Closed gaps never qualify
	closed := below
	closed.Closed = true
	sig = s.Compute(Inputs{CurrentPrice: 100, Gaps: []analysis.Gap{above, closed}})
	if sig.TargetGap == nil || sig.TargetGap.Index != 3 {
		t.Fatalf("target = %+v, want only the open gap", sig.TargetGap)
	}

	// An uptrend only looks above the price
	sig = s.Compute(Inputs{
		CurrentPrice: 100,
		Support:      []float64{99},
		Resistance:   []float64{150},
		Gaps:         []analysis.Gap{above, below},
	})
	if sig.TargetGap == nil || sig.TargetGap.Index != 3 {
		t.Fatalf("target = %+v, want the gap on the trend side", sig.TargetGap)
	}

	// Price inside the band scores the full pull
	inside := analysis.Gap{Index: 2, Type: analysis.GapUp, Direction: analysis.GapDirectionUp, Start: 98, End: 103}
	sig = s.Compute(Inputs{CurrentPrice: 100, Gaps: []analysis.Gap{inside}})
	approx(t, "components.gap", sig.Components.Gap, 1)
}

func TestComputeVoteThreshold(t *testing.T) {
	s := NewScorer()
	base := Inputs{CurrentPrice: 100, CurrentMedian: fptr(0), ReferenceDate: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)}

	// A 0.15 sub-score casts no vote: no consensus, no vote bump
	weak := base
	weak.NextMedian = fptr(1.5)
	sig := s.Compute(weak)
	if sig.Components.Consensus != 0 {
		t.Errorf("consensus = %v, want 0 below the vote threshold", sig.Components.Consensus)
	}
	if sig.ConfidencePct != 0 {
		t.Errorf("confidence = %v, want 0 after the missing-target penalty", sig.ConfidencePct)
	}

	// At 0.16 the component starts voting
	voting := base
	voting.NextMedian = fptr(1.6)
	sig = s.Compute(voting)
	if sig.Components.Consensus != 1 {
		t.Errorf("consensus = %v, want 1 with a single bullish voter", sig.Components.Consensus)
	}
	approx(t, "confidencePct", sig.ConfidencePct, 0.04*55+25+12-8)
}

func TestComputeBounds(t *testing.T) {
	s := NewScorer()
	ref := time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)
	inputs := []Inputs{
		{CurrentPrice: 1e-6, Support: []float64{1e-7}, Resistance: []float64{1e-5}, ReferenceDate: ref},
		{CurrentPrice: 5000, Support: []float64{4999.99}, Resistance: []float64{5000.01}, ReferenceDate: ref},
		{
			CurrentPrice: 100, Support: []float64{10}, Resistance: []float64{1000},
			Gaps:          []analysis.Gap{{Type: analysis.GapDown, Direction: analysis.GapDirectionDown, Start: 99, End: 20}},
			GapCloseProb:  fptr(0),
			CurrentMedian: fptr(100), NextMedian: fptr(-100),
			Tech:          &TechSummary{General: "Strong Sell", Strength: 0, SellCount: 22},
			UseTechFilter: true,
			Market:        &MarketState{Direction: DirectionDown, Strength: 100},
			ReferenceDate: ref,
		},
		{
			CurrentPrice: 100, Support: []float64{99.99},
			Gaps:          []analysis.Gap{{Type: analysis.GapUp, Direction: analysis.GapDirectionUp, Start: 100.5, End: 101}},
			GapCloseProb:  fptr(100),
			CurrentMedian: fptr(-100), NextMedian: fptr(100),
			Tech:          &TechSummary{General: "Strong Buy", Strength: 1, BuyCount: 22},
			UseTechFilter: true,
			Market:        &MarketState{Direction: DirectionUp, Strength: 100},
			ReferenceDate: ref,
		},
	}
	for i, in := range inputs {
		sig := s.Compute(in)
		if sig.Score < -1 || sig.Score > 1 {
			t.Errorf("input %d: score %v out of [-1,1]", i, sig.Score)
		}
		if sig.ScorePct < 0 || sig.ScorePct > 100 {
			t.Errorf("input %d: scorePct %v out of [0,100]", i, sig.ScorePct)
		}
		if sig.ConfidencePct < 0 || sig.ConfidencePct > 100 {
			t.Errorf("input %d: confidence %v out of [0,100]", i, sig.ConfidencePct)
		}
		if (sig.Tone == ToneNeutral) != (sig.ExecutionPlan == nil) {
			t.Errorf("input %d: tone %s with plan %v", i, sig.Tone, sig.ExecutionPlan)
		}
	}
}

func TestComputeDeterminism(t *testing.T) {
	s := NewScorer()
	in := Inputs{
		CurrentPrice: 250,
		Support:      []float64{240, 230},
		Resistance:   []float64{260, 275},
		Gaps: []analysis.Gap{
			{Index: 1, Type: analysis.GapUp, Direction: analysis.GapDirectionUp, Start: 255, End: 257},
		},
		GapCloseProb:  fptr(65),
		CurrentMedian: fptr(1.2),
		NextMedian:    fptr(3.4),
		ReferenceDate: time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC),
	}
	first := s.Compute(in)
	second := s.Compute(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same inputs produced different signals:\n%+v\n%+v", first, second)
	}
	// The returned target is a copy, not a pointer into the input slice
	if first.TargetGap == &in.Gaps[0] {
		t.Error("target gap aliases the input slice")
	}
}

func TestParseMarketDirection(t *testing.T) {
	tests := []struct {
		state string
		want  Direction
	}{
		{"BUY ZONE", DirectionUp},
		{"Vicino a supporto", DirectionUp},
		{"bullish breakout", DirectionUp},
		{"SELL ZONE", DirectionDown},
		{"vicino a resistenza", DirectionDown},
		{"bearish drift", DirectionDown},
		{"flat", DirectionNeutral},
		{"", DirectionNeutral},
	}
	for _, tt := range tests {
		if got := ParseMarketDirection(tt.state); got != tt.want {
			t.Errorf("ParseMarketDirection(%q) = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func BenchmarkCompute(b *testing.B) {
	s := NewScorer()
	in := Inputs{
		CurrentPrice: 100,
		Support:      []float64{99, 95, 90},
		Resistance:   []float64{105, 112, 120},
		Gaps: []analysis.Gap{
			{Index: 3, Type: analysis.GapUp, Direction: analysis.GapDirectionUp, Start: 104, End: 106},
			{Index: 9, Type: analysis.GapDown, Direction: analysis.GapDirectionDown, Start: 93, End: 91},
		},
		GapCloseProb:  fptr(70),
		CurrentMedian: fptr(1),
		NextMedian:    fptr(4),
		Tech:          &TechSummary{General: "Buy", Strength: 0.7, BuyCount: 12, SellCount: 5, NeutralCount: 5},
		UseTechFilter: true,
		Market:        &MarketState{Direction: DirectionUp, Strength: 60},
		ReferenceDate: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Compute(in)
	}
}
