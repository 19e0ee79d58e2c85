package marketdata

import (
	"math"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dailyCandle(date time.Time, open, high, low, close, volume float64) Candle {
	return Candle{Date: date, Open: open, High: high, Low: low, Close: close, Volume: volume}
}

func TestFilterValid(t *testing.T) {
	candles := []Candle{
		dailyCandle(day(2024, 1, 2), 7.0, 7.2, 6.9, 7.1, 100),
		dailyCandle(time.Time{}, 7.0, 7.2, 6.9, 7.1, 100),
		dailyCandle(day(2024, 1, 3), math.NaN(), 7.3, 7.0, 7.2, 100),
		dailyCandle(day(2024, 1, 4), 7.2, math.Inf(1), 7.1, 7.3, 100),
		dailyCandle(day(2024, 1, 5), 7.3, 7.5, 7.2, 7.4, math.NaN()),
	}

	got := FilterValid(candles)
	if len(got) != 2 {
		t.Fatalf("got %d candles, want 2", len(got))
	}
	if !got[0].Date.Equal(day(2024, 1, 2)) || !got[1].Date.Equal(day(2024, 1, 5)) {
		t.Errorf("wrong rows survived: %v, %v", got[0].Date, got[1].Date)
	}
}

func TestResampleWeekly(t *testing.T) {
	// Jan 2024: Tue 2nd, Wed 3rd, Fri 5th, Sat 6th, Sun 7th, Mon 8th.
	daily := []Candle{
		dailyCandle(day(2024, 1, 2), 10, 12, 9, 11, 100),
		dailyCandle(day(2024, 1, 3), 11, 14, 10, 13, 150),
		dailyCandle(day(2024, 1, 5), 13, 15, 12, 14, 200),
		dailyCandle(day(2024, 1, 6), 14, 16, 13, 15, 50),
		dailyCandle(day(2024, 1, 7), 15, 17, 14, 16, 60),
		dailyCandle(day(2024, 1, 8), 16, 18, 15, 17, 70),
	}

	weekly := ResampleWeekly(daily)
	if len(weekly) != 2 {
		t.Fatalf("got %d weekly bars, want 2", len(weekly))
	}

	first := weekly[0]
	if !first.Date.Equal(day(2024, 1, 5)) {
		t.Errorf("first bar labeled %v, want Friday 2024-01-05", first.Date)
	}
	if first.Open != 10 || first.High != 15 || first.Low != 9 || first.Close != 14 || first.Volume != 450 {
		t.Errorf("unexpected first weekly bar: %+v", first)
	}

	// Saturday and Sunday roll into the week ending the following Friday.
	second := weekly[1]
	if !second.Date.Equal(day(2024, 1, 12)) {
		t.Errorf("second bar labeled %v, want Friday 2024-01-12", second.Date)
	}
	if second.Open != 14 || second.High != 18 || second.Low != 13 || second.Close != 17 || second.Volume != 180 {
		t.Errorf("unexpected second weekly bar: %+v", second)
	}
}

func TestResampleMonthly(t *testing.T) {
	daily := []Candle{
		dailyCandle(day(2024, 1, 2), 10, 12, 9, 11, 100),
		dailyCandle(day(2024, 1, 31), 11, 13, 10, 12, 150),
		dailyCandle(day(2024, 2, 1), 12, 14, 11, 13, 200),
		dailyCandle(day(2024, 2, 15), 13, 16, 12, 15, 250),
	}

	monthly := ResampleMonthly(daily)
	if len(monthly) != 2 {
		t.Fatalf("got %d monthly bars, want 2", len(monthly))
	}

	jan := monthly[0]
	if !jan.Date.Equal(day(2024, 1, 31)) {
		t.Errorf("january labeled %v, want 2024-01-31", jan.Date)
	}
	if jan.Open != 10 || jan.High != 13 || jan.Low != 9 || jan.Close != 12 || jan.Volume != 250 {
		t.Errorf("unexpected january bar: %+v", jan)
	}

	feb := monthly[1]
	if !feb.Date.Equal(day(2024, 2, 29)) {
		t.Errorf("february labeled %v, want leap-day 2024-02-29", feb.Date)
	}
	if feb.Open != 12 || feb.High != 16 || feb.Low != 11 || feb.Close != 15 || feb.Volume != 450 {
		t.Errorf("unexpected february bar: %+v", feb)
	}
}

func TestResampleEmpty(t *testing.T) {
	if got := ResampleWeekly(nil); got != nil {
		t.Errorf("ResampleWeekly(nil) = %v, want nil", got)
	}
	if got := ResampleMonthly([]Candle{}); got != nil {
		t.Errorf("ResampleMonthly(empty) = %v, want nil", got)
	}
}
