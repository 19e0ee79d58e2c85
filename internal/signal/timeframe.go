package signal

import (
	"time"

	"stock-insight-backend/internal/marketdata"
)

// ApplyTimeframeLabel rewrites the display label for the given resolution.
// Daily signals collapse to the bare tone word. Weekly signals switch to the
// end-of-week phrasing when the reference day is early in the week and the
// confidence has not firmed up. Monthly labels pass through as-is.
func ApplyTimeframeLabel(sig Signal, tf marketdata.Timeframe, reference time.Time) Signal {
	switch tf {
	case marketdata.TimeframeDaily:
		sig.DisplayLabel = toneWord(sig.Tone)
	case marketdata.TimeframeWeekly:
		if sig.Tone == ToneNeutral {
			break
		}
		if int(reference.Weekday()) < 4 && sig.ConfidencePct < 72 {
			sig.DisplayLabel = toneWord(sig.Tone) + " (fine settimana)"
		}
	}
	return sig
}

func toneWord(tone Tone) string {
	switch tone {
	case ToneBuy:
		return "Buy"
	case ToneSell:
		return "Sell"
	default:
		return "Neutral"
	}
}
