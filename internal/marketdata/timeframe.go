package marketdata

// Timeframe is the candle resolution exposed by the API
type Timeframe string

const (
	TimeframeDaily   Timeframe = "1d"
	TimeframeWeekly  Timeframe = "1w"
	TimeframeMonthly Timeframe = "1mo"
)

// Valid reports whether the timeframe is one of the supported resolutions
func (tf Timeframe) Valid() bool {
	return tf == TimeframeDaily || tf == TimeframeWeekly || tf == TimeframeMonthly
}

// Interval returns the Yahoo chart interval for the timeframe
func (tf Timeframe) Interval() string {
	switch tf {
	case TimeframeWeekly:
		return "1wk"
	case TimeframeMonthly:
		return "1mo"
	default:
		return "1d"
	}
}

// HistoryRange is the chart range price history and zone detection use
func (tf Timeframe) HistoryRange() string {
	switch tf {
	case TimeframeWeekly:
		return "5y"
	case TimeframeMonthly:
		return "20y"
	default:
		return "1y"
	}
}

// TechnicalsRange is the longer range the indicator table is computed on
func (tf Timeframe) TechnicalsRange() string {
	switch tf {
	case TimeframeWeekly:
		return "10y"
	case TimeframeMonthly:
		return "20y"
	default:
		return "5y"
	}
}
