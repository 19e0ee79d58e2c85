package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"stock-insight-backend/internal/marketdata"
	"stock-insight-backend/internal/scanner"
)

// evaluate runs the signal pipeline for one or more symbols without the
// server. Useful for eyeballing a signal before watching a symbol.
func main() {
	var (
		timeframe = flag.String("timeframe", "1d", "candle timeframe: 1d, 1w or 1mo")
		years     = flag.Int("years", 0, "limit seasonal percentiles to the most recent N years (0 = all)")
		outliers  = flag.Bool("exclude-outliers", false, "winsorize seasonal returns")
		useTech   = flag.Bool("tech", false, "include the technical consensus in the score")
		asJSON    = flag.Bool("json", false, "print raw JSON instead of the summary")
	)
	flag.Parse()

	symbols := flag.Args()
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "usage: evaluate [flags] SYMBOL [SYMBOL...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
	provider := marketdata.NewProvider(marketdata.NewClient(""), logger)
	evaluator := scanner.NewEvaluator(provider, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	exitCode := 0
	for _, symbol := range symbols {
		ev, err := evaluator.Evaluate(ctx, symbol, scanner.EvaluateOptions{
			Timeframe:       marketdata.Timeframe(*timeframe),
			Years:           *years,
			ExcludeOutliers: *outliers,
			UseTechFilter:   *useTech,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", symbol, err)
			exitCode = 1
			continue
		}

		if *asJSON {
			data, err := json.MarshalIndent(ev, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", symbol, err)
				exitCode = 1
				continue
			}
			fmt.Println(string(data))
			continue
		}
		printEvaluation(ev)
	}
	os.Exit(exitCode)
}

func printEvaluation(ev *scanner.Evaluation) {
	fmt.Printf("%s (%s)  %.2f\n", ev.Symbol, ev.Timeframe, ev.CurrentPrice)
	fmt.Printf("  signal:  %s (score %.0f/100, confidence %.0f%%)\n",
		ev.Signal.DisplayLabel, ev.Signal.ScorePct, ev.Signal.ConfidencePct)
	fmt.Printf("  regime:  %s\n", ev.Signal.Regime)
	fmt.Printf("  market:  %s (strength %.0f)\n", ev.MarketState.State, ev.MarketState.Strength)
	if plan := ev.Signal.ExecutionPlan; plan != nil {
		fmt.Printf("  plan:    %s entry %.4f-%.4f stop %.4f targets %.4f / %.4f (rr %.2f / %.2f)\n",
			plan.Side, plan.EntryMin, plan.EntryMax, plan.Stop,
			plan.Target1, plan.Target2, plan.RiskReward1, plan.RiskReward2)
	}
	fmt.Println()
}
