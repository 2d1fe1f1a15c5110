package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/nvaughn/polipulse/internal/analytics"
)

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	detail := fs.Bool("detail", false, "Include per-entity analytics")
	fs.Parse(os.Args[1:])

	e := openEnv()
	defer e.close()

	counts := e.store.Counts()
	fmt.Printf("entities:    %d\n", counts["entities"])
	fmt.Printf("feed events: %d\n", counts["feed"])
	fmt.Printf("sources:     %d\n", counts["sources"])
	fmt.Printf("discovered:  %d\n", counts["discovered"])

	st := e.store.Schedule()
	fmt.Printf("\nschedule: enabled=%v interval=%s runs=%d\n", st.Enabled, st.Interval(), st.RunCount)
	if !st.LastRun.IsZero() {
		fmt.Printf("last run: %s\n", st.LastRun.Format("2006-01-02 15:04:05"))
		fmt.Printf("next run: %s\n", st.NextRun.Format("2006-01-02 15:04:05"))
	}

	if !*detail {
		return
	}

	fmt.Println()
	for _, entity := range e.store.Entities() {
		pred := analytics.Predict(entity.History)
		breakdown := analytics.Sentiments(entity.History)
		fmt.Printf("%-24s score %6.1f  trend %+5.1f  vol %5.2f  mom %+5.2f  %s (conf %.0f%%)  +%.0f/-%.0f/=%.0f%%\n",
			entity.Name,
			entity.Score,
			entity.Trend,
			analytics.Volatility(entity.History),
			analytics.Momentum(entity.History),
			pred.Trend,
			pred.Confidence,
			breakdown.Positive,
			breakdown.Negative,
			breakdown.Neutral,
		)
	}
}
