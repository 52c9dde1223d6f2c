// Command trade_report prints the aggregate trade summary from the history
// database, and optionally the most recent trades for one token mint.
//
// Usage:
//
//	trade_report [-db path] [-token mint] [-limit n]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"solSniperBot/internal/adapters/logger"
	"solSniperBot/internal/adapters/sqlite"
)

func main() {
	dbPath := flag.String("db", "./data/trade_history.db", "path to the trade history database")
	token := flag.String("token", "", "token mint address to list trades for")
	limit := flag.Int("limit", 20, "maximum trades to list")
	flag.Parse()

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: *dbPath,
		Logger: logger.NewStdLogger(logger.LevelError),
	})
	if err != nil {
		log.Fatalf("Error opening trade history: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	summary, err := repo.Summary(ctx)
	if err != nil {
		log.Fatalf("Error computing summary: %v", err)
	}

	fmt.Println("## Trade Summary")
	fmt.Printf("Total trades:   %d\n", summary.TotalTrades)
	fmt.Printf("Total PnL:      %.6f SOL\n", summary.TotalPnL)
	fmt.Printf("Wins:           %d (%.1f%%)\n", summary.Wins, summary.WinRate*100)
	fmt.Printf("Manual reviews: %d\n", summary.ManualReviews)

	if *token == "" {
		return
	}

	trades, err := repo.FindByToken(ctx, *token, *limit)
	if err != nil {
		log.Fatalf("Error reading trades for %s: %v", *token, err)
	}
	if len(trades) == 0 {
		fmt.Printf("\nNo trades recorded for %s\n", *token)
		return
	}

	fmt.Printf("\n## Trades for %s\n", *token)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Symbol\tEntry\tExit\tQuantity\tPnL\tPnL%\tReason\tStatus\tClosed\t")
	for _, trade := range trades {
		fmt.Fprintf(w, "%s\t%.9f\t%.9f\t%.2f\t%.6f\t%.1f\t%s\t%s\t%s\t\n",
			trade.Symbol,
			trade.EntryPrice,
			trade.ExitPrice,
			trade.Quantity,
			trade.RealizedPnL,
			trade.RealizedPnLPct,
			trade.ExitReason,
			trade.Status,
			trade.ExitTime.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()
}
