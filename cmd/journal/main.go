package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"divergenceBot/config"
	"divergenceBot/internal/adapters/logger"
	"divergenceBot/internal/adapters/sqlite"
)

var (
	dbPath = flag.String("db", "", "journal database (defaults to JOURNAL_PATH)")
	symbol = flag.String("symbol", "", "symbol to report (defaults to SYMBOL)")
	limit  = flag.Int("n", 20, "number of recent trades to print")
)

// journal prints the most recent closed trades recorded by the bot.
func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if *dbPath == "" {
		*dbPath = cfg.JournalPath
	}
	if *symbol == "" {
		*symbol = cfg.Symbol
	}
	if *dbPath == "" {
		log.Fatalf("FATAL: no journal configured")
	}

	appLogger := logger.New(logger.LevelWarn, cfg.LogFormat)
	journal, err := sqlite.NewJournal(sqlite.Config{DBPath: *dbPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open trade journal: %v", err)
	}
	defer journal.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	trades, err := journal.RecentTrades(ctx, *symbol, *limit)
	if err != nil {
		log.Fatalf("Error reading trades: %v", err)
	}
	summary, err := journal.Summarize(ctx, *symbol)
	if err != nil {
		log.Fatalf("Error summarizing trades: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLOSED\tSIDE\tPNL\tEXIT\tRESULT")
	for _, t := range trades {
		result := "LOSS"
		if t.IsWin() {
			result = "WIN"
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%s\n",
			t.CloseTime.Local().Format("2006-01-02 15:04:05"), t.Side.Label(), t.RealizedPnL, t.ExitPrice, result)
	}
	w.Flush()

	winRate := 0.0
	if summary.Trades > 0 {
		winRate = 100 * float64(summary.Wins) / float64(summary.Trades)
	}
	fmt.Printf("\n%s: %d trades, %d wins (%.1f%%), total PnL %.2f$\n",
		*symbol, summary.Trades, summary.Wins, winRate, summary.TotalPnL)
}
