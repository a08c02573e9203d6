// cmd/backtest runs SMA crossover backtests and paper-trading replays
// against the bar history in SQLite, and imports bars from CSV.
//
// Usage:
//
//	go run ./cmd/backtest sma-crossover AAPL --start=2024-01-01 --end=2024-03-31
//	go run ./cmd/backtest replay AAPL MSFT --speed=0
//	go run ./cmd/backtest import AAPL bars.csv
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trading-platform/internal/backtest"
	"trading-platform/internal/portfolio"
	sqlitestore "trading-platform/internal/store/sqlite"
	"trading-platform/internal/tradecore"
)

const dateLayout = "2006-01-02"

var dbPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "backtest",
		Short:        "Backtest and replay strategies over stored bars",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "data/trading.db", "Path to SQLite database")

	rootCmd.AddCommand(smaCrossoverCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(resultsCmd())
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func openStore() (*sqlitestore.Store, error) {
	return sqlitestore.Open(sqlitestore.Config{DBPath: dbPath})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func smaCrossoverCmd() *cobra.Command {
	var (
		start, end  string
		capital     float64
		short, long int
		showTrades  bool
	)
	cmd := &cobra.Command{
		Use:   "sma-crossover SYMBOL",
		Short: "Backtest the 1-unit SMA crossover strategy and store the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := time.Parse(dateLayout, start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			endDate, err := time.Parse(dateLayout, end)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := signalContext()
			defer cancel()

			engine := backtest.NewEngine(store, backtest.WithResults(store))
			result, err := engine.RunSmaCrossover(ctx, backtest.Request{
				Symbol:         args[0],
				StartDate:      startDate,
				EndDate:        endDate,
				InitialCapital: capital,
				ShortPeriod:    short,
				LongPeriod:     long,
			})
			if err != nil {
				return err
			}
			if !showTrades {
				result.Trades = nil
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "First date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&end, "end", "", "Last date, YYYY-MM-DD (required)")
	cmd.Flags().Float64Var(&capital, "capital", 10000, "Initial capital")
	cmd.Flags().IntVar(&short, "short", 5, "Short SMA period")
	cmd.Flags().IntVar(&long, "long", 20, "Long SMA period")
	cmd.Flags().BoolVar(&showTrades, "trades", false, "Include the trade list")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func replayCmd() *cobra.Command {
	var (
		from     string
		speed    float64
		cash     float64
		notional float64
	)
	cmd := &cobra.Command{
		Use:   "replay SYMBOL...",
		Short: "Paper-trade the enabled strategy configs over stored bars",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fromTime time.Time
			if from != "" {
				t, err := time.Parse(dateLayout, from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				fromTime = t
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := signalContext()
			defer cancel()

			report, err := tradecore.Replay(ctx, store, store, tradecore.ReplayOptions{
				Symbols:   args,
				From:      fromTime,
				Speed:     speed,
				Portfolio: portfolio.Config{InitialCash: cash, Notional: notional},
			})
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Replay bars from this date, YYYY-MM-DD (default: all)")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	cmd.Flags().Float64Var(&cash, "cash", 10000, "Starting cash")
	cmd.Flags().Float64Var(&notional, "notional", 100, "Cash moved per trade")
	return cmd
}

func resultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "List stored backtest results, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := store.FindAllBacktestResults(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("%4d  %-6s %s..%s  P/L %10.2f (%6.2f%%)  trades %d (%d/%d)  %s\n",
					r.ID, r.Symbol, r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout),
					r.TotalProfitLoss, r.PercentageProfitLoss, r.TotalTrades, r.WinningTrades, r.LosingTrades,
					r.RunTime.Format(time.RFC3339))
			}
			return nil
		},
	}
}
