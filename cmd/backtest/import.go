package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trading-platform/internal/model"
)

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import SYMBOL FILE.csv",
		Short: "Load bars from a CSV file (timestamp,open,high,low,close[,volume])",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			bars, err := readBarsCSV(args[0], f)
			if err != nil {
				return err
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SaveBars(cmd.Context(), bars); err != nil {
				return err
			}
			fmt.Printf("imported %d bars for %s\n", len(bars), args[0])
			return nil
		},
	}
}

var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// readBarsCSV parses timestamp,open,high,low,close[,volume] rows. A first
// row whose timestamp does not parse is treated as a header. Timestamps
// without a zone are read as UTC. Rows are returned in time order; repeated
// timestamps and non-finite prices are errors.
func readBarsCSV(symbol string, r io.Reader) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var bars []model.Bar
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("line %d: want at least 5 fields, got %d", line, len(rec))
		}

		ts, ok := parseCSVTime(rec[0])
		if !ok {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: bad timestamp %q", line, rec[0])
		}

		var px [4]float64
		for i := range px {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", line, i+2, err)
			}
			px[i] = v
		}
		var vol int64
		if len(rec) > 5 && strings.TrimSpace(rec[5]) != "" {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d volume: %w", line, err)
			}
			vol = int64(v)
		}

		if err := model.CheckPrices(px[0], px[1], px[2], px[3]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		bars = append(bars, model.Bar{
			Symbol: symbol, Timestamp: ts,
			Open: px[0], High: px[1], Low: px[2], Close: px[3], Volume: vol,
		})
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	if _, err := model.BuildSeriesStrict(symbol, bars, nil); err != nil {
		return nil, err
	}
	return bars, nil
}

func parseCSVTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
