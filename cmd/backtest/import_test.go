package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"trading-platform/internal/model"
)

func TestReadBarsCSV(t *testing.T) {
	in := `timestamp,open,high,low,close,volume
2024-03-01T14:30:00Z,10,11,9,10.5,1200
2024-03-01 14:31:00,10.5,12,10,11.75,
2024-03-04,11,11,11,11
`
	bars, err := readBarsCSV("AAPL", strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 3 {
		t.Fatalf("got %d bars", len(bars))
	}
	if bars[0].Volume != 1200 || bars[0].Close != 10.5 || bars[0].Symbol != "AAPL" {
		t.Errorf("bar 0 = %+v", bars[0])
	}
	want := time.Date(2024, 3, 1, 14, 31, 0, 0, time.UTC)
	if !bars[1].Timestamp.Equal(want) || bars[1].Volume != 0 {
		t.Errorf("bar 1 = %+v", bars[1])
	}
	if bars[2].Timestamp.Day() != 4 {
		t.Errorf("bar 2 = %+v", bars[2])
	}
}

func TestReadBarsCSV_Errors(t *testing.T) {
	cases := map[string]string{
		"short row":     "2024-03-01,1,2,3\n",
		"bad price":     "2024-03-01,1,2,x,4\n",
		"bad timestamp": "2024-03-01,1,2,3,4\nyesterday,1,2,3,4\n",
		"infinite high": "2024-03-01,1,Inf,3,4\n",
		"nan close":     "2024-03-01,1,2,3,NaN\n",
		"repeated time": "2024-03-01,1,2,3,4\n2024-03-01,1,2,3,5\n",
	}
	for name, in := range cases {
		if _, err := readBarsCSV("AAPL", strings.NewReader(in)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestReadBarsCSV_SortsAndRejectsInfinity(t *testing.T) {
	in := "2024-03-04,3,3,3,3\n2024-03-01,1,1,1,1\n2024-03-02,2,2,2,2\n"
	bars, err := readBarsCSV("AAPL", strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{1, 2, 3} {
		if bars[i].Close != want {
			t.Errorf("bar %d close = %v, want %v", i, bars[i].Close, want)
		}
	}

	_, err = readBarsCSV("AAPL", strings.NewReader("2024-03-01,1,1,1,+Inf\n"))
	if !errors.Is(err, model.ErrNonFinitePrice) {
		t.Errorf("expected ErrNonFinitePrice, got %v", err)
	}
	_, err = readBarsCSV("AAPL", strings.NewReader("2024-03-01,1,1,1,1\n2024-03-01,2,2,2,2\n"))
	if !errors.Is(err, model.ErrDataOrdering) {
		t.Errorf("expected ErrDataOrdering, got %v", err)
	}
}
