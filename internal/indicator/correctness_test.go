package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"trading-platform/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func series(closes ...float64) *model.BarSeries {
	return model.SeriesFromCloses("TEST", t0, closes...)
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

func mustSMA(t *testing.T, s *model.BarSeries, period, index int) float64 {
	t.Helper()
	v, err := SMA(s, period, index)
	if err != nil {
		t.Fatalf("SMA(%d) at %d: %v", period, index, err)
	}
	return v
}

// ────────────────────────────────────────────────────────────
// SMA Correctness
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Prices: 100, 102, 104, 103, 105
	// SMA at index 2: (100+102+104)/3 = 102.0000
	// SMA at index 3: (102+104+103)/3 = 103.0000
	// SMA at index 4: (104+103+105)/3 = 104.0000
	s := series(100, 102, 104, 103, 105)
	expected := map[int]float64{2: 102.0, 3: 103.0, 4: 104.0}

	for i := 0; i < s.Len(); i++ {
		v, err := SMA(s, 3, i)
		want, ready := expected[i]
		if !ready {
			if !errors.Is(err, ErrInsufficientData) {
				t.Errorf("index %d: err=%v, want ErrInsufficientData", i, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("index %d: %v", i, err)
		}
		assertClose(t, "SMA(3)", v, want, 0.0001)
	}
}

func TestSMA_OneToFive(t *testing.T) {
	s := series(1, 2, 3, 4, 5)
	assertClose(t, "SMA(5) at 4", mustSMA(t, s, 5, 4), 3.0, 1e-12)
	assertClose(t, "SMA(3) at 4", mustSMA(t, s, 3, 4), 4.0, 1e-12)
}

func TestSMASeries_MatchesPointwise(t *testing.T) {
	s := series(10, 11, 12, 13, 14, 15, 16)
	out := SMASeries(s, 5)
	for i := 0; i < 4; i++ {
		if !math.IsNaN(out[i]) {
			t.Errorf("index %d: got %.4f, want NaN during warm-up", i, out[i])
		}
	}
	for i := 4; i < s.Len(); i++ {
		assertClose(t, "SMASeries", out[i], mustSMA(t, s, 5, i), 1e-12)
	}
	assertClose(t, "SMA(5) at 6", out[6], 14.0, 1e-12)
}

func TestSMA_InsufficientData(t *testing.T) {
	s := series(1, 2, 3)
	_, err := SMA(s, 5, 2)
	var ide *InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("err=%v, want *InsufficientDataError", err)
	}
	if ide.Required != 5 || ide.Index != 2 {
		t.Errorf("got %+v", ide)
	}
}

func TestSMA_InvalidArguments(t *testing.T) {
	s := series(1, 2, 3)
	if _, err := SMA(s, 0, 2); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("period 0: err=%v", err)
	}
	if _, err := SMA(s, 2, 3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("index past end: err=%v", err)
	}
	if _, err := SMA(series(), 2, -1); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("empty series: err=%v", err)
	}
}

// ────────────────────────────────────────────────────────────
// EMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// EMA(3): multiplier = 2/(3+1) = 0.5
	// Prices: 100, 102, 104, 103, 105
	//
	// Index 2: seed = (100+102+104)/3 = 102.0
	// Index 3: EMA = 103*0.5 + 102.0*0.5 = 102.5
	// Index 4: EMA = 105*0.5 + 102.5*0.5 = 103.75
	s := series(100, 102, 104, 103, 105)
	expected := []float64{2: 102.0, 3: 102.5, 4: 103.75}

	for i := 2; i < s.Len(); i++ {
		v, err := EMA(s, 3, i)
		if err != nil {
			t.Fatalf("index %d: %v", i, err)
		}
		assertClose(t, "EMA(3)", v, expected[i], 0.0001)
	}
	if _, err := EMA(s, 3, 1); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("index 1: err=%v, want ErrInsufficientData", err)
	}
}

func TestEMA_Correctness_Period5(t *testing.T) {
	// EMA(5): multiplier = 2/(5+1) = 1/3
	// Prices: 44, 44.25, 44.50, 43.75, 44.50 → seed = 44.20
	// Index 5 (44.25): EMA = 44.25*(1/3) + 44.20*(2/3) = 44.2167
	// Index 6 (44.00): EMA = 44.00*(1/3) + 44.2167*(2/3) = 44.1444
	mult := 2.0 / 6.0
	s := series(44, 44.25, 44.50, 43.75, 44.50, 44.25, 44.00)
	seedExpected := (44.0 + 44.25 + 44.50 + 43.75 + 44.50) / 5.0

	seed, _ := EMA(s, 5, 4)
	assertClose(t, "EMA(5) seed", seed, seedExpected, 0.01)

	expected5 := 44.25*mult + seedExpected*(1-mult)
	v5, _ := EMA(s, 5, 5)
	assertClose(t, "EMA(5) index 5", v5, expected5, 0.01)

	expected6 := 44.00*mult + expected5*(1-mult)
	v6, _ := EMA(s, 5, 6)
	assertClose(t, "EMA(5) index 6", v6, expected6, 0.01)

	out := emaValues(s.Closes(), 5)
	assertClose(t, "emaValues index 6", out[6], v6, 1e-12)
}

func TestEMA_IgnoresFutureBars(t *testing.T) {
	short := series(100, 102, 104, 103)
	long := series(100, 102, 104, 103, 500, 1)
	a, _ := EMA(short, 3, 3)
	b, _ := EMA(long, 3, 3)
	assertClose(t, "EMA is a function of the prefix", a, b, 1e-12)
}

// ────────────────────────────────────────────────────────────
// RSI Correctness (Wilder's Method)
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness_Period5(t *testing.T) {
	// Prices: 44, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84
	//
	// First RSI (index 5, period=5):
	//   sumGain = 0.34+0.72+0.50 = 1.56 → avgGain = 0.312
	//   sumLoss = 0.25+0.48       = 0.73 → avgLoss = 0.146
	//   RSI = 100 - 100/(1+2.13699) = 68.112
	//
	// Index 6 (45.10): avgGain = 0.3036, avgLoss = 0.1168 → RSI = 72.219
	// Index 7 (45.42): avgGain = 0.30688, avgLoss = 0.09344 → RSI = 76.658
	// Index 8 (45.84): avgGain = 0.329504, avgLoss = 0.074752 → RSI = 81.509
	s := series(44, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84)

	cases := []struct {
		index int
		want  float64
		tol   float64
	}{
		{5, 68.112, 0.1},
		{6, 72.219, 0.1},
		{7, 76.658, 0.1},
		{8, 81.509, 0.2},
	}
	for _, c := range cases {
		v, err := RSI(s, 5, c.index)
		if err != nil {
			t.Fatalf("index %d: %v", c.index, err)
		}
		assertClose(t, "RSI(5)", v, c.want, c.tol)
	}

	if _, err := RSI(s, 5, 4); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("index 4: err=%v, want ErrInsufficientData", err)
	}
}

func TestRSI_AllUp_Is100(t *testing.T) {
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	v, err := RSI(series(closes...), 14, 14)
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "RSI all up", v, 100.0, 0.001)
}

func TestRSI_AllDown_Is0(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	v, _ := RSI(series(closes...), 5, 9)
	assertClose(t, "RSI all down", v, 0.0, 0.001)
}

func TestRSI_Flat_Is100(t *testing.T) {
	// Both averages are zero; the avgLoss==0 branch returns 100.
	v, _ := RSI(series(100, 100, 100, 100, 100, 100, 100), 5, 6)
	assertClose(t, "RSI flat", v, 100.0, 0.001)
}

func TestRSI_Bounded(t *testing.T) {
	s := series(10, 12, 9, 15, 8, 20, 3, 30, 1, 25, 7, 14, 11, 16, 2, 19)
	for i := 5; i < s.Len(); i++ {
		v, _ := RSI(s, 5, i)
		if v < 0 || v > 100 {
			t.Errorf("index %d: RSI=%.4f outside [0,100]", i, v)
		}
	}
}

// ────────────────────────────────────────────────────────────
// MACD Correctness
// ────────────────────────────────────────────────────────────

func TestMACD_HistogramIdentity(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/5) + float64(i)/4
	}
	s := series(closes...)

	for i := 25; i < s.Len(); i++ {
		v, err := MACD(s, 12, 26, 9, i)
		if err != nil {
			t.Fatalf("index %d: %v", i, err)
		}
		assertClose(t, "histogram = macd - signal", v.Histogram, v.MACD-v.Signal, 1e-9)

		fast, _ := EMA(s, 12, i)
		slow, _ := EMA(s, 26, i)
		assertClose(t, "macd = EMA12 - EMA26", v.MACD, fast-slow, 1e-9)
	}
}

func TestMACD_SignalWarmup(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	s := series(closes...)

	// MACD line starts at index 25; signal EMA(9) seeds 8 values later.
	v, err := MACD(s, 12, 26, 9, 25)
	if err != nil {
		t.Fatal(err)
	}
	if v.SignalReady || v.Histogram != 0 || v.Signal != v.MACD {
		t.Errorf("index 25: got %+v, want unseeded signal", v)
	}
	v, _ = MACD(s, 12, 26, 9, 33)
	if !v.SignalReady {
		t.Errorf("index 33: signal should be seeded")
	}
	if _, err := MACD(s, 12, 26, 9, 24); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("index 24: err=%v, want ErrInsufficientData", err)
	}
}

func TestMACDSeries_MatchesPointwise(t *testing.T) {
	closes := make([]float64, 45)
	for i := range closes {
		closes[i] = 50 + float64(i%7)*1.5
	}
	s := series(closes...)
	all := MACDSeries(s, 12, 26, 9)
	for i := 25; i < s.Len(); i++ {
		v, _ := MACD(s, 12, 26, 9, i)
		assertClose(t, "MACDSeries.MACD", all[i].MACD, v.MACD, 1e-12)
		assertClose(t, "MACDSeries.Signal", all[i].Signal, v.Signal, 1e-12)
	}
	if !math.IsNaN(all[0].MACD) {
		t.Errorf("index 0: want NaN, got %.4f", all[0].MACD)
	}
}

// ────────────────────────────────────────────────────────────
// Cross-indicator: same data → correct ordering
// ────────────────────────────────────────────────────────────

func TestIndicators_TrendingUp_Ordering(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	s := series(closes...)
	end := s.EndIndex()

	sma5 := mustSMA(t, s, 5, end)
	sma20 := mustSMA(t, s, 20, end)
	ema5, _ := EMA(s, 5, end)

	if sma5 <= sma20 {
		t.Errorf("SMA(5) should be > SMA(20) in uptrend: SMA5=%.2f, SMA20=%.2f", sma5, sma20)
	}
	if ema5 <= sma20 {
		t.Errorf("EMA(5) should be > SMA(20) in uptrend: EMA5=%.2f, SMA20=%.2f", ema5, sma20)
	}
}

func TestEMA_MoreResponsiveThanSMA(t *testing.T) {
	closes := make([]float64, 21)
	for i := range closes {
		closes[i] = 100
	}
	closes[20] = 120
	s := series(closes...)

	sma := mustSMA(t, s, 10, 20)
	ema, _ := EMA(s, 10, 20)
	if ema <= sma {
		t.Errorf("EMA should react more than SMA to sudden price jump: EMA=%.4f, SMA=%.4f", ema, sma)
	}
}

// ────────────────────────────────────────────────────────────
// Best-effort helpers
// ────────────────────────────────────────────────────────────

func TestBestEffort_ZeroOnShortSeries(t *testing.T) {
	s := series(1, 2, 3)
	if v := BestEffortSMA(s, 20); v != 0 {
		t.Errorf("BestEffortSMA: got %.4f, want 0", v)
	}
	if v := BestEffortRSI(s, 14); v != 0 {
		t.Errorf("BestEffortRSI: got %.4f, want 0", v)
	}
	if v := BestEffortMACD(s, 12, 26, 9); v != (MACDValue{}) {
		t.Errorf("BestEffortMACD: got %+v, want zero", v)
	}
	if v := BestEffortEMA(s, 20); v != 0 {
		t.Errorf("BestEffortEMA: got %.4f, want 0", v)
	}
	sum := Summarize(s)
	if sum.Bars != 3 || sum.Symbol != "TEST" || sum.EMA != 0 {
		t.Errorf("Summarize: got %+v", sum)
	}

	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	full := series(closes...)
	ema, _ := EMA(full, 20, full.EndIndex())
	if got := Summarize(full).EMA; got != ema {
		t.Errorf("Summarize EMA: got %.4f, want %.4f", got, ema)
	}
}
