package strategy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
)

// ErrInvalidParameter is matched by every InvalidParameterError.
var ErrInvalidParameter = errors.New("invalid strategy parameter")

// InvalidParameterError reports a parameter blob or field that could not be
// used. The strategy falls back to the default and only logs the error.
type InvalidParameterError struct {
	Strategy string
	Field    string // empty when the whole blob is unreadable
	Err      error
}

func (e *InvalidParameterError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: unreadable parameters: %v", e.Strategy, e.Err)
	}
	return fmt.Sprintf("%s: parameter %q: %v", e.Strategy, e.Field, e.Err)
}

func (e *InvalidParameterError) Unwrap() error { return e.Err }

func (e *InvalidParameterError) Is(target error) bool { return target == ErrInvalidParameter }

// params reads typed fields out of a JSON object, collecting errors.
type params struct {
	strategy string
	fields   map[string]any
	errs     []error
}

func decodeParams(strategy string, raw json.RawMessage) *params {
	p := &params{strategy: strategy, fields: map[string]any{}}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return p
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		p.errs = append(p.errs, &InvalidParameterError{Strategy: strategy, Err: err})
		return p
	}
	if fields != nil {
		p.fields = fields
	}
	return p
}

// lookup returns the first key present, in order.
func (p *params) lookup(keys []string) (string, any, bool) {
	for _, k := range keys {
		if v, ok := p.fields[k]; ok {
			return k, v, true
		}
	}
	return "", nil, false
}

func (p *params) fail(field string, err error) {
	p.errs = append(p.errs, &InvalidParameterError{Strategy: p.strategy, Field: field, Err: err})
}

// period reads a positive integer. Integral JSON numbers such as 5.0 are accepted.
func (p *params) period(def int, keys ...string) int {
	key, v, ok := p.lookup(keys)
	if !ok {
		return def
	}
	n, isNum := v.(json.Number)
	if !isNum {
		p.fail(key, fmt.Errorf("want integer, got %T", v))
		return def
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 {
		p.fail(key, fmt.Errorf("want integer, got %s", n))
		return def
	}
	if f <= 0 {
		p.fail(key, fmt.Errorf("must be positive, got %s", n))
		return def
	}
	return int(f)
}

// float reads any JSON number.
func (p *params) float(def float64, keys ...string) float64 {
	key, v, ok := p.lookup(keys)
	if !ok {
		return def
	}
	n, isNum := v.(json.Number)
	if !isNum {
		p.fail(key, fmt.Errorf("want number, got %T", v))
		return def
	}
	f, err := n.Float64()
	if err != nil {
		p.fail(key, err)
		return def
	}
	return f
}

// report logs collected errors and returns them.
func (p *params) report() []error {
	for _, err := range p.errs {
		log.Printf("[strategy] %v (using default)", err)
	}
	return p.errs
}

// SmaParams configures SmaCrossover.
type SmaParams struct {
	ShortPeriod int `json:"shortPeriod"`
	LongPeriod  int `json:"longPeriod"`
}

// DefaultSmaParams returns shortPeriod=5, longPeriod=20.
func DefaultSmaParams() SmaParams {
	return SmaParams{ShortPeriod: 5, LongPeriod: 20}
}

// ParseSmaParams decodes SmaCrossover parameters. Legacy keys shortSma and
// longSma are accepted. Bad fields fall back to defaults and are returned.
func ParseSmaParams(raw json.RawMessage) (SmaParams, []error) {
	def := DefaultSmaParams()
	p := decodeParams(SmaCrossoverName, raw)
	out := SmaParams{
		ShortPeriod: p.period(def.ShortPeriod, "shortPeriod", "shortSma"),
		LongPeriod:  p.period(def.LongPeriod, "longPeriod", "longSma"),
	}
	return out, p.report()
}

// RsiMacdParams configures RsiMacd.
type RsiMacdParams struct {
	RSIPeriod     int     `json:"rsiPeriod"`
	RSIOverbought float64 `json:"rsiOverbought"`
	RSIOversold   float64 `json:"rsiOversold"`
	MACDFast      int     `json:"macdFast"`
	MACDSlow      int     `json:"macdSlow"`
	MACDSignal    int     `json:"macdSignal"`
}

// DefaultRsiMacdParams returns RSI(14) 70/30 and MACD(12,26,9).
func DefaultRsiMacdParams() RsiMacdParams {
	return RsiMacdParams{
		RSIPeriod:     14,
		RSIOverbought: 70,
		RSIOversold:   30,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
	}
}

// ParseRsiMacdParams decodes RsiMacd parameters. The legacy macdFastPeriod,
// macdSlowPeriod and macdSignalPeriod keys are accepted.
func ParseRsiMacdParams(raw json.RawMessage) (RsiMacdParams, []error) {
	def := DefaultRsiMacdParams()
	p := decodeParams(RsiMacdName, raw)
	out := RsiMacdParams{
		RSIPeriod:     p.period(def.RSIPeriod, "rsiPeriod"),
		RSIOverbought: p.float(def.RSIOverbought, "rsiOverbought"),
		RSIOversold:   p.float(def.RSIOversold, "rsiOversold"),
		MACDFast:      p.period(def.MACDFast, "macdFast", "macdFastPeriod"),
		MACDSlow:      p.period(def.MACDSlow, "macdSlow", "macdSlowPeriod"),
		MACDSignal:    p.period(def.MACDSignal, "macdSignal", "macdSignalPeriod"),
	}
	return out, p.report()
}
