package redis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"trading-platform/internal/model"
)

var errNoData = errors.New(`message has no "data" field`)

// timestamp accepts RFC 3339, zone-less ISO local date-times (read as UTC)
// and Unix seconds or milliseconds.
type timestamp time.Time

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			*t = timestamp(time.UnixMilli(n).UTC())
		} else {
			*t = timestamp(time.Unix(n, 0).UTC())
		}
		return nil
	}
	str, err := strconv.Unquote(s)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", s, err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, str); err == nil {
		*t = timestamp(ts)
		return nil
	}
	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, str, time.UTC); err == nil {
			*t = timestamp(ts)
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", str)
}

type wireBar struct {
	Symbol    string    `json:"symbol"`
	Timestamp timestamp `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

type wirePrediction struct {
	Symbol     string    `json:"symbol"`
	Timestamp  timestamp `json:"timestamp"`
	Prediction string    `json:"prediction"`
	Confidence float64   `json:"confidence"`
}

func payload(values map[string]interface{}) ([]byte, error) {
	switch v := values["data"].(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, errNoData
	}
}

// decodeBar parses a stock-data stream entry.
func decodeBar(values map[string]interface{}) (model.MarketDataEvent, error) {
	data, err := payload(values)
	if err != nil {
		return model.MarketDataEvent{}, err
	}
	var w wireBar
	if err := json.Unmarshal(data, &w); err != nil {
		return model.MarketDataEvent{}, fmt.Errorf("unmarshal bar: %w", err)
	}
	if w.Symbol == "" {
		return model.MarketDataEvent{}, errors.New("bar without symbol")
	}
	if err := model.CheckPrices(w.Open, w.High, w.Low, w.Close); err != nil {
		return model.MarketDataEvent{}, fmt.Errorf("bar %s: %w", w.Symbol, err)
	}
	return model.MarketDataEvent{
		Symbol:    w.Symbol,
		Timestamp: time.Time(w.Timestamp),
		Open:      w.Open,
		High:      w.High,
		Low:       w.Low,
		Close:     w.Close,
		Volume:    w.Volume,
	}, nil
}

// decodePrediction parses an ml-predictions stream entry.
func decodePrediction(values map[string]interface{}) (model.MLPrediction, error) {
	data, err := payload(values)
	if err != nil {
		return model.MLPrediction{}, err
	}
	var w wirePrediction
	if err := json.Unmarshal(data, &w); err != nil {
		return model.MLPrediction{}, fmt.Errorf("unmarshal prediction: %w", err)
	}
	if w.Symbol == "" {
		return model.MLPrediction{}, errors.New("prediction without symbol")
	}
	return model.MLPrediction{
		Symbol:     w.Symbol,
		Timestamp:  time.Time(w.Timestamp),
		Prediction: w.Prediction,
		Confidence: w.Confidence,
	}, nil
}
