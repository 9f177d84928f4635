package models

// Bar is one OHLCV record. Time is epoch seconds. A series is ordered
// ascending by Time and is immutable once fetched.
type Bar struct {
	Time   int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume int64   `json:"v"`
}
