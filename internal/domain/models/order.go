package models

import (
	"encoding/json"
	"strconv"
)

// Numeric is a float64 that decodes from either a JSON number or a
// quoted numeric string. Brokerage payloads quote quantities and
// prices; hand-built order bodies usually send bare numbers.
type Numeric float64

func (n *Numeric) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
		if s == "" {
			*n = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = Numeric(f)
	return nil
}

// Order is the proposed order payload. It is forwarded to the
// brokerage unmodified after the guardrail chain passes, so unknown
// fields are preserved via Raw.
type Order struct {
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	Qty         Numeric         `json:"qty"`
	Type        string          `json:"type,omitempty"`
	TimeInForce string          `json:"time_in_force,omitempty"`
	OrderClass  string          `json:"order_class,omitempty"`
	TakeProfit  *BracketLeg     `json:"take_profit,omitempty"`
	StopLoss    *BracketLeg     `json:"stop_loss,omitempty"`
	Entry       Numeric         `json:"entry,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// BracketLeg is one leg of a bracket order.
type BracketLeg struct {
	LimitPrice Numeric `json:"limit_price,omitempty"`
	StopPrice  Numeric `json:"stop_price,omitempty"`
}

// StopPrice returns the order's stop price, 0 when absent.
func (o *Order) StopPrice() float64 {
	if o.StopLoss == nil {
		return 0
	}
	return float64(o.StopLoss.StopPrice)
}

// Account is the brokerage account snapshot used by guardrails.
type Account struct {
	Equity     float64 `json:"equity,string"`
	LastEquity float64 `json:"last_equity,string"`
}

// Position is one open brokerage position.
type Position struct {
	Symbol      string  `json:"symbol"`
	Qty         float64 `json:"qty,string"`
	MarketValue float64 `json:"market_value,string"`
}

// Clock is the market-clock snapshot.
type Clock struct {
	IsOpen    bool   `json:"is_open"`
	NextOpen  string `json:"next_open,omitempty"`
	NextClose string `json:"next_close,omitempty"`
}

// OrderStub is the minimal view of a previously submitted order used
// by the cooldown guardrail.
type OrderStub struct {
	ID          string `json:"id"`
	SubmittedAt string `json:"submitted_at"`
}
