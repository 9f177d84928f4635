package models

import (
	"encoding/json"
	"testing"
)

func TestOrderDecodesBothQtyEncodings(t *testing.T) {
	cases := []string{
		`{"symbol":"AAPL","side":"buy","qty":10,"stop_loss":{"stop_price":98.5}}`,
		`{"symbol":"AAPL","side":"buy","qty":"10","stop_loss":{"stop_price":"98.5"}}`,
	}
	for i, raw := range cases {
		var o Order
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if o.Qty != 10 {
			t.Fatalf("case %d: qty %v", i, o.Qty)
		}
		if o.StopPrice() != 98.5 {
			t.Fatalf("case %d: stop %v", i, o.StopPrice())
		}
	}
}

func TestNumericRejectsGarbage(t *testing.T) {
	var o Order
	if err := json.Unmarshal([]byte(`{"symbol":"AAPL","qty":"ten"}`), &o); err == nil {
		t.Fatalf("non-numeric qty must not decode")
	}
}

func TestNumericEmptyAndNull(t *testing.T) {
	var o Order
	if err := json.Unmarshal([]byte(`{"symbol":"AAPL","qty":"","entry":null}`), &o); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if o.Qty != 0 || o.Entry != 0 {
		t.Fatalf("empty and null fold to zero, got qty=%v entry=%v", o.Qty, o.Entry)
	}
}
