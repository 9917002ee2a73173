package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"1000000000", 100_000_000_000, true},
		{"1000000000.01", 0, false},
		{"100000000000000000", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.Cents() != tc.cents {
				t.Fatalf("%q expected %d cents, got %d (err=%v)", tc.in, tc.cents, got.Cents(), err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		15000: "150",
		1250:  "12.5",
		1:     "0.01",
		0:     "0",
	}
	for cents, want := range cases {
		if got := MoneyFromCents(cents).String(); got != want {
			t.Fatalf("MoneyFromCents(%d).String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	var v struct {
		A Money  `json:"a"`
		B Money  `json:"b"`
		C *Money `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.5, "b": "7,25", "c": null}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A.Cents() != 1250 || v.B.Cents() != 725 || v.C != nil {
		t.Fatalf("unexpected decode: a=%s b=%s c=%v", v.A, v.B, v.C)
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":12.5,"b":7.25,"c":null}` {
		t.Fatalf("unexpected encode: %s", out)
	}

	if err := json.Unmarshal([]byte(`{"a": -3}`), &v); err == nil {
		t.Fatalf("expected error for negative amount")
	}
	if err := json.Unmarshal([]byte(`{"a": true}`), &v); err == nil {
		t.Fatalf("expected error for boolean amount")
	}
}

func TestMoneyCompare(t *testing.T) {
	a, b := MoneyFromCents(15000), MoneyFromCents(10000)
	if !a.GreaterThan(b) || b.GreaterThan(a) || a.LessThan(b) {
		t.Fatalf("comparison mismatch between %s and %s", a, b)
	}
	if got := a.Add(b).Cents(); got != 25000 {
		t.Fatalf("Add = %d, want 25000", got)
	}
}

func TestMoneyTooLarge(t *testing.T) {
	var m Money
	err := json.Unmarshal([]byte(`"100000000000000000"`), &m)
	if !errors.Is(err, ErrAmountTooLarge) || !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
	if err := MaxMoney.Validate(); err != nil {
		t.Fatalf("MaxMoney should be valid: %v", err)
	}
	if err := MaxMoney.Add(MoneyFromCents(1)).Validate(); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
	b := Budget{Category: "Food", Limit: MaxMoney.Add(MoneyFromCents(1))}
	if err := b.Validate(); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge for budget, got %v", err)
	}
}
