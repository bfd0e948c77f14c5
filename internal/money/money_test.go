package money

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

func TestNewCurrency_Valid(t *testing.T) {
	for _, code := range []string{"GBP", "ZAR", "USD", "EUR"} {
		c, err := NewCurrency(code)
		if err != nil {
			t.Errorf("NewCurrency(%q) unexpected error: %v", code, err)
		}
		if c.Code() != code {
			t.Errorf("NewCurrency(%q).Code() = %q, want %q", code, c.Code(), code)
		}
	}
}

func TestNewCurrency_Invalid(t *testing.T) {
	for _, code := range []string{"", "gbp", "GB", "GBPP", "G1P", "£££"} {
		if _, err := NewCurrency(code); err == nil {
			t.Errorf("NewCurrency(%q) expected error, got nil", code)
		}
	}
}

func TestAdd_SameCurrency(t *testing.T) {
	a := MustParse("100.50", GBP)
	b := MustParse("24.50", GBP)

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add unexpected error: %v", err)
	}
	if !sum.Amount().Equal(decimal.NewFromInt(125)) {
		t.Errorf("Add = %s, want 125 GBP", sum)
	}
}

func TestAdd_CurrencyMismatch(t *testing.T) {
	a := FromInt(100, GBP)
	b := FromInt(100, ZAR)

	if _, err := a.Add(b); err == nil {
		t.Error("Add across currencies expected error, got nil")
	}
	if _, err := a.Sub(b); err == nil {
		t.Error("Sub across currencies expected error, got nil")
	}
	if _, err := a.Cmp(b); err == nil {
		t.Error("Cmp across currencies expected error, got nil")
	}
}

func TestSub_CanGoNegative(t *testing.T) {
	a := FromInt(100, GBP)
	b := FromInt(150, GBP)

	diff, err := a.Sub(b)
	if err != nil {
		t.Fatalf("Sub unexpected error: %v", err)
	}
	if !diff.IsNegative() {
		t.Errorf("Sub = %s, want negative", diff)
	}
	if !diff.FloorZero().IsZero() {
		t.Errorf("FloorZero of %s = %s, want zero", diff, diff.FloorZero())
	}
}

func TestMul_ExactDecimal(t *testing.T) {
	// 500000 * 0.275 must be exactly 137500, no float drift.
	m := FromInt(500000, ZAR)
	rate := decimal.RequireFromString("0.275")

	got := m.Mul(rate)
	if !got.Amount().Equal(decimal.NewFromInt(137500)) {
		t.Errorf("Mul = %s, want 137500 ZAR", got)
	}
}

func TestMinMax(t *testing.T) {
	a := FromInt(10, GBP)
	b := FromInt(20, GBP)

	lo, err := Min(a, b)
	if err != nil || !lo.Equal(a) {
		t.Errorf("Min = %s (err %v), want %s", lo, err, a)
	}
	hi, err := Max(a, b)
	if err != nil || !hi.Equal(b) {
		t.Errorf("Max = %s (err %v), want %s", hi, err, b)
	}
	if _, err := Min(a, FromInt(5, ZAR)); err == nil {
		t.Error("Min across currencies expected error, got nil")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	in := MustParse("60000", GBP)

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal unexpected error: %v", err)
	}

	var out Money
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal unexpected error: %v", err)
	}
	if !out.Equal(in) {
		t.Errorf("round trip = %s, want %s", out, in)
	}
}

func TestUnmarshalJSON_Invalid(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`{"amount":"abc","currency":"GBP"}`), &m); err == nil {
		t.Error("expected error for invalid amount, got nil")
	}
	if err := json.Unmarshal([]byte(`{"amount":"10","currency":"pounds"}`), &m); err == nil {
		t.Error("expected error for invalid currency, got nil")
	}
}
