package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{"1.004", "1", true},
		{" 2.50 ", "2.5", true},
		{".5", "0.5", true},
		{"0", "0", true},
		{"-1", "", false},
		{"+1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{".", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			want := decimal.RequireFromString(tc.out)
			if err != nil || !got.Equal(want) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, want, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormatEuros(t *testing.T) {
	cases := map[string]string{
		"12.34": "€12,34",
		"0":     "€0,00",
		"-5.5":  "-€5,50",
		"1000":  "€1000,00",
	}
	for in, want := range cases {
		if got := FormatEuros(decimal.RequireFromString(in)); got != want {
			t.Fatalf("FormatEuros(%s) = %q, want %q", in, got, want)
		}
	}
}
