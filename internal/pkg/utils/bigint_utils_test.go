package utils

import (
	"math/big"
	"testing"
)

func TestParseBigInt(t *testing.T) {
	cases := []struct {
		input    string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{"1.2345", 6, "1234500", false},
		{"100", 18, "100000000000000000000", false},
		{"0.5", 18, "500000000000000000", false},
		{"10", 6, "10000000", false},
		{".5", 2, "50", false},
		{"1.", 2, "100", false},
		// excess fractional digits truncate, never round up
		{"1.999999999", 6, "1999999", false},
		{"0.0000001", 6, "0", false},
		{"-2.5", 6, "-2500000", false},
		{"", 6, "", true},
		{"abc", 6, "", true},
		{".", 6, "", true},
		{"1.2.3", 6, "", true},
	}

	for _, tc := range cases {
		got, err := ParseBigInt(tc.input, tc.decimals)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseBigInt(%q, %d): expected error, got %s", tc.input, tc.decimals, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseBigInt(%q, %d): unexpected error %v", tc.input, tc.decimals, err)
			continue
		}
		if got.String() != tc.want {
			t.Errorf("ParseBigInt(%q, %d) = %s, want %s", tc.input, tc.decimals, got, tc.want)
		}
	}
}

func TestFormatBigInt(t *testing.T) {
	cases := []struct {
		value    string
		decimals uint8
		want     string
	}{
		{"1234500000000000000", 18, "1.2345"},
		{"100000000000000000000", 18, "100"},
		{"49500000000000000000", 18, "49.5"},
		{"9950000", 6, "9.95"},
		{"0", 18, "0"},
		{"1", 18, "0.000000000000000001"},
		{"-2500000", 6, "-2.5"},
		{"42", 0, "42"},
	}

	for _, tc := range cases {
		value, ok := new(big.Int).SetString(tc.value, 10)
		if !ok {
			t.Fatalf("bad test value %q", tc.value)
		}
		got, err := FormatBigInt(value, tc.decimals)
		if err != nil {
			t.Errorf("FormatBigInt(%s, %d): unexpected error %v", tc.value, tc.decimals, err)
			continue
		}
		if got != tc.want {
			t.Errorf("FormatBigInt(%s, %d) = %q, want %q", tc.value, tc.decimals, got, tc.want)
		}
	}
}

func TestFormatBigIntNil(t *testing.T) {
	got, err := FormatBigInt(nil, 18)
	if err != nil || got != "0" {
		t.Fatalf("FormatBigInt(nil) = %q, %v; want \"0\", nil", got, err)
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	inputs := []string{"1.2345", "100", "0.000001"}
	for _, input := range inputs {
		parsed, err := ParseBigInt(input, 6)
		if err != nil {
			t.Fatalf("ParseBigInt(%q): %v", input, err)
		}
		formatted, err := FormatBigInt(parsed, 6)
		if err != nil {
			t.Fatalf("FormatBigInt: %v", err)
		}
		if formatted != input {
			t.Errorf("round trip of %q produced %q", input, formatted)
		}
	}
}
