package redis

import (
	"strings"
	"testing"
)

func TestPlateKey(t *testing.T) {
	a := plateKey("https://img.example.com/1.jpg")
	b := plateKey("https://img.example.com/2.jpg")
	if !strings.HasPrefix(a, plateKeyPrefix) {
		t.Errorf("plateKey = %q; want %q prefix", a, plateKeyPrefix)
	}
	if a == b {
		t.Error("distinct image URLs produced the same key")
	}
	if a != plateKey("https://img.example.com/1.jpg") {
		t.Error("plateKey is not stable")
	}
}

func TestValuationKey(t *testing.T) {
	tests := []struct {
		plate   string
		mileage int
		want    string
	}{
		{"AB12CDE", 45000, "valuation:AB12CDE:45000"},
		{"ab12cde", 45000, "valuation:AB12CDE:45000"},
		{"AB12CDE", 46000, "valuation:AB12CDE:46000"},
	}
	for _, tt := range tests {
		if got := valuationKey(tt.plate, tt.mileage); got != tt.want {
			t.Errorf("valuationKey(%q, %d) = %q; want %q", tt.plate, tt.mileage, got, tt.want)
		}
	}
}
