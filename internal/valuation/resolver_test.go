package valuation

import (
	"reflect"
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      int
		ok        bool
	}{
		{"max within bounds", []string{"£250 fee", "£8,450", "£12"}, 8450, true},
		{"decimal truncated", []string{"We'll buy your car for £1,234.99"}, 1234, true},
		{"space after symbol", []string{"£ 2,000"}, 2000, true},
		{"upper bound inclusive", []string{"£50,000", "£50,001"}, 50000, true},
		{"lower bound inclusive", []string{"£100", "£99"}, 100, true},
		{"all out of bounds", []string{"£12", "£75,000"}, 0, false},
		{"no currency", []string{"Your valuation is ready"}, 0, false},
		{"long fragment ignored", []string{"£9,999 " + strings.Repeat("x", 60), "£500"}, 500, true},
		{"several amounts in one fragment", []string{"£300 or £3,300"}, 3300, true},
		{"empty", nil, 0, false},
	}
	r := NewResolver()
	for _, tt := range tests {
		got, ok := r.Resolve(tt.fragments)
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s: Resolve(%q) = %d, %v; want %d, %v", tt.name, tt.fragments, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCandidatesPreserveOrder(t *testing.T) {
	got := NewResolver().Candidates([]string{"£8,450", "£250 fee", "£12"})
	want := []int{8450, 250}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates = %v; want %v", got, want)
	}
}

func TestCustomSelector(t *testing.T) {
	r := NewResolver()
	r.Select = func(c []int) int { return c[0] }
	got, ok := r.Resolve([]string{"£250 fee", "£8,450"})
	if !ok || got != 250 {
		t.Errorf("Resolve with first-candidate selector = %d, %v; want 250, true", got, ok)
	}
}

func TestMaximum(t *testing.T) {
	if got := Maximum([]int{3, 9, 1}); got != 9 {
		t.Errorf("Maximum = %d; want 9", got)
	}
}
