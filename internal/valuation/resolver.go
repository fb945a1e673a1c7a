// Package valuation picks the quoted amount out of a valuation result page.
package valuation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var amountRe = regexp.MustCompile(`£\s*\d+(?:,\d{3})*(?:\.\d{2})?`)

// Selector chooses the final amount among the plausible candidates (never empty).
type Selector func(candidates []int) int

// Maximum picks the largest candidate, on the assumption that the headline
// valuation is the biggest plausible figure on the page.
func Maximum(candidates []int) int {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c > best {
			best = c
		}
	}
	return best
}

// Resolver extracts currency amounts from short page fragments.
type Resolver struct {
	MaxFragmentLen int // fragments of this many characters or more are ignored
	Min, Max       int // inclusive plausibility bounds
	Select         Selector
}

// NewResolver returns a resolver with a 50 character fragment ceiling,
// bounds of £100 to £50,000 and the Maximum selector.
func NewResolver() *Resolver {
	return &Resolver{
		MaxFragmentLen: 50,
		Min:            100,
		Max:            50000,
		Select:         Maximum,
	}
}

// Candidates returns every in-bounds amount found in the fragments, in order.
func (r *Resolver) Candidates(fragments []string) []int {
	var out []int
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if f == "" || utf8.RuneCountInString(f) >= r.MaxFragmentLen {
			continue
		}
		for _, m := range amountRe.FindAllString(f, -1) {
			v, ok := parseAmount(m)
			if !ok || v < r.Min || v > r.Max {
				continue
			}
			out = append(out, v)
		}
	}
	return out
}

// Resolve returns the selected amount, or false when no candidate survives filtering.
func (r *Resolver) Resolve(fragments []string) (int, bool) {
	candidates := r.Candidates(fragments)
	if len(candidates) == 0 {
		return 0, false
	}
	sel := r.Select
	if sel == nil {
		sel = Maximum
	}
	return sel(candidates), true
}

// parseAmount turns "£8,450.99" into 8450; the decimal part is truncated.
func parseAmount(m string) (int, bool) {
	s := strings.TrimPrefix(m, "£")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
