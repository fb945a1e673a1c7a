package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy proposes the candidate listing elements of a page.
type Strategy struct {
	Name   string
	Select func(root *goquery.Selection) *goquery.Selection
}

// BySelector returns a strategy selecting every element matching a CSS query.
func BySelector(query string) Strategy {
	return Strategy{
		Name: query,
		Select: func(root *goquery.Selection) *goquery.Selection {
			return root.Find(query)
		},
	}
}

// FirstNonEmpty returns a strategy yielding the result of the first strategy that
// matches anything. Later strategies only run when every earlier one came back empty,
// so a broad selector never competes with a more specific one.
func FirstNonEmpty(strategies ...Strategy) Strategy {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name
	}
	return Strategy{
		Name: strings.Join(names, " | "),
		Select: func(root *goquery.Selection) *goquery.Selection {
			var found *goquery.Selection
			for _, s := range strategies {
				found = s.Select(root)
				if found.Length() > 0 {
					return found
				}
			}
			if found == nil {
				return root.Slice(0, 0)
			}
			return found
		},
	}
}

// AdoptionPolicy decides whether a strategy's result set of size proposed
// replaces the currently adopted set of size adopted.
type AdoptionPolicy func(adopted, proposed int) bool

// LargestSet adopts a result set only when it is strictly larger than the current one.
// Equal-sized later sets never displace earlier ones, and sets are never merged.
func LargestSet(adopted, proposed int) bool {
	return proposed > adopted
}

// HeuristicScan is the fallback used when every ordered strategy finds at most
// Threshold elements. It scores broad structural elements instead of relying on
// site-specific selectors.
type HeuristicScan struct {
	Tags      []string
	Currency  string
	Keywords  []string // at least one must be present
	Excluded  []string // none may be present
	Threshold int
}

// DefaultHeuristic scans article and section elements for priced car adverts.
func DefaultHeuristic() *HeuristicScan {
	return &HeuristicScan{
		Tags:      []string{"article", "section"},
		Currency:  "£",
		Keywords:  []string{"miles", "manual", "automatic", "petrol", "diesel"},
		Excluded:  []string{"make and model", "postcode", "search radius", "price range"},
		Threshold: 1,
	}
}

// Strategy exposes the scan as an ordinary strategy.
func (h *HeuristicScan) Strategy() Strategy {
	return Strategy{Name: "heuristic:" + strings.Join(h.Tags, ","), Select: h.Select}
}

// Select returns the elements passing the currency, keyword and exclusion predicates.
func (h *HeuristicScan) Select(root *goquery.Selection) *goquery.Selection {
	return root.Find(strings.Join(h.Tags, ", ")).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return h.Match(strings.ToLower(s.Text()))
	})
}

// Match applies the three predicates to lower-cased element text.
func (h *HeuristicScan) Match(text string) bool {
	if !strings.Contains(text, h.Currency) {
		return false
	}
	hasKeyword := false
	for _, kw := range h.Keywords {
		if strings.Contains(text, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return false
	}
	for _, phrase := range h.Excluded {
		if strings.Contains(text, phrase) {
			return false
		}
	}
	return true
}
