package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/valuation-service/pkg/utils"
)

var imageExclusions = []string{"placeholder", "logo", "icon"}

// ImageRule describes how a profile collects listing photographs.
type ImageRule struct {
	Selector string
	Attrs    []string // checked in order; the first non-empty value is used
	Rewrite  func(string) string
	Max      int
	Min      int // candidates with fewer images are skipped
}

// FilterImages keeps absolute http(s) URLs that are not placeholders, logos or icons,
// drops repeats while preserving first occurrence, and caps the result at max (0 means no cap).
func FilterImages(urls []string, max int) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if !utils.IsHTTPURL(u) {
			continue
		}
		if utils.ContainsAny(strings.ToLower(u), imageExclusions) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

func (r ImageRule) collect(c *Candidate) []string {
	if r.Selector == "" {
		return nil
	}
	var raw []string
	c.Sel.Find(r.Selector).Each(func(_ int, img *goquery.Selection) {
		for _, attr := range r.Attrs {
			v, ok := img.Attr(attr)
			if !ok || strings.TrimSpace(v) == "" {
				continue
			}
			abs, err := utils.ToAbsoluteURL(c.Base, v)
			if err != nil {
				break
			}
			if r.Rewrite != nil {
				abs = r.Rewrite(abs)
			}
			raw = append(raw, abs)
			break
		}
	})
	return FilterImages(raw, r.Max)
}
