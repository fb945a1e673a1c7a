package extractor

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/valuation-service/pkg/utils"
)

// Candidate is one element proposed as a listing, with its rendered text.
type Candidate struct {
	Sel   *goquery.Selection
	Lines []string
	Text  string // Lines joined by newlines
	Base  *url.URL
}

func newCandidate(sel *goquery.Selection, base *url.URL) *Candidate {
	lines := renderLines(sel)
	return &Candidate{
		Sel:   sel,
		Lines: lines,
		Text:  strings.Join(lines, "\n"),
		Base:  base,
	}
}

// FieldFunc extracts one field from a candidate, reporting false when it has nothing.
type FieldFunc func(c *Candidate) (string, bool)

// First evaluates chain in order and returns the first value found.
func First(c *Candidate, chain []FieldFunc) string {
	for _, f := range chain {
		if v, ok := f(c); ok {
			return v
		}
	}
	return ""
}

var (
	priceRe    = regexp.MustCompile(`£\s?(\d[\d,]*)`)
	yearRe     = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	mileageRe  = regexp.MustCompile(`(?i)(\d[\d,]*)\s*miles?\b`)
	awayRe     = regexp.MustCompile(`(?i)^\s*away\b`)
	distanceRe = regexp.MustCompile(`(?i)(\d+)\s*miles?\s*away`)
)

// SubSelectorText returns the text of the first element matching query when it
// is longer than minLen characters.
func SubSelectorText(query string, minLen int) FieldFunc {
	return func(c *Candidate) (string, bool) {
		text := utils.NormalizeText(c.Sel.Find(query).First().Text())
		if text == "" || utf8.RuneCountInString(text) <= minLen {
			return "", false
		}
		return text, true
	}
}

// TitleLine scans the first scanLines rendered lines for a plausible title:
// strictly between minLen and maxLen characters, not a price, and containing
// one of the trim/model keywords.
func TitleLine(scanLines, minLen, maxLen int, vocab []string) FieldFunc {
	return func(c *Candidate) (string, bool) {
		lines := c.Lines
		if len(lines) > scanLines {
			lines = lines[:scanLines]
		}
		for _, line := range lines {
			n := utf8.RuneCountInString(line)
			if n <= minLen || n >= maxLen || strings.HasPrefix(line, "£") {
				continue
			}
			if utils.ContainsAny(strings.ToLower(line), vocab) {
				return line, true
			}
		}
		return "", false
	}
}

// PriceIn returns the first "£<digits>" amount in the candidate's full text.
func PriceIn() FieldFunc {
	return func(c *Candidate) (string, bool) {
		return matchPrice(c.Text)
	}
}

// PriceInElement applies the price pattern to the text of the first element matching query.
func PriceInElement(query string) FieldFunc {
	return func(c *Candidate) (string, bool) {
		return matchPrice(utils.NormalizeText(c.Sel.Find(query).First().Text()))
	}
}

func matchPrice(text string) (string, bool) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return "£" + m[1], true
}

// AnchorHref returns the absolute href of the first anchor matching query.
func AnchorHref(query string) FieldFunc {
	return func(c *Candidate) (string, bool) {
		href, ok := c.Sel.Find(query).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return "", false
		}
		abs, err := utils.ToAbsoluteURL(c.Base, href)
		if err != nil || !utils.IsHTTPURL(abs) {
			return "", false
		}
		return abs, true
	}
}

// Year returns the first 19xx/20xx token.
func Year() FieldFunc {
	return func(c *Candidate) (string, bool) {
		if m := yearRe.FindString(c.Text); m != "" {
			return m, true
		}
		return "", false
	}
}

// Mileage returns the first "<digits> miles" figure with separators stripped.
// Distance phrases such as "12 miles away" are not mileage.
func Mileage() FieldFunc {
	return func(c *Candidate) (string, bool) {
		for _, loc := range mileageRe.FindAllStringSubmatchIndex(c.Text, -1) {
			if awayRe.MatchString(c.Text[loc[1]:]) {
				continue
			}
			digits := strings.ReplaceAll(c.Text[loc[2]:loc[3]], ",", "")
			if digits != "" {
				return digits, true
			}
		}
		return "", false
	}
}

// Distance returns the "<n> miles away" figure.
func Distance() FieldFunc {
	return func(c *Candidate) (string, bool) {
		if m := distanceRe.FindStringSubmatch(c.Text); m != nil {
			return m[1], true
		}
		return "", false
	}
}

// Keyword returns the first vocabulary word found as a whole word, case-insensitively,
// checking the vocabulary in order.
func Keyword(vocab ...string) FieldFunc {
	patterns := make([]*regexp.Regexp, len(vocab))
	for i, word := range vocab {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	}
	return func(c *Candidate) (string, bool) {
		for i, re := range patterns {
			if re.MatchString(c.Text) {
				return vocab[i], true
			}
		}
		return "", false
	}
}
