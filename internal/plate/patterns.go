package plate

import (
	"regexp"
	"strings"
)

// MinLength is the shortest accepted plate once separators are removed.
const MinLength = 6

// UK registration shapes, tried in order.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z]{2}\d{2}\s*[A-Z]{3}\b`),         // current: AB12 CDE
	regexp.MustCompile(`\b[A-Z]{2}-?\d{2}\s*-?[A-Z]{3}\b`),     // current with hyphens: AB-12-CDE
	regexp.MustCompile(`\b[A-Z]\d{1,3}\s*[A-Z]{3}\b`),          // prefix: A123 BCD
	regexp.MustCompile(`\b[A-Z]{3}\s*\d{1,3}[A-Z]\b`),          // suffix: ABC 123D
	regexp.MustCompile(`\b[A-Z]-?\d{1,3}\s*-?[A-Z]{3}\b`),      // prefix with hyphens
	regexp.MustCompile(`(?:EU|GB)\s*[A-Z]{2}\d{2}\s*[A-Z]{3}`), // with country band
}

var separators = strings.NewReplacer(" ", "", "-", "")

// NormalizeOCRText upper-cases OCR output and flattens line breaks to spaces.
func NormalizeOCRText(text string) string {
	text = strings.ToUpper(text)
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
}

// Candidates returns every pattern match in text with separators stripped,
// deduplicated in first-seen order. Text is expected to be normalized.
func Candidates(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, re := range patterns {
		for _, m := range re.FindAllString(text, -1) {
			c := separators.Replace(m)
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// Find returns the first candidate of at least MinLength characters.
func Find(text string) (string, bool) {
	for _, c := range Candidates(NormalizeOCRText(text)) {
		if len(c) >= MinLength {
			return c, true
		}
	}
	return "", false
}
