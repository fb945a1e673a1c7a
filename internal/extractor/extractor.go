// Package extractor turns listing result pages into deduplicated vehicle records.
package extractor

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/valuation-service/internal/entity"
	"github.com/user/valuation-service/pkg/utils"
)

// ErrSkipCandidate marks a candidate element that could not become a record.
var ErrSkipCandidate = errors.New("candidate skipped")

// Profile is the per-source extraction recipe.
type Profile struct {
	Source     entity.Source
	BaseURL    string
	Strategies []Strategy
	Fallback   *HeuristicScan // nil disables the heuristic scan

	MinTextLen  int      // candidates with shorter rendered text are skipped
	SkipPhrases []string // lower-case filter-chrome phrases that disqualify a candidate

	Title        []FieldFunc
	Price        []FieldFunc
	Link         []FieldFunc
	Year         []FieldFunc
	Mileage      []FieldFunc
	Transmission []FieldFunc
	FuelType     []FieldFunc
	Distance     []FieldFunc
	Images       ImageRule
}

// Extractor applies profiles to parsed pages.
type Extractor struct {
	adopt  AdoptionPolicy
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithAdoptionPolicy replaces the default largest-set policy.
func WithAdoptionPolicy(p AdoptionPolicy) Option {
	return func(e *Extractor) { e.adopt = p }
}

// WithLogger sets the logger used to report strategy choices and skipped candidates.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{adopt: LargestSet, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractHTML parses htmlContent and runs Extract on it.
func (e *Extractor) ExtractHTML(htmlContent string, p Profile, limit int) ([]*entity.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse %s page: %w", p.Source, err)
	}
	return e.Extract(doc, p, limit), nil
}

// Extract returns at most limit (0 for no limit) records from doc, in candidate
// order, with no two records sharing a normalized (title, price) key.
func (e *Extractor) Extract(doc *goquery.Document, p Profile, limit int) []*entity.Listing {
	log := e.logger.With("source", p.Source)

	candidates, strategy := e.selectCandidates(doc.Selection, p)
	if candidates == nil {
		log.Warn("No listing candidates found")
		return nil
	}
	log.Info("Adopted candidate strategy", "strategy", strategy, "candidates", candidates.Length())

	var base *url.URL
	if p.BaseURL != "" {
		base, _ = url.Parse(p.BaseURL)
	} else {
		base = doc.Url
	}

	seen := make(map[string]struct{})
	listings := make([]*entity.Listing, 0)
	skipped := 0
	for i := range candidates.Nodes {
		if limit > 0 && len(listings) >= limit {
			break
		}
		listing, err := e.parseCandidate(&p, newCandidate(candidates.Eq(i), base), seen)
		if err != nil {
			skipped++
			log.Debug("Skipping candidate", "index", i, "reason", err)
			continue
		}
		listings = append(listings, listing)
	}

	log.Info("Extracted listings", "accepted", len(listings), "skipped", skipped)
	return listings
}

// selectCandidates evaluates strategies in order and keeps the set the adoption
// policy prefers; result sets are never merged.
func (e *Extractor) selectCandidates(root *goquery.Selection, p Profile) (*goquery.Selection, string) {
	var adopted *goquery.Selection
	adoptedN, adoptedName := 0, ""

	consider := func(s Strategy) {
		found := s.Select(root)
		n := found.Length()
		e.logger.Debug("Evaluated strategy", "source", p.Source, "strategy", s.Name, "candidates", n)
		if e.adopt(adoptedN, n) {
			adopted, adoptedN, adoptedName = found, n, s.Name
		}
	}

	for _, s := range p.Strategies {
		consider(s)
	}
	if p.Fallback != nil && adoptedN <= p.Fallback.Threshold {
		consider(p.Fallback.Strategy())
	}
	if adoptedN == 0 {
		return nil, ""
	}
	return adopted, adoptedName
}

func (e *Extractor) parseCandidate(p *Profile, c *Candidate, seen map[string]struct{}) (listing *entity.Listing, err error) {
	// A malformed element must never abort the batch.
	defer func() {
		if r := recover(); r != nil {
			listing, err = nil, fmt.Errorf("%w: %v", ErrSkipCandidate, r)
		}
	}()

	if utf8.RuneCountInString(c.Text) < p.MinTextLen {
		return nil, fmt.Errorf("%w: text too short", ErrSkipCandidate)
	}
	lower := strings.ToLower(c.Text)
	for _, phrase := range p.SkipPhrases {
		if strings.Contains(lower, phrase) {
			return nil, fmt.Errorf("%w: filter chrome %q", ErrSkipCandidate, phrase)
		}
	}

	title := First(c, p.Title)
	price := First(c, p.Price)
	if title == "" || price == "" {
		return nil, fmt.Errorf("%w: missing title or price", ErrSkipCandidate)
	}

	key := DedupKey(title, price)
	if _, dup := seen[key]; dup {
		return nil, fmt.Errorf("%w: duplicate of %q", ErrSkipCandidate, title)
	}

	images := p.Images.collect(c)
	if len(images) < p.Images.Min {
		return nil, fmt.Errorf("%w: %d images, need %d", ErrSkipCandidate, len(images), p.Images.Min)
	}
	seen[key] = struct{}{}

	return &entity.Listing{
		Source:       p.Source,
		Title:        title,
		Price:        price,
		Link:         First(c, p.Link),
		Year:         First(c, p.Year),
		Mileage:      First(c, p.Mileage),
		Transmission: First(c, p.Transmission),
		FuelType:     First(c, p.FuelType),
		Distance:     First(c, p.Distance),
		Images:       images,
		Stage:        entity.StageScraped,
	}, nil
}

// DedupKey is the case-insensitive, whitespace-normalized (title, price) key.
func DedupKey(title, price string) string {
	return utils.FoldText(title) + "\x00" + utils.FoldText(price)
}
