package extractor

import (
	"strings"

	"github.com/user/valuation-service/internal/entity"
)

const (
	autoTraderBase  = "https://www.autotrader.co.uk"
	pistonHeadsBase = "https://www.pistonheads.com"
)

var (
	titleVocabulary   = []string{"euro", "sport", "edition", "comfort", "life", "style"}
	filterChrome      = []string{"make and model", "search radius", "postcode", "price range"}
	transmissionWords = []string{"Manual", "Automatic"}
	fuelWords         = []string{"Petrol", "Diesel", "Electric", "Hybrid"}
)

func commonAttributes(p *Profile) {
	p.Year = []FieldFunc{Year()}
	p.Mileage = []FieldFunc{Mileage()}
	p.Transmission = []FieldFunc{Keyword(transmissionWords...)}
	p.FuelType = []FieldFunc{Keyword(fuelWords...)}
	p.Distance = []FieldFunc{Distance()}
}

// AutoTraderProfile targets the AutoTrader search results grid.
func AutoTraderProfile(maxImages int) Profile {
	p := Profile{
		Source:  entity.SourceAutoTrader,
		BaseURL: autoTraderBase,
		Strategies: []Strategy{
			BySelector("li[data-advert-id]"),
			BySelector("li[data-testid='trader-seller-listing']"),
			BySelector("article[data-testid='trader-seller-listing']"),
			BySelector("section[data-testid='trader-seller-listing']"),
			BySelector("li.search-page__result"),
			BySelector("article.product-card"),
		},
		Fallback:    DefaultHeuristic(),
		MinTextLen:  20,
		SkipPhrases: filterChrome,
		Title: []FieldFunc{
			SubSelectorText("h3", 10),
			SubSelectorText("h2", 10),
			SubSelectorText("a[href*='/car-details']", 10),
			SubSelectorText("[data-testid='search-listing-title']", 10),
			SubSelectorText("p[class*='title']", 10),
			TitleLine(5, 10, 100, titleVocabulary),
		},
		Price: []FieldFunc{PriceIn()},
		Link:  []FieldFunc{AnchorHref("a[href*='/car-details']")},
		Images: ImageRule{
			Selector: "img",
			Attrs:    []string{"src", "data-src", "data-lazy-src"},
			Max:      maxImages,
		},
	}
	commonAttributes(&p)
	return p
}

// PistonHeadsProfile targets the PistonHeads classifieds search page.
func PistonHeadsProfile(maxImages int) Profile {
	p := Profile{
		Source:  entity.SourcePistonHeads,
		BaseURL: pistonHeadsBase,
		// Card and listing divs are nested inside articles on real result pages.
		Strategies: []Strategy{
			FirstNonEmpty(
				BySelector("article"),
				BySelector("div[class*='listing'], div[class*='card']"),
			),
		},
		MinTextLen: 20,
		Title: []FieldFunc{
			SubSelectorText("h2", 10),
			SubSelectorText("h3", 10),
			SubSelectorText("h4", 10),
			SubSelectorText("a[href*='/buy/listing/']", 10),
		},
		Price: []FieldFunc{PriceIn(), PriceInElement("[class*='price']")},
		Link:  []FieldFunc{AnchorHref("a[href*='/buy/listing/']")},
		Images: ImageRule{
			Selector: "img",
			Attrs:    []string{"src", "data-src"},
			Rewrite:  FullsizeImage,
			Max:      maxImages,
			Min:      2,
		},
	}
	commonAttributes(&p)
	return p
}

// FullsizeImage swaps a thumbnail rendition path for the full-size one.
func FullsizeImage(u string) string {
	return strings.Replace(u, "/Thumbnail/", "/Fullsize/", 1)
}
