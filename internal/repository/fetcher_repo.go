package repository

import "context"

// PageFetcher loads a listing results page and returns its rendered HTML.
type PageFetcher interface {
	// FetchPage returns the document at url. Errors wrap ErrSourceUnavailable,
	// ErrPageTimeout or ErrNavigationFailed.
	FetchPage(ctx context.Context, url string) (string, error)
}

// DetailImageFetcher opens a listing's detail page in a secondary view and
// returns the raw image URLs found on it, in document order.
type DetailImageFetcher interface {
	DetailImages(ctx context.Context, url string) ([]string, error)
}
