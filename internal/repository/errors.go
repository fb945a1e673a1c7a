package repository

import "errors"

var (
	// ErrPageTimeout means a page or element did not appear within the allowed wait.
	ErrPageTimeout = errors.New("page load timed out")
	// ErrNavigationFailed means the browser or HTTP client could not load the URL.
	ErrNavigationFailed = errors.New("navigation failed")
	// ErrSourceUnavailable marks a whole listing source as unreachable for this run.
	ErrSourceUnavailable = errors.New("listing source unavailable")
	// ErrOCRProcessing is a transient OCR provider failure (error flag, non-2xx, transport).
	ErrOCRProcessing = errors.New("ocr processing failed")
	// ErrValuationUnavailable means the valuation form flow could not be completed.
	ErrValuationUnavailable = errors.New("valuation flow unavailable")
	// ErrRunNotFound is returned by run stores for unknown run identifiers.
	ErrRunNotFound = errors.New("run not found")
	// ErrCacheMiss is returned by caches when no entry exists for a key.
	ErrCacheMiss = errors.New("cache miss")
)
