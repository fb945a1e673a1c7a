package repository

import (
	"context"
	"time"
)

// OCRClient recognises text in a remote image.
type OCRClient interface {
	// RecognizeText returns the raw text found in the image at imageURL.
	// Provider errors and non-2xx responses wrap ErrOCRProcessing.
	RecognizeText(ctx context.Context, imageURL string) (string, error)
}

// PlateCache remembers plate results per image URL. An empty plate records
// that the image was read but held no plate.
type PlateCache interface {
	// GetPlate returns ErrCacheMiss when the image has not been seen.
	GetPlate(ctx context.Context, imageURL string) (string, error)
	SetPlate(ctx context.Context, imageURL, plate string, ttl time.Duration) error
}
