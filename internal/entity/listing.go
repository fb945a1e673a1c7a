package entity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Source identifies the site a listing was scraped from.
type Source string

const (
	SourceAutoTrader  Source = "autotrader"
	SourcePistonHeads Source = "pistonheads"
)

// Stage is a listing's position in the enrichment lifecycle.
type Stage string

const (
	StageScraped      Stage = "scraped"
	StagePlateChecked Stage = "plate_checked"
	StageValued       Stage = "valued"
)

// Sentinel values written into enrichment fields when no real value is available.
const (
	PlateNotDetected        = "Not detected"
	ValuationNoPlateMileage = "No plate/mileage"
	ValuationFailed         = "Failed"
	ValuationError          = "Error"
	// NotProcessed fills the fields a cancelled run never reached.
	NotProcessed = "Not processed"
)

// ErrStageOrder is returned when an enrichment step is applied out of order or twice.
var ErrStageOrder = errors.New("listing enrichment applied out of order")

// Listing mirrors one accepted vehicle advert plus its enrichment fields.
type Listing struct {
	Source       Source   `json:"source"`
	Title        string   `json:"title"`
	Price        string   `json:"price"`
	Link         string   `json:"link,omitempty"`
	Year         string   `json:"year,omitempty"`
	Mileage      string   `json:"mileage,omitempty"` // digits only, separators stripped
	Transmission string   `json:"transmission,omitempty"`
	FuelType     string   `json:"fuelType,omitempty"`
	Distance     string   `json:"distance,omitempty"` // miles from the search postcode
	Images       []string `json:"images"`

	DetectedPlate string `json:"detected_plate,omitempty"`
	Valuation     string `json:"valuation,omitempty"`
	Stage         Stage  `json:"stage"`
}

// MileageValue returns the parsed mileage, or false when absent or unparseable.
func (l *Listing) MileageValue() (int, bool) {
	if l.Mileage == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(l.Mileage, ",", ""))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// HasPlate reports whether plate recognition produced a real plate.
func (l *Listing) HasPlate() bool {
	return l.DetectedPlate != "" && l.DetectedPlate != PlateNotDetected && l.DetectedPlate != NotProcessed
}

// HasValuation reports whether the valuation field holds an amount rather than a sentinel.
func (l *Listing) HasValuation() bool {
	switch l.Valuation {
	case "", ValuationNoPlateMileage, ValuationFailed, ValuationError, NotProcessed:
		return false
	}
	return true
}

// MarkPlateChecked records the plate result. An empty plate stores the "Not detected" sentinel.
func (l *Listing) MarkPlateChecked(plate string) error {
	if l.Stage != StageScraped {
		return fmt.Errorf("%w: plate check from stage %q", ErrStageOrder, l.Stage)
	}
	if plate == "" {
		plate = PlateNotDetected
	}
	l.DetectedPlate = plate
	l.Stage = StagePlateChecked
	return nil
}

// SkipValuation marks a plate-checked listing that lacks a plate or mileage.
// The listing stays in StagePlateChecked since no valuation was attempted.
func (l *Listing) SkipValuation() error {
	if l.Stage != StagePlateChecked || l.Valuation != "" {
		return fmt.Errorf("%w: skip valuation from stage %q", ErrStageOrder, l.Stage)
	}
	l.Valuation = ValuationNoPlateMileage
	return nil
}

// MarkValued records the outcome of a valuation attempt: an amount, "Failed" or "Error".
func (l *Listing) MarkValued(valuation string) error {
	if l.Stage != StagePlateChecked || l.Valuation != "" {
		return fmt.Errorf("%w: valuation from stage %q", ErrStageOrder, l.Stage)
	}
	l.Valuation = valuation
	l.Stage = StageValued
	return nil
}

// MarkInterrupted fills every enrichment field that was never reached with
// NotProcessed. The stage is left as it is.
func (l *Listing) MarkInterrupted() {
	if l.Stage == StageScraped && l.DetectedPlate == "" {
		l.DetectedPlate = NotProcessed
	}
	if l.Stage != StageValued && l.Valuation == "" {
		l.Valuation = NotProcessed
	}
}

// FormatPounds renders an integer amount as "£8,450".
func FormatPounds(amount int) string {
	s := strconv.Itoa(amount)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-£" + b.String()
	}
	return "£" + b.String()
}
