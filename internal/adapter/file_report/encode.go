package file_report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/user/valuation-service/internal/entity"
)

// maxImageColumns caps the image_N columns in the CSV report.
const maxImageColumns = 10

// Report is the JSON document written for a run.
type Report struct {
	RunID              string                   `json:"run_id"`
	Timestamp          time.Time                `json:"timestamp"`
	Status             entity.RunStatus         `json:"status"`
	TotalCars          int                      `json:"total_cars"`
	Sources            map[entity.Source]int    `json:"sources"`
	PlatesDetected     int                      `json:"plates_detected"`
	ValuationsObtained int                      `json:"valuations_obtained"`
	SourceErrors       map[entity.Source]string `json:"source_errors,omitempty"`
	Cars               []*entity.Listing        `json:"cars"`
}

// NewReport builds the report document for run.
func NewReport(run *entity.Run) Report {
	s := run.Summary()
	cars := run.Listings
	if cars == nil {
		cars = []*entity.Listing{}
	}
	return Report{
		RunID:              s.RunID,
		Timestamp:          s.Timestamp,
		Status:             s.Status,
		TotalCars:          s.TotalCars,
		Sources:            s.Sources,
		PlatesDetected:     s.PlatesDetected,
		ValuationsObtained: s.ValuationsObtained,
		SourceErrors:       run.SourceErrors,
		Cars:               cars,
	}
}

// EncodeJSON writes the indented JSON report. Non-ASCII text such as "£" is written as-is.
func EncodeJSON(w io.Writer, run *entity.Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(NewReport(run))
}

// CSVHeader returns the column names for a report with imageColumns image columns.
func CSVHeader(imageColumns int) []string {
	header := []string{"source", "title", "price", "year", "mileage", "transmission",
		"fuelType", "link", "detected_plate", "valuation"}
	for i := 1; i <= imageColumns; i++ {
		header = append(header, fmt.Sprintf("image_%d", i))
	}
	return header
}

// EncodeCSV writes one row per listing. Image columns follow the largest image
// count in the run, capped at ten.
func EncodeCSV(w io.Writer, run *entity.Run) error {
	imageColumns := min(run.MaxImageCount(), maxImageColumns)

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader(imageColumns)); err != nil {
		return err
	}
	for _, l := range run.Listings {
		row := []string{string(l.Source), l.Title, l.Price, l.Year, l.Mileage, l.Transmission,
			l.FuelType, l.Link, l.DetectedPlate, l.Valuation}
		for i := 0; i < imageColumns; i++ {
			img := ""
			if i < len(l.Images) {
				img = l.Images[i]
			}
			row = append(row, img)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
