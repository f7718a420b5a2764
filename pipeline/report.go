// Package pipeline assembles category walk results into run reports
// and persists them through a sink capability.
package pipeline

import (
	"fmt"
	"time"

	"periscrape/models"
)

// Sink is the persistence capability consumed by the Aggregator. The
// base name carries no extension; implementations append their own.
type Sink interface {
	WriteJSON(base string, report *models.RunReport) error
	WriteCSV(base string, books []models.Book) error
}

// BuildReport assembles a RunReport from a completed category walk.
// PagesScraped is the true fetched-page count clamped to [1, maxPages];
// Success means at least one record was extracted.
func BuildReport(site, category string, books []models.Book, pagesFetched, maxPages int, start, end time.Time, errs []string) *models.RunReport {
	pages := pagesFetched
	if pages < 1 {
		pages = 1
	}
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}
	if books == nil {
		books = []models.Book{}
	}
	if errs == nil {
		errs = []string{}
	}

	return &models.RunReport{
		SiteName:          site,
		Category:          category,
		TotalBooks:        len(books),
		PagesScraped:      pages,
		Books:             books,
		ScrapingStarted:   start,
		ScrapingCompleted: end,
		Success:           len(books) > 0,
		Errors:            errs,
	}
}

// Aggregator routes completed reports to a sink according to the
// configured output format.
type Aggregator struct {
	sink   Sink
	format string // json, csv, or both
	now    func() time.Time
}

// NewAggregator builds an aggregator writing in the given format.
func NewAggregator(sink Sink, format string) (*Aggregator, error) {
	switch format {
	case "json", "csv", "both":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	return &Aggregator{sink: sink, format: format, now: time.Now}, nil
}

// Save persists the report in the selected format(s). The base
// filename is {site}_{category}_{timestamp}.
func (a *Aggregator) Save(report *models.RunReport) error {
	base := fmt.Sprintf("%s_%s_%s", report.SiteName, report.Category, a.now().Format("20060102_150405"))

	if a.format == "json" || a.format == "both" {
		if err := a.sink.WriteJSON(base, report); err != nil {
			return fmt.Errorf("write json results: %w", err)
		}
	}
	if a.format == "csv" || a.format == "both" {
		if err := a.sink.WriteCSV(base, report.Books); err != nil {
			return fmt.Errorf("write csv results: %w", err)
		}
	}
	return nil
}
