// Package scraper drives the fetch-parse-paginate pipeline: a fetcher
// with bounded retry, a per-category page walker, and an orchestrator
// that runs walks over several categories.
package scraper

import (
	"fmt"

	"periscrape/config"
	"periscrape/models"
	"periscrape/parser"
)

// Scraper bundles the configuration, site profile, fetcher, and
// extractor for one run.
type Scraper struct {
	cfg       *config.Config
	site      *config.Site
	fetcher   *Fetcher
	extractor *parser.Extractor
	Metrics   *Metrics

	errors *models.ErrorList
}

// New builds a scraper for the given configuration and site profile.
func New(cfg *config.Config, site *config.Site) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.ValidateSite(site); err != nil {
		return nil, fmt.Errorf("invalid site profile: %w", err)
	}

	extractor, err := parser.NewExtractor(site)
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}

	metrics := NewMetrics()
	return &Scraper{
		cfg:       cfg,
		site:      site,
		fetcher:   NewFetcher(cfg, metrics),
		extractor: extractor,
		Metrics:   metrics,
		errors:    &models.ErrorList{},
	}, nil
}

// Site returns the scraper's site profile.
func (s *Scraper) Site() *config.Site {
	return s.site
}

// Errors returns a copy of all error descriptions accumulated so far.
func (s *Scraper) Errors() []string {
	return s.errors.Snapshot()
}
