package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periscrape/models"
	"periscrape/pipeline"
)

// Category pairs a human-readable category name with the site's query
// parameter for it. Orchestration preserves the order of the slice.
type Category struct {
	Name  string
	Param string
}

// WalkCategories walks every category as an independent unit of work.
// Category walks run concurrently; the shared HTTP transport bounds
// in-flight connections. A failing or panicking category yields an
// empty sequence plus an error entry and never affects its siblings.
// The result map carries one entry per input category.
func (s *Scraper) WalkCategories(ctx context.Context, categories []Category, maxPages int) map[string][]models.Book {
	results := make(map[string][]models.Book, len(categories))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, cat := range categories {
		wg.Add(1)
		go func(cat Category) {
			defer wg.Done()
			books, _ := s.walkIsolated(ctx, cat, maxPages)
			mu.Lock()
			results[cat.Name] = books
			mu.Unlock()
		}(cat)
	}
	wg.Wait()

	return results
}

// Run walks a single category, builds its report, and persists it
// through agg when one is provided. An empty categoryParam is resolved
// via the site profile; unknown names are used as the parameter
// directly.
func (s *Scraper) Run(ctx context.Context, categoryName, categoryParam string, maxPages int, agg *pipeline.Aggregator) (*models.RunReport, error) {
	if maxPages <= 0 {
		maxPages = s.cfg.MaxPages
	}
	if categoryParam == "" {
		categoryParam = s.site.CategoryParam(categoryName)
	}
	start := time.Now().UTC()

	errs := &models.ErrorList{}
	books, pages := s.WalkCategory(ctx, categoryName, categoryParam, maxPages, errs)
	s.errors.Merge(errs)

	report := pipeline.BuildReport(s.site.Name, categoryName, books, pages, maxPages, start, time.Now().UTC(), errs.Snapshot())
	if agg != nil {
		if err := agg.Save(report); err != nil {
			return report, fmt.Errorf("save results for %s: %w", categoryName, err)
		}
	}
	return report, nil
}

// RunAll walks the categories concurrently and flushes each category's
// report as soon as its walk completes, so an interrupted run keeps
// the reports of every finished category.
func (s *Scraper) RunAll(ctx context.Context, categories []Category, maxPages int, agg *pipeline.Aggregator) map[string]*models.RunReport {
	if maxPages <= 0 {
		maxPages = s.cfg.MaxPages
	}

	reports := make(map[string]*models.RunReport, len(categories))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, cat := range categories {
		wg.Add(1)
		go func(cat Category) {
			defer wg.Done()
			start := time.Now().UTC()
			books, pages, errs := s.walkCollected(ctx, cat, maxPages)

			report := pipeline.BuildReport(s.site.Name, cat.Name, books, pages, maxPages, start, time.Now().UTC(), errs.Snapshot())
			if agg != nil {
				if err := agg.Save(report); err != nil {
					slog.Error("saving category results",
						slog.String("category", cat.Name),
						slog.Any("error", err),
					)
					s.errors.Append(fmt.Sprintf("saving results for %s: %v", cat.Name, err))
				}
			}

			mu.Lock()
			reports[cat.Name] = report
			mu.Unlock()
		}(cat)
	}
	wg.Wait()

	return reports
}

func (s *Scraper) walkIsolated(ctx context.Context, cat Category, maxPages int) ([]models.Book, int) {
	books, pages, _ := s.walkCollected(ctx, cat, maxPages)
	return books, pages
}

// walkCollected runs one category walk with its own error list,
// recovers panics into an error entry, and merges the list into the
// run-wide collector before returning it.
func (s *Scraper) walkCollected(ctx context.Context, cat Category, maxPages int) (books []models.Book, pages int, errs *models.ErrorList) {
	errs = &models.ErrorList{}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("category walk panicked",
				slog.String("category", cat.Name),
				slog.Any("panic", r),
			)
			errs.Append(fmt.Sprintf("scraping category %s: %v", cat.Name, r))
			books = nil
			pages = 0
		}
		s.errors.Merge(errs)
	}()

	param := cat.Param
	if param == "" {
		param = s.site.CategoryParam(cat.Name)
	}
	books, pages = s.WalkCategory(ctx, cat.Name, param, maxPages, errs)
	return books, pages, errs
}
