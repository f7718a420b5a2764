package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"periscrape/models"
)

// WalkCategory walks a category's page sequence starting at page 1 and
// returns the accumulated records plus the number of successfully
// fetched pages. The walk stops at the first of: an exhausted fetch, a
// page with no records, a page without a next-page link, or maxPages.
// Records from pages fetched before a failure are kept.
func (s *Scraper) WalkCategory(ctx context.Context, categoryName, categoryParam string, maxPages int, errs *models.ErrorList) ([]models.Book, int) {
	if maxPages <= 0 {
		maxPages = s.cfg.MaxPages
	}

	var seen *lru.Cache[string, struct{}]
	if s.cfg.DedupeMaxSize > 0 {
		seen, _ = lru.New[string, struct{}](s.cfg.DedupeMaxSize)
	}

	slog.Info("starting category walk",
		slog.String("category", categoryName),
		slog.String("param", categoryParam),
		slog.Int("max_pages", maxPages),
	)

	var books []models.Book
	pagesFetched := 0

	for page := 1; page <= maxPages; page++ {
		pageURL := s.buildCategoryURL(categoryParam, page)
		slog.Info("fetching category page",
			slog.String("category", categoryName),
			slog.Int("page", page),
			slog.String("url", pageURL),
		)

		outcome := s.fetcher.Fetch(ctx, pageURL, errs)
		if !outcome.OK() {
			slog.Error("stopping category walk after failed fetch",
				slog.String("category", categoryName),
				slog.Int("page", page),
			)
			break
		}
		pagesFetched++
		s.Metrics.IncPages()

		result, err := s.extractor.ExtractPage(outcome.Body, categoryName, errs)
		if err != nil {
			errs.Append(fmt.Sprintf("parsing page %d of %s: %v", page, categoryName, err))
			break
		}
		if len(result.Books) == 0 {
			slog.Info("no books found on page, stopping pagination",
				slog.String("category", categoryName),
				slog.Int("page", page),
			)
			break
		}

		added := 0
		for _, book := range result.Books {
			if seen != nil && book.ProductURL != "" {
				if _, dup := seen.Get(book.ProductURL); dup {
					continue
				}
				seen.Add(book.ProductURL, struct{}{})
			}
			books = append(books, book)
			added++
		}
		s.Metrics.IncBooks(added)
		slog.Info("scraped page",
			slog.String("category", categoryName),
			slog.Int("page", page),
			slog.Int("books", added),
		)

		if result.NextPage == "" {
			slog.Info("no next page link, stopping pagination", slog.String("category", categoryName))
			break
		}

		// Rate limiting between pages; skipped after the last page.
		if page < maxPages && s.cfg.Delay > 0 {
			if err := sleepContext(ctx, s.cfg.Delay); err != nil {
				break
			}
		}
	}

	slog.Info("completed category walk",
		slog.String("category", categoryName),
		slog.Int("books", len(books)),
		slog.Int("pages", pagesFetched),
	)
	return books, pagesFetched
}

// buildCategoryURL encodes the listing route, category parameter, and
// page number (for pages after the first) onto the site base URL.
func (s *Scraper) buildCategoryURL(categoryParam string, page int) string {
	params := url.Values{}
	params.Set("route", "product/category")
	params.Set("anl", categoryParam)
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	return s.site.BaseURL + "?" + params.Encode()
}
