package scraper

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"periscrape/pipeline"
)

func TestWalkCategoriesIsolatesFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 0
	s := newTestScraper(t, cfg)

	httpmock.RegisterResponderWithQuery("GET", testBaseURL, pageQuery("201", 1),
		httpmock.NewStringResponder(http.StatusInternalServerError, ""))
	registerPage("202", 1, catalogPage(1, 5, false))

	results := s.WalkCategories(context.Background(), []Category{
		{Name: "broken", Param: "201"},
		{Name: "healthy", Param: "202"},
	}, 3)

	if len(results) != 2 {
		t.Fatalf("result map has %d entries, want 2", len(results))
	}
	if got := len(results["broken"]); got != 0 {
		t.Fatalf("broken category yielded %d books, want 0", got)
	}
	if got := len(results["healthy"]); got != 5 {
		t.Fatalf("healthy category yielded %d books, want 5", got)
	}
	if len(s.Errors()) == 0 {
		t.Fatalf("expected an error entry for the broken category")
	}
	for _, book := range results["healthy"] {
		if book.Category != "healthy" {
			t.Fatalf("category tag = %q, want healthy", book.Category)
		}
	}
}

func TestRunBuildsAndSavesReport(t *testing.T) {
	s := newTestScraper(t, fastConfig())
	registerPage("103", 1, catalogPage(1, 5, false))

	dir := t.TempDir()
	sink, err := pipeline.NewFileSink(dir)
	if err != nil {
		t.Fatalf("new file sink: %v", err)
	}
	agg, err := pipeline.NewAggregator(sink, "json")
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	report, err := s.Run(context.Background(), "new_releases", "", 3, agg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !report.Success {
		t.Fatalf("report.Success = false, want true")
	}
	if report.TotalBooks != 5 || len(report.Books) != 5 {
		t.Fatalf("total books = %d (len %d), want 5", report.TotalBooks, len(report.Books))
	}
	if report.PagesScraped != 1 {
		t.Fatalf("pages scraped = %d, want 1", report.PagesScraped)
	}
	if report.SiteName != "periplus" || report.Category != "new_releases" {
		t.Fatalf("report identity = %s/%s", report.SiteName, report.Category)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "periplus_new_releases_*.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("json reports on disk = %d, want 1", len(matches))
	}
}

func TestRunReportsFailureWhenFirstPageExhausts(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 0
	s := newTestScraper(t, cfg)

	httpmock.RegisterResponderWithQuery("GET", testBaseURL, pageQuery("103", 1),
		httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	report, err := s.Run(context.Background(), "new_releases", "", 3, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.Success {
		t.Fatalf("report.Success = true, want false for an empty walk")
	}
	if report.TotalBooks != 0 {
		t.Fatalf("total books = %d, want 0", report.TotalBooks)
	}
	if report.PagesScraped != 1 {
		t.Fatalf("pages scraped = %d, want floor of 1", report.PagesScraped)
	}
	if len(report.Errors) == 0 {
		t.Fatalf("expected at least one error description in the report")
	}
}

func TestRunResolvesCategoryParam(t *testing.T) {
	s := newTestScraper(t, fastConfig())
	// "new_releases" resolves to 103 through the site profile; an
	// explicit param wins over the lookup.
	registerPage("103", 1, catalogPage(1, 2, false))
	registerPage("777", 1, catalogPage(1, 3, false))

	byName, err := s.Run(context.Background(), "new_releases", "", 1, nil)
	if err != nil {
		t.Fatalf("run by name: %v", err)
	}
	if byName.TotalBooks != 2 {
		t.Fatalf("lookup walk books = %d, want 2", byName.TotalBooks)
	}

	byParam, err := s.Run(context.Background(), "custom", "777", 1, nil)
	if err != nil {
		t.Fatalf("run by param: %v", err)
	}
	if byParam.TotalBooks != 3 {
		t.Fatalf("explicit param walk books = %d, want 3", byParam.TotalBooks)
	}
	if byParam.Category != "custom" {
		t.Fatalf("report category = %q, want custom", byParam.Category)
	}
}

func TestRunAllFlushesEachCategory(t *testing.T) {
	s := newTestScraper(t, fastConfig())
	registerPage("301", 1, catalogPage(1, 4, false))
	registerPage("302", 1, catalogPage(1, 6, false))

	dir := t.TempDir()
	sink, err := pipeline.NewFileSink(dir)
	if err != nil {
		t.Fatalf("new file sink: %v", err)
	}
	agg, err := pipeline.NewAggregator(sink, "json")
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	reports := s.RunAll(context.Background(), []Category{
		{Name: "fiction", Param: "301"},
		{Name: "science", Param: "302"},
	}, 2, agg)

	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}
	if reports["fiction"].TotalBooks != 4 || reports["science"].TotalBooks != 6 {
		t.Fatalf("unexpected totals: fiction=%d science=%d",
			reports["fiction"].TotalBooks, reports["science"].TotalBooks)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "periplus_*.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("json reports on disk = %d, want 2: %v", len(matches), matches)
	}
	for _, path := range matches {
		name := filepath.Base(path)
		if !strings.HasPrefix(name, "periplus_fiction_") && !strings.HasPrefix(name, "periplus_science_") {
			t.Fatalf("unexpected report filename %q", name)
		}
	}
}
