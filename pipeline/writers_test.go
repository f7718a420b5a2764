package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"periscrape/models"
)

func TestFileSinkWriteJSON(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("new file sink: %v", err)
	}

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	books := []models.Book{{
		Title:      "Test Driven Development",
		Author:     "Kent Beck",
		Price:      "Rp 450,000",
		ProductURL: "http://shop.example.test/p/1/tdd",
		Category:   "new_releases",
		ScrapedAt:  start,
	}}
	report := BuildReport("periplus", "new_releases", books, 1, 5, start, end, []string{"warn: slow page"})

	if err := sink.WriteJSON("periplus_new_releases_20240501_100000", report); err != nil {
		t.Fatalf("write json: %v", err)
	}

	path := filepath.Join(dir, "periplus_new_releases_20240501_100000.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read json output: %v", err)
	}

	var decoded models.RunReport
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if decoded.SiteName != "periplus" || decoded.TotalBooks != 1 || !decoded.Success {
		t.Fatalf("decoded report mismatch: %+v", decoded)
	}
	if len(decoded.Books) != 1 || decoded.Books[0].Title != "Test Driven Development" {
		t.Fatalf("decoded books mismatch: %+v", decoded.Books)
	}
	if !strings.Contains(string(raw), "2024-05-01T10:00:00Z") {
		t.Fatalf("timestamps must serialize as ISO-8601, got: %s", raw)
	}
	if len(decoded.Errors) != 1 {
		t.Fatalf("decoded errors = %d, want 1", len(decoded.Errors))
	}
}

func TestFileSinkWriteCSV(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("new file sink: %v", err)
	}

	scrapedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	books := []models.Book{
		{Title: "First", Author: "A", Price: "Rp 100,000", Category: "fiction", ScrapedAt: scrapedAt},
		{Title: "Second", Author: "B", Price: "Rp 200,000", Category: "fiction", ScrapedAt: scrapedAt},
	}

	if err := sink.WriteCSV("periplus_fiction_20240501_100000", books); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "periplus_fiction_20240501_100000.csv"))
	if err != nil {
		t.Fatalf("open csv output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2 records", len(rows))
	}

	wantHeader := []string{"title", "author", "price", "image_url", "product_url", "availability", "category", "scraped_at"}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Fatalf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}
	if rows[1][0] != "First" || rows[2][0] != "Second" {
		t.Fatalf("record order broken: %v", rows)
	}
	if _, err := time.Parse(time.RFC3339, rows[1][7]); err != nil {
		t.Fatalf("scraped_at column not RFC3339: %q", rows[1][7])
	}
}

func TestFileSinkWriteCSVSkipsEmpty(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("new file sink: %v", err)
	}

	if err := sink.WriteCSV("periplus_empty_20240501_100000", nil); err != nil {
		t.Fatalf("write csv with no books: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "periplus_empty_20240501_100000.csv")); !os.IsNotExist(err) {
		t.Fatalf("empty walks must not leave a csv file behind")
	}
}

func TestNewFileSinkCreatesNestedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "reports")
	if _, err := NewFileSink(dir); err != nil {
		t.Fatalf("new file sink: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("output directory was not created: %v", err)
	}
}
