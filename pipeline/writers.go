package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"periscrape/models"
)

// FileSink persists reports as files under a single output directory.
type FileSink struct {
	dir string
}

// NewFileSink creates the output directory if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %q: %w", dir, err)
	}
	return &FileSink{dir: dir}, nil
}

// WriteJSON writes the full report as indented JSON. Timestamps
// serialize as RFC 3339, which satisfies the ISO-8601 contract.
func (fs *FileSink) WriteJSON(base string, report *models.RunReport) error {
	path := filepath.Join(fs.dir, base+".json")

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	slog.Info("results saved", slog.String("path", path))
	return nil
}

// WriteCSV writes one row per record with a header row from the record
// attribute names.
func (fs *FileSink) WriteCSV(base string, books []models.Book) error {
	if len(books) == 0 {
		slog.Warn("no books to save to csv", slog.String("base", base))
		return nil
	}

	path := filepath.Join(fs.dir, base+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	header := []string{"title", "author", "price", "image_url", "product_url", "availability", "category", "scraped_at"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, book := range books {
		record := []string{
			book.Title,
			book.Author,
			book.Price,
			book.ImageURL,
			book.ProductURL,
			book.Availability,
			book.Category,
			book.ScrapedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}

	slog.Info("results saved", slog.String("path", path), slog.Int("rows", len(books)))
	return nil
}
