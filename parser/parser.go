// Package parser extracts book records and pagination links from
// listing-page HTML using the site profile's CSS selectors.
package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"periscrape/config"
	"periscrape/models"
)

// Extractor turns raw listing HTML into structured records. It depends
// only on the selectors and base URL of the site profile, never on how
// the HTML was obtained.
type Extractor struct {
	site *config.Site
	base *url.URL
}

// NewExtractor builds an extractor for the given site profile.
func NewExtractor(site *config.Site) (*Extractor, error) {
	base, err := url.Parse(site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	return &Extractor{site: site, base: base}, nil
}

// ExtractPage parses one listing page. Candidate containers whose link
// does not carry the product path marker are filtered out; a candidate
// missing its title yields no record. A candidate that panics during
// field extraction is recovered, logged, and appended to errs, and
// extraction continues with the next candidate.
func (e *Extractor) ExtractPage(html, category string, errs *models.ErrorList) (models.PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.PageResult{}, fmt.Errorf("parse page html: %w", err)
	}

	candidates := doc.Find(e.site.Selectors.ProductContainer)
	slog.Debug("found product elements", slog.Int("count", candidates.Length()))

	var books []models.Book
	candidates.Each(func(_ int, sel *goquery.Selection) {
		if !e.isProduct(sel) {
			return
		}
		if book := e.extractBook(sel, category, errs); book != nil {
			books = append(books, *book)
		}
	})

	next, _ := e.nextPage(doc)
	return models.PageResult{Books: books, NextPage: next}, nil
}

// NextPageURL extracts the pagination link from raw HTML. The boolean
// is false when the page carries no matching anchor.
func (e *Extractor) NextPageURL(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	return e.nextPage(doc)
}

// isProduct reports whether the candidate's link points at an actual
// product rather than a nested category listing.
func (e *Extractor) isProduct(sel *goquery.Selection) bool {
	href, ok := sel.Find("a").First().Attr("href")
	if !ok || href == "" {
		return false
	}
	return strings.Contains(href, e.site.ProductPathMarker)
}

func (e *Extractor) extractBook(sel *goquery.Selection, category string, errs *models.ErrorList) (book *models.Book) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("parsing product element: %v", r)
			slog.Error("product element parse failed", slog.String("category", category), slog.Any("panic", r))
			if errs != nil {
				errs.Append(msg)
			}
			book = nil
		}
	}()

	title := strings.TrimSpace(sel.Find(e.site.Selectors.Title).First().Text())
	if title == "" {
		return nil
	}

	return &models.Book{
		Title:        title,
		Author:       e.extractAuthor(sel),
		Price:        e.extractPrice(sel),
		ImageURL:     e.extractImage(sel),
		ProductURL:   e.extractLink(sel),
		Availability: strings.TrimSpace(sel.Find(e.site.Selectors.Availability).First().Text()),
		Category:     category,
		ScrapedAt:    time.Now().UTC(),
	}
}

func (e *Extractor) extractAuthor(sel *goquery.Selection) string {
	if author := strings.TrimSpace(sel.Find(e.site.Selectors.Author).First().Text()); author != "" {
		return author
	}
	// Some listings nest the author inside a wrapper with several links.
	author := ""
	sel.Find(e.site.Selectors.AuthorFallback + " a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if text := strings.TrimSpace(link.Text()); text != "" {
			author = text
			return false
		}
		return true
	})
	return author
}

// extractPrice prefers the first price node that is not struck
// through, so discount markup yields the current price rather than the
// crossed-out original. Falls back to the container's own text.
func (e *Extractor) extractPrice(sel *goquery.Selection) string {
	container := sel.Find(e.site.Selectors.Price).First()
	if container.Length() == 0 {
		return ""
	}

	price := ""
	container.Find("div").EachWithBreak(func(_ int, node *goquery.Selection) bool {
		text := strings.TrimSpace(node.Text())
		if text == "" || !strings.Contains(text, e.site.CurrencyMarker) {
			return true
		}
		if markup, err := goquery.OuterHtml(node); err == nil && strings.Contains(markup, "line-through") {
			return true
		}
		price = text
		return false
	})
	if price == "" {
		price = strings.TrimSpace(container.Text())
	}
	return price
}

func (e *Extractor) extractImage(sel *goquery.Selection) string {
	node := sel.Find(e.site.Selectors.Image).First()
	src, ok := node.Attr("src")
	if !ok || src == "" {
		src, _ = node.Attr("data-src")
	}
	if src == "" {
		return ""
	}
	return e.resolve(src)
}

func (e *Extractor) extractLink(sel *goquery.Selection) string {
	href, ok := sel.Find(e.site.Selectors.Link).First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	return e.resolve(href)
}

func (e *Extractor) nextPage(doc *goquery.Document) (string, bool) {
	href, ok := doc.Find(e.site.PaginationSelector).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", false
	}
	return e.resolve(href), true
}

// resolve makes a reference absolute against the site base URL.
// Already-absolute references pass through unchanged.
func (e *Extractor) resolve(ref string) string {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	if parsed.IsAbs() {
		return parsed.String()
	}
	return e.base.ResolveReference(parsed).String()
}
