// Package models defines the data structures exchanged between the
// fetcher, extractor, walker, and result pipeline.
package models

import "time"

// Book is a single product record extracted from a listing page.
// Title is the only required field; the remaining fields may be empty
// when the page omits them. A Book is never mutated after extraction.
type Book struct {
	Title        string    `csv:"title" json:"title"`
	Author       string    `csv:"author" json:"author"`
	Price        string    `csv:"price" json:"price"`
	ImageURL     string    `csv:"image_url" json:"image_url"`
	ProductURL   string    `csv:"product_url" json:"product_url"`
	Availability string    `csv:"availability" json:"availability"`
	Category     string    `csv:"category" json:"category"`
	ScrapedAt    time.Time `csv:"scraped_at" json:"scraped_at"`
}

// PageResult holds the records extracted from one listing page in page
// order. NextPage is empty when the page carries no pagination link,
// which ends the walk.
type PageResult struct {
	Books    []Book
	NextPage string
}

// RunReport is the aggregated outcome of one category walk.
type RunReport struct {
	SiteName          string    `json:"site_name"`
	Category          string    `json:"category"`
	TotalBooks        int       `json:"total_books"`
	PagesScraped      int       `json:"pages_scraped"`
	Books             []Book    `json:"books"`
	ScrapingStarted   time.Time `json:"scraping_started"`
	ScrapingCompleted time.Time `json:"scraping_completed"`
	Success           bool      `json:"success"`
	Errors            []string  `json:"errors"`
}
