package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Selectors names the CSS selectors used to locate record fields inside
// one product container.
type Selectors struct {
	ProductContainer string `yaml:"product_container"`
	Title            string `yaml:"title"`
	Author           string `yaml:"author"`
	AuthorFallback   string `yaml:"author_fallback"`
	Price            string `yaml:"price"`
	Image            string `yaml:"image"`
	Link             string `yaml:"link"`
	Availability     string `yaml:"availability"`
}

// Site is a scraping profile for one storefront: where it lives, how
// its listing markup is shaped, and which category parameters it knows.
type Site struct {
	Name               string            `yaml:"name"`
	BaseURL            string            `yaml:"base_url"`
	Selectors          Selectors         `yaml:"selectors"`
	PaginationSelector string            `yaml:"pagination_selector"`
	ProductPathMarker  string            `yaml:"product_path_marker"`
	CurrencyMarker     string            `yaml:"currency_marker"`
	CategoryParams     map[string]string `yaml:"category_params"`
}

// CategoryParam resolves a category name to its query parameter.
// Unknown names are assumed to already be a raw parameter value.
func (s *Site) CategoryParam(name string) string {
	if param, ok := s.CategoryParams[name]; ok {
		return param
	}
	return name
}

// PeriplusSite returns the built-in profile for periplus.com.
func PeriplusSite() *Site {
	return &Site{
		Name:    "periplus",
		BaseURL: "https://www.periplus.com/index.php",
		Selectors: Selectors{
			ProductContainer: "div.single-product",
			Title:            "h3 a",
			Author:           ".product-author a",
			AuthorFallback:   ".product-author",
			Price:            ".product-price",
			Image:            ".product-img img.default-img",
			Link:             "h3 a",
			Availability:     ".product-binding",
		},
		PaginationSelector: "ul.pagination li a[rel='next']",
		ProductPathMarker:  "/p/",
		CurrencyMarker:     "Rp",
		CategoryParams: map[string]string{
			"new_releases": "103",
			"bestsellers":  "104",
			"featured":     "105",
		},
	}
}

// LoadSite reads a site profile from a YAML file.
func LoadSite(path string) (*Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site profile: %w", err)
	}
	var site Site
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("parse site profile: %w", err)
	}
	if site.ProductPathMarker == "" {
		site.ProductPathMarker = "/p/"
	}
	if err := ValidateSite(&site); err != nil {
		return nil, err
	}
	return &site, nil
}
