package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"periscrape/config"
	"periscrape/models"
	"periscrape/pipeline"
	"periscrape/scraper"
)

type options struct {
	category      string
	categoryParam string
	maxPages      int
	multiple      bool
	categories    string
	delay         time.Duration
	retries       int
	timeout       time.Duration
	concurrent    int
	dedupeMax     int
	outputFormat  string
	outputDir     string
	siteProfile   string
	logLevel      string
	logFile       string
	metricsAddr   string
	verbose       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "periscrape",
		Short:         "Scrape paginated book listings from an e-commerce site",
		Long:          "periscrape walks one or more category listings of a bookstore site,\nextracts structured book records, and writes JSON/CSV reports.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyEnv(cmd, opts); err != nil {
				return err
			}
			return run(opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.category, "category", "new_releases", "Category name to scrape")
	flags.StringVar(&opts.categoryParam, "category-param", "", "Raw category parameter overriding the profile lookup")
	flags.IntVar(&opts.maxPages, "max-pages", defaults.MaxPages, "Maximum number of pages to scrape per category")
	flags.BoolVar(&opts.multiple, "multiple", false, "Scrape multiple categories")
	flags.StringVar(&opts.categories, "categories", "", "Comma-separated categories (name:param, or a profile-defined name)")
	flags.DurationVar(&opts.delay, "delay", defaults.Delay, "Delay between page requests")
	flags.IntVar(&opts.retries, "retries", defaults.MaxRetries, "Maximum retries per request")
	flags.DurationVar(&opts.timeout, "timeout", defaults.Timeout, "Per-attempt request timeout")
	flags.IntVar(&opts.concurrent, "concurrent", defaults.ConcurrentRequests, "Upper bound on concurrent HTTP connections")
	flags.IntVar(&opts.dedupeMax, "dedupe-max", defaults.DedupeMaxSize, "Within-run product URL dedup capacity (0 disables)")
	flags.StringVar(&opts.outputFormat, "output-format", defaults.OutputFormat, "Output format: json, csv, or both")
	flags.StringVar(&opts.outputDir, "output-dir", defaults.OutputDirectory, "Output directory")
	flags.StringVar(&opts.siteProfile, "site-config", "", "YAML site profile path (defaults to the built-in periplus profile)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, or error")
	flags.StringVar(&opts.logFile, "log-file", "", "Also write logs to this file")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	return cmd
}

// applyEnv fills flags the user did not set from the environment, so
// precedence is flag > environment > built-in default.
func applyEnv(cmd *cobra.Command, opts *options) error {
	flags := cmd.Flags()

	if !flags.Changed("max-pages") {
		if value, ok, err := config.EnvInt("MAX_PAGES"); err != nil {
			return err
		} else if ok {
			opts.maxPages = value
		}
	}
	if !flags.Changed("retries") {
		if value, ok, err := config.EnvInt("MAX_RETRIES"); err != nil {
			return err
		} else if ok {
			opts.retries = value
		}
	}
	if !flags.Changed("concurrent") {
		if value, ok, err := config.EnvInt("CONCURRENT_REQUESTS"); err != nil {
			return err
		} else if ok {
			opts.concurrent = value
		}
	}
	if !flags.Changed("delay") {
		if value, ok, err := config.EnvDuration("DELAY"); err != nil {
			return err
		} else if ok {
			opts.delay = value
		}
	}
	if !flags.Changed("timeout") {
		if value, ok, err := config.EnvDuration("TIMEOUT"); err != nil {
			return err
		} else if ok {
			opts.timeout = value
		}
	}
	if !flags.Changed("output-format") {
		if value, ok := config.EnvString("OUTPUT_FORMAT"); ok {
			opts.outputFormat = value
		}
	}
	if !flags.Changed("output-dir") {
		if value, ok := config.EnvString("OUTPUT_DIR"); ok {
			opts.outputDir = value
		}
	}
	return nil
}

func run(opts *options) error {
	closeLog, err := setupLogging(opts.logLevel, opts.logFile, opts.verbose)
	if err != nil {
		return err
	}
	if closeLog != nil {
		defer closeLog()
	}

	cfg := &config.Config{
		MaxPages:           opts.maxPages,
		Delay:              opts.delay,
		MaxRetries:         opts.retries,
		Timeout:            opts.timeout,
		BackoffBase:        time.Second,
		BackoffMax:         30 * time.Second,
		ConcurrentRequests: opts.concurrent,
		OutputFormat:       strings.ToLower(opts.outputFormat),
		OutputDirectory:    opts.outputDir,
		DedupeMaxSize:      opts.dedupeMax,
		MetricsAddr:        opts.metricsAddr,
		Verbose:            opts.verbose,
	}

	site := config.PeriplusSite()
	if opts.siteProfile != "" {
		site, err = config.LoadSite(opts.siteProfile)
		if err != nil {
			return err
		}
	}

	s, err := scraper.New(cfg, site)
	if err != nil {
		return err
	}

	sink, err := pipeline.NewFileSink(cfg.OutputDirectory)
	if err != nil {
		return err
	}
	agg, err := pipeline.NewAggregator(sink, cfg.OutputFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, abandoning in-flight requests")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting scrape",
		slog.String("site", site.Name),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Int("concurrent", cfg.ConcurrentRequests),
	)

	start := time.Now()
	if opts.multiple {
		cats, err := parseCategories(opts.categories, site)
		if err != nil {
			return err
		}
		reports := s.RunAll(ctx, cats, opts.maxPages, agg)
		printMultiSummary(reports, time.Since(start), cfg.OutputDirectory)
	} else {
		report, err := s.Run(ctx, opts.category, opts.categoryParam, opts.maxPages, agg)
		if err != nil {
			return err
		}
		printSummary(report, time.Since(start), cfg.OutputDirectory)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	return nil
}

// parseCategories parses a "name:param,name2:param2" list. Bare names
// must exist in the site profile. An empty list expands to every
// profile-defined category, in name order.
func parseCategories(list string, site *config.Site) ([]scraper.Category, error) {
	var cats []scraper.Category

	if strings.TrimSpace(list) != "" {
		for _, pair := range strings.Split(list, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			if name, param, ok := strings.Cut(pair, ":"); ok {
				cats = append(cats, scraper.Category{Name: strings.TrimSpace(name), Param: strings.TrimSpace(param)})
				continue
			}
			param, ok := site.CategoryParams[pair]
			if !ok {
				return nil, fmt.Errorf("unknown category %q: not defined in the site profile", pair)
			}
			cats = append(cats, scraper.Category{Name: pair, Param: param})
		}
	}

	if len(cats) == 0 {
		names := make([]string, 0, len(site.CategoryParams))
		for name := range site.CategoryParams {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cats = append(cats, scraper.Category{Name: name, Param: site.CategoryParams[name]})
		}
	}

	if len(cats) == 0 {
		return nil, fmt.Errorf("no categories to scrape")
	}
	return cats, nil
}

func printSummary(report *models.RunReport, duration time.Duration, outputDir string) {
	separator := strings.Repeat("=", 50)
	fmt.Println("\n" + separator)
	fmt.Println("SCRAPING COMPLETED")
	fmt.Println(separator)
	fmt.Printf("  Site:          %s\n", report.SiteName)
	fmt.Printf("  Category:      %s\n", report.Category)
	fmt.Printf("  Total books:   %d\n", report.TotalBooks)
	fmt.Printf("  Pages scraped: %d\n", report.PagesScraped)
	fmt.Printf("  Success:       %t\n", report.Success)
	fmt.Printf("  Duration:      %v\n", duration)

	if len(report.Errors) > 0 {
		fmt.Printf("\n  Errors (%d):\n", len(report.Errors))
		for i, msg := range report.Errors {
			if i == 5 {
				fmt.Printf("    ... and %d more\n", len(report.Errors)-5)
				break
			}
			fmt.Printf("    - %s\n", msg)
		}
	}
	fmt.Printf("\n  Results saved to: %s\n", outputDir)
	fmt.Println(separator)
}

func printMultiSummary(reports map[string]*models.RunReport, duration time.Duration, outputDir string) {
	separator := strings.Repeat("=", 60)
	fmt.Println("\n" + separator)
	fmt.Println("MULTIPLE CATEGORIES SCRAPING COMPLETED")
	fmt.Println(separator)

	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		report := reports[name]
		total += report.TotalBooks
		fmt.Printf("  %-20s %5d books, %d pages, success=%t\n", name+":", report.TotalBooks, report.PagesScraped, report.Success)
	}

	fmt.Printf("\n  Total books across all categories: %d\n", total)
	fmt.Printf("  Duration:                          %v\n", duration)
	fmt.Printf("  Results saved to:                  %s\n", outputDir)
	fmt.Println(separator)
}

// setupLogging installs the default slog handler. An invalid level is
// a fatal configuration error surfaced before any network activity.
func setupLogging(levelStr, logFile string, verbose bool) (func() error, error) {
	var level slog.Level
	if verbose {
		level = slog.LevelDebug
	} else {
		normalized := strings.ToLower(strings.TrimSpace(levelStr))
		if normalized == "warning" {
			normalized = "warn"
		}
		if err := level.UnmarshalText([]byte(normalized)); err != nil {
			return nil, fmt.Errorf("invalid log level %q", levelStr)
		}
	}

	var out io.Writer = os.Stdout
	var closer func() error
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closer = f.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if logFile == "" && isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
	return closer, nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
