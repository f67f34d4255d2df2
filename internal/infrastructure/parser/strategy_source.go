package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"DailyDigest/internal/config"
	"DailyDigest/internal/domain"
	"DailyDigest/internal/ports"
	"DailyDigest/internal/scanner"
)

// StrategySource turns config-defined sites into source adapters backed by
// registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// DefaultRegistry registers every built-in strategy sharing one HTTP client.
// Request pacing mirrors what the upstream APIs tolerate. summarizer may be
// nil, which leaves arXiv abstracts untouched.
func DefaultRegistry(client *http.Client, logger *slog.Logger, summarizer AbstractSummarizer) *scanner.Registry {
	reg := scanner.NewRegistry()
	reg.Register(NewArxivScanner(client, logger).WithSummarizer(summarizer))
	reg.Register(NewGitHubTrendingScanner(client, 2*time.Second))
	reg.Register(NewHackerNewsScanner(client, time.Second))
	reg.Register(NewV2EXScanner(client, 2*time.Second))
	reg.Register(NewRSSScanner(client))
	return reg
}

// Sources resolves one adapter per enabled site. An unknown scanner name is a
// configuration error and fails fast.
func (s *StrategySource) Sources() ([]ports.Source, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	sources := make([]ports.Source, 0, len(s.sites))
	for _, site := range s.sites {
		if !site.IsEnabled() {
			s.debug("site disabled", "site", site.Name)
			continue
		}
		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", site.Name, err)
		}
		sources = append(sources, &siteSource{
			site:     site,
			strategy: strategy,
			logger:   s.logger,
		})
	}
	return sources, nil
}

type siteSource struct {
	site     config.SiteConfig
	strategy scanner.Scanner
	logger   *slog.Logger
}

var _ ports.Source = (*siteSource)(nil)

func (s *siteSource) Name() string {
	return s.site.Name
}

func (s *siteSource) Fetch(ctx context.Context, window domain.Window) ([]domain.RawItem, error) {
	req := scanner.Request{
		Window:     window,
		SiteName:   s.site.Name,
		Options:    s.site.Options,
		Categories: toScannerCategories(s.site.Categories),
	}

	if s.logger != nil {
		s.logger.Debug("process site", "site", s.site.Name, "scanner", s.site.Scanner, "categories", len(req.Categories))
	}

	items, err := s.strategy.Scan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scan site %s: %w", s.site.Name, err)
	}

	if s.logger != nil {
		s.logger.Debug("site produced items", "site", s.site.Name, "count", len(items))
	}
	return items, nil
}

func toScannerCategories(cfg []config.CategoryConfig) []scanner.Category {
	categories := make([]scanner.Category, 0, len(cfg))
	for _, cat := range cfg {
		categories = append(categories, scanner.Category{
			Name: cat.Name,
			URL:  cat.URL,
		})
	}
	return categories
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
