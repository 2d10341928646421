package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/use-agent/taxscrape/cache"
	"github.com/use-agent/taxscrape/config"
	"github.com/use-agent/taxscrape/engine"
	"github.com/use-agent/taxscrape/models"
)

// Scraper runs the property tax search job. It is safe for concurrent use
// as long as the engine and cache are.
type Scraper struct {
	fetcher engine.Engine
	cache   *cache.Cache
	cfg     config.ScraperConfig
}

// NewScraper creates a Scraper fetching pages through fetcher. cc may be nil.
func NewScraper(fetcher engine.Engine, cc *cache.Cache, cfg config.ScraperConfig) *Scraper {
	return &Scraper{fetcher: fetcher, cache: cc, cfg: cfg}
}

// Run searches every configured query and returns the accounts found, in
// query then page order. The first page of each query decides how many
// pages follow, capped by MaxPages.
func (s *Scraper) Run(ctx context.Context) ([]models.TaxAccount, error) {
	var accounts []models.TaxAccount

	for _, query := range s.cfg.Queries {
		first, err := s.FetchPage(ctx, query, 1)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, first.Accounts...)
		slog.Info("search first page parsed",
			"query", first.Query,
			"totalResults", first.TotalResults,
			"totalPages", first.TotalPages,
			"accounts", len(first.Accounts),
		)

		last := first.TotalPages
		if s.cfg.MaxPages > 0 && last > s.cfg.MaxPages {
			last = s.cfg.MaxPages
		}
		for page := 2; page <= last; page++ {
			sp, err := s.FetchPage(ctx, query, page)
			if err != nil {
				return nil, err
			}
			if len(sp.Accounts) == 0 {
				slog.Info("no results on page", "query", sp.Query, "page", page)
				continue
			}
			accounts = append(accounts, sp.Accounts...)
		}
	}

	return accounts, nil
}

// FetchPage fetches and parses one results page, consulting the cache
// first. Totals are required on page 1 only.
func (s *Scraper) FetchPage(ctx context.Context, query string, page int) (*models.SearchPage, error) {
	key := cache.Key(s.cfg.BaseURL, query, page)
	if sp, hit := s.cache.Get(key); hit {
		slog.Debug("results page cache hit", "query", query, "page", page)
		return sp, nil
	}

	target, err := SearchURL(s.cfg.BaseURL, query, s.cfg.PayStatus, page)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "invalid search url", err)
	}

	res, err := s.fetcher.Fetch(ctx, &engine.FetchRequest{
		URL:     target,
		Headers: s.cfg.Headers,
		Timeout: s.cfg.PageTimeout,
	})
	if err != nil {
		return nil, fetchFailure(err, query, page)
	}

	doc, err := parseDocument(res.HTML)
	if err != nil {
		return nil, err
	}

	sp := &models.SearchPage{Query: WildcardQuery(query), Page: page}
	if page == 1 {
		total, ok := TotalResults(doc)
		if !ok {
			return nil, models.NewScrapeError(models.ErrCodeParse,
				fmt.Sprintf("could not find total results for query: %s", query), nil)
		}
		pages, ok := TotalPages(doc)
		if !ok {
			return nil, models.NewScrapeError(models.ErrCodeParse,
				fmt.Sprintf("could not find total pages for query: %s", query), nil)
		}
		sp.TotalResults, sp.TotalPages = total, pages
	}

	sp.Accounts, err = ParseAccounts(doc, ParseOptions{
		Query:      sp.Query,
		Page:       page,
		DetailsURL: s.cfg.DetailsURL,
		RealOnly:   s.cfg.RealOnly,
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, sp)
	return sp, nil
}

func fetchFailure(err error, query string, page int) error {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewScrapeError(models.ErrCodeTimeout,
			fmt.Sprintf("timed out fetching page %d for query %s", page, query), err)
	}
	return models.NewScrapeError(models.ErrCodeFetch,
		fmt.Sprintf("could not fetch page %d for query %s", page, query), err)
}
