package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/fetch"
	"github.com/Sriram-PR/catalog-scraper/pkg/parse"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// Listing is the outcome of walking a page range of one category.
type Listing struct {
	Links        []string // Absolute detail links, page order then document order
	SkippedPages []int    // Pages that were unavailable, disallowed or unreachable
}

// Paginator walks the numbered listing pages of a catalog category.
type Paginator struct {
	fetcher fetch.Fetcher
	log     *logrus.Entry
}

// NewPaginator creates a Paginator. fetcher should already carry the retry policy.
func NewPaginator(fetcher fetch.Fetcher, log *logrus.Entry) *Paginator {
	return &Paginator{fetcher: fetcher, log: log}
}

// CollectBookLinks fetches pages startPage..endPage-1 of the category at baseURL
// and returns every detail link in order. Links are resolved against the
// scheme and host of baseURL.
//
// A page that is missing, redirected, disallowed by robots.txt or unreachable
// after retry is logged, recorded in SkippedPages and skipped. Parse failures and cancellation abort the walk.
func (p *Paginator) CollectBookLinks(ctx context.Context, baseURL string, startPage, endPage int) (*Listing, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing category url '%s': %w", utils.ErrRequestCreation, baseURL, err)
	}
	root, err := parse.SiteRoot(baseURL)
	if err != nil {
		return nil, err
	}

	listing := &Listing{Links: []string{}}
	for page := startPage; page < endPage; page++ {
		if err := ctx.Err(); err != nil {
			return listing, err
		}
		pageURL := parse.PageURL(base, page)
		pageLog := p.log.WithFields(logrus.Fields{"page": page, "url": pageURL})

		fetched, err := p.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if utils.IsUnavailable(err) || utils.IsTransient(err) || errors.Is(err, utils.ErrRobotsDisallowed) {
				pageLog.WithField("error_type", utils.CategorizeError(err)).Warnf("Skipping category page: %v", err)
				listing.SkippedPages = append(listing.SkippedPages, page)
				continue
			}
			return listing, utils.WrapErrorf(err, "category page %d", page)
		}

		html, err := fetched.Text()
		if err != nil {
			return listing, utils.WrapErrorf(err, "category page %d", page)
		}
		links, err := parse.ParseCategoryPage([]byte(html), root)
		if err != nil {
			return listing, utils.WrapErrorf(err, "category page %d", page)
		}
		pageLog.Debugf("Found %d book link(s)", len(links))
		listing.Links = append(listing.Links, links...)
	}

	p.log.WithFields(logrus.Fields{
		"links":         len(listing.Links),
		"skipped_pages": len(listing.SkippedPages),
	}).Info("Collected book links")
	return listing, nil
}

// LastPage reads the number of the last listing page from the first page of the category.
func (p *Paginator) LastPage(ctx context.Context, baseURL string) (int, error) {
	fetched, err := p.fetcher.Fetch(ctx, baseURL)
	if err != nil {
		return 0, utils.WrapErrorf(err, "discovering last page")
	}
	html, err := fetched.Text()
	if err != nil {
		return 0, utils.WrapErrorf(err, "discovering last page")
	}
	n, err := parse.ParseLastPage([]byte(html))
	if err != nil {
		return 0, fmt.Errorf("discovering last page of '%s': %w", baseURL, err)
	}
	p.log.WithField("last_page", n).Info("Discovered last category page")
	return n, nil
}
