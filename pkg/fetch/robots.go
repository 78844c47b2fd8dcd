package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// RobotsHandler manages fetching, parsing, caching, and checking robots.txt data
type RobotsHandler struct {
	fetcher       Fetcher
	userAgent     string
	robotsCache   map[string]*robotstxt.RobotsData // hostname -> parsed data (or nil)
	robotsCacheMu sync.Mutex
	log           *logrus.Entry
}

// NewRobotsHandler creates a RobotsHandler
func NewRobotsHandler(fetcher Fetcher, userAgent string, log *logrus.Entry) *RobotsHandler {
	return &RobotsHandler{
		fetcher:     fetcher,
		userAgent:   userAgent,
		robotsCache: make(map[string]*robotstxt.RobotsData),
		log:         log,
	}
}

// GetRobotsData retrieves robots.txt data for the targetURL's host, using cache or fetching.
// Returns nil when the file is missing, unreachable or unparsable.
func (rh *RobotsHandler) GetRobotsData(ctx context.Context, targetURL *url.URL) *robotstxt.RobotsData {
	host := targetURL.Host

	rh.robotsCacheMu.Lock()
	robotsData, found := rh.robotsCache[host]
	rh.robotsCacheMu.Unlock()
	if found {
		return robotsData
	}

	robotsURL := (&url.URL{Scheme: targetURL.Scheme, Host: host, Path: "/robots.txt"}).String()
	robotsLog := rh.log.WithField("robots_url", robotsURL)
	robotsLog.Info("Fetching robots.txt...")

	var data *robotstxt.RobotsData
	page, err := rh.fetcher.Fetch(ctx, robotsURL)
	if err != nil {
		robotsLog.Warnf("Fetching robots.txt failed, assuming allowed: %v", err)
	} else if data, err = robotstxt.FromBytes(page.Body); err != nil {
		robotsLog.Warnf("Error parsing robots.txt, assuming allowed: %v", err)
		data = nil
	} else {
		robotsLog.Info("Successfully fetched and parsed robots.txt")
	}

	if ctx.Err() == nil { // A cancelled fetch says nothing about the host
		rh.robotsCacheMu.Lock()
		rh.robotsCache[host] = data
		rh.robotsCacheMu.Unlock()
	}
	return data
}

// TestAgent checks if the configured user agent may fetch targetURL.
// Returns true if allowed (or robots fetch/parse fails).
func (rh *RobotsHandler) TestAgent(ctx context.Context, targetURL *url.URL) bool {
	robotsData := rh.GetRobotsData(ctx, targetURL)
	if robotsData == nil {
		return true
	}
	return robotsData.TestAgent(targetURL.RequestURI(), rh.userAgent)
}

// RobotsFetcher refuses URLs disallowed by robots.txt before delegating to Next.
type RobotsFetcher struct {
	Next   Fetcher
	Robots *RobotsHandler
}

// Fetch implements Fetcher.
func (r *RobotsFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing '%s': %w", utils.ErrRequestCreation, rawURL, err)
	}
	if !r.Robots.TestAgent(ctx, u) {
		return nil, fmt.Errorf("%w: '%s'", utils.ErrRobotsDisallowed, rawURL)
	}
	return r.Next.Fetch(ctx, rawURL)
}
