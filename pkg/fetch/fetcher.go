package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// Fetcher retrieves a single remote document.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// Page is a successfully fetched (2xx) response with its body fully read.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Text decodes the body to UTF-8 using the charset declared by the response
// (or sniffed from the markup when the header is silent).
func (p *Page) Text() (string, error) {
	r, err := charset.NewReader(bytes.NewReader(p.Body), p.ContentType)
	if err != nil {
		return "", fmt.Errorf("%w: decoding '%s' (%s): %w", utils.ErrResponseBodyRead, p.URL, p.ContentType, err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: decoding '%s': %w", utils.ErrResponseBodyRead, p.URL, err)
	}
	return string(decoded), nil
}

// PageFetcher performs exactly one GET per call and classifies the outcome:
// 2xx is a Page, 3xx and >= 400 are ErrRemoteUnavailable, connectivity failures
// are ErrTransientNetwork. Retrying is left to RetryFetcher.
type PageFetcher struct {
	http *resty.Client
	log  *logrus.Entry
}

// NewPageFetcher wraps client (see NewClient) in a resty client.
func NewPageFetcher(client *http.Client, userAgent string, log *logrus.Entry) *PageFetcher {
	rc := resty.NewWithClient(client)
	rc.SetLogger(log)
	rc.SetRetryCount(0)
	rc.SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	if userAgent != "" {
		rc.SetHeader("User-Agent", userAgent)
	}
	return &PageFetcher{http: rc, log: log}
}

// Fetch implements Fetcher.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	reqLog := f.log.WithField("url", rawURL)

	res, err := f.http.R().
		SetContext(ctx).
		Get(rawURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Client timeout rather than caller cancellation
			return nil, fmt.Errorf("%w: timeout fetching '%s': %w", utils.ErrTransientNetwork, rawURL, err)
		}
		reqLog.Debugf("Network error: %v", err)
		return nil, fmt.Errorf("%w: fetching '%s': %w", utils.ErrTransientNetwork, rawURL, err)
	}

	statusCode := res.StatusCode()
	resLog := reqLog.WithField("status_code", statusCode)

	switch {
	case statusCode >= 200 && statusCode < 300:
		resLog.Debug("Successfully fetched")
		return &Page{
			URL:         rawURL,
			StatusCode:  statusCode,
			ContentType: res.Header().Get("Content-Type"),
			Body:        res.Body(),
		}, nil
	case statusCode >= 300 && statusCode < 400:
		resLog.Debug("Redirect treated as missing resource")
		return nil, fmt.Errorf("%w: redirect %d from '%s' to '%s'",
			utils.ErrRemoteUnavailable, statusCode, rawURL, res.Header().Get("Location"))
	default:
		resLog.Debug("Non-success status")
		return nil, fmt.Errorf("%w: status %d %s for '%s'",
			utils.ErrRemoteUnavailable, statusCode, http.StatusText(statusCode), rawURL)
	}
}
