package parse

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// NormalizeURL standardizes a URL for deduplication in the run ledger.
// It lowercases the scheme and host, removes default ports, removes trailing slashes
// from paths (unless root "/"), ensures empty path becomes "/", and removes the fragment.
// The query is kept: the catalog addresses downloads by query (txt.php?id=N).
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
	} else if len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/") {
		normalized.Path = normalized.Path[:len(normalized.Path)-1]
	}
	normalized.RawPath = ""
	normalized.Fragment = ""

	return normalized.String()
}

// ParseAndNormalize parses a URL string using the stricter url.ParseRequestURI (requiring a scheme) and then normalizes it using NormalizeURL
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	parsed, err := url.ParseRequestURI(urlStr)
	if err != nil {
		return "", nil, err
	}
	return NormalizeURL(parsed), parsed, nil
}

// SiteRoot returns scheme://host of rawURL with a "/" path.
// Every link found on catalog pages is resolved against it.
func SiteRoot(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing '%s': %w", utils.ErrRequestCreation, rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: '%s' is not an absolute URL", utils.ErrRequestCreation, rawURL)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, nil
}

// ResolveLink resolves a page-relative or absolute href against root.
func ResolveLink(root *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("%w: malformed link '%s': %w", utils.ErrParse, href, err)
	}
	return root.ResolveReference(ref).String(), nil
}

// PageURL returns the URL of a category listing page: the page number
// appended to the base as a path segment (…/l55/ + 3 → …/l55/3).
func PageURL(base *url.URL, page int) string {
	return base.ResolveReference(&url.URL{Path: strconv.Itoa(page)}).String()
}

// BookURL returns the detail page URL of a book by numeric id (…/b<id>/).
func BookURL(root *url.URL, id int) string {
	return root.ResolveReference(&url.URL{Path: fmt.Sprintf("b%d/", id)}).String()
}
