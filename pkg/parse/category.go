package parse

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// ParseCategoryPage returns the absolute detail links on one category page,
// in document order, resolved against root. Anchors without href are ignored.
func ParseCategoryPage(html []byte, root *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: reading category page: %w", utils.ErrParse, err)
	}

	links := []string{}
	var linkErr error
	doc.Find(Selectors.CategoryBookLink).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return true
		}
		abs, err := ResolveLink(root, href)
		if err != nil {
			linkErr = err
			return false
		}
		links = append(links, abs)
		return true
	})
	if linkErr != nil {
		return nil, linkErr
	}
	return links, nil
}

// ParseLastPage reads the number of the last listing page from the pagination block.
func ParseLastPage(html []byte) (int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("%w: reading category page: %w", utils.ErrParse, err)
	}

	anchor := doc.Find(Selectors.LastPageLink).Last()
	if anchor.Length() == 0 {
		return 0, fmt.Errorf("%w: category page has no pagination", utils.ErrParse)
	}
	text := strings.TrimSpace(anchor.Text())
	n, err := strconv.Atoi(text)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: last page label %q is not a page number", utils.ErrParse, text)
	}
	return n, nil
}
