package parse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// ParseBookPage extracts a BookRecord from a detail page.
//
// A page without a plain-text download anchor is Absent and yields (nil, nil).
// Any other structural surprise is an ErrParse: the heading must contain exactly
// one "::", and the cover image and genre block must exist. A page with no
// comment blocks has no comments; a comment block without its text span is an error.
// Links are returned exactly as they appear in the markup.
func ParseBookPage(html []byte) (*models.BookRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: reading book page: %w", utils.ErrParse, err)
	}

	textLink, ok := doc.Find(Selectors.TextLink).First().Attr("href")
	if !ok || strings.TrimSpace(textLink) == "" {
		return nil, nil
	}

	title, author, err := parseHeading(doc)
	if err != nil {
		return nil, err
	}

	cover := doc.Find(Selectors.Cover).First()
	if cover.Length() == 0 {
		return nil, fmt.Errorf("%w: book '%s' has no cover image element", utils.ErrParse, title)
	}
	coverLink, ok := cover.Attr("src")
	if !ok {
		return nil, fmt.Errorf("%w: book '%s' cover image has no src", utils.ErrParse, title)
	}

	genreBlock := doc.Find(Selectors.Genres)
	if genreBlock.Length() == 0 {
		return nil, fmt.Errorf("%w: book '%s' has no genre block", utils.ErrParse, title)
	}
	genres := genreBlock.Find("a").Map(func(_ int, s *goquery.Selection) string {
		return strings.TrimSpace(s.Text())
	})

	comments := []string{}
	var commentErr error
	doc.Find(Selectors.CommentBlock).EachWithBreak(func(i int, block *goquery.Selection) bool {
		text := block.Find(Selectors.CommentText)
		if text.Length() == 0 {
			commentErr = fmt.Errorf("%w: book '%s' comment %d has no text", utils.ErrParse, title, i+1)
			return false
		}
		comments = append(comments, strings.TrimSpace(text.First().Text()))
		return true
	})
	if commentErr != nil {
		return nil, commentErr
	}

	rec, err := models.NewBookRecord(title, author, textLink, coverLink, genres, comments)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrParse, err)
	}
	return &rec, nil
}

func parseHeading(doc *goquery.Document) (title, author string, err error) {
	heading := doc.Find(Selectors.Heading).First()
	if heading.Length() == 0 {
		return "", "", fmt.Errorf("%w: book page has no heading", utils.ErrParse)
	}
	text := heading.Text()
	parts := strings.Split(text, HeadingSeparator)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: heading %q has %d '%s' separators, want exactly 1",
			utils.ErrParse, strings.TrimSpace(text), len(parts)-1, HeadingSeparator)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}
