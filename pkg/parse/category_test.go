package parse

import (
	"bytes"
	"net/url"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

func countMatches(t *testing.T, html []byte, selector string) int {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	require.NoError(t, err)
	return doc.Find(selector).Length()
}

func TestParseCategoryPage_DocumentOrderResolved(t *testing.T) {
	root, err := SiteRoot("https://tululu.org/l55/")
	require.NoError(t, err)

	links, err := ParseCategoryPage(readFixture(t, "category_page.html"), root)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://tululu.org/b9/",
		"https://tululu.org/b12/",
		"https://tululu.org/b40/",
	}, links)
}

func TestParseCategoryPage_Empty(t *testing.T) {
	root, _ := SiteRoot("https://tululu.org/l55/")

	links, err := ParseCategoryPage([]byte(`<html><body><div id="content"></div></body></html>`), root)

	require.NoError(t, err)
	assert.NotNil(t, links)
	assert.Empty(t, links)
}

func TestParseLastPage(t *testing.T) {
	n, err := ParseLastPage(readFixture(t, "category_page.html"))
	require.NoError(t, err)
	assert.Equal(t, 701, n)
}

func TestParseLastPage_Errors(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"NoPagination", `<div id="content"><h1>x</h1></div>`},
		{"NotANumber", `<div id="content"><p class="center"><a href="/l55/2/">next</a></p></div>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLastPage([]byte("<html><body>" + tt.html + "</body></html>"))
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrParse)
		})
	}
}

func TestSiteRoot(t *testing.T) {
	root, err := SiteRoot("https://tululu.org/l55/?sort=1#top")
	require.NoError(t, err)
	assert.Equal(t, "https://tululu.org/", root.String())

	_, err = SiteRoot("/l55/")
	assert.ErrorIs(t, err, utils.ErrRequestCreation)
}

func TestResolveLink(t *testing.T) {
	root, _ := SiteRoot("https://tululu.org/l55/")

	tests := []struct {
		href string
		want string
	}{
		{"/txt.php?id=9", "https://tululu.org/txt.php?id=9"},
		{"txt.php?id=9", "https://tululu.org/txt.php?id=9"},
		{"/images/9.jpg", "https://tululu.org/images/9.jpg"},
		{"https://cdn.example.test/covers/1.jpg", "https://cdn.example.test/covers/1.jpg"},
		{"  /b1/  ", "https://tululu.org/b1/"},
	}
	for _, tt := range tests {
		got, err := ResolveLink(root, tt.href)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "href %q", tt.href)
	}
}

func TestPageURLAndBookURL(t *testing.T) {
	base, _ := url.Parse("https://tululu.org/l55/")
	root, _ := SiteRoot(base.String())

	assert.Equal(t, "https://tululu.org/l55/1", PageURL(base, 1))
	assert.Equal(t, "https://tululu.org/l55/3", PageURL(base, 3))
	assert.Equal(t, "https://tululu.org/b32168/", BookURL(root, 32168))
}
