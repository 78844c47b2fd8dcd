package process

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/fetch"
	"github.com/Sriram-PR/catalog-scraper/pkg/parse"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testDownloader(t *testing.T, serverURL string) *AssetDownloader {
	t.Helper()
	cfg := config.AppConfig{}
	_, _ = cfg.Validate()
	base := logrus.New()
	base.SetOutput(io.Discard)
	fetcher := fetch.NewPageFetcher(fetch.NewClient(cfg.HTTPClientSettings, base), "test-agent", testLogger())
	root, err := parse.SiteRoot(serverURL)
	require.NoError(t, err)
	return NewAssetDownloader(fetcher, root, testLogger())
}

var longExtensionCover = "/images/9." + strings.Repeat("x", 300)

func assetServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/txt.php", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "9":
			w.Header().Set("Content-Type", "text/plain; charset=windows-1251")
			_, _ = w.Write([]byte{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2}) // "Привет"
		default:
			http.Redirect(w, r, "/", http.StatusFound)
		}
	})
	mux.HandleFunc("/images/9.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	})
	mux.HandleFunc(longExtensionCover, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	})
	mux.HandleFunc("/images/nopic", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestCoverExtension(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://tululu.org/covers/123.JPG?x=1", ".JPG"},
		{"/images/9.jpg", ".jpg"},
		{"/images/9.jpg#frag", ".jpg"},
		{"/images/%D0%BA%D0%BD%D0%B8%D0%B3%D0%B0.png", ".png"},
		{"/images/archive.tar.gz", ".gz"},
		{"/images/nopic", ""},
		{"/images/9.jpeg2000x", ".jpeg2000x"},
		{"/images/9.jpeg20000xx", ""},
		{longExtensionCover, ""},
		{"/images.d/nopic", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CoverExtension(tt.link), "link %q", tt.link)
	}
}

func TestDownloadText(t *testing.T) {
	server := assetServer(t)
	d := testDownloader(t, server.URL)
	dest := filepath.Join(t.TempDir(), "books")

	got, err := d.DownloadText(context.Background(), "/txt.php?id=9", "Алиса: в/стране?", dest, DownloadOptions{})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "Алиса_ в_стране.txt"), got)
	content, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "Привет", string(content))
}

func TestDownloadText_WithPrefix(t *testing.T) {
	server := assetServer(t)
	d := testDownloader(t, server.URL)
	dest := t.TempDir()

	got, err := d.DownloadText(context.Background(), "txt.php?id=9", "Алиса", dest, DownloadOptions{FilePrefix: "9."})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "9.Алиса.txt"), got)
}

func TestDownloadText_RedirectIsUnavailableAndLeavesNoFile(t *testing.T) {
	server := assetServer(t)
	d := testDownloader(t, server.URL)
	dest := t.TempDir()

	got, err := d.DownloadText(context.Background(), "/txt.php?id=404", "Missing", dest, DownloadOptions{})

	assert.Empty(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRemoteUnavailable)
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadCover(t *testing.T) {
	server := assetServer(t)
	d := testDownloader(t, server.URL)
	dest := filepath.Join(t.TempDir(), "images")

	got, err := d.DownloadCover(context.Background(), "/images/9.jpg", "Алиса", dest, DownloadOptions{})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "Алиса.jpg"), got)
	content, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xE0}, content)
}

func TestDownloadCover_ExtensionFromContentType(t *testing.T) {
	server := assetServer(t)
	d := testDownloader(t, server.URL)
	dest := t.TempDir()

	got, err := d.DownloadCover(context.Background(), server.URL+"/images/nopic", "Книга", dest, DownloadOptions{})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "Книга.png"), got)
}

func TestDownloadCover_OverlongExtensionFallsBackToContentType(t *testing.T) {
	server := assetServer(t)
	d := testDownloader(t, server.URL)
	dest := t.TempDir()

	got, err := d.DownloadCover(context.Background(), longExtensionCover, "Книга", dest, DownloadOptions{})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "Книга.jpg"), got)
}

func TestDownloadCover_Missing(t *testing.T) {
	server := assetServer(t)
	d := testDownloader(t, server.URL)

	_, err := d.DownloadCover(context.Background(), "/images/gone.jpg", "Книга", t.TempDir(), DownloadOptions{})
	assert.ErrorIs(t, err, utils.ErrRemoteUnavailable)

	_, err = d.DownloadCover(context.Background(), "", "Книга", t.TempDir(), DownloadOptions{})
	assert.ErrorIs(t, err, utils.ErrRemoteUnavailable)
}

func TestDownload_TitleCannotEscapeDest(t *testing.T) {
	server := assetServer(t)
	d := testDownloader(t, server.URL)
	dest := t.TempDir()

	got, err := d.DownloadText(context.Background(), "/txt.php?id=9", "../../etc/passwd", dest, DownloadOptions{})

	require.NoError(t, err)
	assert.Equal(t, dest, filepath.Dir(got))
}

func TestResolve(t *testing.T) {
	d := NewAssetDownloader(nil, &url.URL{Scheme: "https", Host: "tululu.org", Path: "/"}, testLogger())

	got, err := d.Resolve("/txt.php?id=9")
	require.NoError(t, err)
	assert.Equal(t, "https://tululu.org/txt.php?id=9", got)
}
