package process

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/fetch"
	"github.com/Sriram-PR/catalog-scraper/pkg/parse"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

const textExtension = ".txt"

// Longer link extensions are ignored in favour of the Content-Type.
const maxCoverExtensionLen = 10

// DownloadOptions tunes the local file name of a downloaded asset.
type DownloadOptions struct {
	FilePrefix string // Prepended to the title before sanitization, e.g. "32168."
}

// AssetDownloader saves the text and cover of a book to disk.
// Remote links are resolved against the site root; writes are atomic.
type AssetDownloader struct {
	fetcher  fetch.Fetcher
	siteRoot *url.URL
	log      *logrus.Entry
}

// NewAssetDownloader creates an AssetDownloader. fetcher should already carry the retry policy.
func NewAssetDownloader(fetcher fetch.Fetcher, siteRoot *url.URL, log *logrus.Entry) *AssetDownloader {
	return &AssetDownloader{fetcher: fetcher, siteRoot: siteRoot, log: log}
}

// Resolve returns the absolute URL of a page-relative or absolute asset link.
func (d *AssetDownloader) Resolve(remoteLink string) (string, error) {
	if strings.TrimSpace(remoteLink) == "" {
		return "", fmt.Errorf("%w: empty asset link", utils.ErrRemoteUnavailable)
	}
	return parse.ResolveLink(d.siteRoot, remoteLink)
}

// DownloadText fetches the plain-text edition and writes it, decoded to UTF-8,
// to <destDir>/<prefix+title>.txt. Returns the written path.
func (d *AssetDownloader) DownloadText(ctx context.Context, remoteLink, title, destDir string, opts DownloadOptions) (string, error) {
	absURL, err := d.Resolve(remoteLink)
	if err != nil {
		return "", err
	}
	assetLog := d.log.WithFields(logrus.Fields{"asset": "text", "url": absURL})

	page, err := d.fetcher.Fetch(ctx, absURL)
	if err != nil {
		return "", fmt.Errorf("text of '%s': %w", title, err)
	}
	text, err := page.Text()
	if err != nil {
		return "", fmt.Errorf("text of '%s': %w", title, err)
	}

	name := utils.SanitizeFilename(opts.FilePrefix+title) + textExtension
	if err := utils.WriteFileAtomic(destDir, name, []byte(text)); err != nil {
		return "", err
	}
	localPath := filepath.Join(destDir, name)
	assetLog.WithField("path", localPath).Debug("Saved text")
	return localPath, nil
}

// DownloadCover fetches the cover image and writes the raw bytes to
// <destDir>/<prefix+title><ext>, ext taken from the link (see CoverExtension).
// Returns the written path.
func (d *AssetDownloader) DownloadCover(ctx context.Context, remoteLink, title, destDir string, opts DownloadOptions) (string, error) {
	absURL, err := d.Resolve(remoteLink)
	if err != nil {
		return "", err
	}
	assetLog := d.log.WithFields(logrus.Fields{"asset": "cover", "url": absURL})

	page, err := d.fetcher.Fetch(ctx, absURL)
	if err != nil {
		return "", fmt.Errorf("cover of '%s': %w", title, err)
	}

	ext := CoverExtension(absURL)
	if ext == "" {
		ext = extensionFromContentType(page.ContentType)
		assetLog.Debugf("Cover link has no extension, using '%s' from Content-Type", ext)
	}

	name := utils.SanitizeFilename(opts.FilePrefix+title) + ext
	if err := utils.WriteFileAtomic(destDir, name, page.Body); err != nil {
		return "", err
	}
	localPath := filepath.Join(destDir, name)
	assetLog.WithField("path", localPath).Debug("Saved cover")
	return localPath, nil
}

// CoverExtension returns the file extension of an image link: the URL-decoded
// path with the query stripped, case preserved (".../covers/123.JPG?x=1" → ".JPG").
// Returns "" when the path has no usable extension, including one longer than maxCoverExtensionLen.
func CoverExtension(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	// u.Path is already percent-decoded
	ext := path.Ext(u.Path)
	if len(ext) > maxCoverExtensionLen || strings.ContainsAny(ext, `\<>:"|?*`) {
		return ""
	}
	return ext
}

func extensionFromContentType(contentType string) string {
	mimeType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
