// Package fetcher downloads remote source archives (HTTP, HTTPS or FTP) and
// unpacks the geometry dataset they contain.
package fetcher

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Downloader writes the resource at a URL to a local file.
type Downloader interface {
	DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error)
}

// Options configures a Client.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
}

// Client dispatches downloads by URL scheme.
type Client struct {
	http Downloader
	ftp  Downloader
}

// New creates a Client with HTTP and FTP downloaders.
func New(opts Options) *Client {
	return &Client{
		http: NewHTTPFetcher(HTTPOptions{
			UserAgent:  opts.UserAgent,
			Timeout:    opts.Timeout,
			MaxRetries: opts.MaxRetries,
		}),
		ftp: NewFTPFetcher(FTPOptions{Timeout: opts.Timeout}),
	}
}

// Fetch downloads rawURL into destDir and returns the path of the dataset it
// holds. Zip archives are extracted and searched for a shapefile, GeoPackage
// or GeoJSON file; other downloads are returned as is.
func (c *Client) Fetch(ctx context.Context, rawURL, destDir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "fetch: parse url")
	}

	var d Downloader
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		d = c.http
	case "ftp":
		d = c.ftp
	default:
		return "", eris.Errorf("fetch: unsupported scheme %q", u.Scheme)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", eris.Errorf("fetch: no file name in %q", rawURL)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetch: create destination")
	}

	target := filepath.Join(destDir, name)
	log := zap.L().With(zap.String("component", "fetcher"), zap.String("url", u.Redacted()))

	start := time.Now()
	n, err := d.DownloadToFile(ctx, rawURL, target)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: %s", rawURL)
	}
	log.Info("downloaded", zap.Int64("bytes", n), zap.Duration("elapsed", time.Since(start)))

	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		return target, nil
	}

	files, err := ExtractZIP(target, destDir)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: extract %s", name)
	}
	dataset, err := FindDataset(files)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: %s", name)
	}
	if err := os.Remove(target); err != nil {
		log.Warn("could not remove archive", zap.Error(err))
	}

	log.Info("extracted dataset", zap.String("path", dataset), zap.Int("files", len(files)))
	return dataset, nil
}
